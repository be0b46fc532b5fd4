// Package parasha resolves the weekly Torah portion read on a given date,
// including the pairs read together in non-leap Hebrew years.
package parasha

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"matai/internal/calendar"
	appLog "matai/internal/log"
	"matai/internal/model"
)

// Source is the part of the calendar client the resolver needs.
type Source interface {
	HebrewYear(ctx context.Context, date time.Time) (int, error)
	FetchWeeklyPortion(ctx context.Context, date time.Time) (calendar.WeeklyPortion, error)
}

// Resolver is the PortionResolver.
type Resolver struct {
	src Source
	loc *time.Location
}

func NewResolver(src Source, loc *time.Location) *Resolver {
	return &Resolver{src: src, loc: loc}
}

// IsLeapYear applies the 19-year cycle: years 3, 6, 8, 11, 14, 17 and 19
// of each cycle have an extra month.
func IsLeapYear(hebrewYear int) bool {
	switch hebrewYear%19 + 1 {
	case 3, 6, 8, 11, 14, 17, 19:
		return true
	}
	return false
}

// EstimateHebrewYear approximates the Hebrew year of a Gregorian date
// without the calendar service. The new year is assumed to begin in
// October.
func EstimateHebrewYear(date time.Time) int {
	y := date.Year() + 3760
	if date.Month() >= time.October {
		y++
	}
	return y
}

// Resolve returns the portion for date, or nil when no portion could be
// determined. A nil result means nothing is read that week as far as the
// service knows; it is not an error.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) *model.ParashaPortion {
	date = date.In(r.loc)

	hy, err := r.src.HebrewYear(ctx, date)
	if err != nil {
		hy = EstimateHebrewYear(date)
		appLog.Warn("hebrew year lookup failed, using estimate", "date", date.Format("2006-01-02"), "estimate", hy, "err", err)
	}
	leap := IsLeapYear(hy)

	weekly, err := r.src.FetchWeeklyPortion(ctx, date)
	if err != nil {
		appLog.Warn("weekly portion lookup failed", "date", date.Format("2006-01-02"), "err", err)
		return nil
	}

	number := lookupNumber(weekly)
	if number == 0 {
		appLog.Warn("weekly portion not in table", "title", weekly.Title, "hebrew", weekly.HebrewTitle)
		return nil
	}

	var p model.ParashaPortion
	if c, ok := Combined(number); ok && !leap {
		p = c
	} else {
		p, _ = Single(number)
	}
	p.Numbers = slices.Clone(p.Numbers)
	if p.Description == "" {
		p.Description = weekly.Memo
	}

	appLog.Debug("weekly portion resolved", "date", date.Format("2006-01-02"), "hebrew_year", hy, "leap", leap, "id", p.ID)
	return &p
}

// nameIndex is filled by init once the portion tables exist.
var nameIndex map[string]int

func buildNameIndex() map[string]int {
	idx := make(map[string]int)
	add := func(name string, n int) {
		if k := normalizeName(name); k != "" {
			if _, exists := idx[k]; !exists {
				idx[k] = n
			}
		}
	}
	for _, p := range portions {
		add(p.english, p.number)
		add(p.hebrew, p.number)
		for _, a := range p.aliases {
			add(a, p.number)
		}
	}
	for first := range combinable {
		c, _ := Combined(first)
		add(c.EnglishName, first)
		add(c.HebrewName, first)
	}
	return idx
}

// normalizeName folds case and treats apostrophes, hyphens and repeated
// spaces as insignificant.
func normalizeName(s string) string {
	s = cases.Fold().String(s)
	s = strings.NewReplacer("'", "", "’", "", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// lookupNumber maps a service title to a portion number, trying the
// transliterated name first and the Hebrew name second. A combined title
// with no direct match resolves to its first part. Zero means no match.
func lookupNumber(w calendar.WeeklyPortion) int {
	for _, title := range []string{
		strings.TrimPrefix(strings.TrimSpace(w.Title), "Parashat "),
		strings.TrimPrefix(strings.TrimSpace(w.HebrewTitle), "פרשת"),
	} {
		if title == "" {
			continue
		}
		if n, ok := nameIndex[normalizeName(title)]; ok {
			return n
		}
		if first, _, found := strings.Cut(title, "-"); found {
			if n, ok := nameIndex[normalizeName(first)]; ok {
				return n
			}
		}
	}
	return 0
}
