package model

import (
	"sort"
	"strconv"
	"time"
)

// HolidayEvent is a single upcoming occasion as exposed to consumers.
type HolidayEvent struct {
	// ID is BaseID plus the ISO occurrence date, stable across runs.
	ID     string `json:"id"`
	BaseID string `json:"baseId"`

	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
	SearchTerm  string `json:"searchTerm"`

	// Date is the occurrence instant in the display timezone.
	Date time.Time `json:"date"`

	// DaysLeft is derived from Date on every read; never trust a stored value.
	DaysLeft int `json:"daysLeft"`

	// ImageURL stays empty until enrichment or a fallback fills it.
	ImageURL string `json:"imageUrl,omitempty"`
}

// EventID builds the deterministic identity of one occurrence.
func EventID(baseID string, date time.Time) string {
	return baseID + "_" + date.Format("2006-01-02")
}

// DaysUntil counts calendar days from now to date, both taken in date's
// location. An event later today is 0, tomorrow is 1.
func DaysUntil(date, now time.Time) int {
	loc := date.Location()
	n := now.In(loc)
	from := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// Upcoming recomputes DaysLeft against now, drops past events and returns
// a new slice ordered by date. The input is not modified.
func Upcoming(events []HolidayEvent, now time.Time) []HolidayEvent {
	out := make([]HolidayEvent, 0, len(events))
	for _, ev := range events {
		ev.DaysLeft = DaysUntil(ev.Date, now)
		if ev.DaysLeft < 0 {
			continue
		}
		out = append(out, ev)
	}
	SortByDate(out)
	return out
}

// SortByDate orders events ascending by date, breaking ties by ID so the
// order is deterministic.
func SortByDate(events []HolidayEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
}

// ParashaPortion is an entry of the static weekly Torah portion table:
// either a single portion (one number) or two portions read together.
type ParashaPortion struct {
	ID          string `json:"id"`
	Numbers     []int  `json:"numbers"`
	HebrewName  string `json:"hebrewName"`
	EnglishName string `json:"englishName"`
	Description string `json:"description"`
}

// PortionID renders the id of a single or combined portion, e.g. "22" or "22-23".
func PortionID(numbers ...int) string {
	id := ""
	for i, n := range numbers {
		if i > 0 {
			id += "-"
		}
		id += strconv.Itoa(n)
	}
	return id
}

func (p ParashaPortion) IsCombined() bool {
	return len(p.Numbers) > 1
}

// FullTitle is the display heading, e.g. "פרשת בראשית".
func (p ParashaPortion) FullTitle() string {
	return "פרשת " + p.HebrewName
}
