package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"matai/internal/config"
	"matai/internal/model"
)

// Occasion is a civil date the calendar service does not publish. Its dates
// come from a yearly recurrence rule.
type Occasion struct {
	meta holidayMeta
	rule *rrule.RRule
}

// NewOccasion parses the occasion's RRULE anchored at midnight in loc.
func NewOccasion(cfg config.OccasionConfig, loc *time.Location) (Occasion, error) {
	if cfg.ID == "" {
		return Occasion{}, errors.New("occasion id is empty")
	}
	opt, err := rrule.StrToROption(cfg.RRule)
	if err != nil {
		return Occasion{}, fmt.Errorf("occasion %s: parsing rrule %q: %w", cfg.ID, cfg.RRule, err)
	}
	// Occurrences are computed in the location of DTSTART.
	opt.Dtstart = time.Date(2000, time.January, 1, 0, 0, 0, 0, loc)
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return Occasion{}, fmt.Errorf("occasion %s: %w", cfg.ID, err)
	}

	return Occasion{
		meta: holidayMeta{
			BaseID:      cfg.ID,
			Name:        cfg.Name,
			EnglishName: cfg.EnglishName,
			SearchTerm:  cfg.SearchTerm,
		},
		rule: r,
	}, nil
}

// Next returns the first occurrence strictly after ref, or false when the
// rule has no further occurrences.
func (o Occasion) Next(ref time.Time) (model.HolidayEvent, bool) {
	at := o.rule.After(ref, false)
	if at.IsZero() {
		return model.HolidayEvent{}, false
	}
	return newEvent(o.meta, at, ref), true
}

func newEvent(meta holidayMeta, date, now time.Time) model.HolidayEvent {
	return model.HolidayEvent{
		ID:          model.EventID(meta.BaseID, date),
		BaseID:      meta.BaseID,
		Name:        meta.Name,
		EnglishName: meta.EnglishName,
		SearchTerm:  meta.SearchTerm,
		Date:        date,
		DaysLeft:    model.DaysUntil(date, now),
	}
}
