package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"matai/internal/model"
)

const exportProductID = "-//matai//holidays//HE"

// WriteICS renders events as an iCalendar feed of all-day entries, one per
// occurrence, keyed by the event id.
func WriteICS(events []model.HolidayEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(exportProductID)
	cal.SetXWRCalName("Matai")

	stamp := now.UTC()
	for _, ev := range events {
		day := time.Date(ev.Date.Year(), ev.Date.Month(), ev.Date.Day(), 0, 0, 0, 0, ev.Date.Location())

		vev := cal.AddEvent(ev.ID + "@matai")
		vev.SetDtStampTime(stamp)
		vev.SetSummary(ev.Name)
		vev.SetDescription(ev.EnglishName)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		if ev.ImageURL != "" {
			vev.SetProperty(ical.ComponentPropertyUrl, ev.ImageURL)
		}
	}

	return cal.Serialize()
}
