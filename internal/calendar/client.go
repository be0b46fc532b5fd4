// Package calendar talks to the external Hebrew calendar service: major
// holidays, the weekly Torah portion and Gregorian to Hebrew year
// conversion. It performs no caching and no retries.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"matai/internal/config"
	appLog "matai/internal/log"
	"matai/internal/metrics"
	"matai/internal/model"
)

var (
	// ErrTransport covers unreachable service and non-2xx responses.
	ErrTransport = errors.New("calendar service unavailable")
	// ErrParse covers responses with an unexpected shape.
	ErrParse = errors.New("unexpected calendar response")
)

// Client is the CalendarSource.
type Client struct {
	baseURL   string
	client    *http.Client
	loc       *time.Location
	geonameID int
	occasions []Occasion
}

// NewClient builds a client from configuration. Invalid occasion rules are
// reported here rather than on every fetch.
func NewClient(cfg *config.Config, loc *time.Location) (*Client, error) {
	occasions := make([]Occasion, 0, len(cfg.Occasions))
	for _, oc := range cfg.Occasions {
		o, err := NewOccasion(oc, loc)
		if err != nil {
			return nil, err
		}
		occasions = append(occasions, o)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.Calendar.BaseURL, "/"),
		client: &http.Client{
			Timeout: time.Duration(cfg.Calendar.TimeoutSeconds) * time.Second,
		},
		loc:       loc,
		geonameID: cfg.GeonameID,
		occasions: occasions,
	}, nil
}

type holidaysResponse struct {
	Items []struct {
		Title    string `json:"title"`
		Date     string `json:"date"`
		Category string `json:"category"`
	} `json:"items"`
}

// FetchHolidays returns mapped holidays strictly after ref, ascending by
// date. From October on the following Gregorian year is queried as well,
// since a Hebrew year spans two Gregorian years.
func (c *Client) FetchHolidays(ctx context.Context, ref time.Time) ([]model.HolidayEvent, error) {
	ref = ref.In(c.loc)

	years := []int{ref.Year()}
	if ref.Month() >= time.October {
		years = append(years, ref.Year()+1)
	}

	events := make([]model.HolidayEvent, 0)
	for _, year := range years {
		yearEvents, err := c.fetchYear(ctx, year, ref)
		if err != nil {
			return nil, err
		}
		events = append(events, yearEvents...)
	}

	for _, o := range c.occasions {
		if ev, ok := o.Next(ref); ok {
			events = append(events, ev)
		}
	}

	upcoming := events[:0]
	for _, ev := range events {
		if ev.Date.After(ref) {
			upcoming = append(upcoming, ev)
		}
	}
	model.SortByDate(upcoming)

	appLog.Info("calendar holidays fetched", "years", fmt.Sprint(years), "count", len(upcoming))
	return upcoming, nil
}

func (c *Client) fetchYear(ctx context.Context, year int, ref time.Time) ([]model.HolidayEvent, error) {
	q := url.Values{}
	q.Set("v", "1")
	q.Set("cfg", "json")
	q.Set("maj", "on")
	q.Set("i", "on")
	q.Set("month", "x")
	q.Set("year", strconv.Itoa(year))
	q.Set("tzid", c.loc.String())

	var resp holidaysResponse
	err := c.getJSON(ctx, "/hebcal", q, &resp)
	metrics.CalendarFetch("holidays", err)
	if err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, fmt.Errorf("%w: holidays response has no items", ErrParse)
	}

	out := make([]model.HolidayEvent, 0, len(holidayMappings))
	for _, item := range resp.Items {
		meta, ok := lookupHoliday(item.Title)
		if !ok {
			continue
		}
		date, err := c.parseDate(item.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: holiday %q: %v", ErrParse, item.Title, err)
		}
		out = append(out, newEvent(meta, date, ref))
	}
	return out, nil
}

// WeeklyPortion is the raw weekly portion entry for a Shabbat.
type WeeklyPortion struct {
	// Title is the transliterated name without the "Parashat " prefix,
	// e.g. "Vayakhel-Pekudei".
	Title string
	// HebrewTitle is the Hebrew name without the "פרשת" prefix.
	HebrewTitle string
	// Memo is free text usable as a description fallback.
	Memo string
}

type shabbatResponse struct {
	Items []struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		Hebrew   string `json:"hebrew"`
		Memo     string `json:"memo"`
	} `json:"items"`
}

// ErrNoPortion is returned when the service lists no portion for the week,
// e.g. when a holiday falls on Shabbat.
var ErrNoPortion = errors.New("no weekly portion listed")

// FetchWeeklyPortion returns the portion read on the Shabbat of the week
// containing date.
func (c *Client) FetchWeeklyPortion(ctx context.Context, date time.Time) (WeeklyPortion, error) {
	date = date.In(c.loc)

	q := url.Values{}
	q.Set("cfg", "json")
	q.Set("geonameid", strconv.Itoa(c.geonameID))
	q.Set("gy", strconv.Itoa(date.Year()))
	q.Set("gm", strconv.Itoa(int(date.Month())))
	q.Set("gd", strconv.Itoa(date.Day()))
	q.Set("lg", "s")

	var resp shabbatResponse
	err := c.getJSON(ctx, "/shabbat", q, &resp)
	metrics.CalendarFetch("shabbat", err)
	if err != nil {
		return WeeklyPortion{}, err
	}

	for _, item := range resp.Items {
		if item.Category != "parashat" {
			continue
		}
		return WeeklyPortion{
			Title:       strings.TrimSpace(strings.TrimPrefix(item.Title, "Parashat ")),
			HebrewTitle: strings.TrimSpace(strings.TrimPrefix(item.Hebrew, "פרשת")),
			Memo:        item.Memo,
		}, nil
	}
	return WeeklyPortion{}, ErrNoPortion
}

type converterResponse struct {
	HebrewYear int `json:"hy"`
}

// HebrewYear converts the Gregorian date to its Hebrew year.
func (c *Client) HebrewYear(ctx context.Context, date time.Time) (int, error) {
	q := url.Values{}
	q.Set("cfg", "json")
	q.Set("date", date.In(c.loc).Format("2006-01-02"))
	q.Set("g2h", "1")

	var resp converterResponse
	err := c.getJSON(ctx, "/converter", q, &resp)
	metrics.CalendarFetch("converter", err)
	if err != nil {
		return 0, err
	}
	if resp.HebrewYear <= 0 {
		return 0, fmt.Errorf("%w: converter returned no hebrew year", ErrParse)
	}
	return resp.HebrewYear, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("calendar request", "path", path, "query", q.Encode())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s: status %s", ErrTransport, path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return nil
}

// parseDate accepts date-only ("2027-04-22") and RFC 3339 values. Date-only
// values are midnight in the client's location.
func (c *Client) parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) == len("2006-01-02") {
		return time.ParseInLocation("2006-01-02", v, c.loc)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(c.loc), nil
}
