package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"matai/internal/config"
	"matai/internal/model"
	"matai/internal/months"
)

type stubHolidays struct{ events []model.HolidayEvent }

func (s stubHolidays) GetHolidays(context.Context) []model.HolidayEvent { return s.events }

type stubPortions struct{ last time.Time }

func (s *stubPortions) Resolve(_ context.Context, date time.Time) *model.ParashaPortion {
	s.last = date
	if date.Weekday() == time.Sunday {
		return nil
	}
	return &model.ParashaPortion{ID: "22-23", Numbers: []int{22, 23}, HebrewName: "ויקהל-פקודי"}
}

type stubImages struct {
	cleared  bool
	clearErr error
}

func (s *stubImages) HeaderImage(context.Context) (string, error) {
	return "https://img.test/header", nil
}

func (s *stubImages) ClearCache(context.Context) error {
	s.cleared = true
	return s.clearErr
}

type stubSnapshot struct{ cleared bool }

func (s *stubSnapshot) Clear(context.Context) error {
	s.cleared = true
	return nil
}

type stubMonths struct{}

func (stubMonths) Get(context.Context) months.Names { return months.Defaults() }

type fixture struct {
	srv      *Server
	portions *stubPortions
	images   *stubImages
	snapshot *stubSnapshot
}

func newFixture(mutate func(*config.Config)) *fixture {
	cfg := config.DefaultConfig()
	cfg.MetricsEnabled = true
	if mutate != nil {
		mutate(cfg)
	}

	now := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	f := &fixture{portions: &stubPortions{}, images: &stubImages{}, snapshot: &stubSnapshot{}}
	f.srv = NewServer(cfg, time.UTC, Deps{
		Holidays: stubHolidays{events: []model.HolidayEvent{
			{ID: "chanukah_2026-12-04", BaseID: "chanukah", Name: "חנוכה", Date: time.Date(2026, time.December, 4, 0, 0, 0, 0, time.UTC), DaysLeft: 46},
			{ID: "summer_vacation_2027-06-21", BaseID: "summer_vacation", Name: "חופש גדול", Date: time.Date(2027, time.June, 21, 0, 0, 0, 0, time.UTC), DaysLeft: 245},
		}},
		Portions: f.portions,
		Images:   f.images,
		Snapshot: f.snapshot,
		Months:   stubMonths{},
	})
	f.srv.now = func() time.Time { return now }
	return f
}

func (f *fixture) do(method, target string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHolidaysIncludeDisplayFields(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/holidays", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("got %d holidays", len(body))
	}
	if body[0]["baseId"] != "chanukah" || body[0]["displayDate"] != "4 בדצמבר" || body[0]["countdown"] != "עוד 46 ימים" {
		t.Errorf("unexpected first holiday %v", body[0])
	}
	if body[1]["displayDate"] != "21 ביוני (2027)" {
		t.Errorf("unexpected displayDate %v", body[1]["displayDate"])
	}
}

func TestHolidaysICS(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/holidays.ics", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "UID:chanukah_2026-12-04@matai") {
		t.Errorf("missing event in feed:\n%s", rec.Body.String())
	}
}

func TestParasha(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodGet, "/api/parasha?date=2027-03-06", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"22-23"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if f.portions.last.Format("2006-01-02") != "2027-03-06" {
		t.Errorf("resolver got %v", f.portions.last)
	}

	rec = f.do(http.MethodGet, "/api/parasha?date=2027-03-07", nil)
	if strings.TrimSpace(rec.Body.String()) != `{"parasha":null}` {
		t.Errorf("miss should encode null, got %s", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/parasha?date=07/03/2027", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed date status %d", rec.Code)
	}

	f.do(http.MethodGet, "/api/parasha", nil)
	if f.portions.last.Format("2006-01-02") != "2026-10-19" {
		t.Errorf("default date %v", f.portions.last)
	}
}

func TestHeaderImageAndMonths(t *testing.T) {
	f := newFixture(nil)
	if rec := f.do(http.MethodGet, "/api/header-image", nil); !strings.Contains(rec.Body.String(), "https://img.test/header") {
		t.Errorf("header image body %s", rec.Body.String())
	}
	if rec := f.do(http.MethodGet, "/api/months", nil); !strings.Contains(rec.Body.String(), `"06":"יוני"`) {
		t.Errorf("months body %s", rec.Body.String())
	}
}

func TestClearCache(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/cache/clear", nil)
	if rec.Code != http.StatusNoContent || !f.images.cleared || !f.snapshot.cleared {
		t.Errorf("got %d images=%v snapshot=%v", rec.Code, f.images.cleared, f.snapshot.cleared)
	}

	if rec := f.do(http.MethodGet, "/api/cache/clear", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status %d", rec.Code)
	}

	f = newFixture(nil)
	f.images.clearErr = errors.New("disk I/O error")
	if rec := f.do(http.MethodPost, "/api/cache/clear", nil); rec.Code != http.StatusInternalServerError || f.snapshot.cleared {
		t.Errorf("failure status %d, snapshot cleared %v", rec.Code, f.snapshot.cleared)
	}
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "family", Password: "s3cret"}
	})

	if rec := f.do(http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health should stay open, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/holidays", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing credentials status %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/holidays", func(r *http.Request) { r.SetBasicAuth("family", "wrong") })
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status %d", rec.Code)
	}
	rec = f.do(http.MethodGet, "/api/holidays", func(r *http.Request) { r.SetBasicAuth("family", "s3cret") })
	if rec.Code != http.StatusOK {
		t.Errorf("valid credentials status %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(nil)
	f.do(http.MethodGet, "/api/holidays", nil)

	rec := f.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "matai_http_requests_total") {
		t.Errorf("metrics status %d", rec.Code)
	}

	off := newFixture(func(c *config.Config) { c.MetricsEnabled = false })
	if rec := off.do(http.MethodGet, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Errorf("disabled metrics status %d", rec.Code)
	}
}
