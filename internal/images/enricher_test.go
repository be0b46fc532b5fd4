package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"matai/internal/calendar"
	"matai/internal/config"
	"matai/internal/model"
	"matai/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type imageServer struct {
	calls  int32
	status int
}

func (s *imageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.calls, 1)
	if r.URL.Path != "/photos/random" || r.Header.Get("Authorization") != "Client-ID test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.status != 0 {
		http.Error(w, "failure", s.status)
		return
	}
	q := r.URL.Query()
	fmt.Fprintf(w, `{"urls":{"regular":"https://img.test/%s?n=%d"}}`,
		strings.ReplaceAll(q.Get("query"), " ", "-"), atomic.LoadInt32(&s.calls))
}

func (s *imageServer) Calls() int { return int(atomic.LoadInt32(&s.calls)) }

func newTestEnricher(t *testing.T, srv *imageServer, store storage.Store, clock *fakeClock, mutate func(*config.Config)) *Enricher {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.Images.BaseURL = ts.URL
	cfg.Images.AccessKey = "test-key"
	cfg.Images.PreloadDelayMs = -1
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, store, time.UTC, WithClock(clock.Now))
}

func startClock() *fakeClock {
	// Monday, ISO week 43 of 2026.
	return &fakeClock{t: time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)}
}

func TestResolveImageCachesPerWeek(t *testing.T) {
	srv := &imageServer{}
	store := storage.NewMemory()
	clock := startClock()
	e := newTestEnricher(t, srv, store, clock, nil)
	ctx := context.Background()

	first, err := e.ResolveImage(ctx, "Jewish New Year", "roshhashana")
	if err != nil {
		t.Fatalf("ResolveImage: %v", err)
	}
	if !strings.HasPrefix(first, "https://img.test/Jewish-New-Year") {
		t.Fatalf("unexpected url %q", first)
	}

	second, _ := e.ResolveImage(ctx, "Jewish New Year", "roshhashana")
	if second != first || srv.Calls() != 1 {
		t.Fatalf("expected cache hit, got %q after %d calls", second, srv.Calls())
	}

	if _, ok, _ := store.Get(ctx, "holiday_image_jewish_new_year_w43_2026"); !ok {
		keys, _ := store.ListKeys(ctx)
		t.Fatalf("week-scoped key not persisted, keys: %v", keys)
	}

	clock.Advance(7 * 24 * time.Hour)
	third, _ := e.ResolveImage(ctx, "Jewish New Year", "roshhashana")
	if third == first || srv.Calls() != 2 {
		t.Fatalf("expected a new image next week, got %q after %d calls", third, srv.Calls())
	}
}

func TestResolveImageUsesPersistedEntry(t *testing.T) {
	srv := &imageServer{}
	store := storage.NewMemory()
	clock := startClock()

	first := newTestEnricher(t, srv, store, clock, nil)
	want, _ := first.ResolveImage(context.Background(), "hamantaschen", "purim")

	restarted := newTestEnricher(t, srv, store, clock, nil)
	got, _ := restarted.ResolveImage(context.Background(), "hamantaschen", "purim")
	if got != want || srv.Calls() != 1 {
		t.Fatalf("persisted entry not reused: %q vs %q, %d calls", got, want, srv.Calls())
	}
}

func TestResolveImageRateLimit(t *testing.T) {
	srv := &imageServer{}
	clock := startClock()
	e := newTestEnricher(t, srv, storage.NewMemory(), clock, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		u, _ := e.ResolveImage(ctx, fmt.Sprintf("term %d", i), "purim")
		if u == Fallback("purim") {
			t.Fatalf("request %d unexpectedly rate limited", i+1)
		}
		clock.Advance(time.Minute)
	}
	if srv.Calls() != 50 {
		t.Fatalf("expected 50 requests, got %d", srv.Calls())
	}

	u, _ := e.ResolveImage(ctx, "one too many", "purim")
	if u != Fallback("purim") {
		t.Errorf("51st request = %q, want purim fallback", u)
	}
	if srv.Calls() != 50 {
		t.Errorf("51st request reached the network")
	}

	clock.Advance(11 * time.Minute)
	u, _ = e.ResolveImage(ctx, "one too many", "purim")
	if u == Fallback("purim") || srv.Calls() != 51 {
		t.Errorf("expected a fresh window, got %q after %d calls", u, srv.Calls())
	}
}

func TestResolveImageFailuresFallBack(t *testing.T) {
	srv := &imageServer{status: http.StatusInternalServerError}
	e := newTestEnricher(t, srv, storage.NewMemory(), startClock(), nil)

	if u, err := e.ResolveImage(context.Background(), "bonfire", "lagbaomer"); err != nil || u != Fallback("lagbaomer") {
		t.Errorf("got %q, %v", u, err)
	}
	if u, _ := e.ResolveImage(context.Background(), "something", "unknown"); u != DefaultFallback {
		t.Errorf("unknown id should use default fallback, got %q", u)
	}
}

func TestFailedLookupIsHeldBriefly(t *testing.T) {
	var calls, down int32 = 0, 1
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if atomic.LoadInt32(&down) == 1 {
			http.Error(w, "failure", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"urls":{"regular":"https://img.test/hamantaschen"}}`)
	}))
	defer ts.Close()

	clock := startClock()
	cfg := config.DefaultConfig()
	cfg.Images.BaseURL = ts.URL
	cfg.Images.AccessKey = "test-key"
	cfg.Images.PreloadDelayMs = -1
	e := New(cfg, storage.NewMemory(), time.UTC, WithClock(clock.Now))
	ctx := context.Background()

	events := []model.HolidayEvent{{BaseID: "purim", SearchTerm: "hamantaschen"}}
	if err := e.Preload(ctx, events); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if u, err := e.ResolveImage(ctx, "hamantaschen", "purim"); err != nil || u != Fallback("purim") {
		t.Fatalf("got %q, %v", u, err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single request for one failing event, got %d", n)
	}

	atomic.StoreInt32(&down, 0)
	clock.Advance(failureHold)
	u, _ := e.ResolveImage(ctx, "hamantaschen", "purim")
	if u != "https://img.test/hamantaschen" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected a retry after the hold, got %q after %d calls", u, atomic.LoadInt32(&calls))
	}
}

func TestResolveImageWithoutAccessKey(t *testing.T) {
	srv := &imageServer{}
	e := newTestEnricher(t, srv, storage.NewMemory(), startClock(), func(c *config.Config) {
		c.Images.AccessKey = ""
	})
	if u, _ := e.ResolveImage(context.Background(), "tree planting", "tubishvat"); u != Fallback("tubishvat") {
		t.Errorf("got %q", u)
	}
	if srv.Calls() != 0 {
		t.Errorf("made %d requests without a key", srv.Calls())
	}
}

type brokenStore struct{ storage.Store }

func (brokenStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestResolveImageIgnoresStoreWriteFailure(t *testing.T) {
	srv := &imageServer{}
	e := newTestEnricher(t, srv, brokenStore{storage.NewMemory()}, startClock(), nil)

	u, err := e.ResolveImage(context.Background(), "sukkah", "sukkot")
	if err != nil || !strings.HasPrefix(u, "https://img.test/sukkah") {
		t.Fatalf("got %q, %v", u, err)
	}
	// Still served from memory.
	if again, _ := e.ResolveImage(context.Background(), "sukkah", "sukkot"); again != u || srv.Calls() != 1 {
		t.Errorf("memory cache not used after store failure")
	}
}

func TestPreloadSkipsCachedTerms(t *testing.T) {
	srv := &imageServer{}
	e := newTestEnricher(t, srv, storage.NewMemory(), startClock(), nil)
	ctx := context.Background()

	events := []model.HolidayEvent{
		{BaseID: "purim", SearchTerm: "hamantaschen"},
		{BaseID: "pesach", SearchTerm: "passover seder matzah"},
		{BaseID: "shavuot", SearchTerm: "Jewish Shavuot"},
	}
	if _, err := e.ResolveImage(ctx, "hamantaschen", "purim"); err != nil {
		t.Fatal(err)
	}
	if err := e.Preload(ctx, events); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if srv.Calls() != 3 {
		t.Fatalf("expected 3 requests in total, got %d", srv.Calls())
	}

	if err := e.Preload(ctx, events); err != nil {
		t.Fatal(err)
	}
	if srv.Calls() != 3 {
		t.Errorf("second preload should be fully cached, got %d requests", srv.Calls())
	}
}

func TestPreloadHonoursCancellation(t *testing.T) {
	srv := &imageServer{}
	e := newTestEnricher(t, srv, storage.NewMemory(), startClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Preload(ctx, []model.HolidayEvent{{BaseID: "purim", SearchTerm: "hamantaschen"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if srv.Calls() != 0 {
		t.Errorf("cancelled preload made %d requests", srv.Calls())
	}
}

func TestHeaderImageAndClearCache(t *testing.T) {
	srv := &imageServer{}
	store := storage.NewMemory()
	e := newTestEnricher(t, srv, store, startClock(), nil)
	ctx := context.Background()

	if err := store.Set(ctx, "holidays_data", "{}"); err != nil {
		t.Fatal(err)
	}
	header, err := e.HeaderImage(ctx)
	if err != nil || !strings.HasPrefix(header, "https://img.test/Jerusalem-old-city") {
		t.Fatalf("HeaderImage = %q, %v", header, err)
	}
	if _, ok, _ := store.Get(ctx, "header_image_w43_2026"); !ok {
		t.Fatal("header image not persisted")
	}
	e.ResolveImage(ctx, "menorah", "chanukah")

	if err := e.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	keys, _ := store.ListKeys(ctx)
	if len(keys) != 1 || keys[0] != "holidays_data" {
		t.Errorf("remaining keys = %v", keys)
	}

	e.ResolveImage(ctx, "menorah", "chanukah")
	if srv.Calls() != 3 {
		t.Errorf("memory cache survived clear: %d calls", srv.Calls())
	}
}

func TestEveryHolidayHasFallback(t *testing.T) {
	ids := append(calendar.BaseIDs(), config.DefaultOccasions()[0].ID)
	for _, id := range ids {
		if _, ok := fallbacks[id]; !ok {
			t.Errorf("no fallback image for %s", id)
		}
	}
}

func TestRateWindow(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := rateWindow{max: 2, window: time.Hour}

	if !r.take(start) || !r.take(start.Add(time.Minute)) {
		t.Fatal("budget of 2 should allow 2 requests")
	}
	if r.take(start.Add(59 * time.Minute)) {
		t.Error("third request inside the window should be refused")
	}
	if got := r.remaining(start.Add(59 * time.Minute)); got != 0 {
		t.Errorf("remaining = %d", got)
	}
	if !r.take(start.Add(time.Hour)) {
		t.Error("window should reset after an hour")
	}
}

func TestFetchRandomErrorKinds(t *testing.T) {
	ctx := context.Background()

	down := newTestEnricher(t, &imageServer{status: http.StatusBadGateway}, storage.NewMemory(), startClock(), nil)
	if _, err := down.fetchRandom(ctx, "menorah"); !errors.Is(err, ErrTransport) {
		t.Errorf("502 should be ErrTransport, got %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"urls":{}}`)
	}))
	defer ts.Close()
	cfg := config.DefaultConfig()
	cfg.Images.BaseURL = ts.URL
	cfg.Images.AccessKey = "test-key"
	empty := New(cfg, storage.NewMemory(), time.UTC)
	if _, err := empty.fetchRandom(ctx, "menorah"); !errors.Is(err, ErrParse) {
		t.Errorf("missing url should be ErrParse, got %v", err)
	}
}
