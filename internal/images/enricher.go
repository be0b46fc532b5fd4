// Package images resolves decorative image URLs for holidays and the home
// header from the image search service. Requests are bounded by a rolling
// budget; every failure degrades to a static image.
package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"matai/internal/config"
	appLog "matai/internal/log"
	"matai/internal/metrics"
	"matai/internal/model"
	"matai/internal/storage"
)

var (
	// ErrTransport covers network failures and non-2xx responses.
	ErrTransport = errors.New("image service unavailable")
	// ErrParse means the response body did not match the expected shape.
	ErrParse = errors.New("unexpected image response")
)

const (
	holidayKeyPrefix = "holiday_image_"
	headerKeyPrefix  = "header_image_"
)

// failureHold is how long a failed lookup is answered with the fallback
// before the service is asked again.
const failureHold = 5 * time.Minute

type cacheEntry struct {
	URL string `json:"url"`
	// Timestamp is Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Enricher is the ImageEnricher.
type Enricher struct {
	baseURL    string
	accessKey  string
	headerTerm string
	validity   time.Duration
	delay      time.Duration
	loc        *time.Location

	client *http.Client
	store  storage.Store
	now    func() time.Time

	mu     sync.Mutex
	memory map[string]cacheEntry
	failed map[string]time.Time
	limit  rateWindow
}

// Option customises an Enricher.
type Option func(*Enricher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Enricher) { e.client = c }
}

// New builds an Enricher persisting resolved URLs to store. Week buckets
// are computed in loc.
func New(cfg *config.Config, store storage.Store, loc *time.Location, opts ...Option) *Enricher {
	e := &Enricher{
		baseURL:    strings.TrimRight(cfg.Images.BaseURL, "/"),
		accessKey:  cfg.Images.AccessKey,
		headerTerm: cfg.Images.HeaderSearchTerm,
		validity:   cfg.ImageCacheValidity(),
		delay:      cfg.PreloadDelay(),
		loc:        loc,
		client:     &http.Client{Timeout: 10 * time.Second},
		store:      store,
		now:        time.Now,
		memory:     make(map[string]cacheEntry),
		failed:     make(map[string]time.Time),
		limit: rateWindow{
			max:    cfg.Images.MaxRequestsPerWindow,
			window: cfg.ImageWindow(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fallback returns the static image for baseID.
func (e *Enricher) Fallback(baseID string) string {
	return Fallback(baseID)
}

// ResolveImage returns an image URL for term. It never fails to produce a
// URL; the error is non-nil only when ctx is done.
func (e *Enricher) ResolveImage(ctx context.Context, term, baseID string) (string, error) {
	key := e.holidayKey(term)
	return e.resolve(ctx, key, term, Fallback(baseID))
}

// HeaderImage returns the weekly header image for the home screen.
func (e *Enricher) HeaderImage(ctx context.Context) (string, error) {
	return e.resolve(ctx, e.headerKey(), e.headerTerm, DefaultFallback)
}

// Preload warms the cache for events one at a time, pausing between
// network requests. Already cached terms are skipped.
func (e *Enricher) Preload(ctx context.Context, events []model.HolidayEvent) error {
	fetched := 0
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := e.holidayKey(ev.SearchTerm)
		if _, ok := e.cached(ctx, key); ok {
			continue
		}

		if fetched > 0 && e.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
		fetched++

		if _, err := e.resolve(ctx, key, ev.SearchTerm, Fallback(ev.BaseID)); err != nil {
			return err
		}
	}

	e.mu.Lock()
	left := e.limit.remaining(e.now())
	e.mu.Unlock()

	appLog.Info("holiday images preloaded", "events", len(events), "requested", fetched, "budget_left", left)
	return nil
}

// ClearCache drops every cached holiday and header image.
func (e *Enricher) ClearCache(ctx context.Context) error {
	e.mu.Lock()
	e.memory = make(map[string]cacheEntry)
	e.failed = make(map[string]time.Time)
	e.mu.Unlock()

	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing image cache keys: %w", err)
	}

	drop := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, holidayKeyPrefix) || strings.HasPrefix(k, headerKeyPrefix) {
			drop = append(drop, k)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	if err := e.store.RemoveMany(ctx, drop...); err != nil {
		return fmt.Errorf("removing image cache keys: %w", err)
	}

	appLog.Info("image cache cleared", "keys", len(drop))
	return nil
}

func (e *Enricher) resolve(ctx context.Context, key, term, fallback string) (string, error) {
	if err := ctx.Err(); err != nil {
		return fallback, err
	}

	if u, ok := e.cached(ctx, key); ok {
		metrics.ImageResolution("cache_hit")
		return u, nil
	}

	if e.accessKey == "" {
		metrics.ImageResolution("disabled")
		appLog.Debug("image access key not configured, using fallback", "term", term)
		return fallback, nil
	}

	now := e.now()
	e.mu.Lock()
	failedAt, recentlyFailed := e.failed[key]
	if recentlyFailed && now.Sub(failedAt) >= failureHold {
		delete(e.failed, key)
		recentlyFailed = false
	}
	allowed := !recentlyFailed && e.limit.take(now)
	e.mu.Unlock()
	if recentlyFailed {
		metrics.ImageResolution("recent_failure")
		appLog.Debug("image lookup failed recently, using fallback", "term", term)
		return fallback, nil
	}
	if !allowed {
		metrics.ImageResolution("rate_limited")
		appLog.Warn("image rate limit reached, using fallback", "term", term)
		return fallback, nil
	}

	u, err := e.fetchRandom(ctx, term)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fallback, ctxErr
		}
		e.mu.Lock()
		e.failed[key] = now
		e.mu.Unlock()
		metrics.ImageResolution("error")
		appLog.Error("image fetch failed, using fallback", err, "term", term)
		return fallback, nil
	}

	metrics.ImageResolution("network")
	e.mu.Lock()
	delete(e.failed, key)
	e.mu.Unlock()
	e.remember(ctx, key, u)
	return u, nil
}

// cached checks memory first, then the store. Store hits are copied into
// memory.
func (e *Enricher) cached(ctx context.Context, key string) (string, bool) {
	now := e.now()

	e.mu.Lock()
	entry, ok := e.memory[key]
	e.mu.Unlock()
	if ok && e.valid(entry, now) {
		return entry.URL, true
	}

	raw, found, err := e.store.Get(ctx, key)
	if err != nil {
		appLog.Warn("image cache read failed", "key", key, "err", err)
		return "", false
	}
	if !found {
		return "", false
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.URL == "" {
		appLog.Warn("discarding malformed image cache entry", "key", key)
		return "", false
	}
	if !e.valid(entry, now) {
		return "", false
	}

	e.mu.Lock()
	e.memory[key] = entry
	e.mu.Unlock()
	return entry.URL, true
}

func (e *Enricher) valid(entry cacheEntry, now time.Time) bool {
	return now.Sub(time.UnixMilli(entry.Timestamp)) < e.validity
}

// remember stores the URL in memory and the store. A store failure is
// logged and otherwise ignored.
func (e *Enricher) remember(ctx context.Context, key, u string) {
	entry := cacheEntry{URL: u, Timestamp: e.now().UnixMilli()}

	e.mu.Lock()
	e.memory[key] = entry
	e.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := e.store.Set(ctx, key, string(data)); err != nil {
		appLog.Warn("image cache write failed", "key", key, "err", err)
	}
}

type randomPhotoResponse struct {
	URLs struct {
		Regular string `json:"regular"`
	} `json:"urls"`
}

func (e *Enricher) fetchRandom(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("query", term)
	q.Set("orientation", "portrait")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/photos/random?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Client-ID "+e.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %s", ErrTransport, resp.Status)
	}

	var body randomPhotoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	if body.URLs.Regular == "" {
		return "", fmt.Errorf("%w: response has no regular url", ErrParse)
	}
	return body.URLs.Regular, nil
}

// holidayKey scopes term to the current ISO week so images rotate weekly,
// e.g. "holiday_image_jewish_new_year_w42_2026".
func (e *Enricher) holidayKey(term string) string {
	year, week := e.now().In(e.loc).ISOWeek()
	slug := strings.Join(strings.Fields(strings.ToLower(term)), "_")
	return fmt.Sprintf("%s%s_w%d_%d", holidayKeyPrefix, slug, week, year)
}

func (e *Enricher) headerKey() string {
	year, week := e.now().In(e.loc).ISOWeek()
	return fmt.Sprintf("%sw%d_%d", headerKeyPrefix, week, year)
}
