package holidays

import (
	"context"
	"sync"
	"time"

	appLog "matai/internal/log"
	"matai/internal/metrics"
	"matai/internal/model"
)

// CalendarSource supplies upcoming holidays after ref.
type CalendarSource interface {
	FetchHolidays(ctx context.Context, ref time.Time) ([]model.HolidayEvent, error)
}

// ImageEnricher decorates holidays with images.
type ImageEnricher interface {
	Preload(ctx context.Context, events []model.HolidayEvent) error
	ResolveImage(ctx context.Context, term, baseID string) (string, error)
	Fallback(baseID string) string
}

// Connectivity reports whether the network is reachable.
type Connectivity interface {
	IsOnline(ctx context.Context) bool
}

// Aggregator is the HolidayAggregator. Cycles are serialised; concurrent
// callers wait for the running cycle and then run their own, which is
// normally answered by the fresh snapshot.
type Aggregator struct {
	src    CalendarSource
	images ImageEnricher
	cache  *Cache
	probe  Connectivity
	now    func() time.Time

	mu sync.Mutex
}

// NewAggregator wires the pipeline. A nil now uses time.Now.
func NewAggregator(src CalendarSource, images ImageEnricher, cache *Cache, probe Connectivity, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{src: src, images: images, cache: cache, probe: probe, now: now}
}

// GetHolidays returns upcoming holidays, ascending by date. It never fails:
// every error degrades to the snapshot, to static images or, with nothing
// else available, to an empty list. A started cycle ignores cancellation of
// ctx and is bounded by the clients' own timeouts.
func (a *Aggregator) GetHolidays(ctx context.Context) []model.HolidayEvent {
	ctx = context.WithoutCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	online := a.probe.IsOnline(ctx)
	cached := a.cache.Load(ctx)

	if !online {
		if cached != nil {
			return a.serve("cache_offline", cached.Holidays)
		}
		appLog.Warn("offline with no holiday snapshot")
		return a.serve("empty", []model.HolidayEvent{})
	}

	if cached != nil && cached.Fresh {
		return a.serve("cache_fresh", cached.Holidays)
	}

	now := a.now()
	events, err := a.src.FetchHolidays(ctx, now)
	if err != nil {
		if cached != nil {
			appLog.Error("holiday fetch failed, serving snapshot", err, "saved_at", cached.SavedAt.Format(time.RFC3339))
			return a.serve("cache_fallback", cached.Holidays)
		}
		appLog.Error("holiday fetch failed with no snapshot", err)
		return a.serve("empty", []model.HolidayEvent{})
	}

	enriched, err := a.enrich(ctx, events)
	if err == nil {
		err = a.cache.Save(ctx, enriched)
	}
	if err != nil {
		if cached != nil {
			appLog.Error("holiday refresh incomplete, serving snapshot", err)
			return a.serve("cache_fallback", cached.Holidays)
		}
		appLog.Error("holiday refresh incomplete, using static images", err)
		return a.serve("static_fallback", model.Upcoming(a.withFallbackImages(events), now))
	}

	return a.serve("network", model.Upcoming(enriched, now))
}

func (a *Aggregator) serve(source string, events []model.HolidayEvent) []model.HolidayEvent {
	metrics.Aggregation(source)
	appLog.Info("holidays served", "source", source, "count", len(events))
	return events
}

func (a *Aggregator) enrich(ctx context.Context, events []model.HolidayEvent) ([]model.HolidayEvent, error) {
	if err := a.images.Preload(ctx, events); err != nil {
		return nil, err
	}

	out := make([]model.HolidayEvent, len(events))
	for i, ev := range events {
		u, err := a.images.ResolveImage(ctx, ev.SearchTerm, ev.BaseID)
		if err != nil {
			return nil, err
		}
		ev.ImageURL = u
		out[i] = ev
	}
	return out, nil
}

func (a *Aggregator) withFallbackImages(events []model.HolidayEvent) []model.HolidayEvent {
	out := make([]model.HolidayEvent, len(events))
	for i, ev := range events {
		ev.ImageURL = a.images.Fallback(ev.BaseID)
		out[i] = ev
	}
	return out
}
