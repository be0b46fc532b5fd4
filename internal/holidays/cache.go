// Package holidays aggregates upcoming holidays from the calendar service,
// decorates them with images and keeps the last good result as a snapshot
// that serves offline and degraded requests.
package holidays

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appLog "matai/internal/log"
	"matai/internal/model"
	"matai/internal/storage"
)

// SnapshotKey is the local store key of the holiday snapshot.
const SnapshotKey = "holidays_data"

type snapshot struct {
	Holidays []storedEvent `json:"holidays"`
	// Timestamp is the save instant in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// storedEvent omits DaysLeft, which is recomputed on every load.
type storedEvent struct {
	ID          string `json:"id"`
	BaseID      string `json:"baseId"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
	SearchTerm  string `json:"searchTerm"`
	Date        string `json:"date"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// Loaded is a snapshot as seen at load time.
type Loaded struct {
	Holidays []model.HolidayEvent
	Fresh    bool
	SavedAt  time.Time
}

// Cache is the HolidayCache.
type Cache struct {
	store storage.Store
	ttl   time.Duration
	loc   *time.Location
	now   func() time.Time
}

// NewCache returns a cache whose snapshots are fresh for ttl. A nil now
// uses time.Now.
func NewCache(store storage.Store, ttl time.Duration, loc *time.Location, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, ttl: ttl, loc: loc, now: now}
}

// Save replaces the snapshot with events, stamped with the current instant.
func (c *Cache) Save(ctx context.Context, events []model.HolidayEvent) error {
	snap := snapshot{
		Holidays:  make([]storedEvent, 0, len(events)),
		Timestamp: c.now().UnixMilli(),
	}
	for _, ev := range events {
		snap.Holidays = append(snap.Holidays, storedEvent{
			ID:          ev.ID,
			BaseID:      ev.BaseID,
			Name:        ev.Name,
			EnglishName: ev.EnglishName,
			SearchTerm:  ev.SearchTerm,
			Date:        ev.Date.Format(time.RFC3339),
			ImageURL:    ev.ImageURL,
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding holiday snapshot: %w", err)
	}
	if err := c.store.Set(ctx, SnapshotKey, string(data)); err != nil {
		return fmt.Errorf("saving holiday snapshot: %w", err)
	}

	appLog.Info("holiday snapshot saved", "count", len(events))
	return nil
}

// Load returns the stored snapshot with DaysLeft recomputed, past events
// dropped and the rest sorted. It returns nil when nothing usable is
// stored. The stored timestamp is never touched.
func (c *Cache) Load(ctx context.Context) *Loaded {
	raw, found, err := c.store.Get(ctx, SnapshotKey)
	if err != nil {
		appLog.Error("holiday snapshot read failed", err)
		return nil
	}
	if !found {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		appLog.Warn("discarding malformed holiday snapshot", "err", err)
		return nil
	}

	events := make([]model.HolidayEvent, 0, len(snap.Holidays))
	for _, se := range snap.Holidays {
		date, err := time.Parse(time.RFC3339, se.Date)
		if err != nil {
			appLog.Warn("discarding malformed holiday snapshot", "id", se.ID, "err", err)
			return nil
		}
		events = append(events, model.HolidayEvent{
			ID:          se.ID,
			BaseID:      se.BaseID,
			Name:        se.Name,
			EnglishName: se.EnglishName,
			SearchTerm:  se.SearchTerm,
			Date:        date.In(c.loc),
			ImageURL:    se.ImageURL,
		})
	}

	now := c.now()
	savedAt := time.UnixMilli(snap.Timestamp)
	return &Loaded{
		Holidays: model.Upcoming(events, now),
		Fresh:    !now.Before(savedAt) && now.Sub(savedAt) < c.ttl,
		SavedAt:  savedAt,
	}
}

// Clear removes the snapshot.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.RemoveMany(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("clearing holiday snapshot: %w", err)
	}
	return nil
}
