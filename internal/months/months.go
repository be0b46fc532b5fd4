// Package months holds the Hebrew names of the Gregorian months and the
// Hebrew display formats built on them.
package months

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	appLog "matai/internal/log"
	"matai/internal/remote"
	"matai/internal/storage"
)

const (
	// RemotePath is where the shared copy lives in the remote store.
	RemotePath = "hebrewGregorianMonths"
	// LocalKey is the local store key of the device copy.
	LocalKey = "hebrew_gregorian_months"
)

// Names maps "01".."12" to the Hebrew month name.
type Names map[string]string

// Defaults returns the built-in month names.
func Defaults() Names {
	return Names{
		"01": "ינואר",
		"02": "פברואר",
		"03": "מרץ",
		"04": "אפריל",
		"05": "מאי",
		"06": "יוני",
		"07": "יולי",
		"08": "אוגוסט",
		"09": "ספטמבר",
		"10": "אוקטובר",
		"11": "נובמבר",
		"12": "דצמבר",
	}
}

// Month returns the name for m, falling back to the built-in table.
func (n Names) Month(m time.Month) string {
	if name, ok := n[fmt.Sprintf("%02d", int(m))]; ok {
		return name
	}
	return Defaults()[fmt.Sprintf("%02d", int(m))]
}

// localRecord is the local store layout.
type localRecord struct {
	Data      Names `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// Parse accepts either the direct layout ({"01": "ינואר", ...}, keys may
// also be unpadded) or the nested one ({"data": {...}}). It reports false
// for anything else, including tables missing a month.
func Parse(raw []byte) (Names, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, false
	}
	if nested, ok := top["data"]; ok {
		return parseDirect(nested)
	}
	return parseDirect(raw)
}

func parseDirect(raw []byte) (Names, bool) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	out := make(Names, 12)
	for k, v := range m {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 || n > 12 || v == "" {
			continue
		}
		out[fmt.Sprintf("%02d", n)] = v
	}
	if len(out) != 12 {
		return nil, false
	}
	return out, true
}

// Service reads month names from the remote store, then the local store,
// then the built-in table.
type Service struct {
	remote remote.Store
	local  storage.Store
	now    func() time.Time
}

// NewService accepts a nil remote store when none is configured.
func NewService(rs remote.Store, local storage.Store) *Service {
	return &Service{remote: rs, local: local, now: time.Now}
}

// Get never fails; the built-in table is the last resort.
func (s *Service) Get(ctx context.Context) Names {
	if n, ok := s.stored(ctx); ok {
		return n
	}
	return Defaults()
}

func (s *Service) stored(ctx context.Context) (Names, bool) {
	if s.remote != nil {
		raw, found, err := s.remote.Read(ctx, RemotePath)
		switch {
		case err != nil:
			appLog.Warn("remote month names unavailable", "err", err)
		case found:
			if n, ok := Parse(raw); ok {
				return n, true
			}
			appLog.Warn("ignoring remote month names with unknown layout")
		}
	}

	raw, found, err := s.local.Get(ctx, LocalKey)
	if err != nil {
		appLog.Warn("local month names unavailable", "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if n, ok := Parse([]byte(raw)); ok {
		return n, true
	}
	appLog.Warn("ignoring local month names with unknown layout")
	return nil, false
}

// Initialize seeds both stores with the built-in table when neither holds
// usable month names. A remote failure does not prevent the local write.
func (s *Service) Initialize(ctx context.Context) error {
	if _, ok := s.stored(ctx); ok {
		return nil
	}
	return s.Save(ctx, Defaults())
}

// Save writes names to the local store and, when configured, the remote
// store.
func (s *Service) Save(ctx context.Context, names Names) error {
	if s.remote != nil {
		if err := s.remote.Write(ctx, RemotePath, names); err != nil {
			appLog.Error("saving month names remotely failed", err)
		}
	}

	data, err := json.Marshal(localRecord{Data: names, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := s.local.Set(ctx, LocalKey, string(data)); err != nil {
		return fmt.Errorf("saving month names: %w", err)
	}

	appLog.Info("month names saved")
	return nil
}

// FormatDate renders e.g. "21 ביוני", appending " (2027)" when the year
// differs from now's.
func FormatDate(date, now time.Time, names Names) string {
	s := fmt.Sprintf("%d ב%s", date.Day(), names.Month(date.Month()))
	if date.Year() != now.In(date.Location()).Year() {
		s += fmt.Sprintf(" (%d)", date.Year())
	}
	return s
}

// FormatCountdown renders days left as a short Hebrew phrase.
func FormatCountdown(daysLeft int) string {
	switch daysLeft {
	case 0:
		return "היום!"
	case 1:
		return "מחר!"
	default:
		return fmt.Sprintf("עוד %d ימים", daysLeft)
	}
}
