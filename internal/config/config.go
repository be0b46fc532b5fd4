package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimezone  = "Asia/Jerusalem"
	DefaultGeonameID = 293397 // Jerusalem
)

// CalendarConfig points at the external Hebrew calendar service.
type CalendarConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ImagesConfig controls the decorative image service and its request budget.
type ImagesConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	AccessKey string `yaml:"access_key" json:"-"`

	// MaxRequestsPerWindow requests are allowed per WindowMinutes.
	MaxRequestsPerWindow int `yaml:"max_requests_per_window" json:"max_requests_per_window"`
	WindowMinutes        int `yaml:"window_minutes" json:"window_minutes"`

	// CacheDays bounds how long a resolved image URL is reused.
	CacheDays int `yaml:"cache_days" json:"cache_days"`

	// PreloadDelayMs is the pause between sequential preload requests. Zero
	// selects the default, a negative value disables the pause.
	PreloadDelayMs int `yaml:"preload_delay_ms" json:"preload_delay_ms"`

	HeaderSearchTerm string `yaml:"header_search_term" json:"header_search_term"`
}

// CacheConfig controls the holiday snapshot validity window.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" json:"ttl_hours"`
}

// ConnectivityConfig controls the online/offline probe.
type ConnectivityConfig struct {
	// ProbeURL defaults to the calendar base URL when empty.
	ProbeURL       string `yaml:"probe_url" json:"probe_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RemoteConfig describes the realtime key-value store. An empty RedisAddr
// disables it.
type RemoteConfig struct {
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	Prefix        string `yaml:"prefix" json:"prefix"`
}

// OccasionConfig is a civil occasion that the calendar service does not
// publish, injected on a yearly recurrence.
type OccasionConfig struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	EnglishName string `yaml:"english_name" json:"english_name"`
	SearchTerm  string `yaml:"search_term" json:"search_term"`
	// RRule is an RFC 5545 recurrence rule, e.g. "FREQ=YEARLY;BYMONTH=6;BYMONTHDAY=21".
	RRule string `yaml:"rrule" json:"rrule"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone every holiday instant is expressed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// GeonameID selects the city for weekly portion lookups.
	GeonameID int `yaml:"geoname_id" json:"geoname_id"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "0 */6 * * *")
	// used for periodic holiday refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DataDir holds the local key-value database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Calendar     CalendarConfig     `yaml:"calendar" json:"calendar"`
	Images       ImagesConfig       `yaml:"images" json:"images"`
	Cache        CacheConfig        `yaml:"cache" json:"cache"`
	Connectivity ConnectivityConfig `yaml:"connectivity" json:"connectivity"`
	Remote       RemoteConfig       `yaml:"remote" json:"remote"`

	Occasions []OccasionConfig `yaml:"occasions" json:"occasions"`

	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultOccasions returns the built-in civil occasions.
func DefaultOccasions() []OccasionConfig {
	return []OccasionConfig{
		{
			ID:          "summer_vacation",
			Name:        "חופש גדול",
			EnglishName: "Summer Vacation",
			SearchTerm:  "summer beach",
			RRule:       "FREQ=YEARLY;BYMONTH=6;BYMONTHDAY=21",
		},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.GeonameID <= 0 {
		c.GeonameID = DefaultGeonameID
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 */6 * * *"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/matai"
	}

	if c.Calendar.BaseURL == "" {
		c.Calendar.BaseURL = "https://www.hebcal.com"
	}
	if c.Calendar.TimeoutSeconds <= 0 {
		c.Calendar.TimeoutSeconds = 15
	}

	if c.Images.BaseURL == "" {
		c.Images.BaseURL = "https://api.unsplash.com"
	}
	if c.Images.MaxRequestsPerWindow <= 0 {
		c.Images.MaxRequestsPerWindow = 50
	}
	if c.Images.WindowMinutes <= 0 {
		c.Images.WindowMinutes = 60
	}
	if c.Images.CacheDays <= 0 {
		c.Images.CacheDays = 7
	}
	if c.Images.PreloadDelayMs == 0 {
		c.Images.PreloadDelayMs = 100
	}
	if c.Images.HeaderSearchTerm == "" {
		c.Images.HeaderSearchTerm = "Jerusalem old city"
	}

	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}

	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = c.Calendar.BaseURL
	}
	if c.Connectivity.TimeoutSeconds <= 0 {
		c.Connectivity.TimeoutSeconds = 3
	}

	if c.Remote.Prefix == "" {
		c.Remote.Prefix = "matai:"
	}

	if c.Occasions == nil {
		c.Occasions = DefaultOccasions()
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

func (c *Config) ImageWindow() time.Duration {
	return time.Duration(c.Images.WindowMinutes) * time.Minute
}

func (c *Config) ImageCacheValidity() time.Duration {
	return time.Duration(c.Images.CacheDays) * 24 * time.Hour
}

func (c *Config) PreloadDelay() time.Duration {
	if c.Images.PreloadDelayMs < 0 {
		return 0
	}
	return time.Duration(c.Images.PreloadDelayMs) * time.Millisecond
}

// DatabasePath is the sqlite file backing the local key-value store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "matai.db")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".matai-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
