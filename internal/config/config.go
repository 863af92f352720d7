package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ICSConfig describes a subscribed calendar whose events become schedule
// marks.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`

	Color   string `yaml:"color" json:"color"`
	BgColor string `yaml:"bg_color" json:"bg_color"`
}

// HolidayRule is one festival mark generated for every year in range.
// Either Month/Day or EasterOffset is set.
type HolidayRule struct {
	Name         string `yaml:"name" json:"name"`
	Month        int    `yaml:"month,omitempty" json:"month,omitempty"`
	Day          int    `yaml:"day,omitempty" json:"day,omitempty"`
	EasterOffset *int   `yaml:"easter_offset,omitempty" json:"easter_offset,omitempty"`
}

// HolidayConfig controls generated festival marks.
type HolidayConfig struct {
	Color string `yaml:"color" json:"color"`
	// YearsAround is how many years before and after the current one get
	// holidays.
	YearsAround int           `yaml:"years_around" json:"years_around"`
	Rules       []HolidayRule `yaml:"rules" json:"rules"`
}

// PreviewConfig controls the headless Chromium capture of /calendar.
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	// URL overrides the page to capture; defaults to http://<listen>/calendar.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for schedule ranges and "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule for re-reading every mark source.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MarksFile is the YAML or JSON file holding user-defined marks.
	MarksFile string `yaml:"marks_file" json:"marks_file"`

	// Edit allows replacing the marks file through the API.
	Edit bool `yaml:"edit" json:"edit"`

	// Watch triggers a refresh whenever MarksFile changes on disk.
	Watch bool `yaml:"watch" json:"watch"`

	Preview PreviewConfig `yaml:"preview" json:"preview"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Seoul"
	defaultRefreshCron = "*/15 * * * *"
	defaultMarksFile   = "marks.yaml"
	defaultPreviewPath = "preview.png"
	defaultColor       = "red"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   "monday",
		RefreshCron: defaultRefreshCron,
		LogLevel:    "info",
		MarksFile:   defaultMarksFile,
		Watch:       true,
		Preview: PreviewConfig{
			Path: defaultPreviewPath,
		},
		ICS: []ICSConfig{},
		Holidays: HolidayConfig{
			Color:       defaultColor,
			YearsAround: 1,
			Rules: []HolidayRule{
				{Name: "New Year", Month: 1, Day: 1},
				{Name: "Christmas", Month: 12, Day: 25},
			},
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MarksFile == "" {
		c.MarksFile = defaultMarksFile
	}
	if c.Preview.Path == "" {
		c.Preview.Path = defaultPreviewPath
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].Color == "" {
			c.ICS[i].Color = "#1f4e79"
		}
	}
	if c.Holidays.Color == "" {
		c.Holidays.Color = defaultColor
	}
	if c.Holidays.YearsAround < 0 {
		c.Holidays.YearsAround = 0
	}
}

// Resolve makes MarksFile and Preview.Path absolute relative to the
// directory of the config file at path.
func (c *Config) Resolve(path string) {
	dir := filepath.Dir(path)
	if !filepath.IsAbs(c.MarksFile) {
		c.MarksFile = filepath.Join(dir, c.MarksFile)
	}
	if !filepath.IsAbs(c.Preview.Path) {
		c.Preview.Path = filepath.Join(dir, c.Preview.Path)
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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

	return &cfg, nil
}

// Save writes cfg to path atomically and leaves it with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
