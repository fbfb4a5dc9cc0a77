package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/viper"

	"github.com/jask/overlayhost/internal/overlay"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Overlay  OverlayConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings for the event journal.
type DatabaseConfig struct {
	Path string
}

// OverlayConfig holds presentation settings.
type OverlayConfig struct {
	// Layers lists named layers bottom to top. The root layer always draws
	// first and is not listed.
	Layers      []string
	FrameRate   int  `mapstructure:"frame_rate"`
	AppearMS    int  `mapstructure:"appear_ms"`
	DismissMS   int  `mapstructure:"dismiss_ms"`
	Easing      string
	DebugChecks bool `mapstructure:"debug_checks"`
}

// LogConfig holds slog settings. The TUI owns stdout, so logs go to a file.
type LogConfig struct {
	Level  string
	Path   string
	Format string
}

// Easings lists the easing names accepted by overlay.easing.
var Easings = []string{
	"linear",
	"inQuad", "outQuad", "inOutQuad",
	"inCubic", "outCubic", "inOutCubic",
	"inSine", "outSine", "inOutSine",
	"inExpo", "outExpo", "inOutExpo",
	"inBack", "outBack", "inOutBack",
	"outBounce",
}

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "overlayhost")
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "overlayhost")
}

// New returns a viper instance with defaults, env binding and the config file
// location set, but nothing read yet. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(dataDir(), "journal.db"))
	v.SetDefault("overlay.layers", []string{"sheet", "alert", "toast"})
	v.SetDefault("overlay.frame_rate", 30)
	v.SetDefault("overlay.appear_ms", 220)
	v.SetDefault("overlay.dismiss_ms", 180)
	v.SetDefault("overlay.easing", "outCubic")
	v.SetDefault("overlay.debug_checks", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(dataDir(), "overlayhost.log"))
	v.SetDefault("log.format", "text")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("OVERLAYHOST_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("OVERLAYHOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads configuration from file and env. Env var overrides use prefix OVERLAYHOST_.
func Load() (Config, error) {
	return LoadFrom(New())
}

// LoadFrom reads configuration through an already prepared viper instance.
func LoadFrom(v *viper.Viper) (Config, error) {
	// a missing config file is fine, defaults apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	for i, name := range c.Overlay.Layers {
		c.Overlay.Layers[i] = strings.TrimSpace(name)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values the rest of the program relies on.
func (c Config) Validate() error {
	if c.Overlay.FrameRate <= 0 || c.Overlay.FrameRate > 240 {
		return fmt.Errorf("overlay.frame_rate must be between 1 and 240, got %d", c.Overlay.FrameRate)
	}
	if c.Overlay.AppearMS < 0 || c.Overlay.DismissMS < 0 {
		return fmt.Errorf("overlay durations must not be negative")
	}
	if !knownEasing(c.Overlay.Easing) {
		return fmt.Errorf("unknown overlay.easing %q (did you mean %q?)", c.Overlay.Easing, Suggest(c.Overlay.Easing, Easings))
	}
	seen := map[string]bool{}
	for _, name := range c.Overlay.Layers {
		if strings.TrimSpace(name) != name {
			return fmt.Errorf("overlay.layers entry %q has surrounding spaces", name)
		}
		if name == "" {
			return fmt.Errorf("overlay.layers must not contain empty names")
		}
		if strings.EqualFold(name, overlay.RootLayer.String()) {
			return fmt.Errorf("overlay.layers must not list %q, the root layer always draws first", name)
		}
		if seen[name] {
			return fmt.Errorf("overlay.layers lists %q twice", name)
		}
		seen[name] = true
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func knownEasing(name string) bool {
	for _, e := range Easings {
		if e == name {
			return true
		}
	}
	return false
}

// Suggest returns the candidate closest to name by edit distance, comparing
// case-insensitively. Ties go to the alphabetically first candidate.
func Suggest(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	best, bestDist := "", -1
	lower := strings.ToLower(name)
	for _, c := range sorted {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("OVERLAYHOST_CONFIG")
	if path == "" {
		path = filepath.Join(configDir(), "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("overlay.layers", cfg.Overlay.Layers)
	v.Set("overlay.frame_rate", cfg.Overlay.FrameRate)
	v.Set("overlay.appear_ms", cfg.Overlay.AppearMS)
	v.Set("overlay.dismiss_ms", cfg.Overlay.DismissMS)
	v.Set("overlay.easing", cfg.Overlay.Easing)
	v.Set("overlay.debug_checks", cfg.Overlay.DebugChecks)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
