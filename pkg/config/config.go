package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFileName is consulted when no config path is supplied.
const DefaultFileName = "config.yaml"

// envPrefix namespaces environment overrides; double underscores map to
// nesting, e.g. LINEA_CAPTURE__MAX_FPS -> capture.max_fps.
const envPrefix = "LINEA_"

// Config captures the user-adjustable knobs for the recorder.
type Config struct {
	Paths     PathsConfig     `koanf:"paths"`
	Capture   CaptureConfig   `koanf:"capture"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `koanf:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	DataDir     string `koanf:"data_dir"`
	CatalogPath string `koanf:"catalog_path"`
}

// CaptureConfig defines the recording surface consumed by the core.
type CaptureConfig struct {
	// Keys is the non-empty set of keys whose transitions are recorded.
	Keys []string `koanf:"keys"`
	// FinishKey ends the current session when pressed.
	FinishKey string `koanf:"finish_key"`
	// DiscardTailSeconds drops the final span of every session so the
	// user's stopping action is not learnt by the model.
	DiscardTailSeconds float64 `koanf:"discard_tail_seconds"`
	// KeyDelayMillis shifts key timestamps to compensate for hook
	// latency. Typically a small negative number.
	KeyDelayMillis float64 `koanf:"key_delay_millis"`
	// MaxFPS bounds the frame pull rate.
	MaxFPS int `koanf:"max_fps"`
	// Region selects the capture area; zero width/height means the
	// first display's full bounds.
	Region RegionConfig `koanf:"region"`
}

// RegionConfig selects a capture rectangle.
type RegionConfig struct {
	X      int `koanf:"x"`
	Y      int `koanf:"y"`
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig toggles trace emission.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			DataDir:     "data",
			CatalogPath: filepath.Join("data", "catalog.db"),
		},
		Capture: CaptureConfig{
			Keys:               []string{"w", "a", "s", "d"},
			FinishKey:          "space",
			DiscardTailSeconds: 3,
			KeyDelayMillis:     -10,
			MaxFPS:             30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, layers environment
// overrides on top, and validates the result. When path is empty the
// loader attempts ./config.yaml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	k := koanf.New(".")

	if _, err := os.Stat(candidate); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("stat config file %q: %w", candidate, err)
		}
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
		candidate = ""
	}
	if candidate != "" {
		if err := k.Load(file.Provider(candidate), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("read environment overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(trimmed, "__", ".")
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	if len(c.Capture.Keys) == 0 {
		return errors.New("capture.keys must not be empty")
	}
	finish := strings.TrimSpace(c.Capture.FinishKey)
	if finish == "" {
		return errors.New("capture.finish_key must not be empty")
	}
	for _, key := range c.Capture.Keys {
		if key == finish {
			return fmt.Errorf("capture.finish_key %q must not appear in capture.keys", finish)
		}
	}
	if c.Capture.DiscardTailSeconds < 0 {
		return errors.New("capture.discard_tail_seconds must not be negative")
	}
	if c.Capture.MaxFPS <= 0 {
		return errors.New("capture.max_fps must be positive")
	}
	if c.Capture.Region.Width < 0 || c.Capture.Region.Height < 0 {
		return errors.New("capture.region dimensions must not be negative")
	}
	if (c.Capture.Region.Width == 0) != (c.Capture.Region.Height == 0) {
		return errors.New("capture.region width and height must be set together")
	}
	return nil
}

// DiscardTail returns the tail-discard span as a duration.
func (c CaptureConfig) DiscardTail() time.Duration {
	return time.Duration(c.DiscardTailSeconds * float64(time.Second))
}

// KeyDelay returns the key timestamp offset as a duration.
func (c CaptureConfig) KeyDelay() time.Duration {
	return time.Duration(c.KeyDelayMillis * float64(time.Millisecond))
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.DataDir = strings.TrimSpace(c.Paths.DataDir)
	c.Paths.CatalogPath = strings.TrimSpace(c.Paths.CatalogPath)
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	if c.Paths.CatalogPath == "" {
		c.Paths.CatalogPath = defaults.Paths.CatalogPath
	}

	cleaned := make([]string, 0, len(c.Capture.Keys))
	seen := make(map[string]struct{}, len(c.Capture.Keys))
	for _, key := range c.Capture.Keys {
		trimmed := strings.ToLower(strings.TrimSpace(key))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	c.Capture.Keys = cleaned
	c.Capture.FinishKey = strings.ToLower(strings.TrimSpace(c.Capture.FinishKey))

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
