// Package config loads roadnet settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/routing"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheBadger = "badger"
	CacheNone   = "none"
)

// Config is the full roadnet configuration, read from YAML.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Build   BuildConfig   `yaml:"build"`
	Cache   CacheConfig   `yaml:"cache"`
	Routing RoutingConfig `yaml:"routing"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// SourceConfig selects the line layer and how it is watched.
type SourceConfig struct {
	// Path is a .geojson/.json or .osm.pbf file.
	Path string `yaml:"path"`
	// Layer names the layer and its cache entry; defaults to the file name.
	Layer string `yaml:"layer"`
	// CRS of GeoJSON coordinates, e.g. "EPSG:3857". Defaults to EPSG:4326.
	CRS string `yaml:"crs"`
	// BBox is [minX, minY, maxX, maxY]; empty means everything.
	BBox     []float64     `yaml:"bbox,omitempty"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// BuildConfig tunes network builds.
type BuildConfig struct {
	// Tolerance overrides the CRS merge tolerance when positive.
	Tolerance float64 `yaml:"tolerance"`
}

// CacheConfig selects where built networks are cached.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// RoutingConfig holds the routing engine options.
type RoutingConfig struct {
	CandidateNodes       int  `yaml:"candidate_nodes"`
	FallbackNodes        int  `yaml:"fallback_nodes"`
	StraightLineFallback bool `yaml:"straight_line_fallback"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxConcurrent caps in-flight route queries; zero means twice the CPU count.
	MaxConcurrent int    `yaml:"max_concurrent"`
	CORSOrigin    string `yaml:"cors_origin"`
}

// LogConfig sets the log level and format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Debounce: 2 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			Dir:     ".roadnet-cache",
		},
		Routing: RoutingConfig{
			CandidateNodes:       routing.DefaultCandidateNodes,
			FallbackNodes:        routing.DefaultFallbackNodes,
			StraightLineFallback: true,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be checked by the YAML decoder.
func (c Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case CacheFile, CacheBadger:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required"))
		}
	case CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if len(c.Source.BBox) != 0 && len(c.Source.BBox) != 4 {
		errs = append(errs, fmt.Errorf("source.bbox needs 4 values, got %d", len(c.Source.BBox)))
	}
	if _, err := geo.ParseCRS(c.Source.CRS); err != nil {
		errs = append(errs, fmt.Errorf("source.crs: %w", err))
	}
	if c.Build.Tolerance < 0 {
		errs = append(errs, errors.New("build.tolerance must not be negative"))
	}
	if c.Routing.CandidateNodes <= 0 || c.Routing.FallbackNodes <= 0 {
		errs = append(errs, errors.New("routing candidate counts must be positive"))
	}
	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, errors.New("server.max_concurrent must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SourceCRS returns the parsed source CRS; zero when unset.
func (c Config) SourceCRS() geo.CRS {
	crs, _ := geo.ParseCRS(c.Source.CRS)
	return crs
}

// Bounds returns the build bounding box, or nil when none is configured.
func (c Config) Bounds() *orb.Bound {
	if len(c.Source.BBox) != 4 {
		return nil
	}
	b := c.Source.BBox
	return &orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
}

// RoutingOptions converts the routing section into engine options.
func (c Config) RoutingOptions(logger *slog.Logger) []routing.Option {
	return []routing.Option{
		routing.WithCandidateNodes(c.Routing.CandidateNodes),
		routing.WithFallbackNodes(c.Routing.FallbackNodes),
		routing.WithStraightLineFallback(c.Routing.StraightLineFallback),
		routing.WithLogger(logger),
	}
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
