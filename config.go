package roadkit

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/roadkit/storage"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "ROADKIT"

// Config is the environment form of the Locator options.
type Config struct {
	Resolution      float64 `envconfig:"RESOLUTION" default:"300"`
	MaxRegionSearch int     `envconfig:"MAX_REGION_SEARCH" default:"0"`
	MaxDepth        int     `envconfig:"MAX_DEPTH" default:"16"`
	Compression     string  `envconfig:"COMPRESSION" default:"none"`
	SegmentSize     int     `envconfig:"SEGMENT_SIZE" default:"1048576"`
	MemoryLimit     int64   `envconfig:"MEMORY_LIMIT" default:"0"` // 0 means unlimited
	IOLimit         int64   `envconfig:"IO_LIMIT" default:"0"`     // bytes per second, 0 means unlimited
	Concurrency     int     `envconfig:"CONCURRENCY" default:"0"`  // 0 means GOMAXPROCS
	LogLevel        string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string  `envconfig:"LOG_FORMAT" default:"text"`

	// Store selects the blob store: "mem://", "file:///path", "s3://bucket/prefix"
	// or "minio://host/bucket/prefix". Resolved by the caller.
	Store string `envconfig:"STORE" default:"mem://"`
}

// LoadConfig reads ROADKIT_* variables after loading the given dotenv files.
// Without files, an optional ./.env is loaded. Variables already set in the
// environment win over dotenv values.
func LoadConfig(envFiles ...string) (Config, error) {
	var cfg Config
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: .env: %w", ErrInvalidConfig, err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !(c.Resolution > 0) {
		return fmt.Errorf("%w: RESOLUTION must be positive", ErrInvalidConfig)
	}
	if c.MaxRegionSearch < 0 || c.MaxDepth < 0 || c.SegmentSize < 0 ||
		c.MemoryLimit < 0 || c.IOLimit < 0 || c.Concurrency < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	if _, err := storage.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("%w: LOG_FORMAT must be text or json", ErrInvalidConfig)
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidConfig, err)
	}
	return l, nil
}

// Logger builds the logger described by LogLevel and LogFormat.
func (c Config) Logger() (*Logger, error) {
	l, err := c.level()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(c.LogFormat, "json") {
		return NewJSONLogger(l), nil
	}
	return NewTextLogger(l), nil
}

// Options converts the configuration into Locator options. The store is
// not included.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	comp, _ := storage.ParseCompression(c.Compression)
	logger, _ := c.Logger()
	opts := []Option{
		WithResolution(c.Resolution),
		WithMaxRegionSearch(c.MaxRegionSearch),
		WithMaxDepth(c.MaxDepth),
		WithCompression(comp),
		WithSegmentSize(c.SegmentSize),
		WithMemoryLimit(c.MemoryLimit),
		WithIOLimit(c.IOLimit),
		WithLogger(logger),
	}
	if c.Concurrency > 0 {
		opts = append(opts, WithConcurrency(c.Concurrency))
	}
	return opts, nil
}
