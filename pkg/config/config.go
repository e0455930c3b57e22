// Package config loads the repominer settings from .repominer.yaml,
// REPOMINER_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/persist"
	"github.com/Sumatoshi-tech/repominer/pkg/relevance"
)

// Sentinel validation errors.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("mining.workers must be non-negative")
	// ErrInvalidCacheSize indicates an unparsable commit cache size.
	ErrInvalidCacheSize = errors.New("repository.commit_cache_size must be a byte size like 256MB")
	// ErrInvalidCommentDetection indicates an unknown comment detection mode.
	ErrInvalidCommentDetection = errors.New("mining.comment_detection must be markers or syntax")
	// ErrInvalidCodec indicates an unknown state codec.
	ErrInvalidCodec = errors.New("state.codec must be json or gob")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrInvalidLogRotation indicates a non-positive rotation setting.
	ErrInvalidLogRotation = errors.New("logging.max_size_mb and logging.max_backups must be positive")
	// ErrInvalidSampleRatio indicates a sample ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

var logFormats = []string{"text", "json"}

// Comment detection modes.
const (
	// CommentDetectionMarkers matches comment line prefixes.
	CommentDetectionMarkers = "markers"
	// CommentDetectionSyntax parses changed files with tree-sitter.
	CommentDetectionSyntax = "syntax"
)

var commentDetections = []string{CommentDetectionMarkers, CommentDetectionSyntax}

// Config holds all repominer settings.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Mining     MiningConfig     `mapstructure:"mining"`
	Relevance  relevance.Config `mapstructure:"relevance"`
	State      StateConfig      `mapstructure:"state"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// RepositoryConfig selects the mined branch and where remotes are cloned.
type RepositoryConfig struct {
	Branch   string `mapstructure:"branch"`
	CloneDir string `mapstructure:"clone_dir"`
	// CommitCacheSize bounds the decoded commit cache, e.g. "256MB". "0" disables it.
	CommitCacheSize string `mapstructure:"commit_cache_size"`
}

// CommitCacheBytes parses CommitCacheSize.
func (r RepositoryConfig) CommitCacheBytes() (int64, error) {
	if strings.TrimSpace(r.CommitCacheSize) == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(r.CommitCacheSize)
	if err != nil || size > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCacheSize, r.CommitCacheSize)
	}

	return int64(size), nil
}

// MiningConfig tunes the pipeline.
type MiningConfig struct {
	Workers        int      `mapstructure:"workers"`
	CommentMarkers []string `mapstructure:"comment_markers"`
	// CommentDetection is markers (also when empty) or syntax. Syntax falls
	// back to the markers for deleted lines and files without a grammar.
	CommentDetection string `mapstructure:"comment_detection"`
	// RulesFile replaces the shipped classifier dictionaries.
	RulesFile string `mapstructure:"rules_file"`
}

// StateConfig controls where mining state is saved between runs.
type StateConfig struct {
	// Dir enables persistence when set.
	Dir      string `mapstructure:"dir"`
	Codec    string `mapstructure:"codec"`
	Compress bool   `mapstructure:"compress"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// OTLPHeaders is a comma-separated list of key=value pairs.
	OTLPHeaders string  `mapstructure:"otlp_headers"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	// Verbose also exports the per-commit git and blame spans.
	Verbose bool `mapstructure:"verbose"`
	// Debug samples every span and logs span attributes dropped on export.
	Debug bool `mapstructure:"debug"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Mining.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Mining.Workers)
	}

	if c.Mining.CommentDetection != "" &&
		!slices.Contains(commentDetections, strings.ToLower(c.Mining.CommentDetection)) {
		return fmt.Errorf("%w: %q", ErrInvalidCommentDetection, c.Mining.CommentDetection)
	}

	if _, err := c.Repository.CommitCacheBytes(); err != nil {
		return err
	}

	if _, err := persist.CodecByName(c.State.Codec, c.State.Compress); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, c.State.Codec)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Logging.File != "" && (c.Logging.MaxSizeMB <= 0 || c.Logging.MaxBackups <= 0) {
		return fmt.Errorf("%w: %d/%d", ErrInvalidLogRotation, c.Logging.MaxSizeMB, c.Logging.MaxBackups)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// StateCodec returns the codec for saved mining state.
func (c *Config) StateCodec() (persist.Codec, error) {
	return persist.CodecByName(c.State.Codec, c.State.Compress)
}

// Observability maps the logging and telemetry sections onto an
// observability configuration for the given mode.
func (c *Config) Observability(version string, mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Mode = mode

	if level, err := c.Logging.SlogLevel(); err == nil {
		cfg.LogLevel = level
	}

	cfg.LogJSON = strings.EqualFold(c.Logging.Format, "json")
	cfg.LogFile = c.Logging.File
	cfg.LogMaxSizeMB = c.Logging.MaxSizeMB
	cfg.LogMaxBackups = c.Logging.MaxBackups

	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.TraceVerbose = c.Telemetry.Verbose
	cfg.DebugTrace = c.Telemetry.Debug

	return cfg
}
