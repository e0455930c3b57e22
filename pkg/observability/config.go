package observability

import (
	"log/slog"
	"strings"
)

// AppMode identifies how the process was started.
type AppMode string

// Application modes.
const (
	ModeCLI AppMode = "cli"
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "repominer"
	defaultShutdownTimeoutSec = 5
	defaultLogMaxSizeMB       = 50
	defaultLogMaxBackups      = 3
)

// Config controls tracing, metrics and logging.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is the gRPC collector address. Empty disables export.
	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string

	// DebugTrace samples every span and logs attributes dropped by the filter.
	DebugTrace bool
	// TraceVerbose exports the per-commit git and blame spans too.
	TraceVerbose bool
	SampleRatio  float64

	LogLevel slog.Level
	LogJSON  bool
	// LogFile sends logs to a rotating file instead of stderr.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	ShutdownTimeoutSec int
}

// DefaultConfig returns a CLI configuration with export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		LogMaxSizeMB:       defaultLogMaxSizeMB,
		LogMaxBackups:      defaultLogMaxBackups,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseOTLPHeaders parses "key=value,key=value". Pairs without "=" are
// skipped; nil is returned when nothing remains.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = map[string]string{}
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}
