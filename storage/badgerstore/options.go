package badgerstore

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Default configuration values.
const (
	DefaultGCInterval      = 5 * time.Minute  // Run value log GC every 5 minutes
	DefaultShutdownTimeout = 30 * time.Second // Max wait for graceful shutdown
)

// Options configures the Badger storage.
type Options struct {
	// Dir is the directory for Badger data files.
	// If empty, uses in-memory mode (for testing).
	Dir string

	// InMemory runs Badger in memory-only mode.
	InMemory bool

	// Logger for Badger. If nil, uses default (logs to stderr).
	Logger badger.Logger

	// SLogger is a structured logger for badgerstore operations.
	// If nil, uses slog.Default().
	SLogger *slog.Logger

	// GCInterval is how often to run Badger's value log GC.
	// Default: 5 minutes. Set to -1 to disable.
	GCInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for background goroutines
	// to finish during Close(). Default: 30 seconds. Set to 0 to use default.
	ShutdownTimeout time.Duration
}

// SlogAdapter routes Badger's printf-style logging into a slog.Logger.
// Badger's info output is logged at debug level.
type SlogAdapter struct {
	Logger *slog.Logger
}

var _ badger.Logger = SlogAdapter{}

func (a SlogAdapter) Errorf(format string, args ...any) {
	a.Logger.Error(sprintf(format, args), "component", "badger")
}

func (a SlogAdapter) Warningf(format string, args ...any) {
	a.Logger.Warn(sprintf(format, args), "component", "badger")
}

func (a SlogAdapter) Infof(format string, args ...any) {
	a.Logger.Debug(sprintf(format, args), "component", "badger")
}

func (a SlogAdapter) Debugf(format string, args ...any) {
	a.Logger.Debug(sprintf(format, args), "component", "badger")
}

func sprintf(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
