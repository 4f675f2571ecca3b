// Package logger configures the process-wide zerolog logger.
//
// Both binaries call Init exactly once at startup; packages that cannot be
// handed a logger through their constructor fall back to Get.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the logger is built.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to "info" when empty or unrecognised.
	Level string
	// Pretty enables human-friendly console output. Use false in
	// production to emit pure JSON.
	Pretty bool
	// Output overrides the destination. Defaults to os.Stdout.
	Output io.Writer
}

var (
	mu      sync.Mutex
	root    zerolog.Logger
	rootSet bool
)

// Init builds the root logger and installs it as the package default.
// Calling it again replaces the default, which matters only to tests.
func Init(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := level(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	l := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()

	mu.Lock()
	root = l
	rootSet = true
	mu.Unlock()

	return l
}

// Get returns the logger installed by Init, or a no-op logger before Init
// has run. Startup-ordering problems log nothing rather than crash.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !rootSet {
		return zerolog.Nop()
	}
	return root
}

func level(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
