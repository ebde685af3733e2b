package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/internal/envutil"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger

	outputOnce sync.Once
	output     io.Writer = os.Stderr
)

func init() {
	Logger = zerolog.New(debugWriter()).
		With().
		Timestamp().
		Logger()
	zerolog.SetGlobalLevel(defaultLevel())
}

func defaultLevel() zerolog.Level {
	if envutil.Debug() {
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

func debugWriter() io.Writer {
	outputOnce.Do(func() {
		p := envutil.DebugFile()
		if p == "" {
			return
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "screencap debug log open failed: %v\n", err)
			return
		}
		output = f
	})
	return output
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init reconfigures the global logger. An empty level keeps the env default.
func Init(level string, pretty bool) {
	lvl := defaultLevel()
	if level != "" {
		lvl = ParseLevel(level)
	}
	zerolog.SetGlobalLevel(lvl)

	out := debugWriter()
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(out).
		With().
		Timestamp().
		Logger()
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// ShouldLog reports whether at least period has passed since the last time it
// returned true for last. Safe for concurrent use from callback threads.
func ShouldLog(last *atomic.Int64, period time.Duration) bool {
	if last == nil || period <= 0 {
		return true
	}

	now := time.Now().UnixNano()
	for {
		prev := last.Load()
		if prev != 0 && time.Duration(now-prev) < period {
			return false
		}
		if last.CompareAndSwap(prev, now) {
			return true
		}
	}
}
