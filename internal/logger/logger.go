// Package logger provides the process-wide structured logger used by every
// component in this module that logs: transport, peer, relay, and the
// cmd/ binaries all log through here instead of constructing their own
// slog.Logger.
package logger

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// envLogLevel is the environment variable consulted when no -log-level
// flag is present.
const envLogLevel = "PLECO_LOG_LEVEL"

var (
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	global      *slog.Logger
	initOnce    sync.Once

	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init initializes the global logger. Safe to call multiple times; the
// first call wins except for SetLevel/UseWriter which mutate state
// intentionally.
func Init() {
	initOnce.Do(func() {
		atomicLevel.set(detectLevel())
		global = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: atomicLevel}))
	})
}

// detectLevel resolves the initial log level from (high to low
// precedence): the -log.level flag, the PLECO_LOG_LEVEL env var, info.
func detectLevel() slog.Level {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			if strings.HasPrefix(arg, "-log.level=") {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) == 2 {
					*flagLevel = parts[1]
				}
			}
		}
	}
	if lvl, ok := parseLevel(strings.TrimSpace(*flagLevel)); ok {
		return lvl
	}
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return slog.LevelInfo
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	atomicLevel.set(lvl)
	return nil
}

// Level returns the current runtime level as a string.
func Level() string {
	Init()
	return atomicLevel.Level().String()
}

// UseWriter swaps the output writer (intended for tests). Retains the
// current level.
func UseWriter(w io.Writer) {
	Init()
	global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel}))
}

// Logger returns the global logger, initializing it on first use.
func Logger() *slog.Logger { Init(); return global }

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithPeer attaches peer identity fields (the local role + generated id).
func WithPeer(l *slog.Logger, role, peerID string) *slog.Logger {
	return l.With("role", role, "peer_id", peerID)
}

// WithFullType attaches the FullType (type/subtype pair) fields used
// throughout the resend/RTT/sequence tables.
func WithFullType(l *slog.Logger, typ, subtype uint8) *slog.Logger {
	return l.With("msg_type", typ, "msg_subtype", subtype)
}
