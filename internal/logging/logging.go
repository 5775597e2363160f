// Package logging defines the structured log sink injected into operations
// and its zerolog backend.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the sink operations log to. kv holds alternating keys and
// values, as in zerolog's Fields.
type Logger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// New builds the zerolog logger used by the process. format is "json" or
// "console"; level is one of debug, info, warn, error.
func New(level, format string, w io.Writer) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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

// Zerolog adapts a zerolog.Logger to Logger.
func Zerolog(zl zerolog.Logger) Logger {
	return zlog{zl: zl}
}

type zlog struct {
	zl zerolog.Logger
}

func (l zlog) Info(msg string, kv ...any)  { l.zl.Info().Fields(kv).Msg(msg) }
func (l zlog) Warn(msg string, kv ...any)  { l.zl.Warn().Fields(kv).Msg(msg) }
func (l zlog) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }

// Nop discards everything.
var Nop Logger = nop{}

type nop struct{}

func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Tee sends every message to all non-nil loggers in order.
func Tee(ls ...Logger) Logger {
	out := make(tee, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type tee []Logger

func (t tee) Info(msg string, kv ...any) {
	for _, l := range t {
		l.Info(msg, kv...)
	}
}

func (t tee) Warn(msg string, kv ...any) {
	for _, l := range t {
		l.Warn(msg, kv...)
	}
}

func (t tee) Error(msg string, kv ...any) {
	for _, l := range t {
		l.Error(msg, kv...)
	}
}

// With returns a Logger that prepends kv to every message's fields.
func With(l Logger, kv ...any) Logger {
	if len(kv) == 0 {
		return l
	}
	return with{l: l, kv: kv}
}

type with struct {
	l  Logger
	kv []any
}

func (w with) merge(kv []any) []any {
	out := make([]any, 0, len(w.kv)+len(kv))
	out = append(out, w.kv...)
	return append(out, kv...)
}

func (w with) Info(msg string, kv ...any)  { w.l.Info(msg, w.merge(kv)...) }
func (w with) Warn(msg string, kv ...any)  { w.l.Warn(msg, w.merge(kv)...) }
func (w with) Error(msg string, kv ...any) { w.l.Error(msg, w.merge(kv)...) }

// Fields converts alternating keys and values to a map. Non-string keys are
// formatted with %v; a trailing key without value maps to nil.
func Fields(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		m[key] = val
	}
	return m
}
