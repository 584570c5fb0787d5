// Package blog extends log/slog with the severity levels a dispatch server
// wants beyond stdlib's four (trace-level wire dumps, and a notice level
// between info and warning for "handled but worth a human's attention"
// events), following the same slog.Level-constant-plus-custom-handler shape
// rclone's fs/log package layers over log/slog.
package blog

import "log/slog"

// Custom levels, spaced the way rclone spaces fs.SlogLevelNotice et al
// around the four stdlib levels.
const (
	LevelTrace  = slog.Level(-8)
	LevelNotice = slog.Level(2)
)

// slogLevelToString renders the handful of levels this package cares about
// with fixed-width names; anything else falls back to slog's own String().
func slogLevelToString(level slog.Level) string {
	switch level {
	case LevelTrace:
		return "TRACE"
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	default:
		return level.String()
	}
}

// mapLogLevelNames is an slog.HandlerOptions.ReplaceAttr function: it
// lowercases the level name so JSON output reads "level":"warning" rather
// than the Go-ism "WARN", leaving every other attribute untouched.
func mapLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	name := slogLevelToString(level)
	lower := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	return slog.String(a.Key, string(lower))
}
