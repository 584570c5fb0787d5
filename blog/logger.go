package blog

import (
	"io"
	"log/slog"
)

// levelByName maps the config file's log_level strings to slog levels.
var levelByName = map[string]slog.Level{
	"trace":  LevelTrace,
	"debug":  slog.LevelDebug,
	"info":   slog.LevelInfo,
	"notice": LevelNotice,
	"warn":   slog.LevelWarn,
	"error":  slog.LevelError,
}

// ParseLevel resolves a config log_level string, defaulting to Info for an
// unrecognised name rather than failing startup over a logging nicety.
func ParseLevel(name string) slog.Level {
	if level, ok := levelByName[name]; ok {
		return level
	}
	return slog.LevelInfo
}

// New builds the server's default logger: plain text, date and time
// prefixed, at the given minimum level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	h := NewOutputHandler(w, &slog.HandlerOptions{Level: level}, logFormatDate|logFormatTime)
	return slog.New(h)
}

// ForSession returns a logger that tags every line with the link's session
// id, the way a dispatch log line needs to be attributable to one BBC
// client among several sharing the process.
func ForSession(base *slog.Logger, sessionID string) *slog.Logger {
	return base.With("session", sessionID)
}
