package blog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// logFormat is a bitmask of the same flag vocabulary the stdlib "log"
// package exposes (Ldate, Ltime, Lmicroseconds, ...), since the server's
// text log output is meant to be familiar to anyone who has read a Go
// log.Logger line before.
type logFormat int

const (
	logFormatDate logFormat = 1 << iota
	logFormatTime
	logFormatMicroseconds
	logFormatUTC
	logFormatPid
	logFormatShortFile
	logFormatLongFile
	logFormatJSON
)

// outputFunc receives one already-formatted log line (text or JSON,
// depending on how it was registered with AddOutput).
type outputFunc func(level slog.Level, text string)

// OutputHandler is an slog.Handler that writes one line per record, either
// as plain text (the default, tailed on a terminal) or as JSON (for
// machine consumption), and can additionally fan each line out to any
// number of extra sinks — used to mirror dispatch activity into a
// per-session ring buffer for diagnostics without a second logger.
type OutputHandler struct {
	mu      *sync.Mutex
	out     io.Writer
	origOut io.Writer
	opts    slog.HandlerOptions
	format  logFormat

	extraMu *sync.Mutex
	extra   []outputFunc

	attrs  []slog.Attr
	groups []string
}

// NewOutputHandler builds a handler writing to w. A nil opts uses
// slog.LevelInfo as the minimum level.
func NewOutputHandler(w io.Writer, opts *slog.HandlerOptions, format logFormat) *OutputHandler {
	h := &OutputHandler{
		mu:      &sync.Mutex{},
		out:     w,
		format:  format,
		extraMu: &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.ReplaceAttr == nil {
		h.opts.ReplaceAttr = mapLogLevelNames
	}
	return h
}

// Enabled implements slog.Handler.
func (h *OutputHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

// WithAttrs implements slog.Handler.
func (h *OutputHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

// WithGroup implements slog.Handler.
func (h *OutputHandler) WithGroup(name string) slog.Handler {
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}

// Handle implements slog.Handler: it renders the record once, writes it to
// out, and fans the same (or a JSON-rendered) line out to every registered
// extra sink.
func (h *OutputHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := &bytes.Buffer{}
	var err error
	if h.format&logFormatJSON != 0 {
		err = h.jsonLog(ctx, buf, r)
	} else {
		err = h.textLog(ctx, buf, r)
	}
	if err != nil {
		return err
	}
	line := buf.String()

	h.mu.Lock()
	_, werr := io.WriteString(h.out, line)
	h.mu.Unlock()

	h.extraMu.Lock()
	fns := h.extra
	h.extraMu.Unlock()
	for _, fn := range fns {
		fn(r.Level, line)
	}
	return werr
}

func (h *OutputHandler) object() string {
	for _, a := range h.attrs {
		if a.Key == "session" {
			return a.Value.String()
		}
	}
	return ""
}

func (h *OutputHandler) lineInfo() string {
	if h.format&(logFormatShortFile|logFormatLongFile) == 0 {
		return ""
	}
	return getCaller(3)
}

func (h *OutputHandler) textLog(_ context.Context, buf *bytes.Buffer, r slog.Record) error {
	h.formatStdLogHeader(buf, r.Level, r.Time, h.object(), h.lineInfo())
	buf.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "session" {
			return true
		}
		fmt.Fprintf(buf, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	buf.WriteByte('\n')
	return nil
}

func (h *OutputHandler) jsonLog(_ context.Context, buf *bytes.Buffer, r slog.Record) error {
	m := map[string]any{
		"time":  r.Time.Format(time.RFC3339Nano),
		"level": strings.ToLower(slogLevelToString(r.Level)),
		"msg":   r.Message,
	}
	if obj := h.object(); obj != "" {
		m["session"] = obj
	}
	if line := h.lineInfo(); line != "" {
		m["source"] = line
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "session" {
			return true
		}
		m[a.Key] = a.Value.Any()
		return true
	})
	enc := json.NewEncoder(buf)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return nil
}

// formatStdLogHeader writes a prefix in the vocabulary of the stdlib log
// package's flag set, plus the level name and an optional object tag.
func (h *OutputHandler) formatStdLogHeader(buf *bytes.Buffer, level slog.Level, t time.Time, object, lineInfo string) {
	if h.format&logFormatUTC != 0 {
		t = t.UTC()
	}
	if h.format&(logFormatDate|logFormatTime|logFormatMicroseconds) != 0 {
		if h.format&logFormatDate != 0 {
			year, month, day := t.Date()
			fmt.Fprintf(buf, "%04d/%02d/%02d ", year, month, day)
		}
		if h.format&(logFormatTime|logFormatMicroseconds) != 0 {
			hh, mm, ss := t.Clock()
			fmt.Fprintf(buf, "%02d:%02d:%02d", hh, mm, ss)
			if h.format&logFormatMicroseconds != 0 {
				fmt.Fprintf(buf, ".%06d", t.Nanosecond()/1000)
			}
			buf.WriteByte(' ')
		}
	}
	if h.format&logFormatPid != 0 {
		fmt.Fprintf(buf, "[%d] ", os.Getpid())
	}
	if lineInfo != "" {
		fmt.Fprintf(buf, "%s: ", lineInfo)
		return
	}
	fmt.Fprintf(buf, "%-5s : ", slogLevelToString(level))
	if object != "" {
		fmt.Fprintf(buf, "%s: ", object)
	}
}

// SetOutput redirects every subsequent line to out instead of writing to
// the handler's configured writer; used by tests and by the dispatcher's
// per-session diagnostic capture.
func (h *OutputHandler) SetOutput(out outputFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.out.(*funcWriter); !ok {
		h.origOut = h.out
	}
	h.out = &funcWriter{fn: out}
}

// ResetOutput restores the handler's original writer after a SetOutput
// override, used when diagnostic capture ends.
func (h *OutputHandler) ResetOutput() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.origOut != nil {
		h.out = h.origOut
		h.origOut = nil
	}
}

// AddOutput registers an additional sink that receives every line this
// handler writes, rendered as JSON when json is true and as the handler's
// normal text form otherwise.
func (h *OutputHandler) AddOutput(json bool, fn outputFunc) {
	wrapped := fn
	if json != (h.format&logFormatJSON != 0) {
		wrapped = func(level slog.Level, _ string) {
			buf := &bytes.Buffer{}
			r := slog.NewRecord(time.Now(), level, "", 0)
			var err error
			if json {
				err = h.jsonLog(context.Background(), buf, r)
			} else {
				err = h.textLog(context.Background(), buf, r)
			}
			if err == nil {
				fn(level, buf.String())
			}
		}
	}
	h.extraMu.Lock()
	h.extra = append(h.extra, wrapped)
	h.extraMu.Unlock()
}

type funcWriter struct {
	fn outputFunc
}

func (w *funcWriter) Write(p []byte) (int, error) {
	w.fn(slog.LevelInfo, string(p))
	return len(p), nil
}

// getCaller returns "file:line" for the caller skip frames above this
// function. The skip count is used as given: frames inside this package
// or log/slog are not filtered out.
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", short, line)
}
