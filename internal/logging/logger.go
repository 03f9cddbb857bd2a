package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

type prettyHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	source bool
	attrs  []slog.Attr
	group  string
}

func NewPrettyHandler(out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if out == nil {
		out = os.Stdout
	}
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &prettyHandler{
		mu:     &sync.Mutex{},
		out:    out,
		level:  opts.Level,
		source: opts.AddSource,
	}
}

func Init(levelName string) {
	InitWriter(os.Stdout, levelName)
}

// InitWriter installs the pretty handler writing to out as the default logger.
func InitWriter(out io.Writer, levelName string) {
	handler := NewPrettyHandler(out, &slog.HandlerOptions{
		Level:     ParseLevel(levelName),
		AddSource: true,
	})

	slog.SetDefault(slog.New(handler))
}

func (h *prettyHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	if h.level == nil {
		return true
	}
	return lvl >= h.level.Level()
}

func (h *prettyHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	var buf bytes.Buffer

	// time: fixed layout, always same width
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&buf, "%s ", ts.Format("2006-01-02 15:04:05.000"))

	// level: 5 chars, colorized, then single space
	fmt.Fprintf(&buf, "%s%-5s%s ", colorForLevel(r.Level), levelToUpper(r.Level), colorReset)

	if h.source {
		if file, line := resolveCaller(); file != "" {
			loc := fmt.Sprintf("%s:%d", filepath.Base(file), line)
			fmt.Fprintf(&buf, "%-25s ", loc)
		}
	}

	buf.WriteString(r.Message)

	var errVal error
	write := func(key string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if e, ok := a.Value.Any().(error); ok && a.Key == "error" {
			errVal = e
		}
		fmt.Fprintf(&buf, " %s=%v", key, a.Value.Any())
	}
	// bound attrs already carry the group they were added under
	for _, a := range h.attrs {
		write(a.Key, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		write(key, a)
		return true
	})

	buf.WriteByte('\n')

	// error + stack trace
	if errVal != nil && r.Level >= slog.LevelError {
		fmt.Fprintf(&buf, "ERROR: %v\n", errVal)
		buf.Write(debug.Stack())
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}

const colorReset = "\033[0m"

func levelToUpper(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(l string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func colorForLevel(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "\033[36m" // cyan
	case l < slog.LevelWarn:
		return "\033[32m" // green
	case l < slog.LevelError:
		return "\033[33m" // yellow
	default:
		return "\033[31m" // red
	}
}

// resolveCaller walks the stack and returns the first frame outside log/slog and `internal/logging`.
func resolveCaller() (string, int) {
	const maxDepth = 32
	var pcs [maxDepth]uintptr

	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	sep := string(os.PathSeparator)
	for {
		f, more := frames.Next()
		skip := strings.Contains(f.File, sep+"internal"+sep+"logging"+sep) ||
			strings.Contains(f.File, sep+"log"+sep+"slog"+sep)
		if !skip && f.File != "" {
			return f.File, f.Line
		}
		if !more {
			break
		}
	}

	return "", 0
}
