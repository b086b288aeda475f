package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	timeStyle = color.New(color.FgHiBlack).SprintFunc()
	keyStyle  = color.New(color.FgCyan).SprintFunc()
	msgStyle  = color.New(color.FgHiWhite).SprintFunc()

	levelStyles = map[slog.Level]*color.Color{
		slog.LevelDebug: color.New(color.FgMagenta),
		slog.LevelInfo:  color.New(color.FgGreen),
		slog.LevelWarn:  color.New(color.FgYellow),
		slog.LevelError: color.New(color.FgRed, color.Bold),
	}
)

// sink is shared by every handler derived from the same PrettyHandler.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// PrettyHandler writes one colored line per record for local development.
type PrettyHandler struct {
	level  slog.Leveler
	out    *sink
	prefix string // attrs already rendered by WithAttrs
	group  string
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{level: slog.LevelInfo, out: &sink{w: w}}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var line bytes.Buffer
	line.WriteString(timeStyle(r.Time.Format("15:04:05.000")))
	line.WriteByte(' ')
	line.WriteString(levelLabel(r.Level))
	line.WriteByte(' ')
	line.WriteString(msgStyle(r.Message))
	line.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&line, h.group, a)
		return true
	})
	line.WriteByte('\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(line.Bytes())
	return err
}

func levelLabel(level slog.Level) string {
	style := levelStyles[slog.LevelDebug]
	for _, l := range []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if level >= l {
			style = levelStyles[l]
			break
		}
	}
	label := level.String()
	for len(label) < 5 {
		label += " "
	}
	return style.Sprint(label)
}

func appendAttr(buf *bytes.Buffer, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" && key != "" {
		key = group + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		// Inline groups (empty key) keep the parent scope.
		if a.Key == "" {
			key = group
		}
		for _, member := range a.Value.Group() {
			appendAttr(buf, key, member)
		}
		return
	case slog.KindTime:
		writePair(buf, key, a.Value.Time().Format(time.RFC3339))
	case slog.KindDuration:
		writePair(buf, key, a.Value.Duration().String())
	case slog.KindString:
		s := a.Value.String()
		if needsQuote(s) {
			s = strconv.Quote(s)
		}
		writePair(buf, key, s)
	default:
		writePair(buf, key, a.Value.String())
	}
}

func writePair(buf *bytes.Buffer, key string, value string) {
	buf.WriteByte(' ')
	buf.WriteString(keyStyle(key))
	buf.WriteByte('=')
	buf.WriteString(value)
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	var buf bytes.Buffer
	buf.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&buf, h.group, a)
	}

	clone := *h
	clone.prefix = buf.String()
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}
