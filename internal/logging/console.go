package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02 15:04:05.000 INFO  pipeline/resize: stage complete width=640
//
// Component and stage attributes form the subject; everything else is
// rendered as key=value pairs. Attributes added through WithAttrs are
// rendered once, when they are attached.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	addSource bool

	component string
	stage     string
	prefix    string // dotted group path for later keys
	preset    string // rendered " k=v" pairs from WithAttrs
}

func newConsoleHandler(out io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	component, stage := h.component, h.stage
	var pairs strings.Builder
	record.Attrs(func(attr slog.Attr) bool {
		switch {
		case h.prefix == "" && attr.Key == FieldComponent && component == "":
			component = attr.Value.String()
		case h.prefix == "" && attr.Key == FieldStage && stage == "":
			stage = attr.Value.String()
		default:
			writePair(&pairs, h.prefix, attr)
		}
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := make([]byte, 0, 160)
	line = ts.Local().AppendFormat(line, consoleTimeLayout)
	line = append(line, ' ')
	line = fmt.Appendf(line, "%-5s ", levelLabel(record.Level))
	if subject := joinSubject(component, stage); subject != "" {
		line = append(line, subject...)
		line = append(line, ": "...)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line = append(line, msg...)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line = append(line, h.preset...)
	line = append(line, pairs.String()...)
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var pairs strings.Builder
	for _, attr := range attrs {
		switch {
		case h.prefix == "" && attr.Key == FieldComponent:
			next.component = attr.Value.String()
		case h.prefix == "" && attr.Key == FieldStage:
			next.stage = attr.Value.String()
		default:
			writePair(&pairs, h.prefix, attr)
		}
	}
	next.preset += pairs.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// writePair renders attr as " key=value", flattening groups into dotted keys.
func writePair(b *strings.Builder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			writePair(b, groupPrefix, member)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(attr.Key)
	b.WriteByte('=')
	b.WriteString(renderValue(attr.Value))
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func joinSubject(component, stage string) string {
	switch {
	case component != "" && stage != "":
		return component + "/" + stage
	case component != "":
		return component
	default:
		return stage
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
