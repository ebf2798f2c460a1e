package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogCallback is invoked for every entry written to the ring buffer.
// It lets other packages observe log traffic without an import cycle.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that records entries into the shared
// ring buffer. The buffer is looked up at write time, so a handler
// built before Initialize starts recording once the buffer exists.
type BufferHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler creates a handler feeding the shared ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := sink()
	if buffer == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}

	record := func(a slog.Attr) {
		if a.Key == "module" {
			entry.Module = a.Value.String()
			return
		}
		recordAttr(entry.Attributes, h.groups, a)
	}
	for _, a := range h.attrs {
		record(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		record(a)
		return true
	})

	entry = buffer.Write(entry)
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(slices.Clip(h.attrs), attrs...)
	return &next
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

// recordAttr stores an attribute under a dot-joined key; group members
// recurse with their group name appended to the prefix.
func recordAttr(into map[string]any, groups []string, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		nested := append(slices.Clip(groups), a.Key)
		for _, ga := range a.Value.Group() {
			recordAttr(into, nested, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindTime:
		into[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		into[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			into[key] = err.Error()
			return
		}
		into[key] = a.Value.Any()
	default:
		into[key] = a.Value.Any()
	}
}

// levelName maps a level to its lowercase wire form.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
