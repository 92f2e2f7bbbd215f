package mqtt

import (
	"context"
	"log/slog"
)

// Queue accepts diagnostics without blocking.
type Queue interface {
	Enqueue(d Diagnostic) bool
}

type field struct {
	key, value string
}

// Handler is a slog.Handler that turns records at or above its level into
// Diagnostics. Attribute values are flattened to strings and groups to
// dotted keys; a "component" attribute becomes Diagnostic.Component.
type Handler struct {
	q      Queue
	level  slog.Leveler
	fields []field
	prefix string
}

// NewHandler creates a handler feeding q.
func NewHandler(q Queue, level slog.Leveler) *Handler {
	return &Handler{q: q, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle never fails: a full queue drops the record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.fields)+r.NumAttrs())
	for _, f := range h.fields {
		attrs[f.key] = f.value
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.prefix, a)
		return true
	})

	d := Diagnostic{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if c, ok := attrs["component"]; ok {
		d.Component = c
		delete(attrs, "component")
	}
	if len(attrs) > 0 {
		d.Attrs = attrs
	}

	h.q.Enqueue(d)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	m := make(map[string]string)
	for _, a := range attrs {
		flatten(m, h.prefix, a)
	}

	h2 := *h
	h2.fields = append([]field(nil), h.fields...)
	for k, v := range m {
		h2.fields = append(h2.fields, field{key: k, value: v})
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func flatten(m map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(m, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	m[prefix+a.Key] = v.String()
}
