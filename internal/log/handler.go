package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Attribute keys lifted out of the message into Row fields.
const (
	KeyCategory = "category"
	KeyThread   = "thread"
	KeyThreadID = "thread_id"
)

// Handler adapts a Sink to slog so components keep a plain *slog.Logger.
type Handler struct {
	sink   Sink
	attrs  []slog.Attr
	prefix string // dotted group path
}

// NewHandler returns an slog handler dispatching to sink.
func NewHandler(sink Sink) *Handler {
	return &Handler{sink: sink}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.sink.Enabled(SeverityFromLevel(level))
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	row := Row{
		Severity:   SeverityFromLevel(r.Level),
		Time:       r.Time,
		ThreadName: "main",
		ThreadID:   os.Getpid(),
	}

	var b strings.Builder
	b.WriteString(r.Message)

	add := func(prefix string, a slog.Attr) {
		h.appendAttr(&b, &row, prefix, a)
	}
	for _, a := range h.attrs {
		add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.prefix, a)
		return true
	})

	row.Message = b.String()
	h.sink.Write(row)
	return nil
}

func (h *Handler) appendAttr(b *strings.Builder, row *Row, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	switch a.Key {
	case KeyCategory:
		row.Category = a.Value.String()
		return
	case KeyThread:
		row.ThreadName = a.Value.String()
		return
	case KeyThreadID:
		if a.Value.Kind() == slog.KindInt64 {
			row.ThreadID = int(a.Value.Int64())
		}
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, row, key, ga)
		}
		return
	}

	fmt.Fprintf(b, " %s=%s", key, quoteIfNeeded(a.Value.String()))
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != KeyCategory && a.Key != KeyThread && a.Key != KeyThreadID {
			a.Key = h.prefix + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.prefix == "" {
		h2.prefix = name
	} else {
		h2.prefix = h.prefix + "." + name
	}
	return &h2
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
