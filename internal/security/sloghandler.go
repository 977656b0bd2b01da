package security

import (
	"context"
	"log/slog"
)

// RedactingHandler scrubs credentials from log records before passing them
// on. The message, every attribute and every group member are rewritten;
// attributes bound with Logger.With are scrubbed once, when bound.
type RedactingHandler struct {
	next slog.Handler
	r    *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler returns a handler that scrubs with r and writes to
// next.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, r: r}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, h.r.Redact(rec.Message), rec.PC)
	attrs := make([]slog.Attr, 0, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	clean.AddAttrs(h.scrubAll(attrs)...)
	return h.next.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RedactingHandler{next: h.next.WithAttrs(h.scrubAll(attrs)), r: h.r}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), r: h.r}
}

func (h *RedactingHandler) scrubAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.scrub(a)
	}
	return out
}

// scrub resolves LogValuers first so errors and Stringers are checked in
// the form the inner handler would print.
func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		v = slog.StringValue(h.r.Redact(v.String()))
	case slog.KindGroup:
		v = slog.GroupValue(h.scrubAll(v.Group())...)
	case slog.KindAny:
		if s := v.String(); h.r.Redact(s) != s {
			v = slog.StringValue(h.r.Redact(s))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
