package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// SessionKey is the context key for session identifiers.
	SessionKey contextKey = "session_id"

	// TurnKey is the context key for turn (evidence record) identifiers.
	TurnKey contextKey = "turn_id"
)

// WithSession adds a session identifier to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionKey, sessionID)
}

// GetSession retrieves the session identifier from the context.
func GetSession(ctx context.Context) string {
	if id, ok := ctx.Value(SessionKey).(string); ok {
		return id
	}
	return ""
}

// WithTurn adds a turn identifier to the context.
func WithTurn(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnKey, turnID)
}

// GetTurn retrieves the turn identifier from the context.
func GetTurn(ctx context.Context) string {
	if id, ok := ctx.Value(TurnKey).(string); ok {
		return id
	}
	return ""
}

// contextFields returns the log attributes carried by ctx.
func contextFields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := GetSession(ctx); id != "" {
		attrs = append(attrs, slog.String(string(SessionKey), id))
	}
	if id := GetTurn(ctx); id != "" {
		attrs = append(attrs, slog.String(string(TurnKey), id))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// contextHandler adds context fields to every record logged with a context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if attrs := contextFields(ctx); len(attrs) > 0 {
			r.AddAttrs(attrs...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
