package pubsub

import (
	"context"
	"log/slog"
	"slices"

	"github.com/casualjim/roost/pkg/slogx"
)

// Hook receives the transitions published on a topic. OnError reports
// delivery problems such as undecodable messages from a remote broker.
type Hook interface {
	OnTransition(context.Context, Transition)

	OnError(context.Context, error)
}

// LogHook logs completed transitions at debug level and failed ones as
// warnings. A nil logger logs to slog.Default.
func LogHook(logger *slog.Logger) Hook {
	return &logHook{logger: slogx.Named(logger, "transitions")}
}

type logHook struct {
	logger *slog.Logger
}

func (h *logHook) OnTransition(ctx context.Context, tr Transition) {
	attrs := []any{
		slogx.EventID(tr.EventID),
		slog.String("kind", tr.Kind),
		slogx.Stringer("status", tr.Status),
		slogx.Duration("duration", tr.Duration),
	}
	if tr.Failed() {
		h.logger.WarnContext(ctx, "event failed", append(attrs, slog.String("error", tr.Error))...)
		return
	}
	h.logger.DebugContext(ctx, "event completed", attrs...)
}

func (h *logHook) OnError(ctx context.Context, err error) {
	h.logger.ErrorContext(ctx, "transition delivery error", slogx.Error(err))
}

func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

// CompositeHook fans every call out to each hook in order.
type CompositeHook []Hook

func (c CompositeHook) OnTransition(ctx context.Context, tr Transition) {
	for h := range slices.Values(c) {
		h.OnTransition(ctx, tr)
	}
}

func (c CompositeHook) OnError(ctx context.Context, err error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, err)
	}
}
