package pubsub

import (
	"context"
	"log/slog"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/processor"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, Transition) error
	Subscribe(context.Context, Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// Observe publishes every terminal transition a processor reports to topic.
// Publish failures are logged and otherwise ignored.
func Observe(topic Topic) processor.Observer {
	return processor.ObserverFunc(func(ctx context.Context, ev event.Event) {
		if err := topic.Publish(ctx, FromEvent(ev)); err != nil {
			slog.WarnContext(ctx, "failed to publish transition", slogx.EventID(ev.ID()), slogx.Error(err))
		}
	})
}
