package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces the NATS subjects topics publish on.
const SubjectPrefix = "roost.transitions."

// NATSBroker publishes transitions as JSON on NATS subjects. Every topic maps
// to the subject SubjectPrefix + topic name.
type NATSBroker struct {
	conn   *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
}

func NATS(conn *nats.Conn) *NATSBroker {
	return &NATSBroker{
		conn:   conn,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *NATSBroker) Topic(_ context.Context, name string) Topic {
	topic, _ := b.topics.GetOrCompute(name, func() *natsTopic {
		return &natsTopic{conn: b.conn, subject: SubjectPrefix + name}
	})
	return topic
}

type natsTopic struct {
	conn    *nats.Conn
	subject string
}

func (t *natsTopic) Publish(ctx context.Context, tr Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	if err := t.conn.Publish(t.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", t.subject, err)
	}
	return nil
}

// Subscribe delivers every transition on the topic subject to hook until the
// subscription is cancelled or ctx is done.
func (t *natsTopic) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	ns, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		var tr Transition
		if err := json.Unmarshal(msg.Data, &tr); err != nil {
			hook.OnError(ctx, fmt.Errorf("decode transition from %s: %w", msg.Subject, err))
			return
		}
		hook.OnTransition(ctx, tr)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}

	sub := &natsSubscription{id: uuidx.NewString(), sub: ns}
	stop := context.AfterFunc(ctx, sub.Unsubscribe)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub, nil
}

type natsSubscription struct {
	id   string
	sub  *nats.Subscription
	mu   sync.Mutex
	stop func() bool
	once sync.Once
}

func (s *natsSubscription) ID() string { return s.id }

func (s *natsSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		if err := s.sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", s.id))
		}
	})
}
