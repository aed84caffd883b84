package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/roost/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

// LocalBroker delivers transitions to in-process subscribers. A subscriber
// whose buffer stays full for longer than the slow subscriber timeout is
// unsubscribed.
type LocalBroker struct {
	topics                *haxmap.Map[string, *localTopic]
	slowSubscriberTimeout time.Duration
}

func Local() *LocalBroker {
	return &LocalBroker{
		topics:                haxmap.New[string, *localTopic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures the timeout for detecting slow subscribers.
// It applies to topics created afterwards.
func (b *LocalBroker) WithSlowSubscriberTimeout(timeout time.Duration) *LocalBroker {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *LocalBroker) Topic(_ context.Context, id string) Topic {
	topic, _ := b.topics.GetOrCompute(id, func() *localTopic {
		return &localTopic{
			id:                    id,
			subscriptions:         haxmap.New[string, *localSubscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

type localTopic struct {
	id                    string
	subscriptions         *haxmap.Map[string, *localSubscription]
	slowSubscriberTimeout time.Duration
}

func (t *localTopic) Publish(ctx context.Context, tr Transition) error {
	t.subscriptions.ForEach(func(_ string, sub *localSubscription) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		case <-sub.done:
			return true
		default:
		}

		timer := time.NewTimer(t.slowSubscriberTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		case sub.channel <- tr:
		case <-timer.C:
			sub.Unsubscribe()
		}
		return true
	})
	return ctx.Err()
}

func (t *localTopic) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	id := uuidx.NewString()
	sub := &localSubscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan Transition, 50),
		done:    make(chan struct{}),
		onClose: func() { t.subscriptions.Del(id) },
		hook:    hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub, nil
}

type localSubscription struct {
	id        string
	ctx       context.Context
	channel   chan Transition
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	hook      Hook
}

func (s *localSubscription) ID() string { return s.id }

func (s *localSubscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *localSubscription) forwardToHook() {
	for {
		select {
		case tr := <-s.channel:
			s.hook.OnTransition(s.ctx, tr)
		case <-s.done:
			return
		case <-s.ctx.Done():
			s.Unsubscribe()
			return
		}
	}
}
