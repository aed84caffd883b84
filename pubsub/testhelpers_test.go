package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/casualjim/roost/event"
)

type recordingHook struct {
	mu          sync.Mutex
	transitions []Transition
	errors      []error
	seen        chan struct{}
}

func newRecordingHook() *recordingHook {
	return &recordingHook{seen: make(chan struct{}, 256)}
}

func (r *recordingHook) OnTransition(_ context.Context, tr Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, tr)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

// waitFor blocks until n deliveries happened or the timeout passes and
// reports whether all of them arrived.
func (r *recordingHook) waitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for range n {
		select {
		case <-r.seen:
		case <-deadline:
			return false
		}
	}
	return true
}

func (r *recordingHook) received() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

type task struct {
	*event.Base
	err error
}

func newTask(err error) *task { return &task{Base: event.NewBase(), err: err} }

func (t *task) Kind() string { return "task" }

func (t *task) Invoke(context.Context) {
	if !t.Start() {
		return
	}
	t.Finish("ok", t.err, time.Millisecond)
}
