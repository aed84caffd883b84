package event

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/casualjim/roost/element"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// ErrNotImplemented fails events whose type doesn't provide an Invoke body.
var ErrNotImplemented = errors.New("invoke is not implemented")

// Event is a unit of work with an identity and an execution record.
type Event interface {
	element.Element
	CreatedAt() strfmt.DateTime
	Status() Status
	Execution() Execution
	// Request describes what the event asks for, for admission decisions
	// such as rate limiting. It is never nil.
	Request() map[string]any
	// Begin moves a PENDING event to PROCESSING and reports whether it did.
	Begin() bool
	// Invoke runs the event and records the outcome. It never returns an
	// error; failures end up in the execution record.
	Invoke(ctx context.Context)
	// Done is closed when the event reaches a terminal status.
	Done() <-chan struct{}
}

// Kinded events name their own kind in notifications.
type Kinded interface {
	Kind() string
}

// KindOf names the kind of ev, falling back to its Go type name.
func KindOf(ev Event) string {
	if k, ok := ev.(Kinded); ok {
		return k.Kind()
	}
	t := reflect.TypeOf(ev)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Base implements the bookkeeping of Event. Embed it by pointer.
type Base struct {
	id        uuid.UUID
	createdAt strfmt.DateTime

	mu        sync.Mutex
	execution Execution
	started   bool
	startedAt time.Time
	done      chan struct{}
}

func NewBase() *Base {
	return &Base{
		id:        element.NewID(),
		createdAt: strfmt.DateTime(time.Now()),
		done:      make(chan struct{}),
	}
}

func (b *Base) ID() uuid.UUID { return b.id }

func (b *Base) CreatedAt() strfmt.DateTime { return b.createdAt }

func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.execution.Status
}

// Execution returns a copy of the execution record.
func (b *Base) Execution() Execution {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.execution
}

func (b *Base) Request() map[string]any { return map[string]any{} }

func (b *Base) Done() <-chan struct{} { return b.done }

func (b *Base) Begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.execution.Status != Pending {
		return false
	}
	b.execution.Status = Processing
	return true
}

// Start claims the single invocation of the event. It succeeds for a PENDING
// event, which is moved to PROCESSING, and for a PROCESSING event that hasn't
// been started yet. Every later call returns false.
func (b *Base) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.execution.Status.IsTerminal() {
		return false
	}
	b.started = true
	b.startedAt = time.Now()
	b.execution.Status = Processing
	return true
}

// Finish records the outcome: FAILED when err is non-nil, COMPLETED
// otherwise. It is a no-op on a terminal event.
func (b *Base) Finish(response any, err error, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.execution.Status.IsTerminal() {
		return
	}
	b.execution.Duration = duration
	if err != nil {
		b.execution.Status = Failed
		b.execution.Error = err.Error()
		b.execution.Response = nil
	} else {
		b.execution.Status = Completed
		b.execution.Response = response
	}
	close(b.done)
}

// Abort fails the event, timing it from Start when it was started.
func (b *Base) Abort(err error) {
	if err == nil {
		err = errors.New("aborted")
	}
	b.mu.Lock()
	var elapsed time.Duration
	if b.started {
		elapsed = time.Since(b.startedAt)
	}
	b.mu.Unlock()
	b.Finish(nil, err, elapsed)
}

// Invoke fails the event: concrete types provide their own.
func (b *Base) Invoke(context.Context) {
	if !b.Start() {
		return
	}
	b.Finish(nil, ErrNotImplemented, 0)
}

// MarshalJSON writes the identity and the execution record.
func (b *Base) MarshalJSON() ([]byte, error) {
	exec, err := b.Execution().MarshalJSON()
	if err != nil {
		return nil, err
	}

	result := []byte(`{}`)
	result, err = sjson.SetBytes(result, "id", b.id.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "created_at", b.createdAt.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, "execution", exec)
}

// Wait blocks until ev is terminal or ctx is done.
func Wait(ctx context.Context, ev Event) (Execution, error) {
	select {
	case <-ev.Done():
		return ev.Execution(), nil
	case <-ctx.Done():
		return ev.Execution(), fmt.Errorf("waiting for event %s: %w", ev.ID(), context.Cause(ctx))
	}
}
