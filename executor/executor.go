// Package executor tracks events in a pile and feeds them to a processor.
//
// Events enter through Append, which stores them and marks them pending.
// Forward moves every pending event into the processor queue and runs one
// dispatch pass right away. The processor is created on first use from the
// configuration given to New.
//
// The pile is the single source of truth for event state: the status
// snapshots (CompletedEvents, FailedEvents, ...) are filtered copies taken at
// call time, not live views.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/pile"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/processor"
	"github.com/casualjim/roost/progression"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

type settings struct {
	eventType        reflect.Type
	strict           bool
	processorOptions []processor.Option
	logger           *slog.Logger
}

type Option = opts.Option[settings]

var (
	// StrictEventType makes the executor reject events whose concrete type
	// isn't exactly the declared event type.
	StrictEventType = opts.ForName[settings, bool]("strict")
	WithLogger      = opts.ForName[settings, *slog.Logger]("logger")
)

// EventType declares the event type checked by StrictEventType. It
// defaults to the executor's type parameter.
func EventType[T event.Event]() Option {
	return opts.Type[settings](func(s *settings) error {
		s.eventType = reflect.TypeFor[T]()
		return nil
	})
}

// WithProcessorOptions passes options to the processor created on first use.
func WithProcessorOptions(options ...processor.Option) Option {
	return opts.Type[settings](func(s *settings) error {
		s.processorOptions = append(s.processorOptions, options...)
		return nil
	})
}

// Executor owns a pile of events and the processor that runs them.
type Executor[E event.Event] struct {
	cfg    processor.Config
	s      settings
	events *pile.Pile[E]
	logger *slog.Logger

	mu      sync.Mutex
	pending *progression.Progression
	proc    *processor.Processor
}

// New creates an executor. The processor configuration is validated here
// even though the processor itself is only built on first use.
func New[E event.Event](cfg processor.Config, options ...Option) (*Executor[E], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := settings{eventType: reflect.TypeFor[E]()}
	if err := opts.Apply(&s, options); err != nil {
		return nil, fmt.Errorf("%w: %w", processor.ErrInvalidConfig, err)
	}
	logger := slogx.Named(s.logger, "executor")
	if s.logger != nil {
		s.processorOptions = append([]processor.Option{processor.WithLogger(s.logger)}, s.processorOptions...)
	}

	return &Executor[E]{
		cfg:     cfg,
		s:       s,
		events:  pile.New[E](pile.Name("events"), pile.ItemTypeOf(s.eventType), pile.Strict(s.strict)),
		logger:  logger,
		pending: progression.FromIDs("pending", nil),
	}, nil
}

// EventType returns the declared event type.
func (e *Executor[E]) EventType() reflect.Type { return e.s.eventType }

func (e *Executor[E]) StrictEventType() bool { return e.s.strict }

// Processor returns the executor's processor, creating it on first use.
func (e *Executor[E]) Processor(_ context.Context) (*processor.Processor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processorLocked()
}

func (e *Executor[E]) processorLocked() (*processor.Processor, error) {
	if e.proc != nil {
		return e.proc, nil
	}
	proc, err := processor.New(e.cfg, e.s.processorOptions...)
	if err != nil {
		return nil, err
	}
	e.proc = proc
	return proc, nil
}

// Append stores ev and marks it pending.
func (e *Executor[E]) Append(ctx context.Context, ev E) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.events.Append(ev); err != nil {
		return err
	}
	e.pending.Include(ev.ID())
	e.logger.DebugContext(ctx, "event appended", slogx.EventID(ev.ID()), slog.String("kind", event.KindOf(ev)))
	return nil
}

// Forward queues every pending event and runs one dispatch pass. It returns
// the number of events the pass started.
func (e *Executor[E]) Forward(ctx context.Context) (int, error) {
	e.mu.Lock()
	proc, err := e.processorLocked()
	if err != nil {
		e.mu.Unlock()
		return 0, err
	}
	ids := e.pending.IDs()
	e.pending.Clear()
	e.mu.Unlock()

	for _, id := range ids {
		ev, err := e.events.At(id)
		if err != nil {
			// removed between Append and Forward
			continue
		}
		proc.Enqueue(ctx, ev)
	}
	return proc.Process(ctx), nil
}

// Start creates the processor if needed and clears a previous Stop.
func (e *Executor[E]) Start(ctx context.Context) error {
	proc, err := e.Processor(ctx)
	if err != nil {
		return err
	}
	proc.Start(ctx)
	return nil
}

// Stop halts dispatching. Running events complete normally.
func (e *Executor[E]) Stop() {
	e.mu.Lock()
	proc := e.proc
	e.mu.Unlock()
	if proc != nil {
		proc.Stop()
	}
}

// Execute forwards pending events every refresh period until Stop is called
// or ctx is done.
func (e *Executor[E]) Execute(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	proc, _ := e.Processor(ctx)
	stop := proc.Stopped()

	timer := time.NewTimer(e.cfg.CapacityRefreshTime)
	defer timer.Stop()
	for {
		if _, err := e.Forward(ctx); err != nil {
			return err
		}
		timer.Reset(e.cfg.CapacityRefreshTime)
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timer.C:
		}
	}
}

// Join forwards what is pending, then waits for the queue to drain and the
// running events to finish.
func (e *Executor[E]) Join(ctx context.Context) error {
	if _, err := e.Forward(ctx); err != nil {
		return err
	}
	proc, _ := e.Processor(ctx)
	return proc.Join(ctx)
}

// Events returns the pile holding every event appended so far.
func (e *Executor[E]) Events() *pile.Pile[E] { return e.events }

// Get returns the referenced event.
func (e *Executor[E]) Get(ref any) (E, error) { return e.events.At(ref) }

func (e *Executor[E]) Contains(ref any) bool { return e.events.Contains(ref) }

func (e *Executor[E]) Len() int { return e.events.Len() }

// PendingIDs returns the events appended but not forwarded yet.
func (e *Executor[E]) PendingIDs() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.IDs()
}

func (e *Executor[E]) snapshot(statuses ...event.Status) *pile.Pile[E] {
	return e.events.Filter(event.HasStatus[E](statuses...))
}

// CompletedEvents snapshots the events that completed.
func (e *Executor[E]) CompletedEvents() *pile.Pile[E] { return e.snapshot(event.Completed) }

// PendingEvents snapshots the events that haven't started.
func (e *Executor[E]) PendingEvents() *pile.Pile[E] { return e.snapshot(event.Pending) }

// ProcessingEvents snapshots the events that are running.
func (e *Executor[E]) ProcessingEvents() *pile.Pile[E] { return e.snapshot(event.Processing) }

// FailedEvents snapshots the events that failed.
func (e *Executor[E]) FailedEvents() *pile.Pile[E] { return e.snapshot(event.Failed) }
