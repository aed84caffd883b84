package ratelimit

import (
	"context"
	"sync/atomic"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/executor"
	"github.com/casualjim/roost/processor"
)

// lease is one user's hold on a shared limiter's replenisher. Acquire and
// release are idempotent, so a user never releases a hold it doesn't own.
type lease struct {
	limiter *Limiter
	held    atomic.Bool
}

func (l *lease) acquire(ctx context.Context) {
	if l.held.CompareAndSwap(false, true) {
		l.limiter.Start(ctx)
	}
}

func (l *lease) release() {
	if l.held.CompareAndSwap(true, false) {
		l.limiter.Stop()
	}
}

// during runs fn with the replenisher held for its duration.
func (l *lease) during(ctx context.Context, fn func() error) error {
	l.limiter.Start(ctx)
	defer l.limiter.Stop()
	return fn()
}

// Processor is a processor admitting events through a shared Limiter. Start,
// Execute and Join keep the limiter's replenisher running while they need it.
type Processor struct {
	*processor.Processor
	lease *lease
}

// NewProcessor creates a processor admitting events through limiter. It
// uses the processor configuration of the limiter.
func NewProcessor(limiter *Limiter, options ...processor.Option) (*Processor, error) {
	options = append(options, processor.WithPermission(limiter.RequestPermission))
	inner, err := processor.New(limiter.Config().Processor, options...)
	if err != nil {
		return nil, err
	}
	return &Processor{Processor: inner, lease: &lease{limiter: limiter}}, nil
}

func (p *Processor) Limiter() *Limiter { return p.lease.limiter }

// Start clears a previous Stop and holds the limiter until Stop.
func (p *Processor) Start(ctx context.Context) {
	p.Processor.Start(ctx)
	p.lease.acquire(ctx)
}

// Stop halts dispatching and releases the hold taken by Start.
func (p *Processor) Stop() {
	p.Processor.Stop()
	p.lease.release()
}

// Execute runs the dispatch loop with the limiter started.
func (p *Processor) Execute(ctx context.Context) error {
	return p.lease.during(ctx, func() error { return p.Processor.Execute(ctx) })
}

// Join drains the queue with the limiter started, so denied events are
// admitted once the budgets refill.
func (p *Processor) Join(ctx context.Context) error {
	return p.lease.during(ctx, func() error { return p.Processor.Join(ctx) })
}

// Executor is an executor whose processor draws from a shared Limiter. Start,
// Execute and Join keep the limiter's replenisher running while they need it.
type Executor[E event.Event] struct {
	*executor.Executor[E]
	lease *lease
}

// NewExecutor creates a rate limited executor on limiter.
func NewExecutor[E event.Event](limiter *Limiter, options ...executor.Option) (*Executor[E], error) {
	options = append(options, executor.WithProcessorOptions(processor.WithPermission(limiter.RequestPermission)))
	inner, err := executor.New[E](limiter.Config().Processor, options...)
	if err != nil {
		return nil, err
	}
	return &Executor[E]{Executor: inner, lease: &lease{limiter: limiter}}, nil
}

func (e *Executor[E]) Limiter() *Limiter { return e.lease.limiter }

// Start starts the processor and holds the limiter until Stop.
func (e *Executor[E]) Start(ctx context.Context) error {
	if err := e.Executor.Start(ctx); err != nil {
		return err
	}
	e.lease.acquire(ctx)
	return nil
}

// Stop stops the processor and releases the hold taken by Start. A running
// Execute releases its own hold when it returns.
func (e *Executor[E]) Stop() {
	e.Executor.Stop()
	e.lease.release()
}

// Execute runs the forwarding loop with the limiter started.
func (e *Executor[E]) Execute(ctx context.Context) error {
	return e.lease.during(ctx, func() error { return e.Executor.Execute(ctx) })
}

// Join forwards pending events and waits for them with the limiter started.
// Forward alone runs a single pass and doesn't wait for a refill.
func (e *Executor[E]) Join(ctx context.Context) error {
	return e.lease.during(ctx, func() error { return e.Executor.Join(ctx) })
}
