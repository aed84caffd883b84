// Package processor dispatches queued events under a capacity limit.
//
// A Processor owns an unbounded FIFO queue. Each call to Process dequeues
// events while capacity remains, asks the permission function about each one
// and starts the granted ones on their own goroutine. Capacity goes back to
// Config.QueueCapacity once Config.CapacityRefreshTime has elapsed since the
// previous refresh, or right away through RefreshCapacity.
//
// Denied events go back to the front of the queue, in their original order,
// and are retried on the next pass for as long as they stay pending. Events
// that are no longer pending when dequeued are dropped.
//
// Invocations are detached: they keep the values of the context passed to
// Process but not its cancellation, and Stop never interrupts them. Their
// outcome is recorded on the event itself.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/fogfish/opts"
)

type aborter interface {
	Abort(error)
}

type Processor struct {
	cfg        Config
	permission PermissionFunc
	observers  []Observer
	logger     *slog.Logger

	// serializes passes so capacity is only spent by one of them at a time
	passMu sync.Mutex

	mu          sync.Mutex
	queue       []event.Event
	capacity    int
	lastRefresh time.Time
	stopped     bool
	stopCh      chan struct{}
	inflight    int
	idle        chan struct{}

	signal    chan struct{}
	executing atomic.Bool
}

// New validates cfg and creates a processor with full capacity.
func New(cfg Config, options ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var s settings
	if err := opts.Apply(&s, options); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	idle := make(chan struct{})
	close(idle)
	return &Processor{
		cfg:         cfg,
		permission:  s.permission,
		observers:   s.observers,
		logger:      slogx.Named(s.logger, "processor"),
		capacity:    cfg.QueueCapacity,
		lastRefresh: time.Now(),
		stopCh:      make(chan struct{}),
		idle:        idle,
		signal:      make(chan struct{}, 1),
	}, nil
}

func (p *Processor) Config() Config { return p.cfg }

func (p *Processor) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Enqueue adds ev at the back of the queue. It never blocks.
func (p *Processor) Enqueue(_ context.Context, ev event.Event) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	p.mu.Unlock()
	p.notify()
}

func (p *Processor) tryDequeue() (event.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	ev := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	if len(p.queue) > 0 {
		p.notify()
	}
	return ev, true
}

// Dequeue removes the event at the front of the queue, waiting for one while
// the queue is empty.
func (p *Processor) Dequeue(ctx context.Context) (event.Event, error) {
	for {
		if ev, ok := p.tryDequeue(); ok {
			return ev, nil
		}
		select {
		case <-p.signal:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
}

func (p *Processor) requeueFront(events []event.Event) {
	p.mu.Lock()
	p.queue = append(events, p.queue...)
	p.mu.Unlock()
	p.notify()
}

// Len returns the number of queued events.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Processor) AvailableCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// RefreshCapacity restores the full capacity immediately.
func (p *Processor) RefreshCapacity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshLocked(time.Now())
}

func (p *Processor) refreshLocked(now time.Time) {
	p.capacity = p.cfg.QueueCapacity
	p.lastRefresh = now
}

func (p *Processor) refreshIfDue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now := time.Now(); now.Sub(p.lastRefresh) >= p.cfg.CapacityRefreshTime {
		p.refreshLocked(now)
	}
}

func (p *Processor) spend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capacity = max(p.capacity-1, 0)
}

// RequestPermission consults the configured permission function. Without
// one every event is allowed.
func (p *Processor) RequestPermission(ctx context.Context, ev event.Event) bool {
	if p.permission == nil {
		return true
	}
	return p.permission(ctx, ev)
}

// Process runs one dispatch pass and returns the number of events started.
// A pass looks at most at the events queued when it began.
func (p *Processor) Process(ctx context.Context) int {
	p.passMu.Lock()
	defer p.passMu.Unlock()

	if p.IsStopped() {
		return 0
	}
	p.refreshIfDue()

	var denied []event.Event
	dispatched := 0
	for range p.Len() {
		if p.AvailableCapacity() <= 0 {
			break
		}
		ev, ok := p.tryDequeue()
		if !ok {
			break
		}
		if ev.Status() != event.Pending {
			p.logger.DebugContext(ctx, "dropping event that is no longer pending", slogx.EventID(ev.ID()), slogx.Stringer("status", ev.Status()))
			continue
		}
		if !p.RequestPermission(ctx, ev) {
			denied = append(denied, ev)
			continue
		}
		if !ev.Begin() {
			continue
		}
		p.spend()
		p.dispatch(ctx, ev)
		dispatched++
	}

	if len(denied) > 0 {
		p.logger.DebugContext(ctx, "requeueing denied events", slog.Int("count", len(denied)))
		p.requeueFront(denied)
	}
	return dispatched
}

func (p *Processor) track(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight == 0 && delta > 0 {
		p.idle = make(chan struct{})
	}
	p.inflight += delta
	if p.inflight == 0 {
		close(p.idle)
	}
}

func (p *Processor) dispatch(ctx context.Context, ev event.Event) {
	p.track(1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer p.track(-1)
		p.invoke(ctx, ev)
		p.observe(ctx, ev)
	}()
}

func (p *Processor) invoke(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event %s panicked: %v", ev.ID(), r)
			p.logger.ErrorContext(ctx, "event invocation panicked", slogx.EventID(ev.ID()), slogx.Error(err))
			if a, ok := ev.(aborter); ok {
				a.Abort(err)
			}
		}
	}()
	ev.Invoke(ctx)
}

func (p *Processor) observe(ctx context.Context, ev event.Event) {
	if !ev.Status().IsTerminal() {
		return
	}
	for _, o := range p.observers {
		o.Observe(ctx, ev)
	}
}

// Start clears a previous Stop.
func (p *Processor) Start(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.stopped = false
		p.stopCh = make(chan struct{})
	}
}

// Stop halts further dispatching. Running invocations are not affected.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
}

// Stopped returns a channel closed by the next Stop.
func (p *Processor) Stopped() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCh
}

func (p *Processor) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// ExecutionMode reports whether Execute is running.
func (p *Processor) ExecutionMode() bool { return p.executing.Load() }

// Execute runs Process every CapacityRefreshTime until Stop is called or ctx
// is done. It returns nil after Stop and the context's cause otherwise.
func (p *Processor) Execute(ctx context.Context) error {
	if !p.executing.CompareAndSwap(false, true) {
		return fmt.Errorf("processor is already executing")
	}
	defer p.executing.Store(false)

	p.Start(ctx)
	stop := p.Stopped()

	timer := time.NewTimer(p.cfg.CapacityRefreshTime)
	defer timer.Stop()
	for {
		p.Process(ctx)

		timer.Reset(p.cfg.CapacityRefreshTime)
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timer.C:
		}
	}
}

// Join drains the queue and waits for every running invocation. Draining
// gives up once the processor is stopped; events that keep being denied keep
// Join waiting until ctx is done.
func (p *Processor) Join(ctx context.Context) error {
	for p.Len() > 0 && !p.IsStopped() {
		if p.Process(ctx) > 0 {
			continue
		}
		if err := p.sleep(ctx, p.untilRefresh()); err != nil {
			return err
		}
	}

	for {
		p.mu.Lock()
		if p.inflight == 0 {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

func (p *Processor) untilRefresh() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity > 0 {
		// capacity left but nothing was granted: poll at a tenth of the period
		return max(p.cfg.CapacityRefreshTime/10, time.Millisecond)
	}
	return max(time.Until(p.lastRefresh.Add(p.cfg.CapacityRefreshTime)), time.Millisecond)
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
