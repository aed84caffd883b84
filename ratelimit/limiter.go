package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/fogfish/opts"
)

// Metered events carry a token cost the limiter charges on admission.
// Events that aren't metered only spend a request.
type Metered interface {
	RequiredTokens(TokenCalculator) (int, error)
}

// Limiter holds the request and token budgets shared by its users.
type Limiter struct {
	cfg        Config
	calculator TokenCalculator
	logger     *slog.Logger

	mu       sync.Mutex
	requests int
	tokens   int

	runMu  sync.Mutex
	users  int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLimiter creates a limiter with full budgets.
func NewLimiter(cfg Config, options ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := settings{calculator: ShapeCalculator{}}
	if err := opts.Apply(&s, options); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.calculator == nil {
		return nil, fmt.Errorf("%w: token calculator cannot be nil", ErrInvalidConfig)
	}

	return &Limiter{
		cfg:        cfg,
		calculator: s.calculator,
		logger:     slogx.Named(s.logger, "ratelimit"),
		requests:   cfg.LimitRequests,
		tokens:     cfg.LimitTokens,
	}, nil
}

func (l *Limiter) Config() Config { return l.cfg }

func (l *Limiter) unconstrained() bool {
	return l.cfg.Interval == 0 || (l.cfg.LimitRequests == 0 && l.cfg.LimitTokens == 0)
}

// Start runs the replenisher. Calls are counted: the replenisher keeps
// running until Stop was called as many times as Start.
func (l *Limiter) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	l.users++
	if l.users > 1 || l.unconstrained() {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.replenish(ctx, l.done)
}

func (l *Limiter) replenish(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Replenish()
		}
	}
}

// Stop releases one Start and stops the replenisher after the last one.
func (l *Limiter) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.users == 0 {
		return
	}
	l.users--
	if l.users > 0 || l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done = nil, nil
}

// Running reports whether the replenisher is active.
func (l *Limiter) Running() bool {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.cancel != nil
}

// Replenish refills both budgets.
func (l *Limiter) Replenish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = l.cfg.LimitRequests
	l.tokens = l.cfg.LimitTokens
}

// Remaining returns the current request and token budgets.
func (l *Limiter) Remaining() (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests, l.tokens
}

func (l *Limiter) cost(ctx context.Context, ev event.Event) (int, bool) {
	m, ok := ev.(Metered)
	if !ok {
		return 0, true
	}
	tokens, err := m.RequiredTokens(l.calculator)
	if err == nil {
		if tokens < 0 {
			tokens = 0
		}
		return tokens, true
	}

	if l.cfg.UnknownCost == RejectUnknown {
		l.logger.DebugContext(ctx, "denying event of unknown cost", slogx.EventID(ev.ID()), slogx.Error(err))
		return 0, false
	}
	worst := l.cfg.worstCase()
	l.logger.DebugContext(ctx, "charging worst case for event of unknown cost", slogx.EventID(ev.ID()), slog.Int("tokens", worst), slogx.Error(err))
	return worst, true
}

// RequestPermission admits ev when both budgets cover it, debiting them in
// the same critical section. A cost above the token limit is charged as the
// whole limit, so such events wait for a full budget instead of starving.
func (l *Limiter) RequestPermission(ctx context.Context, ev event.Event) bool {
	if l.unconstrained() {
		return true
	}

	tokens, known := l.cost(ctx, ev)
	if !known {
		return false
	}
	if l.cfg.LimitTokens > 0 && tokens > l.cfg.LimitTokens {
		l.logger.WarnContext(ctx, "event needs more tokens than the limit allows",
			slogx.EventID(ev.ID()), slog.Int("tokens", tokens), slog.Int("limit", l.cfg.LimitTokens))
		tokens = l.cfg.LimitTokens
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.LimitRequests > 0 && l.requests < 1 {
		return false
	}
	if l.cfg.LimitTokens > 0 && l.tokens < tokens {
		return false
	}
	if l.cfg.LimitRequests > 0 {
		l.requests--
	}
	if l.cfg.LimitTokens > 0 {
		l.tokens -= tokens
	}
	return true
}
