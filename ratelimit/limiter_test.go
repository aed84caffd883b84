package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastProcessor = processor.Config{QueueCapacity: 10, CapacityRefreshTime: 10 * time.Millisecond}

func mustLimiter(t *testing.T, cfg Config, options ...Option) *Limiter {
	t.Helper()
	l, err := NewLimiter(cfg, options...)
	require.NoError(t, err)
	return l
}

var noop = InvokerFunc(func(context.Context, string, []byte) (any, error) { return "ok", nil })

func call(t *testing.T, payload any, options ...CallOption) *APICalling {
	t.Helper()
	c, err := NewAPICalling("chat/completions", payload, noop, options...)
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative requests", Config{LimitRequests: -1}},
		{"negative tokens", Config{LimitTokens: -1}},
		{"negative interval", Config{Interval: -time.Second}},
		{"negative worst case", Config{WorstCaseTokens: -1}},
		{"unknown policy", Config{UnknownCost: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewLimiter(Config{}, WithTokenCalculator(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRequestBudget(t *testing.T) {
	ctx := context.Background()
	l := mustLimiter(t, Config{LimitRequests: 3, Interval: time.Hour})
	ev := event.NewBase()

	var approved, denied int
	for range 4 {
		if l.RequestPermission(ctx, ev) {
			approved++
		} else {
			denied++
		}
	}
	assert.Equal(t, 3, approved)
	assert.Equal(t, 1, denied)

	l.Replenish()
	assert.True(t, l.RequestPermission(ctx, ev))
	requests, _ := l.Remaining()
	assert.Equal(t, 2, requests)
}

func TestReplenishedAfterInterval(t *testing.T) {
	ctx := context.Background()
	interval := 100 * time.Millisecond
	l := mustLimiter(t, Config{LimitRequests: 2, Interval: interval})
	l.Start(ctx)
	defer l.Stop()
	require.True(t, l.Running())

	ev := event.NewBase()
	assert.True(t, l.RequestPermission(ctx, ev))
	assert.True(t, l.RequestPermission(ctx, ev))
	assert.False(t, l.RequestPermission(ctx, ev))

	time.Sleep(interval + 30*time.Millisecond)
	assert.True(t, l.RequestPermission(ctx, ev))
}

func TestStartStopAreCounted(t *testing.T) {
	ctx := context.Background()
	l := mustLimiter(t, Config{LimitRequests: 1, Interval: time.Hour})

	l.Start(ctx)
	l.Start(ctx)
	l.Stop()
	assert.True(t, l.Running())
	l.Stop()
	assert.False(t, l.Running())
	l.Stop()
	assert.False(t, l.Running())

	free := mustLimiter(t, Config{LimitRequests: 1})
	free.Start(ctx)
	assert.False(t, free.Running(), "nothing to replenish without an interval")
	free.Stop()
}

func TestTokenBudget(t *testing.T) {
	ctx := context.Background()
	l := mustLimiter(t, Config{LimitTokens: 100, Interval: time.Hour})

	assert.True(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(60))))
	assert.False(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(60))))
	assert.True(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(40))))

	requests, tokens := l.Remaining()
	assert.Zero(t, requests, "requests are unconstrained")
	assert.Zero(t, tokens)

	assert.True(t, l.RequestPermission(ctx, event.NewBase()), "unmetered events cost no tokens")
	assert.True(t, l.RequestPermission(ctx, call(t, nil, RequiresTokens(false))))
}

func TestBothBudgetsMustCover(t *testing.T) {
	ctx := context.Background()
	l := mustLimiter(t, Config{LimitRequests: 5, LimitTokens: 10, Interval: time.Hour})

	assert.True(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(8))))
	assert.False(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(3))))
	requests, tokens := l.Remaining()
	assert.Equal(t, 4, requests, "a denial debits nothing")
	assert.Equal(t, 2, tokens)
}

func TestOversizedCostWaitsForFullBudget(t *testing.T) {
	ctx := context.Background()
	l := mustLimiter(t, Config{LimitTokens: 100, Interval: time.Hour})

	assert.True(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(500))))
	_, tokens := l.Remaining()
	assert.Zero(t, tokens)
	assert.False(t, l.RequestPermission(ctx, call(t, nil, RequiredTokens(500))))
}

func TestUnknownCostPolicies(t *testing.T) {
	ctx := context.Background()
	unknown := func() *APICalling { return call(t, map[string]any{"query": "?"}) }

	t.Run("charge worst case", func(t *testing.T) {
		l := mustLimiter(t, Config{LimitTokens: 100, Interval: time.Hour, WorstCaseTokens: 70})
		assert.True(t, l.RequestPermission(ctx, unknown()))
		_, tokens := l.Remaining()
		assert.Equal(t, 30, tokens)
		assert.False(t, l.RequestPermission(ctx, unknown()))
	})

	t.Run("worst case defaults to the limit", func(t *testing.T) {
		l := mustLimiter(t, Config{LimitTokens: 100, Interval: time.Hour})
		assert.True(t, l.RequestPermission(ctx, unknown()))
		_, tokens := l.Remaining()
		assert.Zero(t, tokens)
	})

	t.Run("reject unknown", func(t *testing.T) {
		l := mustLimiter(t, Config{LimitTokens: 100, Interval: time.Hour, UnknownCost: RejectUnknown})
		assert.False(t, l.RequestPermission(ctx, unknown()))
		_, tokens := l.Remaining()
		assert.Equal(t, 100, tokens)
		assert.True(t, l.RequestPermission(ctx, call(t, map[string]any{"prompt": "abcd"})))
	})
}

func TestUnconstrained(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []Config{
		{LimitRequests: 1},
		{Interval: time.Second},
	} {
		l := mustLimiter(t, cfg)
		for range 5 {
			assert.True(t, l.RequestPermission(ctx, event.NewBase()))
		}
	}
}

func TestCustomCalculator(t *testing.T) {
	ctx := context.Background()
	calc := TokenCalculatorFunc(func(endpoint string, payload []byte) (int, error) { return 7, nil })
	l := mustLimiter(t, Config{LimitTokens: 10, Interval: time.Hour}, WithTokenCalculator(calc))

	assert.True(t, l.RequestPermission(ctx, call(t, nil)))
	_, tokens := l.Remaining()
	assert.Equal(t, 3, tokens)
}
