package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/roost/element"
	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/processor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	*event.Base
	err error
}

func newTask() *task { return &task{Base: event.NewBase()} }

func (t *task) Invoke(context.Context) {
	if !t.Start() {
		return
	}
	t.Finish("ok", t.err, time.Microsecond)
}

type other struct{ *event.Base }

func (o *other) Invoke(context.Context) {}

var slow = processor.Config{QueueCapacity: 2, CapacityRefreshTime: time.Hour}

func mustExecutor[E event.Event](t *testing.T, cfg processor.Config, options ...Option) *Executor[E] {
	t.Helper()
	ex, err := New[E](cfg, options...)
	require.NoError(t, err)
	return ex
}

func wait(t *testing.T, evs ...event.Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ev := range evs {
		_, err := event.Wait(ctx, ev)
		require.NoError(t, err)
	}
}

func TestAppendForwardComplete(t *testing.T) {
	ctx := context.Background()
	ex := mustExecutor[*task](t, slow)
	ev := newTask()

	require.NoError(t, ex.Append(ctx, ev))
	assert.Equal(t, []uuid.UUID{ev.ID()}, ex.PendingIDs())
	assert.Equal(t, []uuid.UUID{ev.ID()}, ex.PendingEvents().Keys())

	n, err := ex.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, ex.PendingIDs())
	wait(t, ev)

	assert.Equal(t, []uuid.UUID{ev.ID()}, ex.CompletedEvents().Keys())
	assert.Zero(t, ex.PendingEvents().Len())
	assert.Zero(t, ex.FailedEvents().Len())
	assert.Zero(t, ex.ProcessingEvents().Len())

	got, err := ex.Get(ev.ID())
	require.NoError(t, err)
	assert.Same(t, ev, got)
	assert.True(t, ex.Contains(ev))
	assert.Equal(t, 1, ex.Len())
}

func TestFailuresStayOnTheEvent(t *testing.T) {
	ctx := context.Background()
	ex := mustExecutor[*task](t, slow)
	bad, good := newTask(), newTask()
	bad.err = errors.New("nope")

	require.NoError(t, ex.Append(ctx, bad))
	require.NoError(t, ex.Append(ctx, good))
	_, err := ex.Forward(ctx)
	require.NoError(t, err)
	wait(t, bad, good)

	assert.Equal(t, []uuid.UUID{bad.ID()}, ex.FailedEvents().Keys())
	assert.Equal(t, []uuid.UUID{good.ID()}, ex.CompletedEvents().Keys())
	assert.Equal(t, "nope", bad.Execution().Error)
}

func TestAppendRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	ex := mustExecutor[*task](t, slow)
	ev := newTask()
	require.NoError(t, ex.Append(ctx, ev))
	assert.ErrorIs(t, ex.Append(ctx, ev), element.ErrExists)
	assert.Len(t, ex.PendingIDs(), 1)
}

func TestStrictEventType(t *testing.T) {
	ctx := context.Background()

	strict := mustExecutor[event.Event](t, slow, EventType[*task](), StrictEventType(true))
	assert.True(t, strict.StrictEventType())
	require.NoError(t, strict.Append(ctx, newTask()))
	assert.ErrorIs(t, strict.Append(ctx, &other{Base: event.NewBase()}), element.ErrTypeMismatch)
	assert.Equal(t, 1, strict.Len())

	lenient := mustExecutor[event.Event](t, slow)
	assert.False(t, lenient.StrictEventType())
	require.NoError(t, lenient.Append(ctx, newTask()))
	require.NoError(t, lenient.Append(ctx, &other{Base: event.NewBase()}))
	assert.Equal(t, 2, lenient.Len())
}

func TestProcessorIsLazy(t *testing.T) {
	_, err := New[*task](processor.Config{})
	require.ErrorIs(t, err, processor.ErrInvalidConfig)

	ex := mustExecutor[*task](t, slow)
	assert.Nil(t, ex.proc)
	p1, err := ex.Processor(context.Background())
	require.NoError(t, err)
	p2, err := ex.Processor(context.Background())
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, slow, p1.Config())
}

func TestSnapshotsArePointInTime(t *testing.T) {
	ctx := context.Background()
	ex := mustExecutor[*task](t, slow)
	first, second := newTask(), newTask()
	require.NoError(t, ex.Append(ctx, first))
	_, err := ex.Forward(ctx)
	require.NoError(t, err)
	wait(t, first)

	before := ex.CompletedEvents()
	require.NoError(t, ex.Append(ctx, second))
	_, err = ex.Forward(ctx)
	require.NoError(t, err)
	wait(t, second)

	assert.Equal(t, 1, before.Len())
	assert.Equal(t, 2, ex.CompletedEvents().Len())
}

func TestCapacityAcrossRefresh(t *testing.T) {
	ctx := context.Background()
	refresh := 100 * time.Millisecond
	ex := mustExecutor[*task](t, processor.Config{QueueCapacity: 2, CapacityRefreshTime: refresh})
	evs := []*task{newTask(), newTask(), newTask()}
	for _, ev := range evs {
		require.NoError(t, ex.Append(ctx, ev))
	}

	n, err := ex.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	time.Sleep(refresh + 20*time.Millisecond)
	n, err = ex.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wait(t, evs[0], evs[1], evs[2])
	assert.Equal(t, 3, ex.CompletedEvents().Len())
}

func TestExecuteForwardsUntilStopped(t *testing.T) {
	ctx := context.Background()
	ex := mustExecutor[*task](t, processor.Config{QueueCapacity: 4, CapacityRefreshTime: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- ex.Execute(ctx) }()

	var wg sync.WaitGroup
	evs := make([]event.Event, 12)
	for i := range evs {
		ev := newTask()
		evs[i] = ev
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ex.Append(ctx, ev))
		}()
	}
	wg.Wait()
	wait(t, evs...)
	assert.Equal(t, len(evs), ex.CompletedEvents().Len())

	ex.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not stop")
	}
}

func TestJoin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ex := mustExecutor[*task](t, processor.Config{QueueCapacity: 1, CapacityRefreshTime: 10 * time.Millisecond})
	for range 3 {
		require.NoError(t, ex.Append(ctx, newTask()))
	}

	require.NoError(t, ex.Join(ctx))
	assert.Equal(t, 3, ex.CompletedEvents().Len())
}
