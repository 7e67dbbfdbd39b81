package taskgroup_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karyon-go/karyon/pkg/taskgroup"
	"github.com/stretchr/testify/require"
)

// TG4: a task whose future completes before any cancel gets Completed(v).
func TestSpawnCompletedTask(t *testing.T) {
	g := taskgroup.New()
	var got taskgroup.TaskResult[int]
	done := make(chan struct{})

	taskgroup.Spawn(g,
		func(ctx context.Context) int { return 42 },
		func(ctx context.Context, result taskgroup.TaskResult[int]) {
			got = result
			close(done)
		},
	)

	<-done
	v, ok := got.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)
}

// TG3: a task whose future never completes is Cancelled once Cancel runs.
func TestCancelNonCompletingTask(t *testing.T) {
	g := taskgroup.New()
	var got taskgroup.TaskResult[struct{}]
	done := make(chan struct{})

	taskgroup.Spawn(g,
		func(ctx context.Context) struct{} {
			<-ctx.Done()
			return struct{}{}
		},
		func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {
			got = result
			close(done)
		},
	)

	g.Cancel(context.Background())
	<-done
	require.False(t, got.Ok())
}

// TG1 + TG2 + scenario 7: one immediate task and one never-completing task;
// after 50ms, Cancel. First observes Completed(0), second observes
// Cancelled, and Cancel returns within a bounded time with both callbacks
// having already run exactly once.
func TestGroupCancelScenario(t *testing.T) {
	g := taskgroup.New()

	var completedCalls, cancelledCalls atomic.Int32

	taskgroup.Spawn(g,
		func(ctx context.Context) int { return 0 },
		func(ctx context.Context, result taskgroup.TaskResult[int]) {
			v, ok := result.Value()
			require.True(t, ok)
			require.Equal(t, 0, v)
			completedCalls.Add(1)
		},
	)
	taskgroup.Spawn(g,
		func(ctx context.Context) struct{} {
			<-ctx.Done()
			return struct{}{}
		},
		func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {
			require.False(t, result.Ok())
			cancelledCalls.Add(1)
		},
	)

	time.Sleep(50 * time.Millisecond)

	cancelDone := make(chan struct{})
	go func() {
		g.Cancel(context.Background())
		close(cancelDone)
	}()

	select {
	case <-cancelDone:
	case <-time.After(time.Second):
		t.Fatal("Cancel did not return within a bounded time")
	}

	require.EqualValues(t, 1, completedCalls.Load())
	require.EqualValues(t, 1, cancelledCalls.Load())
	require.True(t, g.IsEmpty())
}

// TG2: after Cancel returns, no callback for a task spawned before Cancel
// began is still executing.
func TestCancelReturnsOnlyAfterAllCallbacksDone(t *testing.T) {
	g := taskgroup.New()
	var callbackReturned atomic.Bool

	taskgroup.Spawn(g,
		func(ctx context.Context) struct{} {
			<-ctx.Done()
			return struct{}{}
		},
		func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {
			time.Sleep(30 * time.Millisecond)
			callbackReturned.Store(true)
		},
	)

	g.Cancel(context.Background())
	require.True(t, callbackReturned.Load())
}

func TestCancelIsIdempotent(t *testing.T) {
	g := taskgroup.New()
	taskgroup.Spawn(g,
		func(ctx context.Context) int { return 1 },
		func(ctx context.Context, result taskgroup.TaskResult[int]) {},
	)

	g.Cancel(context.Background())
	require.NotPanics(t, func() { g.Cancel(context.Background()) })
}

// TG5: a callback that spawns into the same group during cancel does not
// deadlock Cancel. The newly spawned task races an already-broadcast stop
// signal and is Cancelled almost immediately; whether the group's drain
// loop happens to observe and await it is unspecified (at-most-once
// draining), but Cancel must still return.
func TestCallbackSpawningDuringCancelDoesNotDeadlock(t *testing.T) {
	g := taskgroup.New()

	taskgroup.Spawn(g,
		func(ctx context.Context) struct{} {
			<-ctx.Done()
			return struct{}{}
		},
		func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {
			taskgroup.Spawn(g,
				func(ctx context.Context) struct{} {
					<-ctx.Done()
					return struct{}{}
				},
				func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {},
			)
		},
	)

	cancelDone := make(chan struct{})
	go func() {
		g.Cancel(context.Background())
		close(cancelDone)
	}()

	select {
	case <-cancelDone:
	case <-time.After(time.Second):
		t.Fatal("Cancel deadlocked on a callback that spawned into the same group")
	}
}

// WithExecutor lets a caller schedule short, non-blocking task bodies on a
// SerialExecutor instead of the default one-goroutine-per-task executor —
// exactly the short-callback use SerialExecutor's own doc describes.
func TestWithExecutorRunsShortTasksOnSerialExecutor(t *testing.T) {
	g := taskgroup.New(taskgroup.WithExecutor(taskgroup.NewSerialExecutor(8)))

	const n = 5
	var order []int
	var mu sync.Mutex
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		i := i
		taskgroup.Spawn(g,
			func(ctx context.Context) int { return i },
			func(ctx context.Context, result taskgroup.TaskResult[int]) {
				v, ok := result.Value()
				require.True(t, ok)
				mu.Lock()
				order = append(order, v)
				mu.Unlock()
				done <- struct{}{}
			},
		)
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task scheduled on SerialExecutor did not complete")
		}
	}
	require.Len(t, order, n)
}

// A task that completes on its own (the common case for a short-lived
// request-handling task, e.g. one spawned per inbound rpcsrv message)
// deregisters its stop-signal waiter instead of leaving it registered
// until the group's eventual Cancel.
func TestCompletedTaskDoesNotLeakStopSignalWaiter(t *testing.T) {
	g := taskgroup.New()

	const n = 50
	for i := 0; i < n; i++ {
		done := make(chan struct{})
		taskgroup.Spawn(g,
			func(ctx context.Context) int { return i },
			func(ctx context.Context, result taskgroup.TaskResult[int]) { close(done) },
		)
		<-done
	}

	require.Equal(t, 0, g.StopSignalWaiters())
}

func TestLenAndIsEmpty(t *testing.T) {
	g := taskgroup.New()
	require.True(t, g.IsEmpty())

	block := make(chan struct{})
	taskgroup.Spawn(g,
		func(ctx context.Context) struct{} {
			<-block
			return struct{}{}
		},
		func(ctx context.Context, result taskgroup.TaskResult[struct{}]) {},
	)

	require.Equal(t, 1, g.Len())
	close(block)
	g.Cancel(context.Background())
	require.True(t, g.IsEmpty())
}
