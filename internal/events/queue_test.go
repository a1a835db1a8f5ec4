package events_test

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/internal/events"
	"github.com/opsforge/taskkit/pkg/api"
)

const eventTimeout = 3 * time.Second

func runEvent(step string) api.RunEvent {
	return api.NewRunEvent(api.EventTypeStepStarted, api.StepStartedEvent{
		TaskID:   "task-01",
		Workflow: "test-workflow",
		Step:     step,
	})
}

func TestQueueOrdered(t *testing.T) {
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	q := events.NewQueue(
		func(batch []api.RunEvent) error {
			for _, ev := range batch {
				data, ok := ev.Data.(api.StepStartedEvent)
				if !ok {
					return errors.New("invalid event data")
				}
				mu.Lock()
				order = append(order, data.Step)
				if data.Step == "three" {
					close(done)
				}
				mu.Unlock()
			}
			return nil
		},
		events.DefaultBatchSize,
	)
	q.Start()
	t.Cleanup(q.Flush)

	q.Publish(runEvent("one"))
	q.Publish(runEvent("two"))
	q.Publish(runEvent("three"))

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

func TestQueueFlushDrains(t *testing.T) {
	var mu sync.Mutex
	count := 0

	q := events.NewQueue(
		func(batch []api.RunEvent) error {
			mu.Lock()
			count += len(batch)
			mu.Unlock()
			return nil
		},
		4,
	)
	q.Start()

	for range 10 {
		q.Publish(runEvent("step"))
	}
	q.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestQueueHandlerError(t *testing.T) {
	done := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	q := events.NewQueue(
		func([]api.RunEvent) error {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return errors.New("handler error")
			}
			close(done)
			return nil
		},
		events.DefaultBatchSize,
	)
	q.Start()
	t.Cleanup(q.Flush)

	q.Publish(runEvent("flaky"))

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for events")
	}
}

func TestQueueHandlerPanic(t *testing.T) {
	done := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	q := events.NewQueue(
		func([]api.RunEvent) error {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				panic("test panic")
			}
			close(done)
			return nil
		},
		events.DefaultBatchSize,
	)
	q.Start()
	t.Cleanup(q.Flush)

	q.Publish(runEvent("explosive"))

	select {
	case <-done:
	case <-time.After(eventTimeout):
		assert.Fail(t, "timed out waiting for events")
	}
}

func TestQueueCancel(t *testing.T) {
	handled := make(chan struct{}, 1)

	q := events.NewQueue(
		func([]api.RunEvent) error {
			handled <- struct{}{}
			return nil
		},
		events.DefaultBatchSize,
	)
	q.Start()

	q.Cancel()
	q.Cancel()

	select {
	case <-handled:
		t.Fatal("unexpected event handled after cancel")
	default:
	}
}

func TestFanout(t *testing.T) {
	t.Run("dispatches_to_all", func(t *testing.T) {
		var first, second int
		h := events.Fanout(
			func(batch []api.RunEvent) error {
				first += len(batch)
				return nil
			},
			func(batch []api.RunEvent) error {
				second += len(batch)
				return nil
			},
		)

		require.NoError(t, h([]api.RunEvent{runEvent("a"), runEvent("b")}))
		assert.Equal(t, 2, first)
		assert.Equal(t, 2, second)
	})

	t.Run("joins_errors", func(t *testing.T) {
		boom := errors.New("boom")
		reached := false
		h := events.Fanout(
			func([]api.RunEvent) error {
				return boom
			},
			func([]api.RunEvent) error {
				reached = true
				return nil
			},
		)

		err := h([]api.RunEvent{runEvent("a")})
		assert.ErrorIs(t, err, boom)
		assert.True(t, reached, "later handlers still run after an error")
	})
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	h := events.Trace(logger)
	require.NoError(t, h([]api.RunEvent{
		runEvent("probe"),
		api.NewRunEvent(api.EventTypeRunCompleted, api.RunCompletedEvent{
			TaskID:  "task-01",
			Outcome: api.OutcomeSucceeded,
		}),
	}))

	out := buf.String()
	assert.Contains(t, out, string(api.EventTypeStepStarted))
	assert.Contains(t, out, string(api.EventTypeRunCompleted))
	assert.Contains(t, out, "probe")
}
