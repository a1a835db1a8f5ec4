// Package events fans run progress events out to observers through an
// in-process topic. Publication never blocks the runner; a single
// consumer goroutine dispatches events to the handler in bounded
// batches
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/runner"
)

type (
	// Queue carries run events from a runner to its observers,
	// processing them sequentially in bounded batches
	Queue struct {
		prod        topic.Producer[api.RunEvent]
		cons        topic.Consumer[api.RunEvent]
		handler     Handler
		stop        chan struct{}
		batchSize   int
		wg          sync.WaitGroup
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Handler processes a batch of run events in a single execution
	Handler func([]api.RunEvent) error
)

var (
	ErrHandlerPanicked = errors.New("event handler panicked")

	_ runner.EventSink = (*Queue)(nil)
)

const (
	// DefaultBatchSize bounds how many events one handler call sees
	DefaultBatchSize = 16

	maxRetries = 3
	retryDelay = 100 * time.Millisecond
)

// NewQueue creates a run event queue with the provided batch size
func NewQueue(handler Handler, batchSize int) *Queue {
	queue := caravan.NewTopic[api.RunEvent]()
	return &Queue{
		prod:      queue.NewProducer(),
		cons:      queue.NewConsumer(),
		handler:   handler,
		stop:      make(chan struct{}),
		batchSize: batchSize,
	}
}

// Fanout combines handlers into one that dispatches every batch to
// each of them, joining their errors
func Fanout(handlers ...Handler) Handler {
	return func(batch []api.RunEvent) error {
		var errs []error
		for _, h := range handlers {
			if err := h(batch); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Start begins processing published run events
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case ev, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.handleBatch(q.collectBatch(ev))
				}
			}
		})
	})
}

// Publish adds a run event to the queue
func (q *Queue) Publish(ev api.RunEvent) {
	q.prod.Send() <- ev
}

// Flush waits for published events to complete and stops the queue
func (q *Queue) Flush() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.flush)
}

// Cancel immediately stops the queue without processing remaining
// events
func (q *Queue) Cancel() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue) collectBatch(first api.RunEvent) []api.RunEvent {
	batch := []api.RunEvent{first}
	for len(batch) < q.batchSize {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) flush() {
	for {
		select {
		case ev, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.handleBatch(q.collectBatch(ev))
		default:
			q.close()
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) handleBatch(batch []api.RunEvent) {
	for attempt := range maxRetries {
		err := q.tryHandleBatch(batch)
		if err == nil {
			return
		}
		slog.Error("Run event batch failed",
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries),
			slog.Any("error", err))
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("Run event batch permanently failed",
		slog.Int("batch_size", len(batch)))
}

func (q *Queue) tryHandleBatch(batch []api.RunEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
