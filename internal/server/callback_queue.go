package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const callbackProcessTimeout = 30 * time.Second

var (
	inProcessSuccessCounter = metrics.GetOrCreateCounter(`gateway_callbacks_total{result="success",queue="in_process"}`)
	inProcessErrorCounter   = metrics.GetOrCreateCounter(`gateway_callbacks_total{result="error",queue="in_process"}`)
)

// InProcessQueue processes callbacks on a goroutine detached from the
// request. It is used when no broker is configured and as the fallback
// behind the broker queue.
type InProcessQueue struct {
	process func(ctx context.Context, contentType string, body []byte) error
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewInProcessQueue(process func(ctx context.Context, contentType string, body []byte) error, logger *slog.Logger) *InProcessQueue {
	return &InProcessQueue{process: process, logger: logger}
}

func (q *InProcessQueue) Enqueue(ctx context.Context, contentType string, body []byte) error {
	ctx = context.WithoutCancel(ctx)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, callbackProcessTimeout)
		defer cancel()

		if err := q.process(ctx, contentType, body); err != nil {
			q.logger.ErrorContext(ctx, "Error processing gateway callback", "error", err)
			inProcessErrorCounter.Inc()
			return
		}
		inProcessSuccessCounter.Inc()
	}()
	return nil
}

// Wait blocks until every queued callback has been processed.
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}

type chainedQueue []CallbackQueue

// ChainQueues tries each queue in order until one accepts the callback.
func ChainQueues(queues ...CallbackQueue) CallbackQueue {
	return chainedQueue(queues)
}

func (c chainedQueue) Enqueue(ctx context.Context, contentType string, body []byte) error {
	var err error
	for _, q := range c {
		if err = q.Enqueue(ctx, contentType, body); err == nil {
			return nil
		}
	}
	return err
}
