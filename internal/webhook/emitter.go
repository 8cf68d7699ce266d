package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkout-service/internal/logcontext"
	"checkout-service/internal/model"
	"checkout-service/internal/payload"
	"github.com/VictoriaMetrics/metrics"
)

const defaultEmitTimeout = 30 * time.Second

var (
	emitStartedCounter        = metrics.GetOrCreateCounter(`webhook_emit_total{result="started"}`)
	emitPublishFailedCounter  = metrics.GetOrCreateCounter(`webhook_emit_total{result="publish_failed"}`)
	emitDeliveryFailedCounter = metrics.GetOrCreateCounter(`webhook_emit_total{result="delivery_failed"}`)
)

// Publisher is an additional sink for lifecycle events, such as a Kafka topic.
type Publisher interface {
	Publish(ctx context.Context, event model.EventName, orderID string, data any) error
}

// Emitter sends lifecycle events without blocking the caller. Every emission
// runs on its own goroutine with a context detached from the request and
// bounded by the emit timeout; outcomes are only logged.
type Emitter struct {
	dispatcher *Dispatcher
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewEmitter(dispatcher *Dispatcher, timeout time.Duration, logger *slog.Logger, publishers ...Publisher) *Emitter {
	if timeout <= 0 {
		timeout = defaultEmitTimeout
	}
	return &Emitter{
		dispatcher: dispatcher,
		publishers: publishers,
		timeout:    timeout,
		logger:     logger,
	}
}

func (e *Emitter) Emit(ctx context.Context, event model.EventName, data payload.Order) {
	emitStartedCounter.Inc()

	ctx = logcontext.AppendCtx(context.WithoutCancel(ctx), slog.String("orderId", data.OrderID))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		for _, p := range e.publishers {
			if err := p.Publish(ctx, event, data.OrderID, data); err != nil {
				e.logger.ErrorContext(ctx, "Error publishing lifecycle event", "event", event, "error", err)
				emitPublishFailedCounter.Inc()
			}
		}

		result := e.dispatcher.Dispatch(ctx, event, data)
		if failed := result.Failed(); failed > 0 {
			emitDeliveryFailedCounter.Inc()
			e.logger.WarnContext(ctx, "Some webhook deliveries failed", "event", event, "failed", failed,
				"total", len(result.Deliveries))
		}
	}()
}

// Wait blocks until every emission started so far has finished.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
