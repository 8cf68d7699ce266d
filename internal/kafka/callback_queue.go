package kafka

import (
	"context"
	"encoding/json"
	"time"

	"checkout-service/internal/message"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

var (
	enqueueSuccessCounter = metrics.GetOrCreateCounter(`kafka_writer_total{result="success",type="gateway_callback"}`)
	enqueueErrorCounter   = metrics.GetOrCreateCounter(`kafka_writer_total{result="error",type="gateway_callback"}`)
)

// CallbackQueue hands acknowledged gateway notifications to the
// gateway-callbacks topic. ReadGatewayCallbacks consumes them.
type CallbackQueue struct {
	writer MessageWriter
	now    func() time.Time
}

func NewCallbackQueue(writer MessageWriter) *CallbackQueue {
	return &CallbackQueue{writer: writer, now: time.Now}
}

func (q *CallbackQueue) Enqueue(ctx context.Context, contentType string, body []byte) error {
	cb := message.GatewayCallback{
		ID:          uuid.New(),
		ContentType: contentType,
		Body:        body,
		ReceivedAt:  q.now().UTC(),
	}

	value, err := json.Marshal(cb)
	if err != nil {
		return errors.Wrap(err, "marshal gateway callback")
	}

	if err := q.writer.WriteMessages(ctx, kafka.Message{Key: []byte(cb.ID.String()), Value: value}); err != nil {
		enqueueErrorCounter.Inc()
		return errors.Wrap(err, "write gateway callback")
	}

	enqueueSuccessCounter.Inc()
	return nil
}
