package kafka

import (
	"context"
	"encoding/json"
	"time"

	"checkout-service/internal/message"
	"checkout-service/internal/model"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

var (
	publishSuccessCounter = metrics.GetOrCreateCounter(`kafka_writer_total{result="success",type="order_event"}`)
	publishErrorCounter   = metrics.GetOrCreateCounter(`kafka_writer_total{result="error",type="order_event"}`)
)

// MessageWriter is the subset of *kafka.Writer used by the producers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OrderEventPublisher writes lifecycle events to the order-events topic,
// keyed by order id so events of one order stay in one partition.
type OrderEventPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

func NewOrderEventPublisher(writer MessageWriter) *OrderEventPublisher {
	return &OrderEventPublisher{writer: writer, now: time.Now}
}

func (p *OrderEventPublisher) Publish(ctx context.Context, event model.EventName, orderID string, data any) error {
	value, err := json.Marshal(message.OrderEvent{
		ID:        uuid.New(),
		Event:     event,
		OrderID:   orderID,
		Data:      data,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	}); err != nil {
		publishErrorCounter.Inc()
		return errors.Wrap(err, "write order event")
	}

	publishSuccessCounter.Inc()
	return nil
}
