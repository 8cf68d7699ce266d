package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"checkout-service/internal/config"
	"checkout-service/internal/logcontext"
	"checkout-service/internal/message"
	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"
)

type Metrics struct {
	ReadErrorCounter      *metrics.Counter
	UnmarshalErrorCounter *metrics.Counter
	ProcessErrorCounter   *metrics.Counter
	SuccessCounter        *metrics.Counter
}

var gatewayCallbackMetrics = Metrics{
	ReadErrorCounter:      metrics.GetOrCreateCounter(`kafka_reader_total{result="read_error",type="gateway_callback"}`),
	UnmarshalErrorCounter: metrics.GetOrCreateCounter(`kafka_reader_total{result="unmarshal_error",type="gateway_callback"}`),
	ProcessErrorCounter:   metrics.GetOrCreateCounter(`kafka_reader_total{result="process_error",type="gateway_callback"}`),
	SuccessCounter:        metrics.GetOrCreateCounter(`kafka_reader_total{result="success",type="gateway_callback"}`),
}

// MessageReader is the subset of *kafka.Reader used by the consumers.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func NewReader(cfg config.Kafka, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(cfg.Broker.URL, ","),
		GroupID: cfg.Reader.GroupID,
		Topic:   topic,
	})
}

// ReadGatewayCallbacks consumes queued gateway notifications until ctx is
// done. It returns immediately; consumption runs on its own goroutine.
func ReadGatewayCallbacks(ctx context.Context, reader MessageReader, handle func(context.Context, message.GatewayCallback) error, logger *slog.Logger) {
	readMessages(ctx, reader, logger, func(ctx context.Context, value []byte) error {
		var cb message.GatewayCallback
		if err := json.Unmarshal(value, &cb); err != nil {
			logger.ErrorContext(ctx, "Error unmarshalling gateway callback", "error", err)
			gatewayCallbackMetrics.UnmarshalErrorCounter.Inc()
			return nil
		}
		ctx = logcontext.AppendCtx(ctx, slog.String("callbackId", cb.ID.String()))
		return handle(ctx, cb)
	}, gatewayCallbackMetrics)
}

func readMessages(ctx context.Context, reader MessageReader, logger *slog.Logger, process func(context.Context, []byte) error, kafkaMetrics Metrics) {
	go func() {
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					logger.InfoContext(ctx, "Stopping Kafka reader")
					return
				}
				logger.ErrorContext(ctx, "Error reading message", "error", err)
				kafkaMetrics.ReadErrorCounter.Inc()
				continue
			}
			logger.DebugContext(ctx, "Received message", "topic", m.Topic, "offset", m.Offset)

			if err := process(ctx, m.Value); err != nil {
				logger.ErrorContext(ctx, "Error processing message", "error", err)
				kafkaMetrics.ProcessErrorCounter.Inc()
				continue
			}
			kafkaMetrics.SuccessCounter.Inc()
		}
	}()
}
