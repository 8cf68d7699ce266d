package kafka

import (
	"strings"
	"time"

	"checkout-service/internal/config"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultBatchSize      = 100
	DefaultBatchTimeoutMs = 100
)

func NewWriter(cfg config.Kafka, topic string) *kafka.Writer {
	batchSize := cfg.Writer.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchTimeoutMs := cfg.Writer.BatchTimeoutMs
	if batchTimeoutMs <= 0 {
		batchTimeoutMs = DefaultBatchTimeoutMs
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Broker.URL, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(batchTimeoutMs) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}
