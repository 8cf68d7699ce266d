package message

import (
	"time"

	"checkout-service/internal/model"
	"github.com/google/uuid"
)

// OrderEvent is published to the order-events topic for every lifecycle event.
type OrderEvent struct {
	ID        uuid.UUID       `json:"id"`
	Event     model.EventName `json:"event"`
	OrderID   string          `json:"orderId"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// GatewayCallback carries an inbound gateway notification from the HTTP
// handler to the consumer that processes it.
type GatewayCallback struct {
	ID          uuid.UUID `json:"id"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	ReceivedAt  time.Time `json:"receivedAt"`
}
