package db

import (
	"time"

	"github.com/google/uuid"
)

// OrderEntity mirrors one row of the orders table. Money columns travel as
// text so NUMERIC precision survives the round trip.
type OrderEntity struct {
	ID               uuid.UUID
	OrderID          string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    *string
	CustomerDocument *string
	PlatformID       *string
	ServiceType      *string
	Quantity         int
	UnitPrice        string
	TotalAmount      string
	SelectedPosts    []byte
	OrderBumps       []byte
	PaymentMethod    string
	PixID            *string
	QRCode           *string
	QRCodeBase64     *string
	CopyPasteCode    *string
	ExpirationAt     *time.Time
	PaidAt           *time.Time
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type WebhookSubscriptionEntity struct {
	ID        uuid.UUID
	URL       string
	Events    []string
	IsActive  bool
	CreatedAt time.Time
}
