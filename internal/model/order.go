package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

// remember to add new statuses to the validOrderStatuses map
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:   {},
	OrderStatusPaid:      {},
	OrderStatusExpired:   {},
	OrderStatusCancelled: {},
}

func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid order status")
}

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

type ServiceType string

const (
	ServiceTypeFollowers ServiceType = "followers"
	ServiceTypeLikes     ServiceType = "likes"
	ServiceTypeViews     ServiceType = "views"
)

type Customer struct {
	Name     string
	Email    string
	Phone    string
	Document string
}

// SelectedPost is the platform-independent reference to a post that
// receives part of the ordered quantity.
type SelectedPost struct {
	URL      string `json:"url"`
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// OrderBump is an add-on line item accepted at checkout.
type OrderBump struct {
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

// PixCharge holds the fields copied from the gateway charge onto the order.
type PixCharge struct {
	ChargeID      string
	QRCode        string
	QRCodeBase64  string
	CopyPasteCode string
	ExpirationAt  *time.Time
}

type Order struct {
	ID      uuid.UUID
	OrderID string

	Customer Customer

	PlatformID    string
	ServiceType   ServiceType
	Quantity      int
	UnitPrice     decimal.Decimal
	TotalAmount   decimal.Decimal
	SelectedPosts []SelectedPost
	OrderBumps    []OrderBump

	PaymentMethod PaymentMethod
	Charge        PixCharge
	PaidAt        *time.Time
	Status        OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) HasCharge() bool {
	return o.Charge.ChargeID != ""
}
