package payload

import (
	"time"

	"checkout-service/internal/model"
	"github.com/samber/lo"
)

// Envelope is the body POSTed to every webhook subscriber.
type Envelope struct {
	Event     model.EventName `json:"event"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

type OrderBump struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

type Items struct {
	ServiceType   model.ServiceType    `json:"service_type"`
	Quantity      int                  `json:"quantity"`
	UnitPrice     float64              `json:"unit_price"`
	TotalAmount   float64              `json:"total_amount"`
	PlatformID    string               `json:"platform_id,omitempty"`
	SelectedPosts []model.SelectedPost `json:"selected_posts,omitempty"`
	OrderBumps    []OrderBump          `json:"order_bumps,omitempty"`
}

type PixData struct {
	QRCode        string     `json:"qr_code"`
	QRCodeBase64  string     `json:"qr_code_base64,omitempty"`
	CopyPasteCode string     `json:"copy_paste_code"`
	ExpirationAt  *time.Time `json:"expiration_at,omitempty"`
}

type Payment struct {
	Method  model.PaymentMethod `json:"method"`
	PixID   string              `json:"pix_id,omitempty"`
	PixData *PixData            `json:"pix_data,omitempty"`
	PaidAt  *time.Time          `json:"paid_at,omitempty"`
}

// Order is the normalized data block of every order.* event.
type Order struct {
	OrderID   string            `json:"order_id"`
	Status    model.OrderStatus `json:"status"`
	Customer  Customer          `json:"customer"`
	Items     Items             `json:"items"`
	Payment   Payment           `json:"payment"`
	CreatedAt time.Time         `json:"created_at"`
}

func FromOrder(o *model.Order) Order {
	var pixData *PixData
	if o.HasCharge() {
		pixData = &PixData{
			QRCode:        o.Charge.QRCode,
			QRCodeBase64:  o.Charge.QRCodeBase64,
			CopyPasteCode: o.Charge.CopyPasteCode,
			ExpirationAt:  o.Charge.ExpirationAt,
		}
	}

	return Order{
		OrderID: o.OrderID,
		Status:  o.Status,
		Customer: Customer{
			Name:     o.Customer.Name,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Document: o.Customer.Document,
		},
		Items: Items{
			ServiceType:   o.ServiceType,
			Quantity:      o.Quantity,
			UnitPrice:     o.UnitPrice.InexactFloat64(),
			TotalAmount:   o.TotalAmount.InexactFloat64(),
			PlatformID:    o.PlatformID,
			SelectedPosts: o.SelectedPosts,
			OrderBumps: lo.Map(o.OrderBumps, func(b model.OrderBump, _ int) OrderBump {
				return OrderBump{Title: b.Title, Price: b.Price.InexactFloat64(), Discount: b.Discount.InexactFloat64()}
			}),
		},
		Payment: Payment{
			Method:  o.PaymentMethod,
			PixID:   o.Charge.ChargeID,
			PixData: pixData,
			PaidAt:  o.PaidAt,
		},
		CreatedAt: o.CreatedAt,
	}
}
