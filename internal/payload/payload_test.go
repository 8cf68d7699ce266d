package payload

import (
	"encoding/json"
	"testing"
	"time"

	"checkout-service/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOrder(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)

	order := &model.Order{
		OrderID:     "PIX-1735725600000-a1b2c3d4",
		Customer:    model.Customer{Name: "Ana", Email: "ana@example.com", Phone: "11999990000"},
		ServiceType: model.ServiceTypeLikes,
		Quantity:    500,
		UnitPrice:   decimal.RequireFromString("0.05"),
		TotalAmount: decimal.RequireFromString("29.90"),
		SelectedPosts: []model.SelectedPost{
			{URL: "https://www.instagram.com/p/A1/", ID: "A1", Quantity: 500},
		},
		OrderBumps: []model.OrderBump{
			{Title: "Views bonus", Price: decimal.RequireFromString("4.90"), Discount: decimal.NewFromInt(10)},
		},
		PaymentMethod: model.PaymentMethodPix,
		Charge: model.PixCharge{
			ChargeID:      "abc123",
			QRCode:        "000201...",
			CopyPasteCode: "000201...",
			ExpirationAt:  &expires,
		},
		Status:    model.OrderStatusPending,
		CreatedAt: created,
	}

	got := FromOrder(order)

	want := Order{
		OrderID:  "PIX-1735725600000-a1b2c3d4",
		Status:   model.OrderStatusPending,
		Customer: Customer{Name: "Ana", Email: "ana@example.com", Phone: "11999990000"},
		Items: Items{
			ServiceType:   model.ServiceTypeLikes,
			Quantity:      500,
			UnitPrice:     0.05,
			TotalAmount:   29.9,
			SelectedPosts: order.SelectedPosts,
			OrderBumps:    []OrderBump{{Title: "Views bonus", Price: 4.9, Discount: 10}},
		},
		Payment: Payment{
			Method:  model.PaymentMethodPix,
			PixID:   "abc123",
			PixData: &PixData{QRCode: "000201...", CopyPasteCode: "000201...", ExpirationAt: &expires},
		},
		CreatedAt: created,
	}

	assert.Empty(t, cmp.Diff(want, got))
}

func TestFromOrder_WithoutChargeHasNoPixData(t *testing.T) {
	got := FromOrder(&model.Order{OrderID: "PIX-1-00000000", PaymentMethod: model.PaymentMethodPix})

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pix_data")
}
