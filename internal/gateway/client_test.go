package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"checkout-service/internal/config"
	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL     = "http://gateway.test"
	callbackURL = "http://checkout.test/api/webhook/pushinpay"
)

func newTestClient() *Client {
	return NewClient(config.Gateway{BaseURL: baseURL + "/", APIToken: "tok", TimeoutMs: 1000}, slog.Default())
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{amount: "19.9", want: 1990},
		{amount: "19.905", want: 1991},
		{amount: "19.904", want: 1990},
		{amount: "100.00", want: 10000},
		{amount: "0.005", want: 1},
		{amount: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestClient_CreateCharge(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		mockResponse func()
		want         *Charge
		wantStatus   int
		wantMessage  string
		wantError    bool
	}{
		{
			name:   "Success",
			amount: "19.9",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					MatchHeader("Authorization", "Bearer tok").
					JSON(map[string]any{"value": 1990, "webhook_url": callbackURL, "split_rules": []any{}}).
					Reply(200).
					JSON(map[string]any{
						"id":             "ABC123",
						"qr_code":        "000201...",
						"qr_code_base64": "data:image/png;base64,iVBOR",
						"status":         "created",
						"expiration_at":  "2025-01-01T00:00:00Z",
					})
			},
			want: &Charge{
				ID:           "ABC123",
				QRCode:       "000201...",
				QRCodeBase64: "data:image/png;base64,iVBOR",
				Status:       "created",
				ExpirationAt: timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			},
		},
		{
			name:   "Half up rounding",
			amount: "19.905",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					JSON(map[string]any{"value": 1991, "webhook_url": callbackURL, "split_rules": []any{}}).
					Reply(201).
					JSON(map[string]any{"id": "x1", "qr_code": "0002"})
			},
			want: &Charge{ID: "x1", QRCode: "0002"},
		},
		{
			name:   "Gateway rejects",
			amount: "0.10",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					Reply(422).
					JSON(map[string]string{"message": "O valor mínimo é 50 centavos"})
			},
			wantStatus:  422,
			wantMessage: "O valor mínimo é 50 centavos",
		},
		{
			name:   "Gateway unavailable with plain body",
			amount: "10",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					Reply(503).
					BodyString("upstream down")
			},
			wantStatus:  503,
			wantMessage: "upstream down",
		},
		{
			name:   "Response without qr code",
			amount: "10",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					Reply(200).
					JSON(map[string]string{"id": "x2"})
			},
			wantError: true,
		},
		{
			name:   "Transport error",
			amount: "10",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/api/pix/cashIn").
					ReplyError(errors.New("connection refused"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			charge, err := newTestClient().CreateCharge(context.Background(), decimal.RequireFromString(tt.amount), callbackURL)

			switch {
			case tt.wantStatus != 0:
				var gwErr *Error
				require.ErrorAs(t, err, &gwErr)
				assert.Equal(t, tt.wantStatus, gwErr.StatusCode)
				assert.Equal(t, tt.wantMessage, gwErr.Message)
				assert.Equal(t, opCreateCharge, gwErr.Op)
			case tt.wantError:
				assert.Error(t, err)
				assert.Nil(t, charge)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, charge)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_GetChargeStatus(t *testing.T) {
	t.Run("Paid", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Get("/api/transactions/abc123").
			MatchHeader("Authorization", "Bearer tok").
			Reply(200).
			JSON(map[string]any{"id": "abc123", "status": "PAID", "paid_at": "2025-01-01 12:30:00"})

		status, err := newTestClient().GetChargeStatus(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, status.Status)
		assert.Equal(t, timePtr(time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC)), status.PaidAt)
		assert.True(t, gock.IsDone())
	})

	t.Run("Not found", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Get("/api/transactions/missing").
			Reply(404).
			JSON(map[string]string{"error": "transaction not found"})

		status, err := newTestClient().GetChargeStatus(context.Background(), "missing")
		assert.Nil(t, status)

		var gwErr *Error
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "transaction not found", gwErr.Message)
		assert.EqualError(t, err, "gateway get_charge_status failed: status 404: transaction not found")
	})

	t.Run("Empty id", func(t *testing.T) {
		_, err := newTestClient().GetChargeStatus(context.Background(), "")
		assert.EqualError(t, err, "chargeID is empty")
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}
