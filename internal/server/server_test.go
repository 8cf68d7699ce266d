package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/model"
	"checkout-service/internal/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubOrders struct {
	submitRes *order.SubmitResult
	submitErr error
	statusRes *order.StatusResult
	statusErr error
	gotInput  order.SubmitInput
	gotID     string
}

func (s *stubOrders) SubmitOrder(_ context.Context, in order.SubmitInput) (*order.SubmitResult, error) {
	s.gotInput = in
	return s.submitRes, s.submitErr
}

func (s *stubOrders) GetOrderStatus(_ context.Context, orderID string) (*order.StatusResult, error) {
	s.gotID = orderID
	return s.statusRes, s.statusErr
}

type recordingQueue struct {
	mu          sync.Mutex
	contentType string
	body        string
	calls       int
	err         error
}

func (q *recordingQueue) Enqueue(_ context.Context, contentType string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	q.contentType = contentType
	q.body = string(body)
	return q.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func doRequest(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestCreatePix(t *testing.T) {
	exp := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	orders := &stubOrders{submitRes: &order.SubmitResult{
		OrderID:       "PIX-1714560000000-deadbeef",
		QRCode:        "000201...",
		QRCodeBase64:  "iVBORw0KGgo=",
		CopyPasteCode: "000201...",
		ExpirationAt:  &exp,
	}}
	h := New(orders, &recordingQueue{}, nil, discardLogger).Handler()

	rec, body := doRequest(t, h, http.MethodPost, "/api/pix/create", "application/json",
		`{"customer_name":"Maria","customer_email":"maria@example.com","total_amount":29.90,"selected_posts":[{"id":"x","url":"u","quantity":1000}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "PIX-1714560000000-deadbeef", data["order_id"])
	assert.Equal(t, "000201...", data["qr_code"])
	assert.Equal(t, "000201...", data["copy_paste_code"])
	assert.Equal(t, "2024-05-01T13:00:00Z", data["expiration_at"])

	assert.Equal(t, "Maria", orders.gotInput.CustomerName)
	assert.True(t, decimal.RequireFromString("29.9").Equal(orders.gotInput.TotalAmount.Decimal))
	require.Len(t, orders.gotInput.SelectedPosts, 1)
}

func TestCreatePix_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"invalid input", `{}`, fmt.Errorf("%w: customer_name is required", order.ErrInvalidInput), http.StatusBadRequest, "invalid input: customer_name is required"},
		{"gateway error", `{}`, fmt.Errorf("%w: %w", order.ErrGateway, &gateway.Error{Op: "create_charge", StatusCode: 422, Message: "value below minimum"}), http.StatusBadGateway, "failed to create PIX charge: value below minimum"},
		{"gateway transport error", `{}`, fmt.Errorf("%w: %w", order.ErrGateway, errors.New("dial tcp")), http.StatusBadGateway, "failed to create PIX charge"},
		{"persistence error", `{}`, fmt.Errorf("%w: %w", order.ErrPersistence, errors.New("connection refused")), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&stubOrders{submitErr: tt.err}, &recordingQueue{}, nil, discardLogger).Handler()

			rec, body := doRequest(t, h, http.MethodPost, "/api/pix/create", "application/json", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestPixStatus(t *testing.T) {
	paidAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	orders := &stubOrders{statusRes: &order.StatusResult{
		OrderID:     "PIX-1-deadbeef",
		Status:      model.OrderStatusPaid,
		PaidAt:      &paidAt,
		TotalAmount: decimal.RequireFromString("29.90"),
	}}
	h := New(orders, &recordingQueue{}, nil, discardLogger).Handler()

	rec, body := doRequest(t, h, http.MethodGet, "/api/pix/status/PIX-1-deadbeef", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PIX-1-deadbeef", orders.gotID)
	data := body["data"].(map[string]any)
	assert.Equal(t, "paid", data["status"])
	assert.Equal(t, "2024-05-01T12:30:00Z", data["paid_at"])
	assert.Equal(t, 29.9, data["total_amount"])
}

func TestPixStatus_NotFound(t *testing.T) {
	h := New(&stubOrders{statusErr: order.ErrNotFound}, &recordingQueue{}, nil, discardLogger).Handler()

	rec, body := doRequest(t, h, http.MethodGet, "/api/pix/status/PIX-404", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order not found", body["error"])
}

func TestGatewayCallback_AcknowledgesBeforeProcessing(t *testing.T) {
	tests := []struct {
		name     string
		queueErr error
	}{
		{"queued", nil},
		{"queue failure still acknowledged", errors.New("broker down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &recordingQueue{err: tt.queueErr}
			h := New(&stubOrders{}, q, nil, discardLogger).Handler()

			rec, body := doRequest(t, h, http.MethodPost, "/api/webhook/pushinpay",
				"application/x-www-form-urlencoded", "id=ABC123&status=paid")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]any{"success": true}, body)
			assert.Equal(t, 1, q.calls)
			assert.Equal(t, "application/x-www-form-urlencoded", q.contentType)
			assert.Equal(t, "id=ABC123&status=paid", q.body)
		})
	}
}

func TestHealth(t *testing.T) {
	h := New(&stubOrders{}, &recordingQueue{}, pingerFunc(func(context.Context) error { return nil }), discardLogger).Handler()
	rec, body := doRequest(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	h = New(&stubOrders{}, &recordingQueue{}, pingerFunc(func(context.Context) error { return errors.New("down") }), discardLogger).Handler()
	rec, body = doRequest(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := New(&stubOrders{}, &recordingQueue{}, nil, discardLogger).Handler()

	req := httptest.NewRequest(http.MethodGet, "/liveness", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestInProcessQueue(t *testing.T) {
	processed := make(chan string, 1)
	q := NewInProcessQueue(func(ctx context.Context, _ string, body []byte) error {
		// The request context is already cancelled by now.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed <- string(body)
		return nil
	}, discardLogger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, "application/json", []byte(`{"id":"abc123"}`)))
	cancel()
	q.Wait()

	select {
	case body := <-processed:
		assert.Equal(t, `{"id":"abc123"}`, body)
	default:
		t.Fatal("callback was not processed")
	}
}

func TestChainQueues_FallsBack(t *testing.T) {
	primary := &recordingQueue{err: errors.New("broker down")}
	fallback := &recordingQueue{}

	err := ChainQueues(primary, fallback).Enqueue(context.Background(), "application/json", []byte("{}"))

	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}
