package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/config"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeoutMs = 10_000
	maxBodyBytes     = 1 << 20

	opCreateCharge    = "create_charge"
	opGetChargeStatus = "get_charge_status"

	// StatusPaid is the only gateway status the checkout acts on.
	StatusPaid = "paid"
)

var hundred = decimal.NewFromInt(100)

// Error is returned when the gateway answers with a non-2xx status.
// Message is the gateway's own failure message.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
}

type Charge struct {
	ID           string
	QRCode       string
	QRCodeBase64 string
	Status       string
	ExpirationAt *time.Time
}

type ChargeStatus struct {
	ID     string
	Status string
	PaidAt *time.Time
}

type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(cfg config.Gateway, logger *slog.Logger) *Client {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		logger:   logger,
	}
}

// ToMinorUnits converts a decimal amount to centavos, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

type createChargeRequest struct {
	Value      int64    `json:"value"`
	WebhookURL string   `json:"webhook_url"`
	SplitRules []string `json:"split_rules"`
}

type chargeResponse struct {
	ID           string `json:"id"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	Status       string `json:"status"`
	ExpirationAt string `json:"expiration_at"`
	PaidAt       string `json:"paid_at"`
}

func (c *Client) CreateCharge(ctx context.Context, amount decimal.Decimal, callbackURL string) (*Charge, error) {
	body, err := json.Marshal(createChargeRequest{
		Value:      ToMinorUnits(amount),
		WebhookURL: callbackURL,
		SplitRules: []string{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	var resp chargeResponse
	if err := c.do(ctx, opCreateCharge, http.MethodPost, "/api/pix/cashIn", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.QRCode == "" {
		requestsCounter(opCreateCharge, "invalid_response").Inc()
		return nil, errors.Errorf("gateway %s: response without id or qr_code", opCreateCharge)
	}

	return &Charge{
		ID:           resp.ID,
		QRCode:       resp.QRCode,
		QRCodeBase64: resp.QRCodeBase64,
		Status:       resp.Status,
		ExpirationAt: parseTime(resp.ExpirationAt),
	}, nil
}

func (c *Client) GetChargeStatus(ctx context.Context, chargeID string) (*ChargeStatus, error) {
	if chargeID == "" {
		return nil, errors.New("chargeID is empty")
	}

	var resp chargeResponse
	if err := c.do(ctx, opGetChargeStatus, http.MethodGet, "/api/transactions/"+url.PathEscape(chargeID), nil, &resp); err != nil {
		return nil, err
	}

	return &ChargeStatus{
		ID:     resp.ID,
		Status: strings.ToLower(resp.Status),
		PaidAt: parseTime(resp.PaidAt),
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	startTime := time.Now()
	defer durationHistogram(op).UpdateDuration(startTime)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		requestsCounter(op, "request_error").Inc()
		return errors.Wrap(err, "http.NewRequestWithContext")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Error calling gateway", "op", op, "error", err)
		requestsCounter(op, "transport_error").Inc()
		return errors.Wrapf(err, "gateway %s", op)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		requestsCounter(op, "transport_error").Inc()
		return errors.Wrapf(err, "gateway %s: read body", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "Gateway returned error response", "op", op, "status", resp.StatusCode,
			"body", string(respBody))
		requestsCounter(op, "error_response").Inc()
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: failureMessage(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		requestsCounter(op, "invalid_response").Inc()
		return errors.Wrapf(err, "gateway %s: decode response", op)
	}

	requestsCounter(op, "success").Inc()
	return nil
}

// failureMessage prefers the gateway's "message" or "error" field and falls
// back to the raw body.
func failureMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return "empty response body"
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05"}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func requestsCounter(op, result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`gateway_requests_total{op=%q,result=%q}`, op, result))
}

func durationHistogram(op string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`gateway_request_duration_seconds{op=%q}`, op))
}
