package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/model"
	"checkout-service/internal/order"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const defaultClientTimeout = 10 * time.Second

// Charge is what the buyer needs to pay: the QR code and its expiration.
type Charge struct {
	OrderID       string     `json:"order_id"`
	QRCode        string     `json:"qr_code"`
	QRCodeBase64  string     `json:"qr_code_base64"`
	CopyPasteCode string     `json:"copy_paste_code"`
	ExpirationAt  *time.Time `json:"expiration_at"`
}

type Status struct {
	OrderID     string            `json:"order_id"`
	Status      model.OrderStatus `json:"status"`
	PaidAt      *time.Time        `json:"paid_at"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

// APIError is a {success:false} answer from the checkout API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkout api: status %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client talks to the checkout HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *Client) CreatePix(ctx context.Context, in order.SubmitInput) (*Charge, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order")
	}

	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/api/pix/create", body, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (c *Client) GetStatus(ctx context.Context, orderID string) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/pix/status/"+url.PathEscape(orderID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "unreadable response"}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	return errors.Wrap(json.Unmarshal(env.Data, out), "decode response data")
}
