package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeoutMs = 10_000
	userAgent        = "checkout-service-webhooks/1.0"
)

type Sender struct {
	client *http.Client
	logger *slog.Logger
}

func NewSender(timeoutMs int, logger *slog.Logger) *Sender {
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}
	return &Sender{
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		logger: logger,
	}
}

func (s *Sender) Send(ctx context.Context, url string, payload []byte) error {
	s.logger.DebugContext(ctx, "Sending webhook", "url", url, "payload", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Webhook response", "url", url, "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("error response: %s", resp.Status)
	}

	return nil
}
