package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"checkout-service/internal/db"
	"checkout-service/internal/gateway"
	"checkout-service/internal/logcontext"
	"checkout-service/internal/model"
)

// CallbackPayload is the part of a gateway notification the checkout uses.
type CallbackPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseCallback reads a gateway notification sent either as JSON or as a
// form. The charge id is lower-cased; the status is kept verbatim.
func ParseCallback(contentType string, body []byte) (CallbackPayload, error) {
	var cb CallbackPayload

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return cb, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		cb.ID = values.Get("id")
		cb.Status = values.Get("status")
	default:
		if err := json.Unmarshal(body, &cb); err != nil {
			return cb, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	cb.ID = strings.ToLower(strings.TrimSpace(cb.ID))
	if cb.ID == "" {
		return cb, invalidInput("callback without charge id")
	}
	return cb, nil
}

// HandleGatewayCallback applies a gateway notification. Unknown charges and
// non-paid statuses are logged and ignored; only store failures are
// returned.
func (s *Service) HandleGatewayCallback(ctx context.Context, cb CallbackPayload) error {
	ctx = logcontext.AppendCtx(ctx, slog.String("chargeId", cb.ID))

	order, err := s.store.SelectByChargeID(ctx, cb.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.WarnContext(ctx, "No order found for gateway callback")
			return nil
		}
		s.logger.ErrorContext(ctx, "Error loading order for gateway callback", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	ctx = logcontext.AppendCtx(ctx, slog.String("orderId", order.OrderID))

	if cb.Status != gateway.StatusPaid {
		s.logger.InfoContext(ctx, "Ignoring gateway callback status", "status", cb.Status)
		return nil
	}

	if order.Status == model.OrderStatusPaid {
		s.logger.InfoContext(ctx, "Order already paid, ignoring gateway callback")
		transitionsCounter(sourceCallback, "already_paid").Inc()
		return nil
	}

	if _, err := s.confirmPaid(ctx, order.OrderID, nil, sourceCallback); err != nil {
		s.logger.ErrorContext(ctx, "Error confirming paid order from callback", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// ProcessRawCallback parses a queued gateway notification and applies it.
func (s *Service) ProcessRawCallback(ctx context.Context, contentType string, body []byte) error {
	cb, err := ParseCallback(contentType, body)
	if err != nil {
		s.logger.WarnContext(ctx, "Discarding unparsable gateway callback", "error", err)
		return err
	}
	return s.HandleGatewayCallback(ctx, cb)
}
