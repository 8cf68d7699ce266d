package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/db"
	"checkout-service/internal/gateway"
	"checkout-service/internal/logcontext"
	"checkout-service/internal/model"
	"checkout-service/internal/payload"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	submitSuccessCounter       = metrics.GetOrCreateCounter(`orders_submitted_total{result="success"}`)
	submitInvalidCounter       = metrics.GetOrCreateCounter(`orders_submitted_total{result="invalid_input"}`)
	submitPersistenceCounter   = metrics.GetOrCreateCounter(`orders_submitted_total{result="persistence_failure"}`)
	submitGatewayCounter       = metrics.GetOrCreateCounter(`orders_submitted_total{result="gateway_failure"}`)
	chargeUpdateFailedCounter  = metrics.GetOrCreateCounter(`orders_charge_update_failed_total`)
	statusGatewayErrorsCounter = metrics.GetOrCreateCounter(`order_status_checks_total{result="gateway_error"}`)
)

type Store interface {
	Create(ctx context.Context, order *model.Order) error
	SelectByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	SelectByChargeID(ctx context.Context, chargeID string) (*model.Order, error)
	UpdateCharge(ctx context.Context, orderID string, charge model.PixCharge) error
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (*model.Order, bool, error)
}

type Gateway interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal, callbackURL string) (*gateway.Charge, error)
	GetChargeStatus(ctx context.Context, chargeID string) (*gateway.ChargeStatus, error)
}

// Emitter publishes lifecycle events without blocking the caller.
type Emitter interface {
	Emit(ctx context.Context, event model.EventName, data payload.Order)
}

type SubmitResult struct {
	OrderID       string
	QRCode        string
	QRCodeBase64  string
	CopyPasteCode string
	ExpirationAt  *time.Time
}

type StatusResult struct {
	OrderID     string
	Status      model.OrderStatus
	PaidAt      *time.Time
	TotalAmount decimal.Decimal
}

type Service struct {
	store       Store
	gateway     Gateway
	emitter     Emitter
	callbackURL string
	now         func() time.Time
	logger      *slog.Logger
}

func NewService(store Store, gw Gateway, emitter Emitter, callbackURL string, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		gateway:     gw,
		emitter:     emitter,
		callbackURL: callbackURL,
		now:         time.Now,
		logger:      logger,
	}
}

// NewOrderID returns PIX-<unix millis>-<8 hex chars>.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("PIX-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// SubmitOrder creates a pending order, requests its PIX charge and emits
// order.created. The order row is written before the charge is requested; if
// the gateway then fails the row stays pending without charge data.
func (s *Service) SubmitOrder(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := in.Validate(); err != nil {
		submitInvalidCounter.Inc()
		return nil, err
	}

	now := s.now()
	order := &model.Order{
		ID:      uuid.New(),
		OrderID: NewOrderID(now),
		Customer: model.Customer{
			Name:     in.CustomerName,
			Email:    in.CustomerEmail,
			Phone:    in.CustomerPhone,
			Document: model.OnlyDigits(in.CustomerDocument),
		},
		PlatformID:    in.PlatformID,
		ServiceType:   in.ServiceType,
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice.Round(4),
		TotalAmount:   in.TotalAmount.Decimal.Round(2),
		SelectedPosts: in.SelectedPosts,
		OrderBumps:    in.OrderBumps,
		PaymentMethod: model.PaymentMethodPix,
		Status:        model.OrderStatusPending,
		CreatedAt:     now,
	}

	ctx = logcontext.AppendCtx(ctx, slog.String("orderId", order.OrderID))

	if err := s.store.Create(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "Error creating order", "error", err)
		submitPersistenceCounter.Inc()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// The unrounded total goes to the gateway; ToMinorUnits rounds half up.
	charge, err := s.gateway.CreateCharge(ctx, in.TotalAmount.Decimal, s.callbackURL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating PIX charge, order left pending without charge", "error", err)
		submitGatewayCounter.Inc()
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	order.Charge = model.PixCharge{
		ChargeID:      charge.ID,
		QRCode:        charge.QRCode,
		QRCodeBase64:  charge.QRCodeBase64,
		CopyPasteCode: charge.QRCode,
		ExpirationAt:  charge.ExpirationAt,
	}

	// The customer already has the QR data; a failed write is reconciled by
	// support, not by failing the request.
	if err := s.store.UpdateCharge(ctx, order.OrderID, order.Charge); err != nil {
		s.logger.ErrorContext(ctx, "Error saving charge on order", "chargeId", charge.ID, "error", err)
		chargeUpdateFailedCounter.Inc()
	}

	s.emitter.Emit(ctx, model.EventOrderCreated, payload.FromOrder(order))

	s.logger.InfoContext(ctx, "Order created", "chargeId", charge.ID, "totalAmount", order.TotalAmount.StringFixed(2))
	submitSuccessCounter.Inc()

	return &SubmitResult{
		OrderID:       order.OrderID,
		QRCode:        order.Charge.QRCode,
		QRCodeBase64:  order.Charge.QRCodeBase64,
		CopyPasteCode: order.Charge.CopyPasteCode,
		ExpirationAt:  order.Charge.ExpirationAt,
	}, nil
}

// GetOrderStatus returns the order status. A pending order with a charge is
// re-checked against the gateway; gateway failures are swallowed and the
// stored status is returned.
func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	if orderID == "" {
		return nil, ErrNotFound
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("orderId", orderID))

	order, err := s.store.SelectByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Error loading order", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if order.Status == model.OrderStatusPending && order.HasCharge() {
		order = s.refreshFromGateway(ctx, order)
	}

	return &StatusResult{
		OrderID:     order.OrderID,
		Status:      order.Status,
		PaidAt:      order.PaidAt,
		TotalAmount: order.TotalAmount,
	}, nil
}

func (s *Service) refreshFromGateway(ctx context.Context, order *model.Order) *model.Order {
	status, err := s.gateway.GetChargeStatus(ctx, order.Charge.ChargeID)
	if err != nil {
		s.logger.WarnContext(ctx, "Error checking charge status, returning stored status", "error", err)
		statusGatewayErrorsCounter.Inc()
		return order
	}
	if status.Status != gateway.StatusPaid {
		return order
	}

	updated, err := s.confirmPaid(ctx, order.OrderID, status.PaidAt, sourcePoll)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error confirming paid order, next check will retry", "error", err)
		return order
	}
	return updated
}

const (
	sourcePoll     = "poll"
	sourceCallback = "callback"
)

// confirmPaid is shared by the poll and callback paths. MarkPaid only
// transitions a pending order, so order.approved is emitted once no matter
// how many confirmations arrive.
func (s *Service) confirmPaid(ctx context.Context, orderID string, paidAt *time.Time, source string) (*model.Order, error) {
	at := s.now()
	if paidAt != nil {
		at = *paidAt
	}

	order, transitioned, err := s.store.MarkPaid(ctx, orderID, at)
	if err != nil {
		transitionsCounter(source, "error").Inc()
		return nil, err
	}

	if !transitioned {
		s.logger.InfoContext(ctx, "Order no longer pending, skipping transition", "source", source, "status", order.Status)
		transitionsCounter(source, "already_paid").Inc()
		return order, nil
	}

	s.logger.InfoContext(ctx, "Order paid", "source", source)
	transitionsCounter(source, "paid").Inc()
	s.emitter.Emit(ctx, model.EventOrderApproved, payload.FromOrder(order))

	return order, nil
}

func transitionsCounter(source, result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`order_transitions_total{source=%q,result=%q}`, source, result))
}
