package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkout-service/internal/model"
	"checkout-service/internal/order"
	"checkout-service/internal/posts"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type State string

const (
	StatePackageSelection State = "package_selection"
	StateBuyerDetails     State = "buyer_details"
	StateChargeDisplayed  State = "charge_displayed"
	StatePolling          State = "polling"
	StateConfirmed        State = "confirmed"
	StateExternalRedirect State = "external_redirect"
	StateStillPending     State = "still_pending"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollDuration = 30 * time.Minute
)

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrNoRedirectURL     = errors.New("credit card checkout is not available for this package")
)

// API is the part of the checkout HTTP API the wizard drives.
type API interface {
	CreatePix(ctx context.Context, in order.SubmitInput) (*Charge, error)
	GetStatus(ctx context.Context, orderID string) (*Status, error)
}

// Package is a purchasable bundle shown on the package selection step.
type Package struct {
	PlatformID    string
	ServiceType   model.ServiceType
	Quantity      int
	Price         decimal.Decimal
	CreditCardURL string
}

func (p Package) unitPrice() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(int64(p.Quantity))).Round(4)
}

type BuyerDetails struct {
	Name     string              `validate:"required"`
	Email    string              `validate:"required,email"`
	Phone    string              `validate:"omitempty"`
	Document string              `validate:"omitempty,cpf"`
	Method   model.PaymentMethod `validate:"required,oneof=pix credit_card"`
}

// Confirmation is the order summary shown once payment is confirmed.
type Confirmation struct {
	OrderID     string
	Buyer       string
	Email       string
	ServiceType model.ServiceType
	Quantity    int
	TotalAmount decimal.Decimal
	PaidAt      *time.Time
}

type Config struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration
}

// Wizard walks a buyer from package selection to a confirmed payment. It is
// not safe for concurrent use; a checkout session owns one wizard.
type Wizard struct {
	api    API
	cfg    Config
	logger *slog.Logger

	state       State
	pkg         Package
	posts       []model.SelectedPost
	bumps       []model.OrderBump
	buyer       BuyerDetails
	charge      *Charge
	lastStatus  *Status
	redirectURL string
}

var buyerValidator = newBuyerValidator()

func newBuyerValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return model.ValidateCPF(model.OnlyDigits(fl.Field().String()))
	})
	return v
}

func NewWizard(api API, cfg Config, logger *slog.Logger) *Wizard {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollDuration <= 0 {
		cfg.MaxPollDuration = DefaultMaxPollDuration
	}
	return &Wizard{api: api, cfg: cfg, logger: logger, state: StatePackageSelection}
}

func (w *Wizard) State() State { return w.state }

func (w *Wizard) Charge() *Charge { return w.charge }

func (w *Wizard) RedirectURL() string { return w.redirectURL }

// SelectPackage picks the bundle, the posts that receive it and the accepted
// order bumps. It can be repeated until buyer details are submitted.
func (w *Wizard) SelectPackage(pkg Package, selected []posts.Post, bumps []model.OrderBump) error {
	if w.state != StatePackageSelection && w.state != StateBuyerDetails {
		return w.transitionError(StateBuyerDetails)
	}
	if pkg.Quantity <= 0 || !pkg.Price.IsPositive() {
		return errors.New("package must have a positive quantity and price")
	}

	w.pkg = pkg
	w.posts = posts.Normalize(selected, pkg.Quantity)
	w.bumps = bumps
	w.state = StateBuyerDetails
	return nil
}

// Total is the package price plus every bump with its percentage discount.
func (w *Wizard) Total() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	total := lo.Reduce(w.bumps, func(acc decimal.Decimal, b model.OrderBump, _ int) decimal.Decimal {
		off := b.Price.Mul(b.Discount).Div(hundred)
		return acc.Add(b.Price.Sub(off))
	}, w.pkg.Price)
	return total.Round(2)
}

// SubmitDetails validates the buyer and either requests a PIX charge or
// resolves the external credit card URL.
func (w *Wizard) SubmitDetails(ctx context.Context, details BuyerDetails) error {
	if w.state != StateBuyerDetails {
		return w.transitionError(StateChargeDisplayed)
	}
	if err := buyerValidator.Struct(details); err != nil {
		return describeBuyerError(err)
	}
	w.buyer = details

	if details.Method == model.PaymentMethodCreditCard {
		if w.pkg.CreditCardURL == "" {
			return ErrNoRedirectURL
		}
		w.redirectURL = w.pkg.CreditCardURL
		w.state = StateExternalRedirect
		return nil
	}

	charge, err := w.api.CreatePix(ctx, order.SubmitInput{
		CustomerName:     details.Name,
		CustomerEmail:    details.Email,
		CustomerPhone:    details.Phone,
		CustomerDocument: model.OnlyDigits(details.Document),
		ServiceType:      w.pkg.ServiceType,
		Quantity:         w.pkg.Quantity,
		UnitPrice:        w.pkg.unitPrice(),
		TotalAmount:      decimal.NewNullDecimal(w.Total()),
		PlatformID:       w.pkg.PlatformID,
		SelectedPosts:    w.posts,
		OrderBumps:       w.bumps,
	})
	if err != nil {
		return fmt.Errorf("create pix charge: %w", err)
	}

	w.charge = charge
	w.state = StateChargeDisplayed
	return nil
}

// Poll checks the order status every PollInterval until it is paid, ctx is
// done or MaxPollDuration elapses. Status errors are logged and retried on
// the next tick. An order still unpaid at the deadline leaves the wizard in
// still_pending, from where Poll may be called again.
func (w *Wizard) Poll(ctx context.Context) (State, error) {
	if w.state != StateChargeDisplayed && w.state != StateStillPending {
		return w.state, w.transitionError(StatePolling)
	}
	w.state = StatePolling

	deadline := time.NewTimer(w.cfg.MaxPollDuration)
	defer deadline.Stop()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.state = StateStillPending
			return w.state, ctx.Err()
		case <-deadline.C:
			w.logger.InfoContext(ctx, "Payment not confirmed within polling window", "orderId", w.charge.OrderID)
			w.state = StateStillPending
			return w.state, nil
		case <-ticker.C:
			status, err := w.api.GetStatus(ctx, w.charge.OrderID)
			if err != nil {
				w.logger.WarnContext(ctx, "Error checking order status", "orderId", w.charge.OrderID, "error", err)
				continue
			}
			w.lastStatus = status
			if status.Status == model.OrderStatusPaid {
				w.state = StateConfirmed
				return w.state, nil
			}
		}
	}
}

func (w *Wizard) Confirmation() (*Confirmation, error) {
	if w.state != StateConfirmed {
		return nil, fmt.Errorf("%w: no confirmation in state %s", ErrInvalidTransition, w.state)
	}
	return &Confirmation{
		OrderID:     w.charge.OrderID,
		Buyer:       w.buyer.Name,
		Email:       w.buyer.Email,
		ServiceType: w.pkg.ServiceType,
		Quantity:    w.pkg.Quantity,
		TotalAmount: w.lastStatus.TotalAmount,
		PaidAt:      w.lastStatus.PaidAt,
	}, nil
}

func (w *Wizard) transitionError(to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, to)
}

func describeBuyerError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "cpf":
		return errors.New("invalid CPF")
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}
