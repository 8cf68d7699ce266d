package order

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"checkout-service/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SubmitInput is the body of POST /api/pix/create.
type SubmitInput struct {
	CustomerName     string               `json:"customer_name" validate:"required,max=200"`
	CustomerEmail    string               `json:"customer_email" validate:"required,max=200"`
	CustomerPhone    string               `json:"customer_phone" validate:"max=40"`
	CustomerDocument string               `json:"customer_document" validate:"max=20"`
	ServiceType      model.ServiceType    `json:"service_type" validate:"omitempty,oneof=followers likes views"`
	Quantity         int                  `json:"quantity" validate:"gte=0"`
	UnitPrice        decimal.Decimal      `json:"unit_price" validate:"-"`
	TotalAmount      decimal.NullDecimal  `json:"total_amount" validate:"-"`
	PlatformID       string               `json:"platform_id" validate:"max=100"`
	SelectedPosts    []model.SelectedPost `json:"selected_posts" validate:"-"`
	OrderBumps       []model.OrderBump    `json:"order_bumps" validate:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the mandatory fields and the monetary amounts. The tax
// document is checked by the checkout client only.
func (in *SubmitInput) Validate() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)

	if err := validate.Struct(in); err != nil {
		return invalidInput(describeValidationError(err))
	}

	if !in.TotalAmount.Valid {
		return invalidInput("total_amount is required")
	}
	if in.TotalAmount.Decimal.IsNegative() {
		return invalidInput("total_amount must not be negative")
	}
	if in.UnitPrice.IsNegative() {
		return invalidInput("unit_price must not be negative")
	}
	for i, bump := range in.OrderBumps {
		if bump.Price.IsNegative() {
			return invalidInput(fmt.Sprintf("order_bumps[%d].price must not be negative", i))
		}
		if bump.Discount.IsNegative() {
			return invalidInput(fmt.Sprintf("order_bumps[%d].discount must not be negative", i))
		}
	}
	for i, post := range in.SelectedPosts {
		if post.Quantity < 0 {
			return invalidInput(fmt.Sprintf("selected_posts[%d].quantity must not be negative", i))
		}
	}

	return nil
}

func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
