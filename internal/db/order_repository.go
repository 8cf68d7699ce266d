package db

import (
	"context"
	"encoding/json"
	"time"

	"checkout-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("order not found")

const orderColumns = `id, order_id, customer_name, customer_email, customer_phone, customer_document,
	platform_id, service_type, quantity, unit_price::text, total_amount::text, selected_posts, order_bumps,
	payment_method, pix_id, qr_code, qr_code_base64, copy_paste_code, expiration_at, paid_at, status,
	created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	entity, err := toOrderEntity(order)
	if err != nil {
		return errors.Wrap(err, "toOrderEntity")
	}

	query := `INSERT INTO orders (id, order_id, customer_name, customer_email, customer_phone, customer_document,
	              platform_id, service_type, quantity, unit_price, total_amount, selected_posts, order_bumps,
	              payment_method, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12, $13, $14, $15)
	          RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		entity.ID, entity.OrderID, entity.CustomerName, entity.CustomerEmail, entity.CustomerPhone,
		entity.CustomerDocument, entity.PlatformID, entity.ServiceType, entity.Quantity, entity.UnitPrice,
		entity.TotalAmount, entity.SelectedPosts, entity.OrderBumps, entity.PaymentMethod, entity.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "pool.QueryRow")
	}
	return nil
}

func (r *OrderRepository) SelectByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return r.selectOne(ctx, query, orderID)
}

// SelectByChargeID finds the order that owns a gateway charge. Gateways are
// not consistent about the case of their identifiers, so the match ignores it.
func (r *OrderRepository) SelectByChargeID(ctx context.Context, chargeID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE lower(pix_id) = lower($1) ORDER BY created_at DESC LIMIT 1`
	return r.selectOne(ctx, query, chargeID)
}

func (r *OrderRepository) UpdateCharge(ctx context.Context, orderID string, charge model.PixCharge) error {
	query := `UPDATE orders
	          SET pix_id = $2, qr_code = $3, qr_code_base64 = $4, copy_paste_code = $5, expiration_at = $6,
	              updated_at = now()
	          WHERE order_id = $1`

	tag, err := r.pool.Exec(ctx, query, orderID, charge.ChargeID, charge.QRCode, charge.QRCodeBase64,
		charge.CopyPasteCode, charge.ExpirationAt)
	if err != nil {
		return errors.Wrap(err, "pool.Exec")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid moves a pending order to paid. The update is conditional on the
// current status, so when two callers race only one of them gets
// transitioned == true; the other receives the already paid row.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (*model.Order, bool, error) {
	query := `UPDATE orders
	          SET status = 'paid', paid_at = $2, updated_at = now()
	          WHERE order_id = $1 AND status = 'pending'
	          RETURNING ` + orderColumns

	order, err := r.selectOne(ctx, query, orderID, paidAt)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	current, err := r.SelectByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *OrderRepository) selectOne(ctx context.Context, query string, args ...any) (*model.Order, error) {
	var e OrderEntity
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&e.ID, &e.OrderID, &e.CustomerName, &e.CustomerEmail, &e.CustomerPhone, &e.CustomerDocument,
		&e.PlatformID, &e.ServiceType, &e.Quantity, &e.UnitPrice, &e.TotalAmount, &e.SelectedPosts, &e.OrderBumps,
		&e.PaymentMethod, &e.PixID, &e.QRCode, &e.QRCodeBase64, &e.CopyPasteCode, &e.ExpirationAt, &e.PaidAt,
		&e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "row.Scan")
	}

	order, err := toDomainOrder(&e)
	if err != nil {
		return nil, errors.Wrapf(err, "toDomainOrder[%s]", e.OrderID)
	}
	return order, nil
}

func toOrderEntity(o *model.Order) (*OrderEntity, error) {
	selectedPosts, err := json.Marshal(lo.Ternary(o.SelectedPosts == nil, []model.SelectedPost{}, o.SelectedPosts))
	if err != nil {
		return nil, errors.Wrap(err, "marshal selected posts")
	}
	orderBumps, err := json.Marshal(lo.Ternary(o.OrderBumps == nil, []model.OrderBump{}, o.OrderBumps))
	if err != nil {
		return nil, errors.Wrap(err, "marshal order bumps")
	}

	return &OrderEntity{
		ID:               o.ID,
		OrderID:          o.OrderID,
		CustomerName:     o.Customer.Name,
		CustomerEmail:    o.Customer.Email,
		CustomerPhone:    lo.EmptyableToPtr(o.Customer.Phone),
		CustomerDocument: lo.EmptyableToPtr(o.Customer.Document),
		PlatformID:       lo.EmptyableToPtr(o.PlatformID),
		ServiceType:      lo.EmptyableToPtr(string(o.ServiceType)),
		Quantity:         o.Quantity,
		UnitPrice:        o.UnitPrice.StringFixed(4),
		TotalAmount:      o.TotalAmount.StringFixed(2),
		SelectedPosts:    selectedPosts,
		OrderBumps:       orderBumps,
		PaymentMethod:    string(o.PaymentMethod),
		Status:           string(o.Status),
	}, nil
}

func toDomainOrder(e *OrderEntity) (*model.Order, error) {
	status, err := model.ToOrderStatus(e.Status)
	if err != nil {
		return nil, errors.Wrapf(err, "status[%s]", e.Status)
	}

	unitPrice, err := decimal.NewFromString(e.UnitPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "unit_price[%s]", e.UnitPrice)
	}
	totalAmount, err := decimal.NewFromString(e.TotalAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "total_amount[%s]", e.TotalAmount)
	}

	var selectedPosts []model.SelectedPost
	if len(e.SelectedPosts) > 0 {
		if err := json.Unmarshal(e.SelectedPosts, &selectedPosts); err != nil {
			return nil, errors.Wrap(err, "selected_posts")
		}
	}
	var orderBumps []model.OrderBump
	if len(e.OrderBumps) > 0 {
		if err := json.Unmarshal(e.OrderBumps, &orderBumps); err != nil {
			return nil, errors.Wrap(err, "order_bumps")
		}
	}

	return &model.Order{
		ID:      e.ID,
		OrderID: e.OrderID,
		Customer: model.Customer{
			Name:     e.CustomerName,
			Email:    e.CustomerEmail,
			Phone:    lo.FromPtr(e.CustomerPhone),
			Document: lo.FromPtr(e.CustomerDocument),
		},
		PlatformID:    lo.FromPtr(e.PlatformID),
		ServiceType:   model.ServiceType(lo.FromPtr(e.ServiceType)),
		Quantity:      e.Quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   totalAmount,
		SelectedPosts: nilSliceIfEmpty(selectedPosts),
		OrderBumps:    nilSliceIfEmpty(orderBumps),
		PaymentMethod: model.PaymentMethod(e.PaymentMethod),
		Charge: model.PixCharge{
			ChargeID:      lo.FromPtr(e.PixID),
			QRCode:        lo.FromPtr(e.QRCode),
			QRCodeBase64:  lo.FromPtr(e.QRCodeBase64),
			CopyPasteCode: lo.FromPtr(e.CopyPasteCode),
			ExpirationAt:  e.ExpirationAt,
		},
		PaidAt:    e.PaidAt,
		Status:    status,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func nilSliceIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
