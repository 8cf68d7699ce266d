package db

import (
	"context"

	"checkout-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type WebhookRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) Create(ctx context.Context, entity *WebhookSubscriptionEntity) (*WebhookSubscriptionEntity, error) {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	query := `INSERT INTO webhook_subscriptions (id, url, events, is_active)
	          VALUES ($1, $2, $3, $4) RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, entity.ID, entity.URL, entity.Events, entity.IsActive).Scan(&entity.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "pool.QueryRow")
	}
	return entity, nil
}

// ListActivePrivileged reads active subscriptions through the
// active_webhook_subscriptions() function, which runs with the owner's
// rights and works for roles that cannot read the table directly.
func (r *WebhookRepository) ListActivePrivileged(ctx context.Context) ([]model.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, url, events, is_active FROM active_webhook_subscriptions()`)
	if err != nil {
		return nil, errors.Wrap(err, "pool.Query active_webhook_subscriptions")
	}
	return collectSubscriptions(rows)
}

func (r *WebhookRepository) ListActive(ctx context.Context) ([]model.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, url, events, is_active FROM webhook_subscriptions
	                                WHERE is_active = true ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "pool.Query webhook_subscriptions")
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]model.WebhookSubscription, error) {
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WebhookSubscription, error) {
		var (
			id  uuid.UUID
			sub model.WebhookSubscription
		)
		if err := row.Scan(&id, &sub.URL, &sub.Events, &sub.IsActive); err != nil {
			return sub, err
		}
		sub.ID = id.String()
		return sub, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}
	return subs, nil
}
