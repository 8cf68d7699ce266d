package db_test

import (
	"context"
	"log"
	"testing"
	"time"

	"checkout-service/internal/db"
	"checkout-service/internal/model"
	"checkout-service/tests/testhelpers"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type WebhookRepositoryTestSuite struct {
	suite.Suite
	pgContainer *testhelpers.PostgresContainer
	pool        *pgxpool.Pool
	sut         *db.WebhookRepository
	ctx         context.Context
}

func TestWebhookRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(WebhookRepositoryTestSuite))
}

func (s *WebhookRepositoryTestSuite) SetupSuite() {
	time.Local = time.UTC

	s.ctx = context.Background()
	pgContainer, err := testhelpers.CreatePostgresContainer(s.ctx)
	if err != nil {
		log.Fatal(err)
	}
	s.pgContainer = pgContainer

	if err := db.RunMigrations(pgContainer.ConnectionString, "../../../migrations"); err != nil {
		log.Fatal(err)
	}

	pool, err := db.GetPool(s.ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatal(err)
	}

	s.pool = pool
	s.sut = db.NewWebhookRepository(pool)
}

func (s *WebhookRepositoryTestSuite) TearDownSuite() {
	s.pool.Close()

	if err := s.pgContainer.Terminate(s.ctx); err != nil {
		log.Fatalf("error terminating postgres container: %s", err)
	}
}

func (s *WebhookRepositoryTestSuite) SetupTest() {
	if _, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE webhook_subscriptions"); err != nil {
		log.Fatalf("error truncating webhook_subscriptions table: %s", err)
	}
}

func (s *WebhookRepositoryTestSuite) createSubscription(active bool, events ...model.EventName) *db.WebhookSubscriptionEntity {
	entity, err := s.sut.Create(s.ctx, &db.WebhookSubscriptionEntity{
		URL:      gofakeit.URL(),
		Events:   lo.Map(events, func(e model.EventName, _ int) string { return string(e) }),
		IsActive: active,
	})
	require.NoError(s.T(), err)
	return entity
}

func (s *WebhookRepositoryTestSuite) TestCreate() {
	t := s.T()

	entity := s.createSubscription(true, model.EventOrderCreated)

	assert.NotEmpty(t, entity.ID)
	assert.False(t, entity.CreatedAt.IsZero())
}

func (s *WebhookRepositoryTestSuite) TestListActive() {
	t := s.T()

	first := s.createSubscription(true, model.EventOrderCreated, model.EventOrderApproved)
	s.createSubscription(false, model.EventOrderCreated)
	second := s.createSubscription(true, model.EventOrderApproved)

	lookups := map[string]func(context.Context) ([]model.WebhookSubscription, error){
		"privileged": s.sut.ListActivePrivileged,
		"direct":     s.sut.ListActive,
	}

	for name, lookup := range lookups {
		t.Run(name, func(t *testing.T) {
			subs, err := lookup(s.ctx)
			require.NoError(t, err)

			require.Len(t, subs, 2)
			assert.Equal(t, first.ID.String(), subs[0].ID)
			assert.Equal(t, first.URL, subs[0].URL)
			assert.Equal(t, []string{"order.created", "order.approved"}, subs[0].Events)
			assert.True(t, subs[0].IsActive)
			assert.Equal(t, second.ID.String(), subs[1].ID)
			assert.True(t, subs[1].Accepts(model.EventOrderApproved))
			assert.False(t, subs[1].Accepts(model.EventOrderCreated))
		})
	}
}

func (s *WebhookRepositoryTestSuite) TestListActive_Empty() {
	subs, err := s.sut.ListActivePrivileged(s.ctx)

	require.NoError(s.T(), err)
	assert.Empty(s.T(), subs)
}
