package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/model"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func staticSource(subs ...model.WebhookSubscription) SourceFunc {
	return func(context.Context) ([]model.WebhookSubscription, error) {
		return subs, nil
	}
}

func failingSource(err error) SourceFunc {
	return func(context.Context) ([]model.WebhookSubscription, error) {
		return nil, err
	}
}

func newTestDispatcher(sources ...SubscriptionSource) *Dispatcher {
	return NewDispatcher(NewSender(1000, slog.Default()), 4, slog.Default(), sources...)
}

func TestDispatcher_FiltersByEventAndActiveFlag(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer gock.Off()

	gock.New("http://approved.example.com").
		Post("/hook").
		MatchHeader("Content-Type", "application/json").
		Reply(200)

	d := newTestDispatcher(staticSource(
		model.WebhookSubscription{ID: "created-only", URL: "http://created.example.com/hook", Events: []string{"order.created"}, IsActive: true},
		model.WebhookSubscription{ID: "approved", URL: "http://approved.example.com/hook", Events: []string{"order.created", "order.approved"}, IsActive: true},
		model.WebhookSubscription{ID: "inactive", URL: "http://inactive.example.com/hook", Events: []string{"order.created", "order.approved"}, IsActive: false},
	))

	result := d.Dispatch(context.Background(), model.EventOrderApproved, map[string]string{"order_id": "PIX-1-aaaaaaaa"})

	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, "approved", result.Deliveries[0].SubscriptionID)
	assert.NoError(t, result.Deliveries[0].Err)
	assert.Equal(t, 0, result.Failed())
	assert.True(t, gock.IsDone())
}

func TestDispatcher_PartialFailureDoesNotAffectOthers(t *testing.T) {
	defer gock.Off()

	gock.New("http://first.example.com").Post("/hook").Reply(200)
	gock.New("http://broken.example.com").Post("/hook").Reply(500).JSON(map[string]string{"error": "boom"})
	gock.New("http://third.example.com").Post("/hook").Reply(204)

	d := newTestDispatcher(staticSource(
		model.WebhookSubscription{ID: "1", URL: "http://first.example.com/hook", Events: []string{"order.created"}, IsActive: true},
		model.WebhookSubscription{ID: "2", URL: "http://broken.example.com/hook", Events: []string{"order.created"}, IsActive: true},
		model.WebhookSubscription{ID: "3", URL: "http://third.example.com/hook", Events: []string{"order.created"}, IsActive: true},
	))

	result := d.Dispatch(context.Background(), model.EventOrderCreated, map[string]string{})

	require.Len(t, result.Deliveries, 3)
	assert.Equal(t, 1, result.Failed())
	assert.NoError(t, result.Deliveries[0].Err)
	assert.Error(t, result.Deliveries[1].Err)
	assert.NoError(t, result.Deliveries[2].Err)
	assert.True(t, gock.IsDone())
}

func TestDispatcher_FallsBackToNextSource(t *testing.T) {
	defer gock.Off()

	gock.New("http://fallback.example.com").Post("/hook").Reply(200)

	d := newTestDispatcher(
		failingSource(errors.New("function active_webhook_subscriptions() does not exist")),
		staticSource(model.WebhookSubscription{ID: "1", URL: "http://fallback.example.com/hook", Events: []string{"order.created"}, IsActive: true}),
	)

	result := d.Dispatch(context.Background(), model.EventOrderCreated, nil)

	require.Len(t, result.Deliveries, 1)
	assert.NoError(t, result.Deliveries[0].Err)
	assert.True(t, gock.IsDone())
}

func TestDispatcher_NoOpWhenNothingToDeliver(t *testing.T) {
	tests := []struct {
		name    string
		sources []SubscriptionSource
	}{
		{name: "all lookups fail", sources: []SubscriptionSource{failingSource(errors.New("down")), failingSource(errors.New("down"))}},
		{name: "empty list", sources: []SubscriptionSource{staticSource()}},
		{name: "no sources", sources: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestDispatcher(tt.sources...).Dispatch(context.Background(), model.EventOrderCreated, nil)
			assert.Empty(t, result.Deliveries)
			assert.Equal(t, 0, result.Failed())
		})
	}
}

func TestDispatcher_Envelope(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := newTestDispatcher(staticSource(model.WebhookSubscription{ID: "1", URL: server.URL, Events: []string{"order.approved"}, IsActive: true}))
	d.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	result := d.Dispatch(context.Background(), model.EventOrderApproved, map[string]string{"status": "paid"})
	require.Equal(t, 0, result.Failed())

	mu.Lock()
	defer mu.Unlock()

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(received, &envelope))
	assert.Equal(t, "order.approved", envelope["event"])
	assert.Equal(t, map[string]any{"status": "paid"}, envelope["data"])
	assert.Equal(t, "2025-01-01T12:00:00Z", envelope["timestamp"])
}
