package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"checkout-service/internal/logcontext"
	"checkout-service/internal/model"
	"checkout-service/internal/payload"
	"github.com/VictoriaMetrics/metrics"
	"github.com/samber/lo"
)

const defaultParallelism = 16

var errPanic = errors.New("panic during delivery")

var (
	dispatchNoSubscribersCounter = metrics.GetOrCreateCounter(`webhook_dispatch_total{result="no_subscribers"}`)
	dispatchLookupFailedCounter  = metrics.GetOrCreateCounter(`webhook_dispatch_total{result="lookup_failed"}`)
	dispatchFanOutCounter        = metrics.GetOrCreateCounter(`webhook_dispatch_total{result="fan_out"}`)

	deliveriesDeliveredCounter = metrics.GetOrCreateCounter(`webhook_deliveries_total{result="delivered"}`)
	deliveriesFailedCounter    = metrics.GetOrCreateCounter(`webhook_deliveries_total{result="failed"}`)

	deliveryDurationHistogram = metrics.GetOrCreateHistogram(`webhook_delivery_duration_seconds`)
)

// SubscriptionSource lists the active webhook subscriptions.
type SubscriptionSource interface {
	ListActive(ctx context.Context) ([]model.WebhookSubscription, error)
}

// SourceFunc adapts a plain lookup function to SubscriptionSource.
type SourceFunc func(ctx context.Context) ([]model.WebhookSubscription, error)

func (f SourceFunc) ListActive(ctx context.Context) ([]model.WebhookSubscription, error) {
	return f(ctx)
}

type Delivery struct {
	SubscriptionID string
	URL            string
	Err            error
}

type Result struct {
	Event      model.EventName
	Deliveries []Delivery
}

func (r Result) Failed() int {
	return lo.CountBy(r.Deliveries, func(d Delivery) bool { return d.Err != nil })
}

type Dispatcher struct {
	sources []SubscriptionSource
	sender  *Sender
	sem     chan struct{}
	now     func() time.Time
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher that looks subscriptions up in sources,
// in order, using the first one that answers without error.
func NewDispatcher(sender *Sender, parallelism int, logger *slog.Logger, sources ...SubscriptionSource) *Dispatcher {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Dispatcher{
		sources: sources,
		sender:  sender,
		sem:     make(chan struct{}, parallelism),
		now:     time.Now,
		logger:  logger,
	}
}

// Dispatch delivers event to every active subscription that lists it, one
// attempt each, concurrently. Delivery failures are logged and reported in
// the Result; they never stop other deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.EventName, data any) Result {
	ctx = logcontext.AppendCtx(ctx, slog.String("event", string(event)))
	result := Result{Event: event}

	subs, ok := d.lookup(ctx)
	if !ok {
		dispatchLookupFailedCounter.Inc()
		return result
	}

	targets := lo.Filter(subs, func(s model.WebhookSubscription, _ int) bool {
		return s.Accepts(event)
	})
	if len(targets) == 0 {
		d.logger.DebugContext(ctx, "No webhook subscribers for event")
		dispatchNoSubscribersCounter.Inc()
		return result
	}

	body, err := json.Marshal(payload.Envelope{Event: event, Data: data, Timestamp: d.now().UTC()})
	if err != nil {
		d.logger.ErrorContext(ctx, "Error marshalling webhook payload", "error", err)
		return result
	}

	dispatchFanOutCounter.Inc()
	result.Deliveries = make([]Delivery, len(targets))

	var wg sync.WaitGroup
	for i, sub := range targets {
		wg.Add(1)
		d.sem <- struct{}{}
		go func(i int, sub model.WebhookSubscription) {
			defer wg.Done()
			defer func() { <-d.sem }()

			result.Deliveries[i] = d.deliver(ctx, sub, body)
		}(i, sub)
	}
	wg.Wait()

	d.logger.InfoContext(ctx, "Webhook dispatch finished", "subscribers", len(targets), "failed", result.Failed())
	return result
}

func (d *Dispatcher) deliver(ctx context.Context, sub model.WebhookSubscription, body []byte) (delivery Delivery) {
	delivery = Delivery{SubscriptionID: sub.ID, URL: sub.URL}
	ctx = logcontext.AppendCtx(ctx, slog.String("subscriptionId", sub.ID), slog.String("url", sub.URL))

	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Panic while delivering webhook", "panic", r)
			deliveriesFailedCounter.Inc()
			delivery.Err = errPanic
		}
	}()

	startTime := time.Now()
	err := d.sender.Send(ctx, sub.URL, body)
	deliveryDurationHistogram.UpdateDuration(startTime)

	if err != nil {
		d.logger.WarnContext(ctx, "Error delivering webhook", "error", err)
		deliveriesFailedCounter.Inc()
		delivery.Err = err
		return delivery
	}

	deliveriesDeliveredCounter.Inc()
	return delivery
}

func (d *Dispatcher) lookup(ctx context.Context) ([]model.WebhookSubscription, bool) {
	for i, source := range d.sources {
		subs, err := source.ListActive(ctx)
		if err != nil {
			d.logger.WarnContext(ctx, "Error loading webhook subscriptions", "source", i, "error", err)
			continue
		}
		return subs, true
	}
	return nil, false
}
