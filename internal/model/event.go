package model

type EventName string

const (
	EventOrderCreated    EventName = "order.created"
	EventOrderApproved   EventName = "order.approved"
	EventOrderCancelled  EventName = "order.cancelled"
	EventCustomerCreated EventName = "customer.created"
)

var knownEvents = map[EventName]struct{}{
	EventOrderCreated:    {},
	EventOrderApproved:   {},
	EventOrderCancelled:  {},
	EventCustomerCreated: {},
}

func IsKnownEvent(name string) bool {
	_, ok := knownEvents[EventName(name)]
	return ok
}

// WebhookSubscription is an external endpoint registered for a set of events.
type WebhookSubscription struct {
	ID       string
	URL      string
	Events   []string
	IsActive bool
}

// Accepts reports whether event should be delivered to the subscription.
func (s WebhookSubscription) Accepts(event EventName) bool {
	if !s.IsActive {
		return false
	}
	for _, e := range s.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}
