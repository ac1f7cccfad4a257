package notify

import (
	"context"
	"time"
)

type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventOrderPaid      EventType = "order_paid"
	EventOrderFailed    EventType = "order_failed"
	EventUserRegistered EventType = "user_registered"
	EventPasswordReset  EventType = "password_reset"
)

// Event is the fire-and-forget side effect of a lifecycle change. A
// provider outage never fails the request that produced it; the worker
// picks events up from the bus on its own schedule.
type Event struct {
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	TotalCents int64     `json:"total_cents,omitempty"`
	Token      string    `json:"token,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher is what the services see. The kafka producer implements it;
// tests use an in-memory fake.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
