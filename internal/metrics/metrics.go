package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	PaymentSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_created_total",
		Help: "Total number of checkout sessions created",
	})

	PaymentSessionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_session_failures_total",
		Help: "Total number of checkout session requests the gateway rejected",
	}, []string{"reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by outcome",
	}, []string{"outcome"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders transitioned to paid",
	})

	RateLimitDenialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_denials_total",
		Help: "Total number of requests denied by the rate limiter",
	})
)

// Webhook outcome label values.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)
