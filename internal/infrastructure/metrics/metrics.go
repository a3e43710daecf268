// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksReceived counts verified webhooks by topic.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bargenix_webhooks_received_total",
		Help: "Verified Shopify webhooks received, by topic.",
	}, []string{"topic"})

	// WebhookVerificationFailures counts webhooks rejected before parsing.
	WebhookVerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bargenix_webhook_verification_failures_total",
		Help: "Webhooks rejected due to missing headers or HMAC mismatch.",
	})

	// ChargesActivated counts successful billing activations.
	ChargesActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bargenix_billing_charges_activated_total",
		Help: "Recurring charges activated and committed locally.",
	})

	// BillingFailures counts failed billing attempts by reason.
	BillingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bargenix_billing_failures_total",
		Help: "Billing attempts that ended in an error redirect, by reason.",
	}, []string{"reason"})

	// AnalyticsDropped counts widget events dropped on queue overflow.
	AnalyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bargenix_analytics_events_dropped_total",
		Help: "Analytics events dropped because the tracker queue was full.",
	})
)
