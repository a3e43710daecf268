package webhook_handlers

import (
	"context"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/application"
	"bargenix-billing-core/internal/domain"
)

// ChargeUpdateHandler handles recurring and one-time charge update webhooks.
type ChargeUpdateHandler struct {
	logger  zerolog.Logger
	billing *application.BillingService
}

// NewChargeUpdateHandler creates a new charge update webhook handler
func NewChargeUpdateHandler(logger zerolog.Logger, billing *application.BillingService) *ChargeUpdateHandler {
	return &ChargeUpdateHandler{logger: logger, billing: billing}
}

// CanHandle returns true if this handler can process the given topic
func (h *ChargeUpdateHandler) CanHandle(topic string) bool {
	return topic == domain.TopicRecurringChargeUpdate || topic == domain.TopicApplicationCharges
}

// Handle processes a charge update webhook event
func (h *ChargeUpdateHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Msg("Processing charge update webhook event")

	return h.billing.HandleChargeUpdate(ctx, event.Payload)
}
