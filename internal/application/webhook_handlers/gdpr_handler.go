package webhook_handlers

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/application"
	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

// GDPRHandler acknowledges Shopify's mandatory compliance webhooks.
type GDPRHandler struct {
	logger zerolog.Logger
	stores ports.StoreRepository
	events *application.EventLogger
}

// NewGDPRHandler creates a new GDPR compliance webhook handler
func NewGDPRHandler(logger zerolog.Logger, stores ports.StoreRepository, events *application.EventLogger) *GDPRHandler {
	return &GDPRHandler{logger: logger, stores: stores, events: events}
}

// CanHandle returns true if this handler can process the given topic
func (h *GDPRHandler) CanHandle(topic string) bool {
	switch topic {
	case domain.TopicCustomersDataRequest, domain.TopicCustomersRedact, domain.TopicShopRedact:
		return true
	}
	return false
}

// Handle processes a GDPR compliance webhook event. This service stores no
// customer-level data, so the customers/* topics only need an acknowledged
// receipt in the log.
func (h *GDPRHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Msg("Received GDPR compliance webhook")

	if event.Topic != domain.TopicShopRedact {
		return nil
	}

	// TODO: shop/redact currently only records the request. Extend it to
	// purge billing_events and analytics_events rows for the shop once the
	// retention window is agreed with legal.
	store, err := h.stores.GetByDomain(ctx, event.Shop)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	h.events.Uninstall(ctx, &domain.UninstallEvent{
		StoreID:    store.ID,
		ShopDomain: event.Shop,
		Reason:     "shop_redact",
		Payload:    event.Payload,
	})

	return nil
}
