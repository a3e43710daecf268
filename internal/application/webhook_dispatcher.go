package application

import (
	"context"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/domain"
)

// WebhookHandler processes a single webhook topic family.
type WebhookHandler interface {
	// CanHandle returns true if this handler can process the given topic
	CanHandle(topic string) bool

	// Handle processes a verified webhook event
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to registered handlers.
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates an empty dispatcher.
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler to the dispatch chain.
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch hands the event to the first handler claiming its topic. Unknown
// topics are acknowledged and logged so Shopify does not retry them forever.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	for _, h := range d.handlers {
		if h.CanHandle(event.Topic) {
			return h.Handle(ctx, event)
		}
	}

	d.logger.Warn().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Msg("No handler registered for webhook topic")

	return nil
}
