// Package webhook_handlers contains the per-topic processors behind the
// webhook dispatcher.
package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/application"
	"bargenix-billing-core/internal/domain"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	logger zerolog.Logger
	stores *application.StoreService
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, stores *application.StoreService) *AppUninstalledHandler {
	return &AppUninstalledHandler{logger: logger, stores: stores}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var shopData map[string]interface{}
	if err := json.Unmarshal(event.Payload, &shopData); err != nil {
		return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
	}

	shopDomain := event.Shop
	if shopDomain == "" {
		if d, ok := shopData["domain"].(string); ok {
			shopDomain = d
		} else if d, ok := shopData["myshopify_domain"].(string); ok {
			shopDomain = d
		}
	}
	if shopDomain == "" {
		return fmt.Errorf("app uninstalled webhook carries no shop domain")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	return h.stores.DeactivateByDomain(ctx, shopDomain, "app_uninstalled", event.Payload)
}
