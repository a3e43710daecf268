package application

import (
	"context"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

// EventLogger writes audit events without ever failing the operation being
// audited. A write failure goes to the operational log and nowhere else.
type EventLogger struct {
	events ports.EventRepository
	logger zerolog.Logger
}

// NewEventLogger creates a fail-soft audit logger.
func NewEventLogger(events ports.EventRepository, logger zerolog.Logger) *EventLogger {
	return &EventLogger{events: events, logger: logger}
}

// Billing appends a billing audit event, swallowing any storage error.
func (l *EventLogger) Billing(ctx context.Context, ev *domain.BillingEvent) {
	if err := l.events.AppendBillingEvent(ctx, ev); err != nil {
		l.logger.Error().Err(err).
			Str("event_type", ev.EventType).
			Str("user_id", ev.UserID.String()).
			Msg("Failed to write billing event")
	}
}

// Uninstall appends an uninstall audit event, swallowing any storage error.
func (l *EventLogger) Uninstall(ctx context.Context, ev *domain.UninstallEvent) {
	if err := l.events.AppendUninstallEvent(ctx, ev); err != nil {
		l.logger.Error().Err(err).
			Str("shop", ev.ShopDomain).
			Msg("Failed to write uninstall event")
	}
}
