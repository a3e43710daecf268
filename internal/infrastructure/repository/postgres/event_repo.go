package postgres

import (
	"context"

	"bargenix-billing-core/internal/domain"
)

// EventRepo appends audit records. Both tables are write-once: there are no
// update or delete paths on purpose.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// AppendBillingEvent writes one billing audit row.
func (r *EventRepo) AppendBillingEvent(ctx context.Context, ev *domain.BillingEvent) error {
	const q = `
INSERT INTO billing_events
    (user_id, event_type, charge_id, plan_id, plan_slug, amount, status, details)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`

	var amount *string
	if ev.Amount != nil {
		s := ev.Amount.String()
		amount = &s
	}
	details := ev.Details
	if len(details) == 0 {
		details = []byte(`{}`)
	}
	_, err := r.db.Pool.Exec(ctx, q,
		ev.UserID, ev.EventType, ev.ChargeID, ev.PlanID, nullIfEmpty(ev.PlanSlug), amount, ev.Status, details)
	return err
}

// AppendUninstallEvent writes one uninstall audit row.
func (r *EventRepo) AppendUninstallEvent(ctx context.Context, ev *domain.UninstallEvent) error {
	const q = `
INSERT INTO uninstall_events (store_id, shop_domain, reason, payload)
VALUES ($1, $2, $3, $4)`

	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := r.db.Pool.Exec(ctx, q, ev.StoreID, ev.ShopDomain, ev.Reason, payload)
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
