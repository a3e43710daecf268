package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bargenix-billing-core/internal/analytics"
)

// AnalyticsRepo is the Postgres sink for the widget analytics tracker.
type AnalyticsRepo struct{ db *DB }

// NewAnalyticsRepo constructs an analytics sink.
func NewAnalyticsRepo(db *DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// Flush writes one batch of events in a single transaction. The tracker is
// loss-tolerant, so a failed flush just surfaces the error for logging.
func (r *AnalyticsRepo) Flush(ctx context.Context, events []analytics.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const q = `
INSERT INTO analytics_events (shop_domain, event_type, session_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)`
	for _, ev := range events {
		payload := ev.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		if _, err = tx.Exec(ctx, q, ev.ShopDomain, ev.EventType, ev.SessionID, payload, ev.OccurredAt); err != nil {
			return err
		}
	}
	return nil
}
