package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bargenix-billing-core/internal/domain"
)

// StoreRepo implements StoreRepository using PostgreSQL.
type StoreRepo struct{ db *DB }

// NewStoreRepo constructs a store repository.
func NewStoreRepo(db *DB) *StoreRepo { return &StoreRepo{db: db} }

const selectStore = `SELECT id, user_id, shop_domain, status, last_status_check, created_at, updated_at FROM stores`

func scanStore(row pgx.Row) (*domain.Store, error) {
	var s domain.Store
	err := row.Scan(&s.ID, &s.UserID, &s.ShopDomain, &s.Status, &s.LastStatusCheck, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateActive activates a shop connection after a successful OAuth callback.
// A reconnecting shop domain is revived and reassigned to the new owner; a
// fresh access token row is appended either way.
func (r *StoreRepo) CreateActive(
	ctx context.Context, userID uuid.UUID, shopDomain, token, scope string,
) (store *domain.Store, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
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

	const sel = `SELECT id FROM stores WHERE shop_domain=$1 FOR UPDATE`
	const upd = `
UPDATE stores SET user_id=$2, status='active', updated_at=now()
WHERE id=$1
RETURNING id, user_id, shop_domain, status, last_status_check, created_at, updated_at`
	const ins = `
INSERT INTO stores (user_id, shop_domain, status) VALUES ($1, $2, 'active')
RETURNING id, user_id, shop_domain, status, last_status_check, created_at, updated_at`
	const insToken = `INSERT INTO access_tokens (store_id, token, scope) VALUES ($1, $2, $3)`

	var storeID uuid.UUID
	scanErr := tx.QueryRow(ctx, sel, shopDomain).Scan(&storeID)
	switch {
	case scanErr == nil:
		if store, err = scanStore(tx.QueryRow(ctx, upd, storeID, userID)); err != nil {
			return nil, err
		}
	case errors.Is(scanErr, pgx.ErrNoRows):
		if store, err = scanStore(tx.QueryRow(ctx, ins, userID, shopDomain)); err != nil {
			return nil, err
		}
	default:
		return nil, scanErr
	}

	if _, err = tx.Exec(ctx, insToken, store.ID, token, scope); err != nil {
		return nil, err
	}
	return store, nil
}

// GetByDomain returns the store for a shop domain, regardless of status.
func (r *StoreRepo) GetByDomain(ctx context.Context, shopDomain string) (*domain.Store, error) {
	const q = selectStore + ` WHERE shop_domain=$1`
	return scanStore(r.db.Pool.QueryRow(ctx, q, shopDomain))
}

// GetActiveByUser returns the user's active store, if any.
func (r *StoreRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Store, error) {
	const q = selectStore + ` WHERE user_id=$1 AND status='active'`
	return scanStore(r.db.Pool.QueryRow(ctx, q, userID))
}

// CurrentToken returns the newest access token for a store.
func (r *StoreRepo) CurrentToken(ctx context.Context, storeID uuid.UUID) (*domain.AccessToken, error) {
	const q = `
SELECT id, store_id, token, scope, created_at
FROM access_tokens WHERE store_id=$1
ORDER BY created_at DESC LIMIT 1`
	var t domain.AccessToken
	err := r.db.Pool.QueryRow(ctx, q, storeID).Scan(&t.ID, &t.StoreID, &t.Token, &t.Scope, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoAccessToken
		}
		return nil, err
	}
	return &t, nil
}

// ListActive returns active stores due for a status check.
func (r *StoreRepo) ListActive(ctx context.Context, checkedBefore time.Time) ([]*domain.Store, error) {
	const q = selectStore + `
 WHERE status='active' AND (last_status_check IS NULL OR last_status_check < $1)
 ORDER BY last_status_check NULLS FIRST`
	rows, err := r.db.Pool.Query(ctx, q, checkedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Store
	for rows.Next() {
		var s domain.Store
		if err = rows.Scan(&s.ID, &s.UserID, &s.ShopDomain, &s.Status, &s.LastStatusCheck, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// TouchStatusCheck records that a status check ran for the store.
func (r *StoreRepo) TouchStatusCheck(ctx context.Context, storeID uuid.UUID, at time.Time) error {
	const q = `UPDATE stores SET last_status_check=$2, updated_at=now() WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, storeID, at)
	return err
}

// Deactivate applies the active -> inactive transition in one transaction:
// store status, token deletion, membership cancellation and both audit rows
// either all land or none do. Already-inactive stores are a no-op.
func (r *StoreRepo) Deactivate(ctx context.Context, storeID uuid.UUID, reason string, payload []byte) (err error) {
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

	const sel = `SELECT user_id, shop_domain, status FROM stores WHERE id=$1 FOR UPDATE`
	var (
		userID     uuid.UUID
		shopDomain string
		status     domain.StoreStatus
	)
	if err = tx.QueryRow(ctx, sel, storeID).Scan(&userID, &shopDomain, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if status != domain.StoreStatusActive {
		// Idempotent: the webhook may arrive after a manual uninstall.
		return nil
	}

	const updStore = `UPDATE stores SET status='inactive', updated_at=now() WHERE id=$1`
	const delTokens = `DELETE FROM access_tokens WHERE store_id=$1`
	const cancelMembership = `
UPDATE memberships SET status='cancelled', end_date=now(), updated_at=now()
WHERE user_id=$1 AND status='active'`
	const insUninstall = `
INSERT INTO uninstall_events (store_id, shop_domain, reason, payload)
VALUES ($1, $2, $3, $4)`
	const insBillingEvent = `
INSERT INTO billing_events (user_id, event_type, status, details)
VALUES ($1, $2, $3, $4)`

	if _, err = tx.Exec(ctx, updStore, storeID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, delTokens, storeID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, cancelMembership, userID); err != nil {
		return err
	}
	if payload == nil {
		payload = []byte(`{}`)
	}
	if _, err = tx.Exec(ctx, insUninstall, storeID, shopDomain, reason, payload); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, insBillingEvent, userID, domain.EventAppUninstalled, "uninstalled", payload); err != nil {
		return err
	}
	return nil
}

// MarkUninstalled applies the terminal uninstalled transition.
func (r *StoreRepo) MarkUninstalled(ctx context.Context, storeID uuid.UUID) (err error) {
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

	const upd = `UPDATE stores SET status='uninstalled', updated_at=now() WHERE id=$1`
	const delTokens = `DELETE FROM access_tokens WHERE store_id=$1`

	tag, err := tx.Exec(ctx, upd, storeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	_, err = tx.Exec(ctx, delTokens, storeID)
	return err
}
