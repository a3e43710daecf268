package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

// MembershipRepo implements MembershipRepository using PostgreSQL. The
// at-most-one-active-membership-per-user invariant is enforced twice: by the
// row lock taken in ActivateExclusive and by the partial unique index on
// memberships(user_id) WHERE status='active'.
type MembershipRepo struct{ db *DB }

// NewMembershipRepo constructs a membership repository.
func NewMembershipRepo(db *DB) *MembershipRepo { return &MembershipRepo{db: db} }

const selectMembership = `
SELECT id, user_id, plan_id, status, shopify_charge_id, start_date,
       next_billing_date, trial_end_date, end_date, created_at, updated_at
FROM memberships`

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(
		&m.ID, &m.UserID, &m.PlanID, &m.Status, &m.ShopifyChargeID,
		&m.StartDate, &m.NextBillingDate, &m.TrialEndDate, &m.EndDate,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreatePending inserts a pending membership for a plan selection.
func (r *MembershipRepo) CreatePending(ctx context.Context, userID, planID uuid.UUID) (*domain.Membership, error) {
	const q = `
INSERT INTO memberships (user_id, plan_id, status) VALUES ($1, $2, 'pending')
RETURNING id, user_id, plan_id, status, shopify_charge_id, start_date,
          next_billing_date, trial_end_date, end_date, created_at, updated_at`
	return scanMembership(r.db.Pool.QueryRow(ctx, q, userID, planID))
}

// GetByChargeID returns the membership carrying a Shopify charge id.
func (r *MembershipRepo) GetByChargeID(ctx context.Context, chargeID int64) (*domain.Membership, error) {
	const q = selectMembership + ` WHERE shopify_charge_id=$1`
	return scanMembership(r.db.Pool.QueryRow(ctx, q, chargeID))
}

// GetActiveByUser returns the user's active membership, if any.
func (r *MembershipRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	const q = selectMembership + ` WHERE user_id=$1 AND status='active'`
	return scanMembership(r.db.Pool.QueryRow(ctx, q, userID))
}

// ActivateExclusive commits a billing attempt. Everything happens inside one
// transaction under a lock on the user's membership rows, so the redirect
// path and the webhook path cannot both observe "no active membership" and
// both activate.
func (r *MembershipRepo) ActivateExclusive(ctx context.Context, act ports.MembershipActivation) (m *domain.Membership, err error) {
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

	// Lock every membership row of the user before deciding anything.
	const lock = `
SELECT id, plan_id, status, shopify_charge_id
FROM memberships WHERE user_id=$1
ORDER BY created_at DESC
FOR UPDATE`
	rows, err := tx.Query(ctx, lock, act.UserID)
	if err != nil {
		return nil, err
	}

	type lockedRow struct {
		id       uuid.UUID
		planID   uuid.UUID
		status   domain.MembershipStatus
		chargeID *int64
	}
	var locked []lockedRow
	for rows.Next() {
		var lr lockedRow
		if err = rows.Scan(&lr.id, &lr.planID, &lr.status, &lr.chargeID); err != nil {
			rows.Close()
			return nil, err
		}
		locked = append(locked, lr)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Pick the target: the row already carrying this charge id wins, then
	// the newest pending membership for the plan; otherwise a new row is
	// inserted.
	var target *uuid.UUID
	for i := range locked {
		if locked[i].chargeID != nil && *locked[i].chargeID == act.ChargeID {
			target = &locked[i].id
			break
		}
	}
	if target == nil {
		for i := range locked {
			if locked[i].status == domain.MembershipStatusPending && locked[i].planID == act.Plan.ID {
				target = &locked[i].id
				break
			}
		}
	}

	const cancelOthers = `
UPDATE memberships SET status='cancelled', end_date=$3, updated_at=now()
WHERE user_id=$1 AND status='active' AND id<>$2`
	const promote = `
UPDATE memberships
SET status='active', plan_id=$2, shopify_charge_id=$3, start_date=$4,
    trial_end_date=$5, next_billing_date=$6, end_date=NULL, updated_at=now()
WHERE id=$1
RETURNING id, user_id, plan_id, status, shopify_charge_id, start_date,
          next_billing_date, trial_end_date, end_date, created_at, updated_at`
	const insert = `
INSERT INTO memberships
    (user_id, plan_id, status, shopify_charge_id, start_date, trial_end_date, next_billing_date)
VALUES ($1, $2, 'active', $3, $4, $5, $6)
RETURNING id, user_id, plan_id, status, shopify_charge_id, start_date,
          next_billing_date, trial_end_date, end_date, created_at, updated_at`
	const history = `
INSERT INTO membership_history (membership_id, plan_id, price, shopify_status)
VALUES ($1, $2, $3::numeric, $4)`

	if target != nil {
		if _, err = tx.Exec(ctx, cancelOthers, act.UserID, *target, act.ActivatedAt); err != nil {
			return nil, err
		}
		m, err = scanMembership(tx.QueryRow(ctx, promote,
			*target, act.Plan.ID, act.ChargeID, act.ActivatedAt, act.TrialEndsOn, act.NextBillingOn))
	} else {
		// Cancel all current actives, then insert the new active row.
		if _, err = tx.Exec(ctx, cancelOthers, act.UserID, uuid.Nil, act.ActivatedAt); err != nil {
			return nil, err
		}
		m, err = scanMembership(tx.QueryRow(ctx, insert,
			act.UserID, act.Plan.ID, act.ChargeID, act.ActivatedAt, act.TrialEndsOn, act.NextBillingOn))
	}
	if err != nil {
		// The partial unique index on memberships(user_id) WHERE
		// status='active' backstops the row lock against writers outside
		// this method.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("active membership already committed for user %s: %w", act.UserID, domain.ErrConflict)
		}
		return nil, err
	}

	if _, err = tx.Exec(ctx, history, m.ID, act.Plan.ID, act.Plan.Price.String(), act.ShopifyStatus); err != nil {
		return nil, err
	}
	return m, nil
}

// CloseByChargeID moves the membership carrying a charge to a non-active
// state. end_date is only stamped for cancellation; a frozen membership can
// thaw. Missing membership is a no-op: webhooks may reference charges this
// instance never activated.
func (r *MembershipRepo) CloseByChargeID(ctx context.Context, chargeID int64, status domain.MembershipStatus) error {
	const q = `
UPDATE memberships
SET status=$2,
    end_date=CASE WHEN $2='cancelled' THEN now() ELSE end_date END,
    updated_at=now()
WHERE shopify_charge_id=$1 AND status<>$2`
	_, err := r.db.Pool.Exec(ctx, q, chargeID, status)
	return err
}
