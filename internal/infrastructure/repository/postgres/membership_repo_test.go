package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

var membershipColumns = []string{
	"id", "user_id", "plan_id", "status", "shopify_charge_id", "start_date",
	"next_billing_date", "trial_end_date", "end_date", "created_at", "updated_at",
}

func testPlan() *domain.Plan {
	return &domain.Plan{
		ID:    uuid.New(),
		Slug:  "growth",
		Name:  "Growth",
		Price: decimal.RequireFromString("29.00"),
	}
}

func TestMembershipRepo_GetByChargeID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)

	mock.ExpectQuery(`WHERE shopify_charge_id=\$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByChargeID(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMembershipRepo_ActivateExclusive_PromotesPendingAndCancelsOld(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)
	ctx := context.Background()

	plan := testPlan()
	userID := uuid.New()
	oldID := uuid.New()
	pendingID := uuid.New()
	oldCharge := int64(100)
	now := time.Now()
	chargeID := int64(200)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, plan_id, status, shopify_charge_id\s+FROM memberships WHERE user_id=\$1\s+ORDER BY created_at DESC\s+FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "status", "shopify_charge_id"}).
			AddRow(pendingID, plan.ID, domain.MembershipStatusPending, nil).
			AddRow(oldID, uuid.New(), domain.MembershipStatusActive, &oldCharge))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled', end_date=\$3, updated_at=now\(\)`).
		WithArgs(userID, pendingID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`UPDATE memberships\s+SET status='active', plan_id=\$2, shopify_charge_id=\$3`).
		WithArgs(pendingID, plan.ID, chargeID, now, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(membershipColumns).
			AddRow(pendingID, userID, plan.ID, domain.MembershipStatusActive, &chargeID, &now, nil, nil, nil, now, now))
	mock.ExpectExec(`INSERT INTO membership_history \(membership_id, plan_id, price, shopify_status\)`).
		WithArgs(pendingID, plan.ID, "29.00", "active").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	m, err := r.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: "active",
		ActivatedAt:   now,
	})
	require.NoError(t, err)
	require.Equal(t, pendingID, m.ID)
	require.Equal(t, domain.MembershipStatusActive, m.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepo_ActivateExclusive_ChargeIDMatchWins(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)
	ctx := context.Background()

	plan := testPlan()
	userID := uuid.New()
	matchID := uuid.New()
	chargeID := int64(300)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "status", "shopify_charge_id"}).
			AddRow(uuid.New(), plan.ID, domain.MembershipStatusPending, nil).
			AddRow(matchID, plan.ID, domain.MembershipStatusActive, &chargeID))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled'`).
		WithArgs(userID, matchID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SET status='active'`).
		WithArgs(matchID, plan.ID, chargeID, now, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(membershipColumns).
			AddRow(matchID, userID, plan.ID, domain.MembershipStatusActive, &chargeID, &now, nil, nil, nil, now, now))
	mock.ExpectExec(`INSERT INTO membership_history`).
		WithArgs(matchID, plan.ID, "29.00", "active").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	m, err := r.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: "active",
		ActivatedAt:   now,
	})
	require.NoError(t, err)
	require.Equal(t, matchID, m.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepo_ActivateExclusive_InsertsWhenNoCandidate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)
	ctx := context.Background()

	plan := testPlan()
	userID := uuid.New()
	newID := uuid.New()
	chargeID := int64(400)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "status", "shopify_charge_id"}))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled'`).
		WithArgs(userID, uuid.Nil, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO memberships`).
		WithArgs(userID, plan.ID, chargeID, now, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(membershipColumns).
			AddRow(newID, userID, plan.ID, domain.MembershipStatusActive, &chargeID, &now, nil, nil, nil, now, now))
	mock.ExpectExec(`INSERT INTO membership_history`).
		WithArgs(newID, plan.ID, "29.00", "accepted").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	m, err := r.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: "accepted",
		ActivatedAt:   now,
	})
	require.NoError(t, err)
	require.Equal(t, newID, m.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepo_ActivateExclusive_RollsBackOnHistoryFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)
	ctx := context.Background()

	plan := testPlan()
	userID := uuid.New()
	newID := uuid.New()
	chargeID := int64(500)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "status", "shopify_charge_id"}))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled'`).
		WithArgs(userID, uuid.Nil, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO memberships`).
		WithArgs(userID, plan.ID, chargeID, now, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(membershipColumns).
			AddRow(newID, userID, plan.ID, domain.MembershipStatusActive, &chargeID, &now, nil, nil, nil, now, now))
	mock.ExpectExec(`INSERT INTO membership_history`).
		WithArgs(newID, plan.ID, "29.00", "active").
		WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	_, err := r.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: "active",
		ActivatedAt:   now,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepo_ActivateExclusive_UniqueViolationMapsToConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)
	ctx := context.Background()

	plan := testPlan()
	userID := uuid.New()
	chargeID := int64(550)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "status", "shopify_charge_id"}))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled'`).
		WithArgs(userID, uuid.Nil, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO memberships`).
		WithArgs(userID, plan.ID, chargeID, now, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "memberships_one_active_per_user"})
	mock.ExpectRollback()

	_, err := r.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: "active",
		ActivatedAt:   now,
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepo_CloseByChargeID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMembershipRepo(db)

	mock.ExpectExec(`UPDATE memberships\s+SET status=\$2`).
		WithArgs(int64(600), domain.MembershipStatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, r.CloseByChargeID(context.Background(), 600, domain.MembershipStatusCancelled))

	// Unknown charge id is still a clean no-op.
	mock.ExpectExec(`UPDATE memberships\s+SET status=\$2`).
		WithArgs(int64(601), domain.MembershipStatusFrozen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, r.CloseByChargeID(context.Background(), 601, domain.MembershipStatusFrozen))
}
