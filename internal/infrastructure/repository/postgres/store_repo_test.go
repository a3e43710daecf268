package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"bargenix-billing-core/internal/domain"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var storeColumns = []string{"id", "user_id", "shop_domain", "status", "last_status_check", "created_at", "updated_at"}

func TestStoreRepo_CreateActive_NewStore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)
	ctx := context.Background()

	userID := uuid.New()
	storeID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM stores WHERE shop_domain=\$1 FOR UPDATE`).
		WithArgs("acme.myshopify.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO stores \(user_id, shop_domain, status\) VALUES \(\$1, \$2, 'active'\)`).
		WithArgs(userID, "acme.myshopify.com").
		WillReturnRows(pgxmock.NewRows(storeColumns).
			AddRow(storeID, userID, "acme.myshopify.com", domain.StoreStatusActive, nil, now, now))
	mock.ExpectExec(`INSERT INTO access_tokens \(store_id, token, scope\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(storeID, "shpat_abc", "read_products").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store, err := r.CreateActive(ctx, userID, "acme.myshopify.com", "shpat_abc", "read_products")
	require.NoError(t, err)
	require.Equal(t, storeID, store.ID)
	require.Equal(t, domain.StoreStatusActive, store.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_CreateActive_RevivesExisting(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)
	ctx := context.Background()

	newOwner := uuid.New()
	storeID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM stores WHERE shop_domain=\$1 FOR UPDATE`).
		WithArgs("acme.myshopify.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(storeID))
	mock.ExpectQuery(`UPDATE stores SET user_id=\$2, status='active', updated_at=now\(\)`).
		WithArgs(storeID, newOwner).
		WillReturnRows(pgxmock.NewRows(storeColumns).
			AddRow(storeID, newOwner, "acme.myshopify.com", domain.StoreStatusActive, nil, now, now))
	mock.ExpectExec(`INSERT INTO access_tokens`).
		WithArgs(storeID, "shpat_new", "read_orders").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store, err := r.CreateActive(ctx, newOwner, "acme.myshopify.com", "shpat_new", "read_orders")
	require.NoError(t, err)
	require.Equal(t, newOwner, store.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_CreateActive_RollsBackOnTokenFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)
	ctx := context.Background()

	userID := uuid.New()
	storeID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM stores WHERE shop_domain=\$1 FOR UPDATE`).
		WithArgs("acme.myshopify.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO stores`).
		WithArgs(userID, "acme.myshopify.com").
		WillReturnRows(pgxmock.NewRows(storeColumns).
			AddRow(storeID, userID, "acme.myshopify.com", domain.StoreStatusActive, nil, now, now))
	mock.ExpectExec(`INSERT INTO access_tokens`).
		WithArgs(storeID, "shpat_abc", "").
		WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	_, err := r.CreateActive(ctx, userID, "acme.myshopify.com", "shpat_abc", "")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_GetByDomain_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)

	mock.ExpectQuery(`SELECT id, user_id, shop_domain, status, last_status_check, created_at, updated_at FROM stores WHERE shop_domain=\$1`).
		WithArgs("gone.myshopify.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByDomain(context.Background(), "gone.myshopify.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreRepo_CurrentToken_NoToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)
	storeID := uuid.New()

	mock.ExpectQuery(`SELECT id, store_id, token, scope, created_at`).
		WithArgs(storeID).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.CurrentToken(context.Background(), storeID)
	require.ErrorIs(t, err, domain.ErrNoAccessToken)
}

func TestStoreRepo_Deactivate_FullTransition(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)
	ctx := context.Background()

	storeID := uuid.New()
	userID := uuid.New()
	payload := []byte(`{"domain":"acme.myshopify.com"}`)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, shop_domain, status FROM stores WHERE id=\$1 FOR UPDATE`).
		WithArgs(storeID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "shop_domain", "status"}).
			AddRow(userID, "acme.myshopify.com", domain.StoreStatusActive))
	mock.ExpectExec(`UPDATE stores SET status='inactive', updated_at=now\(\) WHERE id=\$1`).
		WithArgs(storeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM access_tokens WHERE store_id=\$1`).
		WithArgs(storeID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled', end_date=now\(\), updated_at=now\(\)`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO uninstall_events`).
		WithArgs(storeID, "acme.myshopify.com", "app_uninstalled", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO billing_events`).
		WithArgs(userID, domain.EventAppUninstalled, "uninstalled", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Deactivate(ctx, storeID, "app_uninstalled", payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_Deactivate_AlreadyInactiveIsNoop(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)

	storeID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, shop_domain, status FROM stores WHERE id=\$1 FOR UPDATE`).
		WithArgs(storeID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "shop_domain", "status"}).
			AddRow(uuid.New(), "acme.myshopify.com", domain.StoreStatusInactive))
	mock.ExpectCommit()

	require.NoError(t, r.Deactivate(context.Background(), storeID, "app_uninstalled", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_Deactivate_RollsBackWhenAuditInsertFails(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)

	storeID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, shop_domain, status FROM stores WHERE id=\$1 FOR UPDATE`).
		WithArgs(storeID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "shop_domain", "status"}).
			AddRow(userID, "acme.myshopify.com", domain.StoreStatusActive))
	mock.ExpectExec(`UPDATE stores SET status='inactive'`).
		WithArgs(storeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM access_tokens`).
		WithArgs(storeID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE memberships SET status='cancelled'`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO uninstall_events`).
		WithArgs(storeID, "acme.myshopify.com", "token_revoked", []byte(`{}`)).
		WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	err := r.Deactivate(context.Background(), storeID, "token_revoked", nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepo_MarkUninstalled_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)

	storeID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE stores SET status='uninstalled'`).
		WithArgs(storeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := r.MarkUninstalled(context.Background(), storeID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreRepo_ListActive(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewStoreRepo(db)

	cutoff := time.Now().Add(-time.Hour)
	now := time.Now()
	mock.ExpectQuery(`WHERE status='active' AND \(last_status_check IS NULL OR last_status_check < \$1\)`).
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows(storeColumns).
			AddRow(uuid.New(), uuid.New(), "a.myshopify.com", domain.StoreStatusActive, nil, now, now).
			AddRow(uuid.New(), uuid.New(), "b.myshopify.com", domain.StoreStatusActive, &cutoff, now, now))

	stores, err := r.ListActive(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	require.Equal(t, "a.myshopify.com", stores[0].ShopDomain)
}
