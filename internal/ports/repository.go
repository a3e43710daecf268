// Package ports defines the interfaces the application layer depends on.
// Concrete implementations live under internal/infrastructure.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bargenix-billing-core/internal/domain"
)

// StoreRepository persists shop connections and their access tokens.
type StoreRepository interface {
	// CreateActive inserts (or revives) a store as active and appends a new
	// access token for it, in one transaction. Prior tokens for the store
	// are kept; the newest by creation time wins.
	CreateActive(ctx context.Context, userID uuid.UUID, shopDomain, token, scope string) (*domain.Store, error)

	// GetByDomain returns the store for a shop domain, regardless of status.
	GetByDomain(ctx context.Context, shopDomain string) (*domain.Store, error)

	// GetActiveByUser returns the user's active store, if any.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Store, error)

	// CurrentToken returns the newest access token for a store.
	CurrentToken(ctx context.Context, storeID uuid.UUID) (*domain.AccessToken, error)

	// ListActive returns active stores whose last status check is older than
	// the cutoff (or never ran).
	ListActive(ctx context.Context, checkedBefore time.Time) ([]*domain.Store, error)

	// TouchStatusCheck records that a status check ran for the store.
	TouchStatusCheck(ctx context.Context, storeID uuid.UUID, at time.Time) error

	// Deactivate applies the active -> inactive transition in a single
	// transaction: store status update, access token deletion, cancellation
	// of the owner's active membership, one uninstall event row and one
	// app_uninstalled billing event row. Calling it for a store that is
	// already inactive or uninstalled is a no-op.
	Deactivate(ctx context.Context, storeID uuid.UUID, reason string, payload []byte) error

	// MarkUninstalled applies the terminal uninstalled transition and
	// deletes any remaining access tokens.
	MarkUninstalled(ctx context.Context, storeID uuid.UUID) error
}

// MembershipActivation carries everything the transactional commit of a
// billing attempt needs.
type MembershipActivation struct {
	UserID        uuid.UUID
	Plan          *domain.Plan
	ChargeID      int64
	ShopifyStatus string
	ActivatedAt   time.Time
	TrialEndsOn   *time.Time
	NextBillingOn *time.Time
}

// MembershipRepository persists subscriptions. Implementations must uphold
// the at-most-one-active-membership-per-user invariant.
type MembershipRepository interface {
	// CreatePending inserts a pending membership for a plan selection.
	CreatePending(ctx context.Context, userID, planID uuid.UUID) (*domain.Membership, error)

	// GetByChargeID returns the membership carrying a Shopify charge id.
	GetByChargeID(ctx context.Context, chargeID int64) (*domain.Membership, error)

	// GetActiveByUser returns the user's active membership, if any.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)

	// ActivateExclusive commits a billing attempt in one transaction: locks
	// the user's membership rows, cancels any other active membership with
	// end_date=now, promotes (or inserts) the target membership as active
	// with the charge id, and appends a membership_history row. Rolls back
	// entirely on failure.
	ActivateExclusive(ctx context.Context, act MembershipActivation) (*domain.Membership, error)

	// CloseByChargeID sets the membership for a charge to the given
	// non-active status with end_date=now. No-op if none exists.
	CloseByChargeID(ctx context.Context, chargeID int64, status domain.MembershipStatus) error
}

// PlanRepository reads subscription plans.
type PlanRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
}

// EventRepository appends audit records.
type EventRepository interface {
	AppendBillingEvent(ctx context.Context, ev *domain.BillingEvent) error
	AppendUninstallEvent(ctx context.Context, ev *domain.UninstallEvent) error
}
