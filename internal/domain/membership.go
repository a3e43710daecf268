package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MembershipStatus is the local subscription state.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusPending   MembershipStatus = "pending"
	MembershipStatusCancelled MembershipStatus = "cancelled"
	MembershipStatusFrozen    MembershipStatus = "frozen"
)

// Shopify recurring application charge statuses, as returned by the
// Admin API.
const (
	ChargeStatusPending   = "pending"
	ChargeStatusAccepted  = "accepted"
	ChargeStatusActive    = "active"
	ChargeStatusDeclined  = "declined"
	ChargeStatusCancelled = "cancelled"
	ChargeStatusExpired   = "expired"
	ChargeStatusFrozen    = "frozen"
)

// Plan is a subscription tier a merchant can pick.
type Plan struct {
	ID        uuid.UUID       `json:"id"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	TrialDays int             `json:"trial_days"`
	CreatedAt time.Time       `json:"created_at"`
}

// Membership represents a user's subscription to a plan. At most one
// membership per user is active at any time; memberships are soft-closed
// via status and end_date, never deleted.
type Membership struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	PlanID          uuid.UUID        `json:"plan_id"`
	Status          MembershipStatus `json:"status"`
	ShopifyChargeID *int64           `json:"shopify_charge_id,omitempty"`
	StartDate       *time.Time       `json:"start_date,omitempty"`
	NextBillingDate *time.Time       `json:"next_billing_date,omitempty"`
	TrialEndDate    *time.Time       `json:"trial_end_date,omitempty"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// MembershipStatusForCharge maps a Shopify charge status onto the local
// membership state. The redirect and webhook paths both use this mapping so
// they converge on identical final state for the same charge id.
func MembershipStatusForCharge(chargeStatus string) (MembershipStatus, bool) {
	switch chargeStatus {
	case ChargeStatusActive, ChargeStatusAccepted:
		return MembershipStatusActive, true
	case ChargeStatusFrozen:
		return MembershipStatusFrozen, true
	case ChargeStatusCancelled, ChargeStatusDeclined, ChargeStatusExpired:
		return MembershipStatusCancelled, true
	}
	return "", false
}

// RecurringCharge is the subset of Shopify's recurring application charge
// this service reads and writes.
type RecurringCharge struct {
	ID              int64
	Name            string
	Price           decimal.Decimal
	Status          string
	ReturnURL       string
	ConfirmationURL string
	TrialDays       int
	TrialEndsOn     *time.Time
	BillingOn       *time.Time
	Test            bool
}
