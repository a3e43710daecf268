package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Billing event types written to the append-only audit trail.
const (
	EventChargeActivated          = "shopify_charge_activated"
	EventChargeDeclined           = "shopify_charge_declined"
	EventChargeActivationError    = "shopify_charge_activation_error"
	EventBillingVerificationError = "shopify_billing_verification_error"
	EventChargeWebhookUpdate      = "shopify_charge_webhook_update"
	EventAppUninstalled           = "app_uninstalled"
)

// BillingEvent is a write-once audit record; rows are never mutated or
// deleted.
type BillingEvent struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	EventType string           `json:"event_type"`
	ChargeID  *int64           `json:"charge_id,omitempty"`
	PlanID    *uuid.UUID       `json:"plan_id,omitempty"`
	PlanSlug  string           `json:"plan_slug,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Status    string           `json:"status"`
	Details   json.RawMessage  `json:"details"`
	CreatedAt time.Time        `json:"created_at"`
}

// UninstallEvent records a store disconnect with the raw webhook payload
// that caused it. Write-once.
type UninstallEvent struct {
	ID         uuid.UUID       `json:"id"`
	StoreID    uuid.UUID       `json:"store_id"`
	ShopDomain string          `json:"shop_domain"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
