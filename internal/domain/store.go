package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// StoreStatus tracks the lifecycle of a merchant's shop connection.
type StoreStatus string

const (
	StoreStatusPending     StoreStatus = "pending"
	StoreStatusActive      StoreStatus = "active"
	StoreStatusInactive    StoreStatus = "inactive"
	StoreStatusUninstalled StoreStatus = "uninstalled"
)

// Store represents one merchant's shop connection. Stores are never hard
// deleted, only status-transitioned.
type Store struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	ShopDomain      string      `json:"shop_domain"`
	Status          StoreStatus `json:"status"`
	LastStatusCheck *time.Time  `json:"last_status_check,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// AccessToken is the long-lived Shopify token for a store. Rows are
// append-only; the newest by creation time is the current one.
type AccessToken struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	Token     string    `json:"-"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// ValidateShopDomain checks the *.myshopify.com format before any
// persistence or redirect happens.
func ValidateShopDomain(shop string) error {
	if !shopDomainPattern.MatchString(shop) {
		return ErrInvalidShopDomain
	}
	return nil
}

// StateData is the envelope stored server-side under the OAuth state key.
// The cookie/query parameter is just the transport for the key.
type StateData struct {
	Shop      string    `json:"shop"`
	UserID    uuid.UUID `json:"user_id"`
	ReturnURL string    `json:"return_url,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}
