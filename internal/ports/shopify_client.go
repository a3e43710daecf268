package ports

import (
	"context"

	"bargenix-billing-core/internal/domain"
)

// ShopifyClient defines the Shopify Admin API operations this service uses.
type ShopifyClient interface {
	// Authentication
	GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) string
	ExchangeToken(ctx context.Context, shop string, code string) (token string, scope string, err error)

	// ValidateToken makes a lightweight shop.json call and reports whether
	// the token is still honoured by Shopify. Only a definitive 401/403
	// returns (false, nil); an inconclusive probe must not report revoked.
	ValidateToken(ctx context.Context, shop string, accessToken string) (bool, error)

	// Billing API
	CreateRecurringCharge(ctx context.Context, shop string, accessToken string, charge *domain.RecurringCharge) (*domain.RecurringCharge, error)
	GetRecurringCharge(ctx context.Context, shop string, accessToken string, chargeID int64) (*domain.RecurringCharge, error)
	ActivateRecurringCharge(ctx context.Context, shop string, accessToken string, chargeID int64) (*domain.RecurringCharge, error)
}
