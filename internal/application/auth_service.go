// Package application implements the shop connection and billing lifecycle
// on top of the ports interfaces.
package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

// AuthService drives the Shopify OAuth handshake: state issuance, the
// authorize redirect and the callback token exchange.
type AuthService struct {
	stores ports.StoreRepository
	nonces ports.NonceStore
	client ports.ShopifyClient
	scopes []string
	appURL string
	logger zerolog.Logger
}

// NewAuthService creates the OAuth handshake service. scopes is the
// comma-separated SHOPIFY_SCOPES value.
func NewAuthService(
	stores ports.StoreRepository,
	nonces ports.NonceStore,
	client ports.ShopifyClient,
	scopes string,
	appURL string,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		stores: stores,
		nonces: nonces,
		client: client,
		scopes: strings.Split(scopes, ","),
		appURL: appURL,
		logger: logger,
	}
}

// CallbackPath is where Shopify redirects after the merchant authorizes.
const CallbackPath = "/api/shopify/callback"

// BeginOAuth validates the shop domain, issues a one-time state and returns
// the authorize URL to redirect the merchant to. Nothing is persisted for an
// invalid domain.
func (s *AuthService) BeginOAuth(ctx context.Context, shop string, userID uuid.UUID, returnURL string) (string, error) {
	if err := domain.ValidateShopDomain(shop); err != nil {
		return "", err
	}

	state, err := s.nonces.Issue(ctx, domain.StateData{
		Shop:      shop,
		UserID:    userID,
		ReturnURL: returnURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}

	authURL := s.client.GenerateAuthURL(shop, s.scopes, s.appURL+CallbackPath, state)

	s.logger.Info().
		Str("shop", shop).
		Str("user_id", userID.String()).
		Strs("scopes", s.scopes).
		Msg("Starting OAuth handshake")

	return authURL, nil
}

// CompleteOAuth consumes the state, exchanges the authorization code for an
// access token and activates the store connection. The state is invalidated
// by Consume regardless of outcome, so a replayed callback fails. The second
// return value is the return URL captured when the handshake started.
func (s *AuthService) CompleteOAuth(ctx context.Context, shop, code, state string) (*domain.Store, string, error) {
	data, err := s.nonces.Consume(ctx, state)
	if err != nil {
		return nil, "", err
	}
	if data.Shop != shop {
		// The state was issued for a different shop: treat as CSRF.
		return nil, "", domain.ErrInvalidState
	}
	if err := domain.ValidateShopDomain(shop); err != nil {
		return nil, "", err
	}

	token, scope, err := s.client.ExchangeToken(ctx, shop, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange token")
		return nil, "", fmt.Errorf("failed to exchange token: %w", err)
	}

	store, err := s.stores.CreateActive(ctx, data.UserID, shop, token, scope)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to activate store")
		return nil, "", fmt.Errorf("failed to activate store: %w", err)
	}

	s.logger.Info().
		Str("shop", shop).
		Str("store_id", store.ID.String()).
		Str("granted_scope", scope).
		Msg("OAuth handshake completed, store active")

	return store, data.ReturnURL, nil
}
