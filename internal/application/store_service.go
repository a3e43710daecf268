package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

// StoreService manages the shop connection lifecycle after OAuth: uninstall
// processing, dashboard-confirmed disconnects and the periodic token health
// check.
type StoreService struct {
	stores ports.StoreRepository
	client ports.ShopifyClient
	logger zerolog.Logger
}

// NewStoreService creates the store lifecycle service.
func NewStoreService(stores ports.StoreRepository, client ports.ShopifyClient, logger zerolog.Logger) *StoreService {
	return &StoreService{stores: stores, client: client, logger: logger}
}

// DeactivateByDomain transitions a store to inactive with all the side
// effects of a disconnect. A store that is already inactive or uninstalled,
// or was never connected, is a no-op so webhook retries stay idempotent.
func (s *StoreService) DeactivateByDomain(ctx context.Context, shopDomain, reason string, payload []byte) error {
	store, err := s.stores.GetByDomain(ctx, shopDomain)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Str("shop", shopDomain).Msg("Deactivation requested for unknown store")
			return nil
		}
		return fmt.Errorf("failed to load store: %w", err)
	}

	if err := s.stores.Deactivate(ctx, store.ID, reason, payload); err != nil {
		return fmt.Errorf("failed to deactivate store: %w", err)
	}

	s.logger.Info().
		Str("shop", shopDomain).
		Str("store_id", store.ID.String()).
		Str("reason", reason).
		Msg("Store deactivated")

	return nil
}

// ConfirmUninstall handles the dashboard's uninstall confirmation. Status
// "uninstall_completed" deactivates the store; "confirmed" additionally
// marks the row uninstalled, the terminal state.
func (s *StoreService) ConfirmUninstall(ctx context.Context, shopDomain, status string) error {
	store, err := s.stores.GetByDomain(ctx, shopDomain)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	switch status {
	case "uninstall_completed":
		return s.stores.Deactivate(ctx, store.ID, "uninstall_completed", nil)
	case "confirmed":
		if err := s.stores.Deactivate(ctx, store.ID, "uninstall_confirmed", nil); err != nil {
			return err
		}
		return s.stores.MarkUninstalled(ctx, store.ID)
	default:
		return fmt.Errorf("unknown uninstall status %q", status)
	}
}

// CheckStatuses validates the stored token of every active store that has
// not been checked since the cutoff. A token Shopify no longer honours
// deactivates the store; transport errors leave it untouched until the next
// sweep.
func (s *StoreService) CheckStatuses(ctx context.Context, checkedBefore time.Time) error {
	stores, err := s.stores.ListActive(ctx, checkedBefore)
	if err != nil {
		return fmt.Errorf("failed to list active stores: %w", err)
	}

	for _, store := range stores {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		token, err := s.stores.CurrentToken(ctx, store.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNoAccessToken) {
				// Active store without a token is inconsistent state.
				s.logger.Warn().Str("shop", store.ShopDomain).Msg("Active store has no access token, deactivating")
				if err := s.stores.Deactivate(ctx, store.ID, "token_missing", nil); err != nil {
					s.logger.Error().Err(err).Str("shop", store.ShopDomain).Msg("Failed to deactivate store")
				}
				continue
			}
			s.logger.Error().Err(err).Str("shop", store.ShopDomain).Msg("Failed to load access token")
			continue
		}

		valid, err := s.client.ValidateToken(ctx, store.ShopDomain, token.Token)
		if err != nil {
			s.logger.Warn().Err(err).Str("shop", store.ShopDomain).Msg("Token validation inconclusive, will retry next sweep")
			continue
		}

		if !valid {
			s.logger.Info().Str("shop", store.ShopDomain).Msg("Access token revoked, deactivating store")
			if err := s.stores.Deactivate(ctx, store.ID, "token_revoked", nil); err != nil {
				s.logger.Error().Err(err).Str("shop", store.ShopDomain).Msg("Failed to deactivate store")
				continue
			}
		}

		if err := s.stores.TouchStatusCheck(ctx, store.ID, time.Now()); err != nil {
			s.logger.Error().Err(err).Str("shop", store.ShopDomain).Msg("Failed to record status check")
		}
	}

	return nil
}

// RunStatusChecker sweeps token health on the given interval until the
// context is cancelled. Meant to be run in its own goroutine.
func (s *StoreService) RunStatusChecker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Store status checker started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Store status checker stopped")
			return
		case <-ticker.C:
			if err := s.CheckStatuses(ctx, time.Now().Add(-interval)); err != nil {
				s.logger.Error().Err(err).Msg("Status check sweep failed")
			}
		}
	}
}
