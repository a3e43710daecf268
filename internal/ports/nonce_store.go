package ports

import (
	"context"

	"bargenix-billing-core/internal/domain"
)

// NonceStore issues and consumes the one-time OAuth state tokens that guard
// the redirect flow against CSRF. A state is single-use: Consume removes it
// regardless of what the caller does with the result.
type NonceStore interface {
	Issue(ctx context.Context, data domain.StateData) (state string, err error)
	Consume(ctx context.Context, state string) (*domain.StateData, error)
}
