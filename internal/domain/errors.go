// Package domain holds the entities and invariants of the shop connection
// and billing lifecycle.
package domain

import "errors"

// Sentinel errors used across layers. Handlers map these onto HTTP statuses;
// repositories and services wrap them with context via %w.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidShopDomain indicates a shop name that is not *.myshopify.com.
	ErrInvalidShopDomain = errors.New("invalid shop domain")
	// ErrInvalidState indicates an unknown, expired or already-consumed
	// OAuth state value.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrVerificationFailed indicates a webhook whose HMAC signature did not
	// match or whose required headers were missing.
	ErrVerificationFailed = errors.New("webhook verification failed")
	// ErrNoAccessToken indicates a store without a usable access token.
	ErrNoAccessToken = errors.New("store has no access token")
	// ErrConflict indicates a concurrent writer committed a conflicting row
	// first, e.g. a second active membership hitting the partial unique
	// index.
	ErrConflict = errors.New("conflicting concurrent update")
)
