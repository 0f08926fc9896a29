// Package identity verifies caller identity for owner-scoped endpoints.
// Token issuance is owned by the external auth service; this package only
// validates tokens and extracts the owner ID they carry.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common identity errors.
var (
	// ErrInvalidToken is returned when a token fails signature or claims
	// validation for any reason other than expiry.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Claims holds the identity extracted from a validated token.
type Claims struct {
	// OwnerID is the unique identifier of the user the token was issued for.
	OwnerID uuid.UUID

	// Subject is the standard JWT subject claim.
	Subject string

	// ExpiresAt is when the token stops being valid.
	ExpiresAt time.Time
}

// Verifier validates bearer tokens presented to owner-scoped endpoints.
type Verifier interface {
	// VerifyToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken or ErrInvalidToken on validation failure.
	VerifyToken(ctx context.Context, tokenString string) (*Claims, error)
}
