// Package refreshtokens declares the refresh-token ledger: an append-only
// record of issued refresh credentials, keyed by the hash of their secret.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chirp/internal/server/models"
)

// Repository defines ledger operations. Rows are revoked, never updated
// otherwise; only Prune-style deletion removes them.
type Repository interface {
	// Create records a new credential for accountID.
	Create(ctx context.Context, accountID string, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindByHash returns the row for tokenHash or common.ErrorNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke marks one active row revoked. It reports false when the row was
	// already revoked or does not exist.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeAllForAccount revokes every active row of the account and returns
	// how many changed. Calling it again returns 0.
	RevokeAllForAccount(ctx context.Context, accountID string) (int64, error)

	// RevokeExcess keeps the newest keep active rows of the account and
	// revokes the rest.
	RevokeExcess(ctx context.Context, accountID string, keep int) (int64, error)

	// DeleteInactiveBefore removes rows that expired or were revoked before
	// cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
