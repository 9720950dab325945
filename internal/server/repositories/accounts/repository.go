// Package accounts declares the credential store: persistence of registered
// accounts and their password hashes.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/chirp/internal/server/models"
)

// Repository defines account persistence. Username and email lookups are
// case-insensitive. Missing rows yield common.ErrorNotFound.
type Repository interface {
	// Create inserts account and fills ID, CreatedAt and UpdatedAt. A
	// username or email collision returns *common.DuplicateIdentityError.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)

	UpdateAvatar(ctx context.Context, id string, avatarURL string) error

	// Delete removes the account. Posts, likes and refresh tokens cascade;
	// remaining follow edges make it fail with common.ErrAccountHasFollowEdges.
	Delete(ctx context.Context, id string) error
}
