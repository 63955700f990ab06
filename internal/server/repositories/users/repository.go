package users

import (
	"context"

	"github.com/hipnode/hipnode/internal/server/models"
)

// Repository is the persistence contract required by the identity resolver.
// CreateIfAbsent must be atomic with respect to concurrent inserts for the
// same address: the storage engine, not the caller, arbitrates the race.
type Repository interface {
	// CreateIfAbsent inserts the user keyed on address. If a row for the
	// address already exists it returns (nil, nil) and the caller re-reads.
	// A unique violation on username returns common.ErrDuplicateKey.
	CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error)

	// GetByAddress returns common.ErrorNotFound when no row exists.
	GetByAddress(ctx context.Context, address string) (*models.User, error)

	// GetByUsername returns common.ErrorNotFound when no row exists.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetCredential loads a user with their stored password hash.
	GetCredential(ctx context.Context, username string) (*models.User, error)
}
