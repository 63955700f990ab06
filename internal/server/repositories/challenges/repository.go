package challenges

import (
	"context"
	"time"

	"github.com/hipnode/hipnode/internal/server/models"
)

// Repository stores single-use login challenges. Consume must be atomic:
// two concurrent logins presenting the same nonce must not both succeed.
type Repository interface {
	Create(ctx context.Context, address string, nonce string, validity time.Duration) (*models.LoginChallenge, error)

	// Consume marks the challenge used and returns it. It returns
	// common.ErrorNotFound when the nonce is unknown, already used,
	// or expired.
	Consume(ctx context.Context, nonce string) (*models.LoginChallenge, error)
}
