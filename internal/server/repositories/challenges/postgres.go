// Package challenges provides a PostgreSQL-backed repository for single-use
// login challenges consumed during wallet sign-in.
package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/server/models"
)

// PostgresRepository implements challenge storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new challenge for address with an expiry of now+validity.
func (r *PostgresRepository) Create(ctx context.Context, address string, nonce string, validity time.Duration) (*models.LoginChallenge, error) {
	query := `
		INSERT INTO login_challenges (nonce, address, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	c := &models.LoginChallenge{
		Nonce:     nonce,
		Address:   address,
		ExpiresAt: time.Now().Add(validity),
	}
	if err := r.db.QueryRowContext(ctx, query, c.Nonce, c.Address, c.ExpiresAt).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Consume flips used in the same statement that filters on it, so a nonce can
// be redeemed exactly once even under concurrent logins.
func (r *PostgresRepository) Consume(ctx context.Context, nonce string) (*models.LoginChallenge, error) {
	query := `
		UPDATE login_challenges
		SET used = true
		WHERE nonce = $1 AND NOT used AND expires_at > now()
		RETURNING id, nonce, address, expires_at, used
	`
	c := &models.LoginChallenge{}
	err := r.db.QueryRowContext(ctx, query, nonce).Scan(&c.ID, &c.Nonce, &c.Address, &c.ExpiresAt, &c.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
