// Package users provides a PostgreSQL-backed repository for Hipnode user
// records keyed by wallet address.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/server/models"
)

const userColumns = `id, address, username, profile_image, banner_image, bio, website, twitter, facebook, instagram, points, created_at, updated_at`

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique-constraint errors.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateIfAbsent performs the insert-if-absent upsert keyed on address.
// ON CONFLICT (address) DO NOTHING makes RETURNING yield no row when another
// request created the user first; that case is reported as (nil, nil) so the
// resolver can re-read the winner. A unique violation on the username index
// still surfaces as a 23505 and is mapped to common.ErrDuplicateKey.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (address, username, profile_image, banner_image)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ON CONSTRAINT users_address_key DO NOTHING
		 RETURNING ` + userColumns

	created := &models.User{}
	err := r.db.QueryRowContext(ctx, query,
		user.Address, user.Username, user.ProfileImage, user.BannerImage).Scan(scanDest(created)...)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the insert race on address; the row exists now.
			return nil, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateKey, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE address = $1`
	return r.getOne(ctx, query, address)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getOne(ctx, query, username)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(scanDest(user)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetCredential loads the subset of a user row needed by the password
// credential scheme, including the stored bcrypt hash.
func (r *PostgresRepository) GetCredential(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, address, username, password_hash FROM users WHERE username = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Address, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func scanDest(u *models.User) []any {
	return []any{
		&u.ID, &u.Address, &u.Username, &u.ProfileImage, &u.BannerImage,
		&u.Bio, &u.Website, &u.Twitter, &u.Facebook, &u.Instagram,
		&u.Points, &u.CreatedAt, &u.UpdatedAt,
	}
}
