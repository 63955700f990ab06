// Package services contains server-side business logic: identity resolution,
// the login pipeline, and profile image storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/models"
	"github.com/hipnode/hipnode/internal/server/repositories/repomanager"
)

const (
	// usernameAddressChars is how much of the address (after 0x) goes into
	// the generated username.
	usernameAddressChars = 6

	// maxUsernameAttempts bounds the retry loop when generated usernames
	// collide with existing ones.
	maxUsernameAttempts = 5

	// disambiguatorBytes sizes the random hex suffix appended on retries.
	disambiguatorBytes = 2
)

// IdentityService maps verified wallet addresses to persistent user records.
// Find-or-create is idempotent and race-safe: the storage upsert, not a lock,
// arbitrates concurrent first-time logins for the same address.
type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *IdentityService {
	return &IdentityService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "identity"),
	}
}

// FindByAddress returns the user for an address, or common.ErrorNotFound.
func (s *IdentityService) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return user, nil
}

// Resolve finds the user for address, creating one when absent. The second
// return value reports whether a new record was created by this call.
//
// The insert is an insert-if-absent upsert keyed on address; losing the race
// means the winner's row is re-read and returned, so concurrent calls all
// converge on the same record. Username collisions trigger regeneration with
// a fresh disambiguator, bounded by maxUsernameAttempts.
func (s *IdentityService) Resolve(ctx context.Context, address string) (*models.User, bool, error) {
	return s.resolveOn(ctx, s.db, address)
}

// resolveOn runs Resolve against the given handle, so the login pipeline can
// execute it inside the same transaction that redeems the challenge nonce.
func (s *IdentityService) resolveOn(ctx context.Context, db dbx.DBTX, address string) (*models.User, bool, error) {
	repo := s.repomanager.Users(db)

	user, err := repo.GetByAddress(ctx, address)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := candidateUsername(address, attempt)
		if err != nil {
			return nil, false, fmt.Errorf("generating username: %w", err)
		}

		created, err := repo.CreateIfAbsent(ctx, models.NewUser(address, username))
		if err != nil {
			if errors.Is(err, common.ErrDuplicateKey) {
				// Username taken; regenerate and try again.
				s.logger.Debug(ctx, "username collision", "username", username, "attempt", attempt)
				continue
			}
			return nil, false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}

		if created == nil {
			// Lost the insert race on address; return the winner's row.
			existing, err := repo.GetByAddress(ctx, address)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
			}
			return existing, false, nil
		}

		s.logger.Info(ctx, "user created", "address", address, "username", created.Username)
		return created, true, nil
	}

	s.logger.Error(ctx, "username generation exhausted", "address", address, "attempts", maxUsernameAttempts)
	return nil, false, common.ErrResolutionExhausted
}

// candidateUsername derives a username from the address short form. The first
// attempt uses the bare prefix; retries append a random hex disambiguator.
func candidateUsername(address string, attempt int) (string, error) {
	short := strings.ToLower(strings.TrimPrefix(address, "0x"))
	if len(short) > usernameAddressChars {
		short = short[:usernameAddressChars]
	}
	if attempt == 0 {
		return "user_" + short, nil
	}
	suffix, err := common.MakeRandHexString(disambiguatorBytes)
	if err != nil {
		return "", err
	}
	return "user_" + short + "_" + suffix, nil
}
