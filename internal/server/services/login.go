package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/auth"
	"github.com/hipnode/hipnode/internal/server/config"
	"github.com/hipnode/hipnode/internal/server/models"
	"github.com/hipnode/hipnode/internal/server/realtime"
	"github.com/hipnode/hipnode/internal/server/repositories/repomanager"
)

// nonceBytes sizes the login challenge nonce (hex string twice as long).
const nonceBytes = 16

// AuthService runs the login pipeline: challenge issuance, credential
// verification, identity resolution, and session token minting.
type AuthService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	verifier          *auth.Verifier
	issuer            *auth.SessionIssuer
	identity          *IdentityService
	publisher         realtime.Publisher
	logger            logging.Logger
	domain            string
	statement         string
	challengeValidity time.Duration

	// runTx is a seam for testing the transactional login pipeline.
	runTx func(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(context.Context, dbx.DBTX) error) error
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, verifier *auth.Verifier,
	issuer *auth.SessionIssuer, identity *IdentityService, publisher realtime.Publisher,
	cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:                db,
		repomanager:       m,
		verifier:          verifier,
		issuer:            issuer,
		identity:          identity,
		publisher:         publisher,
		logger:            logger.With("module", "auth_service"),
		domain:            cfg.Domain,
		statement:         cfg.SignInStatement,
		challengeValidity: cfg.ChallengeValidityDuration,
		runTx:             dbx.WithTx,
	}
}

// GeneratePayload creates a single-use login challenge for the address and
// returns the payload the wallet must sign.
func (s *AuthService) GeneratePayload(ctx context.Context, address string) (*auth.SignInPayload, error) {
	nonce, err := common.MakeRandHexString(nonceBytes)
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	repo := s.repomanager.Challenges(s.db)
	challenge, err := repo.Create(ctx, address, nonce, s.challengeValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	now := time.Now()
	return &auth.SignInPayload{
		Address:        address,
		Domain:         s.domain,
		Statement:      s.statement,
		Nonce:          challenge.Nonce,
		IssuedAt:       now,
		ExpirationTime: challenge.ExpiresAt,
	}, nil
}

// Login verifies the credential, resolves the identity and mints a session
// token. Wallet proofs redeem their challenge nonce first; redemption, the
// signature check and identity resolution run inside one transaction, so a
// successful login commits the consumed nonce together with any created user,
// while a failed one rolls the nonce back. Concurrent redemptions of the same
// nonce still serialize on the row update.
func (s *AuthService) Login(ctx context.Context, cred auth.Credential) (string, error) {
	var user *models.User
	var created bool

	err := s.runTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if proof, ok := walletProof(cred); ok {
			if err := s.consumeChallenge(ctx, tx, proof); err != nil {
				return err
			}
		}

		address, err := s.verifier.Verify(ctx, cred)
		if err != nil {
			return err
		}

		user, created, err = s.identity.resolveOn(ctx, tx, address)
		return err
	})
	if err != nil {
		return "", err
	}

	token, err := s.issuer.Issue(user.Address)
	if err != nil {
		s.logger.Error(ctx, "token issuance failed", "err", err)
		return "", common.ErrorInternal
	}

	if created {
		s.publisher.Publish(realtime.Event{
			Type:     realtime.EventUserCreated,
			Address:  user.Address,
			Username: user.Username,
			At:       time.Now(),
		})
	}

	s.logger.Info(ctx, "login succeeded", "address", user.Address, "new_user", created)
	return token, nil
}

func (s *AuthService) consumeChallenge(ctx context.Context, tx dbx.DBTX, proof auth.WalletProof) error {
	repo := s.repomanager.Challenges(tx)
	challenge, err := repo.Consume(ctx, proof.Payload.Nonce)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "credential rejected: unknown, used or expired nonce", "nonce", proof.Payload.Nonce)
			return common.ErrInvalidPayload
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	if !auth.AddressesEqual(challenge.Address, proof.Payload.Address) {
		s.logger.Warn(ctx, "credential rejected: challenge issued for another address")
		return common.ErrInvalidPayload
	}

	return nil
}

func walletProof(cred auth.Credential) (auth.WalletProof, bool) {
	switch c := cred.(type) {
	case auth.WalletProof:
		return c, true
	case *auth.WalletProof:
		return *c, true
	default:
		return auth.WalletProof{}, false
	}
}
