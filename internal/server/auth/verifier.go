package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/models"
)

// clockSkew tolerates small clock drift between wallet and server when
// checking the payload validity window.
const clockSkew = 30 * time.Second

// CredentialStore is the lookup the password scheme needs; satisfied by the
// users repository.
type CredentialStore interface {
	GetCredential(ctx context.Context, username string) (*models.User, error)
}

// Verifier is the credential decision function. It persists nothing and has
// no side effects on failure; every rejection is reported to callers as
// common.ErrInvalidPayload while the concrete cause is only logged.
type Verifier struct {
	domain string
	store  CredentialStore
	logger logging.Logger
}

func NewVerifier(domain string, store CredentialStore, logger logging.Logger) *Verifier {
	return &Verifier{
		domain: domain,
		store:  store,
		logger: logger.With("module", "verifier"),
	}
}

// Verify dispatches on the credential scheme and returns the proven address.
func (v *Verifier) Verify(ctx context.Context, cred Credential) (string, error) {
	switch c := cred.(type) {
	case WalletProof:
		return v.verifyWallet(ctx, c)
	case *WalletProof:
		return v.verifyWallet(ctx, *c)
	case PasswordCredential:
		return v.verifyPassword(ctx, c)
	case *PasswordCredential:
		return v.verifyPassword(ctx, *c)
	default:
		return "", v.reject(ctx, "unknown credential scheme")
	}
}

func (v *Verifier) verifyWallet(ctx context.Context, proof WalletProof) (string, error) {
	pub, err := ParsePublicKey(proof.PublicKey)
	if err != nil {
		return "", v.reject(ctx, "bad public key", "err", err)
	}

	derived := DeriveAddress(pub)
	if !AddressesEqual(derived, proof.Payload.Address) {
		return "", v.reject(ctx, "address does not match public key")
	}

	if !strings.EqualFold(proof.Payload.Domain, v.domain) {
		return "", v.reject(ctx, "domain mismatch", "payload_domain", proof.Payload.Domain)
	}

	now := time.Now()
	if now.Before(proof.Payload.IssuedAt.Add(-clockSkew)) {
		return "", v.reject(ctx, "payload not yet valid")
	}
	if now.After(proof.Payload.ExpirationTime.Add(clockSkew)) {
		return "", v.reject(ctx, "payload expired")
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(proof.Signature, "0x"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", v.reject(ctx, "malformed signature")
	}
	if !ed25519.Verify(pub, []byte(proof.Payload.Message()), sig) {
		return "", v.reject(ctx, "signature verification failed")
	}

	return derived, nil
}

func (v *Verifier) verifyPassword(ctx context.Context, cred PasswordCredential) (string, error) {
	user, err := v.store.GetCredential(ctx, cred.Username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", v.reject(ctx, "unknown username")
		}
		return "", common.ErrStoreUnavailable
	}

	if len(user.PasswordHash) == 0 {
		return "", v.reject(ctx, "account has no password credential")
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(cred.Password)); err != nil {
		return "", v.reject(ctx, "password mismatch")
	}

	return user.Address, nil
}

// reject logs the real cause and returns the uniform external error, so
// clients cannot probe which check failed.
func (v *Verifier) reject(ctx context.Context, cause string, args ...any) error {
	v.logger.Warn(ctx, "credential rejected: "+cause, args...)
	return common.ErrInvalidPayload
}
