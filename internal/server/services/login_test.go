package services

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/server/auth"
	"github.com/hipnode/hipnode/internal/server/config"
	"github.com/hipnode/hipnode/internal/server/models"
	"github.com/hipnode/hipnode/internal/server/realtime"
)

const testDomain = "localhost:3000"

func passthroughTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(context.Context, dbx.DBTX) error) error {
	return fn(ctx, nil)
}

type capturePublisher struct {
	events []realtime.Event
}

func (p *capturePublisher) Publish(e realtime.Event) { p.events = append(p.events, e) }

type loginFixture struct {
	svc        *AuthService
	issuer     *auth.SessionIssuer
	users      *memUsersRepo
	challenges *memChallengesRepo
	publisher  *capturePublisher
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()

	cfg := &config.Config{
		Domain:                    testDomain,
		SignInStatement:           "Sign in to Hipnode",
		SessionValidityDuration:   time.Hour,
		ChallengeValidityDuration: 10 * time.Minute,
	}

	usersRepo := newMemUsersRepo()
	challengesRepo := newMemChallengesRepo()
	rm := &fakeRepoManager{users: usersRepo, challenges: challengesRepo}

	logger := testLogger()
	issuer := auth.NewSessionIssuer([]byte("test-secret"), cfg.Domain, cfg.SessionValidityDuration)
	verifier := auth.NewVerifier(cfg.Domain, usersRepo, logger)
	identity := NewIdentityService(nil, rm, logger)
	publisher := &capturePublisher{}

	svc := NewAuthService(nil, rm, verifier, issuer, identity, publisher, cfg, logger)
	// No real database behind the fakes, so the pipeline runs untransacted.
	svc.runTx = passthroughTx

	return &loginFixture{
		svc:        svc,
		issuer:     issuer,
		users:      usersRepo,
		challenges: challengesRepo,
		publisher:  publisher,
	}
}

// signIn walks the whole wallet flow: request a payload, sign it, log in.
func (f *loginFixture) signIn(t *testing.T) (auth.WalletProof, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	address := auth.DeriveAddress(pub)

	payload, err := f.svc.GeneratePayload(context.Background(), address)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, []byte(payload.Message()))
	proof := auth.WalletProof{
		Payload:   *payload,
		Signature: hex.EncodeToString(sig),
		PublicKey: hex.EncodeToString(pub),
	}
	return proof, address
}

func TestLogin_WalletFlow(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)
	proof, address := f.signIn(t)

	token, err := f.svc.Login(context.Background(), proof)
	require.NoError(t, err)

	got, err := f.issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, address, got)

	// First-time login created the user and announced it.
	user, err := f.users.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	require.NotEmpty(t, user.Username)
	require.Len(t, f.publisher.events, 1)
	require.Equal(t, realtime.EventUserCreated, f.publisher.events[0].Type)
	require.Equal(t, address, f.publisher.events[0].Address)
}

func TestLogin_StorageStepsShareOneTransaction(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)

	var calls int
	f.svc.runTx = func(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(context.Context, dbx.DBTX) error) error {
		calls++
		return passthroughTx(ctx, db, opts, fn)
	}

	proof, _ := f.signIn(t)
	_, err := f.svc.Login(context.Background(), proof)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "nonce redemption and identity resolution must share a transaction")
}

func TestLogin_SecondLoginDoesNotAnnounce(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)

	proof, _ := f.signIn(t)
	_, err := f.svc.Login(context.Background(), proof)
	require.NoError(t, err)

	proof2, _ := f.signIn(t)
	_, err = f.svc.Login(context.Background(), proof2)
	require.NoError(t, err)

	// Different keys, so two users; but each announcement fires once.
	require.Len(t, f.publisher.events, 2)
}

func TestLogin_NonceReplayRejected(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)
	proof, _ := f.signIn(t)

	_, err := f.svc.Login(context.Background(), proof)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), proof)
	require.ErrorIs(t, err, common.ErrInvalidPayload, "a consumed nonce must not be redeemable again")
}

func TestLogin_UnknownNonceRejected(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)
	proof, _ := f.signIn(t)
	proof.Payload.Nonce = "deadbeef"

	_, err := f.svc.Login(context.Background(), proof)
	require.ErrorIs(t, err, common.ErrInvalidPayload)
}

func TestLogin_ChallengeBoundToAddress(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)

	// Challenge requested for a different address than the proof claims.
	otherPayload, err := f.svc.GeneratePayload(context.Background(), "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)

	proof, _ := f.signIn(t)
	proof.Payload.Nonce = otherPayload.Nonce

	_, err = f.svc.Login(context.Background(), proof)
	require.ErrorIs(t, err, common.ErrInvalidPayload)
}

func TestLogin_PasswordFlow(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	f.users.seed(&models.User{
		Address:      "0x00112233445566778899aabbccddeeff00112233",
		Username:     "alice",
		PasswordHash: hash,
	})

	token, err := f.svc.Login(context.Background(), auth.PasswordCredential{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	got, err := f.issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "0x00112233445566778899aabbccddeeff00112233", got)
	require.Empty(t, f.publisher.events, "existing user must not be announced")
}

func TestLogin_PasswordRejected(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)

	_, err := f.svc.Login(context.Background(), auth.PasswordCredential{Username: "ghost", Password: "x"})
	require.ErrorIs(t, err, common.ErrInvalidPayload)
}

func TestGeneratePayload_Shape(t *testing.T) {
	t.Parallel()

	f := newLoginFixture(t)

	payload, err := f.svc.GeneratePayload(context.Background(), testAddress)
	require.NoError(t, err)
	require.Equal(t, testAddress, payload.Address)
	require.Equal(t, testDomain, payload.Domain)
	require.Len(t, payload.Nonce, nonceBytes*2)
	require.True(t, payload.ExpirationTime.After(payload.IssuedAt))
}
