package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/dbx"
	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/models"
	"github.com/hipnode/hipnode/internal/server/repositories/challenges"
	"github.com/hipnode/hipnode/internal/server/repositories/users"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// memUsersRepo mimics the storage contract in memory: the critical section
// around the insert plays the role of the database's atomic upsert.
type memUsersRepo struct {
	mu         sync.Mutex
	byAddress  map[string]*models.User
	byUsername map[string]*models.User
	nextID     int

	// createHook, when set, runs inside the critical section before the
	// insert; used to script races and collisions.
	createHook func(u *models.User) error
}

func newMemUsersRepo() *memUsersRepo {
	return &memUsersRepo{
		byAddress:  make(map[string]*models.User),
		byUsername: make(map[string]*models.User),
	}
}

func (r *memUsersRepo) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createHook != nil {
		if err := r.createHook(user); err != nil {
			return nil, err
		}
	}

	if _, ok := r.byAddress[user.Address]; ok {
		return nil, nil
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return nil, fmt.Errorf("%w: users_username_key", common.ErrDuplicateKey)
	}

	r.nextID++
	created := *user
	created.ID = fmt.Sprintf("u-%d", r.nextID)
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	r.byAddress[created.Address] = &created
	r.byUsername[created.Username] = &created
	return &created, nil
}

func (r *memUsersRepo) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byAddress[address]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byUsername[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memUsersRepo) GetCredential(ctx context.Context, username string) (*models.User, error) {
	return r.GetByUsername(ctx, username)
}

func (r *memUsersRepo) seed(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = fmt.Sprintf("u-%d", r.nextID)
	r.byAddress[u.Address] = u
	r.byUsername[u.Username] = u
}

func (r *memUsersRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAddress)
}

// memChallengesRepo keeps login challenges in memory with atomic consumption.
type memChallengesRepo struct {
	mu      sync.Mutex
	byNonce map[string]*models.LoginChallenge
	nextID  int
}

func newMemChallengesRepo() *memChallengesRepo {
	return &memChallengesRepo{byNonce: make(map[string]*models.LoginChallenge)}
}

func (r *memChallengesRepo) Create(ctx context.Context, address string, nonce string, validity time.Duration) (*models.LoginChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := &models.LoginChallenge{
		ID:        fmt.Sprintf("c-%d", r.nextID),
		Nonce:     nonce,
		Address:   address,
		ExpiresAt: time.Now().Add(validity),
	}
	r.byNonce[nonce] = c
	return c, nil
}

func (r *memChallengesRepo) Consume(ctx context.Context, nonce string) (*models.LoginChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byNonce[nonce]
	if !ok || c.Used || time.Now().After(c.ExpiresAt) {
		return nil, common.ErrorNotFound
	}
	c.Used = true
	copied := *c
	return &copied, nil
}

// fakeRepoManager hands the in-memory repositories to services regardless of
// the DBTX they pass in.
type fakeRepoManager struct {
	users      users.Repository
	challenges challenges.Repository
}

func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository { return f.users }
func (f *fakeRepoManager) Challenges(db dbx.DBTX) challenges.Repository { return f.challenges }
