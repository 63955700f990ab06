package challenges

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hipnode/hipnode/internal/common"
)

const (
	createQ = `(?s)^\s*INSERT\s+INTO\s+login_challenges\s*\(nonce,\s*address,\s*expires_at\)\s*` +
		`VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id\s*$`
	consumeQ = `(?s)^\s*UPDATE\s+login_challenges\s*` +
		`SET\s+used\s*=\s*true\s*` +
		`WHERE\s+nonce\s*=\s*\$1\s+AND\s+NOT\s+used\s+AND\s+expires_at\s*>\s*now\(\)\s*` +
		`RETURNING\s+id,\s*nonce,\s*address,\s*expires_at,\s*used\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id"}).AddRow("c-1")
	mock.ExpectQuery(createQ).
		WithArgs("nonce-1", "0xabc", sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), "0xabc", "nonce-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "c-1" || got.Nonce != "nonce-1" || got.Address != "0xabc" {
		t.Fatalf("unexpected challenge: %+v", got)
	}
	if !got.ExpiresAt.After(time.Now().Add(9 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", got.ExpiresAt)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(createQ).
		WithArgs("nonce-1", "0xabc", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "0xabc", "nonce-1", 10*time.Minute)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestConsume_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(5 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "nonce", "address", "expires_at", "used"}).
		AddRow("c-1", "nonce-1", "0xabc", expires, true)
	mock.ExpectQuery(consumeQ).
		WithArgs("nonce-1").
		WillReturnRows(rows)

	got, err := repo.Consume(context.Background(), "nonce-1")
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if got.ID != "c-1" || got.Address != "0xabc" || !got.Used {
		t.Fatalf("unexpected challenge: %+v", got)
	}
}

func TestConsume_AlreadyUsedOrExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// A replayed or expired nonce matches no row.
	mock.ExpectQuery(consumeQ).
		WithArgs("nonce-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "nonce-1")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestConsume_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(consumeQ).
		WithArgs("nonce-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.Consume(context.Background(), "nonce-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
