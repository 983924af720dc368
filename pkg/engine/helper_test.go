package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

// Fixture entities shared across the package tests.

type mockUser struct {
	ID    int64  `db:"id,identity"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type mockAccount struct {
	ID      int64  `db:"id,identity"`
	Name    string `db:"name"`
	Version int64  `db:"version,version"`
}

type mockNote struct {
	Code string `db:"code,identity,writable"`
	Body string `db:"body"`
}

type auditedDoc struct {
	ID        int64     `db:"id,identity"`
	Title     string    `db:"title"`
	CreatedBy string    `db:"created_by,createdby"`
	CreatedOn time.Time `db:"created_on,createdon"`
	UpdatedBy string    `db:"updated_by,updatedby"`
	UpdatedOn time.Time `db:"updated_on,updatedon"`
}

var errDuplicateRow = errors.New("duplicate row")

// portableDialect has no native upsert support, forcing the
// update-insert-retry fallback.
type portableDialect struct{ dialect.Postgres }

func (portableDialect) Name() string { return "portable" }

func (portableDialect) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{MaxParameters: 100}
}

func (portableDialect) IsUniqueViolation(err error) bool {
	return errors.Is(err, errDuplicateRow)
}

// tinyDialect caps the parameter budget low enough to trip capacity checks
// and batch chunking in-process.
type tinyDialect struct{ dialect.MySQL }

func (tinyDialect) Name() string { return "tiny" }

func (tinyDialect) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{OnDuplicateKey: true, MaxParameters: 5}
}

func newMockEngine(t *testing.T, d dialect.Dialect, opts Options) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := New(d, opts)
	e.UseDB(db)
	require.NoError(t, e.Register(mockUser{}, "", "users"))
	require.NoError(t, e.Register(mockAccount{}, "", "accounts"))
	require.NoError(t, e.Register(mockNote{}, "", "notes"))
	return e, mock
}
