package engine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

func TestEngine_RegisterAcceptsPointerPrototype(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	require.NoError(t, e.Register(&mockUser{}, "", "users"))

	table, err := e.tableOf(mockUser{})
	require.NoError(t, err)
	assert.Equal(t, "users", table.Name)

	table2, err := e.tableOf(&mockUser{})
	require.NoError(t, err)
	assert.Same(t, table, table2, "value and pointer resolve the same registration")
}

func TestEngine_MustRegisterPanicsOnBadType(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	assert.Panics(t, func() { e.MustRegister(42, "", "numbers") })
}

func TestEngine_PingNotConnected(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	assert.ErrorIs(t, e.Ping(context.Background()), ErrNotConnected)
	assert.False(t, e.IsConnected())
}

func TestEngine_UseDBAndPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	e := New(dialect.Postgres{}, Options{})
	e.UseDB(db)
	assert.True(t, e.IsConnected())

	mock.ExpectPing()
	require.NoError(t, e.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	// The engine does not own an externally supplied pool.
	require.NoError(t, e.Close())
	assert.False(t, e.IsConnected())
}

func TestEngine_WithDebug(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	assert.Equal(t, DebugOff, e.Debug.Level)

	e.WithDebug(DebugTrace)
	assert.Equal(t, DebugTrace, e.Debug.Level)
}
