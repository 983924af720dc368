package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":                 StrategyStandard,
		"standard":         StrategyStandard,
		"keepalive":        StrategyKeepAlive,
		"singleconnection": StrategySingleConnection,
		"singlewriter":     StrategySingleWriter,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, want, mustParseBack(t, got))
	}

	_, err := ParseStrategy("bogus")
	assert.Error(t, err)
}

func mustParseBack(t *testing.T, s Strategy) Strategy {
	t.Helper()
	got, err := ParseStrategy(s.String())
	require.NoError(t, err)
	return got
}

func TestCtxMutex_CancelledAcquire(t *testing.T) {
	m := newCtxMutex()
	require.NoError(t, m.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	m.Unlock()
	require.NoError(t, m.Lock(context.Background()))
	m.Unlock()
}

func TestCtxMutex_UnlockOfUnlockedPanics(t *testing.T) {
	m := newCtxMutex()
	assert.Panics(t, func() { m.Unlock() })
}

func TestAcquire_NotConnected(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	_, err := e.acquire(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAcquire_CancelledContextHoldsNothing(t *testing.T) {
	e, _ := newMockEngine(t, dialect.Postgres{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.acquire(ctx, true)
	require.Error(t, err)

	// The logical lock must have been released on the failure path.
	require.NoError(t, e.logical.Lock(context.Background()))
	e.logical.Unlock()
}

func TestKeepAlive_ReusesPinnedConnectionAndPreparedStatement(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{Strategy: StrategyKeepAlive})

	const sqlText = `DELETE FROM "users" WHERE "id" = $1`
	mock.ExpectPrepare(sqlText)
	mock.ExpectExec(sqlText).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := e.Delete(context.Background(), &mockUser{ID: 1})
	require.NoError(t, err)
	_, err = e.Delete(context.Background(), &mockUser{ID: 2})
	require.NoError(t, err, "second call reuses the statement prepared on the pinned connection")

	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, e.Close())
}

type noPrepareDialect struct{ dialect.Postgres }

func (noPrepareDialect) Name() string { return "noprepare" }

func (noPrepareDialect) ShouldDisablePrepare(err error) bool {
	return errors.Is(err, errNoServerPrepare)
}

var errNoServerPrepare = errors.New("prepared statements not supported")

func TestPrepare_DisablesPermanentlyOnClassifiedError(t *testing.T) {
	e, mock := newMockEngine(t, noPrepareDialect{}, Options{Strategy: StrategyKeepAlive})

	const sqlText = `DELETE FROM "users" WHERE "id" = $1`
	mock.ExpectPrepare(sqlText).WillReturnError(errNoServerPrepare)
	mock.ExpectExec(sqlText).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	// Second statement skips preparation entirely.
	mock.ExpectExec(sqlText).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := e.Delete(context.Background(), &mockUser{ID: 1})
	require.NoError(t, err)
	_, err = e.Delete(context.Background(), &mockUser{ID: 2})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepare_UnclassifiedErrorPropagates(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{})

	const sqlText = `DELETE FROM "users" WHERE "id" = $1`
	boom := errors.New("syntax error")
	mock.ExpectPrepare(sqlText).WillReturnError(boom)

	_, err := e.Delete(context.Background(), &mockUser{ID: 1})
	assert.ErrorIs(t, err, boom)
}

func TestAssertWriter_RefusesForeignConnection(t *testing.T) {
	e := New(dialect.Postgres{}, Options{Strategy: StrategySingleWriter})

	err := e.assertWriter(&conn{})
	var wErr *WriteConnectionError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, StrategySingleWriter, wErr.Strategy)

	e2 := New(dialect.Postgres{}, Options{})
	assert.NoError(t, e2.assertWriter(&conn{}), "only SingleWriter enforces the writer pin")
}
