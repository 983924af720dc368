package engine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

func TestCommand_BuildAndExecute(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{})

	cmd := e.newCommand("UPDATE", "users")
	defer cmd.Close()
	cmd.Append(`UPDATE "users" SET "name" = `)
	cmd.Append(e.d.Marker(1))
	cmd.AddValue(metadata.TagString, "ana")
	assert.Equal(t, `UPDATE "users" SET "name" = $1`, cmd.SQL())
	assert.Equal(t, 1, cmd.ParameterCount())

	mock.ExpectPrepare(cmd.SQL())
	mock.ExpectExec(cmd.SQL()).WithArgs("ana").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := cmd.ExecuteNonQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_SetParameterValueRebinds(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{})

	cmd := e.newCommand("UPDATE", "users")
	defer cmd.Close()
	cmd.Append(`UPDATE "users" SET "name" = $1`)
	cmd.AddValue(metadata.TagString, "old")
	require.NoError(t, cmd.SetParameterValue("p1", "new"))

	mock.ExpectPrepare(cmd.SQL())
	mock.ExpectExec(cmd.SQL()).WithArgs("new").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := cmd.ExecuteNonQuery(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommand_ExecuteScalarNoRow(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{})

	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()
	cmd.Append(`SELECT "id" FROM "users" WHERE "id" = $1`)
	cmd.AddValue(metadata.TagInt, int64(404))

	mock.ExpectPrepare(cmd.SQL())
	mock.ExpectQuery(cmd.SQL()).WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := cmd.ExecuteScalar(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommand_CheckCapacity(t *testing.T) {
	e := New(tinyDialect{}, Options{})
	cmd := e.newCommand("INSERT", "users")
	defer cmd.Close()

	require.NoError(t, cmd.checkCapacity(5))
	err := cmd.checkCapacity(6)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 5, capErr.Limit)
}

func TestCommand_ParameterReclamationWaitsForCursor(t *testing.T) {
	e, mock := newMockEngine(t, dialect.Postgres{}, Options{})
	table, err := e.tableOf(&mockUser{})
	require.NoError(t, err)

	const sqlText = `SELECT "id", "name", "email" FROM "users" WHERE "id" = $1`
	mock.ExpectPrepare(sqlText)
	mock.ExpectQuery(sqlText).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(1), "Ana", "a@x"))

	cmd := e.newCommand("SELECT", "users")
	cmd.Append(sqlText)
	p := cmd.AddValue(metadata.TagInt, int64(1))

	cur, err := cmd.ExecuteReader(context.Background(), table)
	require.NoError(t, err)

	cmd.Close()
	assert.Equal(t, int64(1), p.Value, "parameters stay bound while the cursor is open")

	require.True(t, cur.Next())
	var u mockUser
	require.NoError(t, cur.Scan(&u))
	assert.Equal(t, "Ana", u.Name)

	require.NoError(t, cur.Close())
	assert.Nil(t, p.Value, "closing the last cursor reclaims the pooled parameters")
	require.NoError(t, mock.ExpectationsWereMet())
}
