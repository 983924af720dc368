package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

func TestKeyPredicate_SingleColumn(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	table := discoverTable(t, mockUser{}, "", "users")
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	where, err := cmd.keyPredicate(table.RowKey(), [][]any{{int64(7)}})
	require.NoError(t, err)
	assert.Equal(t, `"id" = $1`, where)
	assert.Equal(t, 1, cmd.ParameterCount())
}

func TestKeyPredicate_CompositeKeyMultiRow(t *testing.T) {
	type link struct {
		Left  int64 `db:"left_id,pk=1"`
		Right int64 `db:"right_id,pk=2"`
	}
	e := New(dialect.Postgres{}, Options{})
	table := discoverTable(t, link{}, "", "links")
	cmd := e.newCommand("SELECT", "links")
	defer cmd.Close()

	where, err := cmd.keyPredicate(table.Keys, [][]any{{int64(1), int64(2)}, {int64(3), int64(4)}})
	require.NoError(t, err)
	assert.Equal(t, `("left_id" = $1 AND "right_id" = $2) OR ("left_id" = $3 AND "right_id" = $4)`, where)
}

func TestKeyPredicate_NullBecomesIsNull(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	table := discoverTable(t, mockUser{}, "", "users")
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	where, err := cmd.keyPredicate(table.RowKey(), [][]any{{nil}})
	require.NoError(t, err)
	assert.Equal(t, `"id" IS NULL`, where)
	assert.Equal(t, 0, cmd.ParameterCount())
}

func TestKeyPredicate_ArityMismatch(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	table := discoverTable(t, mockUser{}, "", "users")
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	_, err := cmd.keyPredicate(table.RowKey(), [][]any{{int64(1), int64(2)}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestKeyPredicate_NoKeyColumns(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	_, err := cmd.keyPredicate(nil, [][]any{{int64(1)}})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func idColumn(t *testing.T) *metadata.Column {
	t.Helper()
	return discoverTable(t, mockUser{}, "", "users").Column("id")
}

func TestInPredicate_SetValuedParameter(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	where, err := cmd.inPredicate(idColumn(t), []any{int64(1), int64(2), int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, `"id" = ANY($1)`, where)
	assert.Equal(t, 1, cmd.ParameterCount(), "one array parameter replaces the scalar list")
}

func TestInPredicate_ScalarListDeduplicates(t *testing.T) {
	e := New(dialect.MySQL{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	where, err := cmd.inPredicate(idColumn(t), []any{int64(1), int64(2), int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "`id` IN (?, ?)", where)
	assert.Equal(t, 2, cmd.ParameterCount())
}

func TestInPredicate_BinaryIdentifiersBypassDedupe(t *testing.T) {
	e := New(dialect.MySQL{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	where, err := cmd.inPredicate(idColumn(t), []any{[]byte{0x01}, []byte{0x01}, int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "`id` IN (?, ?, ?)", where)
	assert.Equal(t, 3, cmd.ParameterCount(), "unhashable identifiers are bound as given")
}

func TestInPredicate_RejectsNullAndEmpty(t *testing.T) {
	e := New(dialect.MySQL{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	_, err := cmd.inPredicate(idColumn(t), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = cmd.inPredicate(idColumn(t), []any{int64(1), nil})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, cmd.ParameterCount(), "validation happens before any parameter is bound")
}

func TestInPredicate_CapacityCheckedBeforeBinding(t *testing.T) {
	e := New(tinyDialect{}, Options{})
	cmd := e.newCommand("SELECT", "users")
	defer cmd.Close()

	_, err := cmd.inPredicate(idColumn(t), []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6)})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 6, capErr.Count)
	assert.Equal(t, 5, capErr.Limit)
	assert.Equal(t, 0, cmd.ParameterCount())
}
