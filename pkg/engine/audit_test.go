package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

func auditEngine(t *testing.T, resolver AuditResolver) *Engine {
	t.Helper()
	e := New(dialect.Postgres{}, Options{Audit: resolver})
	require.NoError(t, e.Register(auditedDoc{}, "", "docs"))
	return e
}

func fixedResolver(user string, at time.Time) AuditResolver {
	return AuditResolverFunc(func(ctx context.Context) (any, time.Time) {
		return user, at
	})
}

func TestPrepareAudit_InsertWithResolver(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := auditEngine(t, fixedResolver("carol", at))
	table, err := e.tableOf(&auditedDoc{})
	require.NoError(t, err)

	doc := &auditedDoc{Title: "t"}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc, true))

	assert.Equal(t, "carol", doc.CreatedBy)
	assert.Equal(t, "carol", doc.UpdatedBy)
	assert.Equal(t, at, doc.CreatedOn)
	assert.Equal(t, at, doc.UpdatedOn)
}

func TestPrepareAudit_InsertPreservesExplicitValues(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	preset := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	e := auditEngine(t, fixedResolver("carol", at))
	table, err := e.tableOf(&auditedDoc{})
	require.NoError(t, err)

	doc := &auditedDoc{CreatedBy: "importer", CreatedOn: preset}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc, true))

	assert.Equal(t, "importer", doc.CreatedBy, "explicit created-by survives")
	assert.Equal(t, preset, doc.CreatedOn, "explicit created-on survives")
	assert.Equal(t, at, doc.UpdatedOn, "last-updated-on is always stamped")
}

func TestPrepareAudit_UpdateLeavesCreatedColumns(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := auditEngine(t, fixedResolver("carol", at))
	table, err := e.tableOf(&auditedDoc{})
	require.NoError(t, err)

	doc := &auditedDoc{CreatedBy: "dave"}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc, false))

	assert.Equal(t, "dave", doc.CreatedBy)
	assert.True(t, doc.CreatedOn.IsZero(), "created-on is not stamped on update")
	assert.Equal(t, "carol", doc.UpdatedBy)
}

func TestPrepareAudit_NoResolverFallsBackToSentinel(t *testing.T) {
	e := auditEngine(t, nil)
	table, err := e.tableOf(&auditedDoc{})
	require.NoError(t, err)

	doc := &auditedDoc{CreatedBy: "importer"}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc, true))
	assert.Equal(t, "system", doc.UpdatedBy)

	doc2 := &auditedDoc{CreatedBy: "importer", UpdatedBy: "earlier"}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc2, false))
	assert.Equal(t, "earlier", doc2.UpdatedBy, "an existing principal is preserved")
}

func TestPrepareAudit_CreatedByRequiresResolver(t *testing.T) {
	e := auditEngine(t, nil)
	table, err := e.tableOf(&auditedDoc{})
	require.NoError(t, err)

	err = e.prepareAudit(context.Background(), table, &auditedDoc{}, true)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "audit resolver")
}

func TestPrepareAudit_OptOutColumnsUseDatabaseDefaults(t *testing.T) {
	type defaultedDoc struct {
		ID        int64  `db:"id,identity"`
		CreatedBy string `db:"created_by,createdby,noinsert"`
		UpdatedBy string `db:"updated_by,updatedby,noupdate"`
	}
	e := New(dialect.Postgres{}, Options{})
	require.NoError(t, e.Register(defaultedDoc{}, "", "docs"))
	table, err := e.tableOf(&defaultedDoc{})
	require.NoError(t, err)

	doc := &defaultedDoc{}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc, true),
		"no resolver needed when created-by is opted out of inserts")
	assert.Empty(t, doc.CreatedBy)

	doc2 := &defaultedDoc{}
	require.NoError(t, e.prepareAudit(context.Background(), table, doc2, false))
	assert.Empty(t, doc2.UpdatedBy, "noupdate column is left for the database on updates")
}

func TestPrepareVersion_DefaultsToOne(t *testing.T) {
	e := New(dialect.Postgres{}, Options{})
	require.NoError(t, e.Register(mockAccount{}, "", "accounts"))
	table, err := e.tableOf(&mockAccount{})
	require.NoError(t, err)

	acc := &mockAccount{}
	require.NoError(t, prepareVersion(table, acc))
	assert.Equal(t, int64(1), acc.Version)

	acc2 := &mockAccount{Version: 5}
	require.NoError(t, prepareVersion(table, acc2))
	assert.Equal(t, int64(5), acc2.Version, "an explicit version is preserved")
}
