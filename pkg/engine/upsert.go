package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// upsertStrategy is one way to express insert-or-update. Selection walks
// the table in fixed priority and takes the first strategy the dialect's
// capability flags support; the portable fallback always applies.
type upsertStrategy struct {
	name      string
	supported func(dialect.Capabilities) bool
	run       func(e *Engine, ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error)
}

var upsertStrategies = []upsertStrategy{
	{"merge", func(c dialect.Capabilities) bool { return c.Merge }, (*Engine).upsertMerge},
	{"on-conflict", func(c dialect.Capabilities) bool { return c.InsertOnConflict }, (*Engine).upsertOnConflict},
	{"on-duplicate-key", func(c dialect.Capabilities) bool { return c.OnDuplicateKey }, (*Engine).upsertOnDuplicate},
	{"portable", func(dialect.Capabilities) bool { return true }, (*Engine).upsertPortable},
}

// Upsert inserts the entity or updates the existing row with the same
// conflict key. The conflict key is the client-writable identity when the
// table has one, else the primary-key set.
func (e *Engine) Upsert(ctx context.Context, entity any) (int64, error) {
	t, err := e.tableOf(entity)
	if err != nil {
		return 0, err
	}
	keys := t.ConflictKey()
	if len(keys) == 0 {
		return 0, configErr(t.Name, "upsert requires a client-writable identity or a primary key")
	}

	// Audit and version preparation runs identically before any strategy.
	if err := e.prepareAudit(ctx, t, entity, true); err != nil {
		return 0, err
	}
	if err := prepareVersion(t, entity); err != nil {
		return 0, err
	}
	if t.Identity != nil && t.Identity.IdentityWritable && t.Identity.IsZero(entity) {
		if err := generateIdentity(t.Identity, entity); err != nil {
			return 0, err
		}
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return 0, err
	}

	strat := selectUpsertStrategy(e.d.Capabilities())
	return strat.run(e, ctx, t, tpl, entity, keys)
}

func selectUpsertStrategy(caps dialect.Capabilities) upsertStrategy {
	for _, s := range upsertStrategies {
		if s.supported(caps) {
			return s
		}
	}
	return upsertStrategies[len(upsertStrategies)-1]
}

// upsertSetCols are the columns the update arm of an upsert writes: the
// updatable set minus the conflict key itself.
func upsertSetCols(tpl *compiledTemplate, keys []*metadata.Column) []*metadata.Column {
	keyed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keyed[k.Name] = struct{}{}
	}
	var out []*metadata.Column
	for _, c := range tpl.updateCols {
		if _, isKey := keyed[c.Name]; !isKey {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) upsertOnConflict(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error) {
	cmd := e.newCommand("UPSERT", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(tpl.insertCols)); err != nil {
		return 0, err
	}

	cmd.Append(tpl.insert)
	for _, c := range tpl.insertCols {
		cmd.AddValue(c.Tag, bindValue(c, entity))
	}
	cmd.Append(e.onConflictClause(t, tpl, keys))
	return cmd.ExecuteNonQuery(ctx)
}

// onConflictClause renders the postgres/sqlite conflict-resolution suffix.
func (e *Engine) onConflictClause(t *metadata.Table, tpl *compiledTemplate, keys []*metadata.Column) string {
	var b strings.Builder
	b.WriteString(" ON CONFLICT (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.d.WrapIdentifier(k.Name))
	}
	b.WriteString(") DO UPDATE SET ")
	for i, c := range upsertSetCols(tpl, keys) {
		if i > 0 {
			b.WriteString(", ")
		}
		ident := e.d.WrapIdentifier(c.Name)
		b.WriteString(ident)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(ident)
	}
	if v := t.Version; v != nil && v.Tag != metadata.TagBinary {
		ident := e.d.WrapIdentifier(v.Name)
		b.WriteString(", ")
		b.WriteString(ident)
		b.WriteString(" = ")
		b.WriteString(tpl.tableIdent)
		b.WriteString(".")
		b.WriteString(ident)
		b.WriteString(" + 1")
	}
	return b.String()
}

func (e *Engine) upsertOnDuplicate(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error) {
	cmd := e.newCommand("UPSERT", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(tpl.insertCols)); err != nil {
		return 0, err
	}

	cmd.Append(tpl.insert)
	for _, c := range tpl.insertCols {
		cmd.AddValue(c.Tag, bindValue(c, entity))
	}
	cmd.Append(e.onDuplicateClause(t, tpl, keys))
	return cmd.ExecuteNonQuery(ctx)
}

// onDuplicateClause renders the mysql conflict-resolution suffix.
func (e *Engine) onDuplicateClause(t *metadata.Table, tpl *compiledTemplate, keys []*metadata.Column) string {
	var b strings.Builder
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	for i, c := range upsertSetCols(tpl, keys) {
		if i > 0 {
			b.WriteString(", ")
		}
		ident := e.d.WrapIdentifier(c.Name)
		b.WriteString(ident)
		b.WriteString(" = VALUES(")
		b.WriteString(ident)
		b.WriteString(")")
	}
	if v := t.Version; v != nil && v.Tag != metadata.TagBinary {
		ident := e.d.WrapIdentifier(v.Name)
		b.WriteString(", ")
		b.WriteString(ident)
		b.WriteString(" = ")
		b.WriteString(ident)
		b.WriteString(" + 1")
	}
	return b.String()
}

func (e *Engine) upsertMerge(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error) {
	cmd := e.newCommand("UPSERT", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(tpl.insertCols)); err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(tpl.tableIdent)
	b.WriteString(" AS tgt USING (VALUES (")
	for i, c := range tpl.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cmd.bindMarker(c.Tag, bindValue(c, entity)))
	}
	b.WriteString(")) AS src (")
	for i, c := range tpl.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.d.WrapIdentifier(c.Name))
	}
	b.WriteString(") ON ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		ident := e.d.WrapIdentifier(k.Name)
		b.WriteString("tgt.")
		b.WriteString(ident)
		b.WriteString(" = src.")
		b.WriteString(ident)
	}
	b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
	for i, c := range upsertSetCols(tpl, keys) {
		if i > 0 {
			b.WriteString(", ")
		}
		ident := e.d.WrapIdentifier(c.Name)
		b.WriteString(ident)
		b.WriteString(" = src.")
		b.WriteString(ident)
	}
	if v := t.Version; v != nil && v.Tag != metadata.TagBinary {
		ident := e.d.WrapIdentifier(v.Name)
		b.WriteString(", ")
		b.WriteString(ident)
		b.WriteString(" = tgt.")
		b.WriteString(ident)
		b.WriteString(" + 1")
	}
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	for i, c := range tpl.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.d.WrapIdentifier(c.Name))
	}
	b.WriteString(") VALUES (")
	for i, c := range tpl.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("src.")
		b.WriteString(e.d.WrapIdentifier(c.Name))
	}
	b.WriteString(")")

	cmd.Append(b.String())
	return cmd.ExecuteNonQuery(ctx)
}

// upsertPortable is the dialect-independent fallback: update by key first,
// insert when nothing matched. When a concurrent insert races ours into a
// unique violation, the update is retried exactly once.
func (e *Engine) upsertPortable(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error) {
	affected, err := e.portableUpdate(ctx, t, tpl, entity, keys)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		return affected, nil
	}

	insertErr := func() error {
		cmd := e.newCommand("UPSERT", t.Name)
		defer cmd.Close()
		if err := cmd.checkCapacity(len(tpl.insertCols)); err != nil {
			return err
		}
		cmd.Append(tpl.insert)
		for _, c := range tpl.insertCols {
			cmd.AddValue(c.Tag, bindValue(c, entity))
		}
		_, err := cmd.ExecuteNonQuery(ctx)
		return err
	}()
	if insertErr == nil {
		return 1, nil
	}
	if !e.d.IsUniqueViolation(insertErr) {
		return 0, insertErr
	}

	affected, err = e.portableUpdate(ctx, t, tpl, entity, keys)
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (e *Engine) portableUpdate(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, entity any, keys []*metadata.Column) (int64, error) {
	setCols := upsertSetCols(tpl, keys)
	if len(setCols) == 0 {
		return 0, nil
	}
	cmd := e.newCommand("UPSERT", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(setCols) + len(keys)); err != nil {
		return 0, err
	}

	var set strings.Builder
	for i, c := range setCols {
		if i > 0 {
			set.WriteString(", ")
		}
		set.WriteString(e.d.WrapIdentifier(c.Name))
		set.WriteString(" = ")
		set.WriteString(cmd.bindMarker(c.Tag, bindValue(c, entity)))
	}
	if v := t.Version; v != nil && v.Tag != metadata.TagBinary {
		ident := e.d.WrapIdentifier(v.Name)
		set.WriteString(", ")
		set.WriteString(ident)
		set.WriteString(" = ")
		set.WriteString(ident)
		set.WriteString(" + 1")
	}

	where, err := cmd.keyPredicate(keys, [][]any{entityKeyValues(keys, entity)})
	if err != nil {
		return 0, err
	}
	cmd.Append(fmt.Sprintf(tpl.updateSkeleton, set.String(), where))
	return cmd.ExecuteNonQuery(ctx)
}
