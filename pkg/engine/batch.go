package engine

import (
	"context"
	"strings"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// batchChunkRows computes how many rows fit one multi-row statement:
// max(1, floor(limit * 0.9) / columns). The 10% headroom leaves space for
// conflict clauses and driver-internal parameters.
func batchChunkRows(limit, columns int) int {
	if columns <= 0 {
		return 1
	}
	rows := int(float64(limit)*0.9) / columns
	if rows < 1 {
		return 1
	}
	return rows
}

// CreateBatch inserts items in chunked multi-row statements, preserving
// input order across chunks. A single-element batch short-circuits to the
// non-batch path. Returns the total affected count.
func CreateBatch[T any](ctx context.Context, e *Engine, items []*T) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if len(items) == 1 {
		if err := e.Create(ctx, items[0]); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return e.batchInsert(ctx, toAnySlice(items), "")
}

// UpsertBatch upserts items in chunked multi-row statements. Dialects with
// an insert-level conflict clause get one statement per chunk; MERGE-only
// and portable dialects fall back to per-item upserts in input order.
func UpsertBatch[T any](ctx context.Context, e *Engine, items []*T) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if len(items) == 1 {
		return e.Upsert(ctx, items[0])
	}

	entities := toAnySlice(items)
	t, err := e.tableOf(entities[0])
	if err != nil {
		return 0, err
	}
	keys := t.ConflictKey()
	if len(keys) == 0 {
		return 0, configErr(t.Name, "upsert requires a client-writable identity or a primary key")
	}

	caps := e.d.Capabilities()
	if !caps.InsertOnConflict && !caps.OnDuplicateKey {
		var total int64
		for _, entity := range entities {
			n, err := e.Upsert(ctx, entity)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return 0, err
	}
	var clause string
	if caps.InsertOnConflict {
		clause = e.onConflictClause(t, tpl, keys)
	} else {
		clause = e.onDuplicateClause(t, tpl, keys)
	}
	return e.batchInsert(ctx, entities, clause)
}

// batchInsert emits one multi-row INSERT (plus an optional conflict
// clause) per chunk and sums the affected counts.
func (e *Engine) batchInsert(ctx context.Context, entities []any, conflictClause string) (int64, error) {
	t, err := e.tableOf(entities[0])
	if err != nil {
		return 0, err
	}
	for _, entity := range entities {
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
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return 0, err
	}
	cols := tpl.insertCols
	if len(cols) == 0 {
		return 0, configErr(t.Name, "no insertable columns")
	}
	rowsPerChunk := batchChunkRows(e.d.Capabilities().MaxParameters, len(cols))

	var total int64
	for start := 0; start < len(entities); start += rowsPerChunk {
		end := start + rowsPerChunk
		if end > len(entities) {
			end = len(entities)
		}
		n, err := e.insertChunk(ctx, t, tpl, entities[start:end], conflictClause)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) insertChunk(ctx context.Context, t *metadata.Table, tpl *compiledTemplate, chunk []any, conflictClause string) (int64, error) {
	cmd := e.newCommand("BATCH", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(chunk) * len(tpl.insertCols)); err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tpl.tableIdent)
	b.WriteString(" (")
	for i, c := range tpl.insertCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.d.WrapIdentifier(c.Name))
	}
	b.WriteString(") VALUES ")
	for ri, entity := range chunk {
		if ri > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for ci, c := range tpl.insertCols {
			if ci > 0 {
				b.WriteString(", ")
			}
			b.WriteString(cmd.bindMarker(c.Tag, bindValue(c, entity)))
		}
		b.WriteString(")")
	}
	b.WriteString(conflictClause)

	cmd.Append(b.String())
	return cmd.ExecuteNonQuery(ctx)
}

func toAnySlice[T any](items []*T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
