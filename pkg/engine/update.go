package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// UpdateOption tunes one Update call.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	compareOriginal bool
}

// WithOriginalCompare reloads the original row by key before the update and
// includes in the SET clause only the columns whose values actually differ.
func WithOriginalCompare() UpdateOption {
	return func(c *updateConfig) { c.compareOriginal = true }
}

// UpdateResult reports an update's outcome. Zero affected rows on a
// versioned update is a concurrency conflict, reported as a result rather
// than an error so callers can retry or surface it.
type UpdateResult struct {
	Affected  int64
	versioned bool
}

// Conflict reports whether a versioned update matched no row.
func (r UpdateResult) Conflict() bool { return r.versioned && r.Affected == 0 }

// Update writes an entity's updatable columns back by row key. When the
// entity has a version column the statement increments it and requires the
// pre-update value in the WHERE clause; zero affected rows then signals a
// concurrency conflict.
func (e *Engine) Update(ctx context.Context, entity any, opts ...UpdateOption) (UpdateResult, error) {
	var cfg updateConfig
	for _, o := range opts {
		o(&cfg)
	}

	t, err := e.tableOf(entity)
	if err != nil {
		return UpdateResult{}, err
	}
	keys := t.RowKey()
	if len(keys) == 0 {
		return UpdateResult{}, configErr(t.Name, "update requires an identity or primary key")
	}
	if err := e.prepareAudit(ctx, t, entity, false); err != nil {
		return UpdateResult{}, err
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return UpdateResult{}, err
	}

	setCols := tpl.updateCols
	if cfg.compareOriginal {
		setCols, err = e.diffAgainstOriginal(ctx, t, entity, tpl.updateCols)
		if err != nil {
			return UpdateResult{}, err
		}
	}
	if len(setCols) == 0 {
		return UpdateResult{}, ErrNoChanges
	}

	cmd := e.newCommand("UPDATE", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(setCols) + len(keys) + 1); err != nil {
		return UpdateResult{}, err
	}

	// SET binds first, WHERE second; marker positions follow bind order.
	var set strings.Builder
	for i, c := range setCols {
		if i > 0 {
			set.WriteString(", ")
		}
		set.WriteString(e.d.WrapIdentifier(c.Name))
		set.WriteString(" = ")
		set.WriteString(cmd.bindMarker(c.Tag, bindValue(c, entity)))
	}

	versioned := t.Version != nil
	var oldVersion any
	if versioned && t.Version.Tag != metadata.TagBinary {
		ident := e.d.WrapIdentifier(t.Version.Name)
		set.WriteString(", ")
		set.WriteString(ident)
		set.WriteString(" = ")
		set.WriteString(ident)
		set.WriteString(" + 1")
	}

	where, err := cmd.keyPredicate(keys, [][]any{entityKeyValues(keys, entity)})
	if err != nil {
		return UpdateResult{}, err
	}
	if versioned {
		oldVersion = t.Version.Get(entity)
		ident := e.d.WrapIdentifier(t.Version.Name)
		if oldVersion == nil {
			where += " AND " + ident + " IS NULL"
		} else {
			where += " AND " + ident + " = " + cmd.bindMarker(t.Version.Tag, oldVersion)
		}
	}

	cmd.Append(fmt.Sprintf(tpl.updateSkeleton, set.String(), where))

	affected, err := cmd.ExecuteNonQuery(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	if affected > 0 && versioned && t.Version.Tag != metadata.TagBinary {
		if err := bumpVersion(t.Version, entity); err != nil {
			return UpdateResult{}, err
		}
	}
	return UpdateResult{Affected: affected, versioned: versioned}, nil
}

// diffAgainstOriginal reloads the row and keeps only the columns whose new
// value differs from the stored one. Last-updated audit columns are always
// freshly stamped, so they are excluded from the comparison and written
// only when a substantive column changed. A failed reload is advisory and
// falls back to writing every updatable column.
func (e *Engine) diffAgainstOriginal(ctx context.Context, t *metadata.Table, entity any, updateCols []*metadata.Column) ([]*metadata.Column, error) {
	original, err := e.retrieveByKey(ctx, t, entityKeyValues(t.RowKey(), entity))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return updateCols, nil
		}
		return nil, err
	}
	var changed, stamps []*metadata.Column
	for _, c := range updateCols {
		if c.UpdatedOn || c.UpdatedBy {
			stamps = append(stamps, c)
			continue
		}
		if !valuesEqual(c, c.Get(entity), c.Get(original)) {
			changed = append(changed, c)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}
	return append(changed, stamps...), nil
}

// valuesEqual compares two column values with type-aware semantics:
// byte-sequence comparison for binary, exact rational comparison for
// decimal/currency, UTC-normalized comparison for datetimes, deep equality
// otherwise.
func valuesEqual(col *metadata.Column, a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch col.Tag {
	case metadata.TagBinary:
		ab, aok := asBytes(a)
		bb, bok := asBytes(b)
		if aok && bok {
			return bytes.Equal(ab, bb)
		}
	case metadata.TagDecimal:
		ar, aerr := ratOf(a)
		br, berr := ratOf(b)
		if aerr == nil && berr == nil {
			return ar.Cmp(br) == 0
		}
	case metadata.TagDateTime:
		at, aok := asTime(a)
		bt, bok := asTime(b)
		if aok && bok {
			return at.UTC().Equal(bt.UTC())
		}
	}
	return reflect.DeepEqual(a, b)
}

func asBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	return nil, false
}

func asTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return *ts, true
	}
	return time.Time{}, false
}

// bumpVersion mirrors the database-side version increment on the in-memory
// entity after a successful update.
func bumpVersion(col *metadata.Column, entity any) error {
	v := col.Get(entity)
	if v == nil {
		return col.Set(entity, int64(1))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return col.Set(entity, rv.Int()+1)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return col.Set(entity, rv.Uint()+1)
	}
	return nil
}
