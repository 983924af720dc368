package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// bindMarker binds value as the next parameter and returns its rendered
// marker for embedding into SQL text.
func (cmd *Command) bindMarker(tag metadata.TypeTag, value any) string {
	n := cmd.params.Count() + 1
	cmd.params.AddValue(tag, value)
	return cmd.eng.d.Marker(n)
}

// keyPredicate renders an equality predicate over the key columns for one
// or more rows: `=` or `IS NULL` per column, ANDed within a row group and
// ORed across rows.
func (cmd *Command) keyPredicate(cols []*metadata.Column, rows [][]any) (string, error) {
	if len(cols) == 0 {
		return "", configErr(cmd.entity, "operation requires an identity or primary key")
	}
	if err := cmd.checkCapacity(len(cols) * len(rows)); err != nil {
		return "", err
	}

	var b strings.Builder
	for ri, row := range rows {
		if len(row) != len(cols) {
			return "", fmt.Errorf("%w: key has %d values, want %d", ErrInvalidArgument, len(row), len(cols))
		}
		if ri > 0 {
			b.WriteString(" OR ")
		}
		group := len(rows) > 1 && len(cols) > 1
		if group {
			b.WriteString("(")
		}
		for ci, col := range cols {
			if ci > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(cmd.eng.d.WrapIdentifier(col.Name))
			if row[ci] == nil {
				b.WriteString(" IS NULL")
				continue
			}
			b.WriteString(" = ")
			b.WriteString(cmd.bindMarker(col.Tag, row[ci]))
		}
		if group {
			b.WriteString(")")
		}
	}
	return b.String(), nil
}

// entityKeyValues extracts the key column values from an entity.
func entityKeyValues(cols []*metadata.Column, entity any) []any {
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = c.Get(entity)
	}
	return vals
}

// inPredicate renders an IN-list (or array-equality) predicate over a
// single key column. Input identifiers are deduplicated; a null identifier
// or an empty list is a caller error raised before any parameter is added;
// the post-addition parameter count is verified against the provider limit
// before binding, failing fast rather than truncating.
func (cmd *Command) inPredicate(col *metadata.Column, ids []any) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: empty identifier list", ErrInvalidArgument)
	}
	seen := make(map[any]struct{}, len(ids))
	distinct := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			return "", fmt.Errorf("%w: null identifier in list", ErrInvalidArgument)
		}
		// Unhashable identifiers (binary keys) bypass deduplication.
		if !reflect.TypeOf(id).Comparable() {
			distinct = append(distinct, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return "", fmt.Errorf("%w: empty identifier list", ErrInvalidArgument)
	}

	ident := cmd.eng.d.WrapIdentifier(col.Name)

	// One array parameter replaces N scalars when the provider takes
	// set-valued parameters.
	if cmd.eng.d.Capabilities().SetValuedParameters {
		if err := cmd.checkCapacity(1); err != nil {
			return "", err
		}
		return ident + " = ANY(" + cmd.bindMarker(col.Tag, distinct) + ")", nil
	}

	if err := cmd.checkCapacity(len(distinct)); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(ident)
	b.WriteString(" IN (")
	for i, id := range distinct {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cmd.bindMarker(col.Tag, id))
	}
	b.WriteString(")")
	return b.String(), nil
}
