package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Retrieve loads the entity with the given row key into a new T.
// Returns ErrNotFound when no row matches.
func Retrieve[T any](ctx context.Context, e *Engine, key ...any) (*T, error) {
	var proto T
	t, err := e.tableOfType(reflect.TypeOf(proto))
	if err != nil {
		return nil, err
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return nil, err
	}

	cmd := e.newCommand("SELECT", t.Name)
	defer cmd.Close()
	where, err := cmd.keyPredicate(t.RowKey(), [][]any{key})
	if err != nil {
		return nil, err
	}
	cmd.Append(fmt.Sprintf(tpl.selectSkeleton, where))

	cur, err := cmd.ExecuteReader(ctx, t)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	out := new(T)
	if err := cur.Scan(out); err != nil {
		return nil, err
	}
	return out, cur.Err()
}

// RetrieveMany loads the entities whose single-column row key is in ids.
// Input identifiers are deduplicated; a null identifier is a caller error.
func RetrieveMany[T any](ctx context.Context, e *Engine, ids ...any) ([]*T, error) {
	var proto T
	t, err := e.tableOfType(reflect.TypeOf(proto))
	if err != nil {
		return nil, err
	}
	keys := t.RowKey()
	if len(keys) != 1 {
		return nil, configErr(t.Name, "RetrieveMany requires a single-column row key")
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return nil, err
	}

	cmd := e.newCommand("SELECT", t.Name)
	defer cmd.Close()
	where, err := cmd.inPredicate(keys[0], ids)
	if err != nil {
		return nil, err
	}
	cmd.Append(fmt.Sprintf(tpl.selectSkeleton, where))

	cur, err := cmd.ExecuteReader(ctx, t)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []*T
	for cur.Next() {
		item := new(T)
		if err := cur.Scan(item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, cur.Err()
}

// Query runs an arbitrary statement and returns a live cursor mapped to T.
// The cursor owns its connection until closed.
func Query[T any](ctx context.Context, e *Engine, sqlText string, args ...any) (*Cursor, error) {
	var proto T
	t, err := e.tableOfType(reflect.TypeOf(proto))
	if err != nil {
		return nil, err
	}
	cmd := e.newCommand("QUERY", t.Name)
	cmd.Append(sqlText)
	for _, a := range args {
		cmd.AddValue("", a)
	}
	cur, err := cmd.ExecuteReader(ctx, t)
	if err != nil {
		cmd.Close()
		return nil, err
	}
	cmd.Close() // parameters reclaim when the cursor closes
	return cur, nil
}

// retrieveByKey reloads one row by key into a fresh instance of the
// table's type. The reload is advisory (it feeds the update diff), so
// provider errors downgrade to ErrNotFound instead of propagating.
func (e *Engine) retrieveByKey(ctx context.Context, t *metadata.Table, key []any) (any, error) {
	tpl, err := e.templateFor(t)
	if err != nil {
		return nil, err
	}
	cmd := e.newCommand("SELECT", t.Name)
	defer cmd.Close()
	where, err := cmd.keyPredicate(t.RowKey(), [][]any{key})
	if err != nil {
		return nil, err
	}
	cmd.Append(fmt.Sprintf(tpl.selectSkeleton, where))

	cur, err := cmd.ExecuteReader(ctx, t)
	if err != nil {
		return nil, ErrNotFound
	}
	defer cur.Close()
	if !cur.Next() {
		return nil, ErrNotFound
	}
	out := reflect.New(t.GoType).Interface()
	if err := cur.Scan(out); err != nil {
		return nil, ErrNotFound
	}
	return out, nil
}
