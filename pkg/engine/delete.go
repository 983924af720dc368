package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Delete removes an entity's row by its row key and returns the affected
// count.
func (e *Engine) Delete(ctx context.Context, entity any) (int64, error) {
	t, err := e.tableOf(entity)
	if err != nil {
		return 0, err
	}
	return e.deleteByKey(ctx, t, entityKeyValues(t.RowKey(), entity))
}

// DeleteByKey removes the row of T with the given key values.
func DeleteByKey[T any](ctx context.Context, e *Engine, key ...any) (int64, error) {
	var proto T
	t, err := e.tableOfType(reflect.TypeOf(proto))
	if err != nil {
		return 0, err
	}
	return e.deleteByKey(ctx, t, key)
}

func (e *Engine) deleteByKey(ctx context.Context, t *metadata.Table, key []any) (int64, error) {
	tpl, err := e.templateFor(t)
	if err != nil {
		return 0, err
	}
	cmd := e.newCommand("DELETE", t.Name)
	defer cmd.Close()
	where, err := cmd.keyPredicate(t.RowKey(), [][]any{key})
	if err != nil {
		return 0, err
	}
	cmd.Append(fmt.Sprintf(tpl.deleteSkeleton, where))
	return cmd.ExecuteNonQuery(ctx)
}
