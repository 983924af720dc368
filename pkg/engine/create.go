package engine

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Create inserts an entity. Database-generated identities are read back via
// the dialect's RETURNING clause when supported, otherwise through the
// dialect's last-inserted-id query on the same connection. Client-writable
// identities that are unset are generated before rendering, so every insert
// carries a definite key.
func (e *Engine) Create(ctx context.Context, entity any) error {
	t, err := e.tableOf(entity)
	if err != nil {
		return err
	}
	if err := e.prepareAudit(ctx, t, entity, true); err != nil {
		return err
	}
	if err := prepareVersion(t, entity); err != nil {
		return err
	}
	if t.Identity != nil && t.Identity.IdentityWritable && t.Identity.IsZero(entity) {
		if err := generateIdentity(t.Identity, entity); err != nil {
			return err
		}
	}

	tpl, err := e.templateFor(t)
	if err != nil {
		return err
	}

	cmd := e.newCommand("INSERT", t.Name)
	defer cmd.Close()
	if err := cmd.checkCapacity(len(tpl.insertCols)); err != nil {
		return err
	}

	caps := e.d.Capabilities()
	wantGenerated := t.Identity != nil && !t.Identity.IdentityWritable

	if wantGenerated && caps.InsertReturning {
		cmd.Append(tpl.insertReturning)
		for _, c := range tpl.insertCols {
			cmd.AddValue(c.Tag, bindValue(c, entity))
		}
		v, err := cmd.ExecuteScalar(ctx)
		if err != nil {
			return err
		}
		return assignScanned(e, t.Identity, entity, v)
	}

	cmd.Append(tpl.insert)
	for _, c := range tpl.insertCols {
		cmd.AddValue(c.Tag, bindValue(c, entity))
	}

	if !wantGenerated {
		_, err := cmd.ExecuteNonQuery(ctx)
		return err
	}

	// No RETURNING support: run the insert and the last-inserted-id
	// follow-up as one logical unit on one connection.
	l, err := e.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer l.release()
	if _, err := cmd.executeNonQueryOn(ctx, l); err != nil {
		return err
	}

	follow := e.newCommand("INSERT", t.Name)
	defer follow.Close()
	follow.Append(e.d.LastInsertIDQuery())
	v, err := follow.scalarOn(ctx, l)
	if err != nil {
		return err
	}
	return assignScanned(e, t.Identity, entity, v)
}

// generateIdentity fills an unset client-writable identity with a random
// 128-bit identifier in the column's representation.
func generateIdentity(col *metadata.Column, entity any) error {
	t := col.GoType
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t == reflect.TypeOf(uuid.UUID{}):
		return col.Set(entity, uuid.New())
	case t.Kind() == reflect.String:
		return col.Set(entity, uuid.NewString())
	case t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Uint8:
		return col.Set(entity, [16]byte(uuid.New()))
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		id := uuid.New()
		return col.Set(entity, id[:])
	}
	return configErr("", "unsupported row-identifier type %s for generated identity %s", col.GoType, col.Name)
}

// assignScanned writes a provider value into a column through the column's
// coercion entry, so RETURNING payloads follow the same rules as reads.
func assignScanned(e *Engine, col *metadata.Column, entity any, raw any) error {
	if raw == nil {
		return nil
	}
	fn, err := coercerFor(col)
	if err != nil {
		return err
	}
	v, err := fn(e, col, raw)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return col.Set(entity, v)
}
