package engine

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// planKey identifies a cached row-mapping plan: the entity type plus the
// shape signature of the result set.
type planKey struct {
	goType reflect.Type
	shape  uint64
}

// shapeSignature hashes the ordered (column name, provider field type)
// sequence of a result set. Two results with the same signature share a
// mapping plan.
func shapeSignature(names, dbTypes []string) uint64 {
	h := xxhash.New()
	for i, n := range names {
		_, _ = h.WriteString(n)
		_, _ = h.Write([]byte{0})
		if i < len(dbTypes) {
			_, _ = h.WriteString(dbTypes[i])
		}
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

type stepKind uint8

const (
	stepDrop   stepKind = iota // result column with no mapped target
	stepFast                   // native value directly scannable into the field
	stepCoerce                 // per-column conversion after the scan
)

type planStep struct {
	kind   stepKind
	column *metadata.Column
	coerce coerceFunc // stepCoerce only

	// direct marks fast-path fields whose type absorbs a DB null on its
	// own (pointers, byte slices, sql.Scanner implementers). Everything
	// else scans through an intermediate so a null can be skipped.
	direct bool
}

// readPlan is the immutable mapping plan for one result shape: one combined
// scan pass for every fast-path column, then individually dispatched
// coercion entries.
type readPlan struct {
	goType reflect.Type
	steps  []planStep
}

// planFor resolves the mapping plan for the current result set, reusing the
// bounded plan cache on shape hits.
func (e *Engine) planFor(rows *sql.Rows, table *metadata.Table) (*readPlan, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	key := planKey{goType: table.GoType, shape: shapeSignature(names, dbTypes)}
	return e.plans.GetOrInsert(key, func() (*readPlan, error) {
		return buildPlan(table, names)
	})
}

func buildPlan(table *metadata.Table, names []string) (*readPlan, error) {
	p := &readPlan{goType: table.GoType, steps: make([]planStep, len(names))}
	for i, name := range names {
		col := table.Column(name)
		if col == nil {
			p.steps[i] = planStep{kind: stepDrop}
			continue
		}
		if fastScannable(col) {
			p.steps[i] = planStep{kind: stepFast, column: col, direct: directScannable(col.GoType)}
			continue
		}
		fn, err := coercerFor(col)
		if err != nil {
			return nil, err
		}
		p.steps[i] = planStep{kind: stepCoerce, column: col, coerce: fn}
	}
	return p, nil
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// fastScannable reports whether the provider's native value can scan
// straight into the field with no coercion entry.
func fastScannable(col *metadata.Column) bool {
	if col.IsEnum || col.IsJSON {
		return false
	}
	switch col.Tag {
	case metadata.TagDecimal, metadata.TagUUID:
		return false
	}
	t := col.GoType
	if reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		// Named primitive types still need conversion after the scan.
		return t.PkgPath() == ""
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return t == reflect.TypeOf(time.Time{})
}

// directScannable reports whether a fast-path field can be handed to
// rows.Scan as-is: its type already represents a DB null as nil.
func directScannable(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Ptr:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// mapRow scans the current row into entity, running the fast pass first and
// the coercion entries afterwards.
//
// DB nulls leave the target at its default. A coercion producing null for a
// non-nullable target is likewise skipped unless the engine's coercion
// policy is strict.
func (p *readPlan) mapRow(e *Engine, rows *sql.Rows, entity any) error {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: Scan requires a non-nil pointer entity", ErrInvalidArgument)
	}
	if rv.Type().Elem() != p.goType {
		return fmt.Errorf("%w: Scan target %s does not match plan type %s",
			ErrInvalidArgument, rv.Type().Elem(), p.goType)
	}
	root := rv.Elem()

	dests := make([]any, len(p.steps))
	raw := make([]any, len(p.steps))
	fields := make([]reflect.Value, len(p.steps))
	for i, st := range p.steps {
		switch st.kind {
		case stepFast:
			f := fieldByPathAlloc(root, st.column.Index)
			if st.direct {
				dests[i] = f.Addr().Interface()
			} else {
				fields[i] = f
				dests[i] = &raw[i]
			}
		default:
			dests[i] = &raw[i]
		}
	}
	if err := rows.Scan(dests...); err != nil {
		return err
	}

	for i, st := range p.steps {
		switch st.kind {
		case stepFast:
			if st.direct || raw[i] == nil {
				continue // DB null: property keeps its default
			}
			if err := assignFast(fields[i], raw[i]); err != nil {
				return fmt.Errorf("engine: column %s: %w", st.column.Name, err)
			}

		case stepCoerce:
			src := raw[i]
			if src == nil {
				continue // DB null: property keeps its default
			}
			v, err := st.coerce(e, st.column, src)
			if err != nil {
				return err
			}
			if v == nil {
				if !st.column.Nullable() && e.coercion.StrictNulls {
					return fmt.Errorf("engine: null coerced into non-nullable column %s", st.column.Name)
				}
				if !st.column.Nullable() {
					continue // leave default
				}
			}
			if err := st.column.Set(entity, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignFast writes a driver-native value into a non-direct fast-path
// field. Only value-typed primitives and time.Time reach here.
func assignFast(f reflect.Value, src any) error {
	sv := reflect.ValueOf(src)
	if sv.Type() == f.Type() {
		f.Set(sv)
		return nil
	}
	if b, ok := src.([]byte); ok && f.Kind() == reflect.String {
		f.SetString(string(b))
		return nil
	}
	// Providers without a native boolean surface integers.
	if n, ok := src.(int64); ok && f.Kind() == reflect.Bool {
		f.SetBool(n != 0)
		return nil
	}
	v, err := convertValue(f.Type(), src)
	if err != nil {
		return err
	}
	f.Set(reflect.ValueOf(v))
	return nil
}

// fieldByPathAlloc walks a field index path, allocating intermediate nil
// pointers so the final field is addressable.
func fieldByPathAlloc(root reflect.Value, path []int) reflect.Value {
	v := root
	for _, i := range path {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}
	return v
}
