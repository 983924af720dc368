package metadata

import (
	"fmt"
	"reflect"
	"sort"
)

// TypeTag is the provider-level data type of a column. It drives parameter
// typing, diff equality, and row-coercion decisions.
type TypeTag string

const (
	TagAuto     TypeTag = "auto" // inferred from the Go field type
	TagString   TypeTag = "string"
	TagInt      TypeTag = "int"
	TagFloat    TypeTag = "float"
	TagBool     TypeTag = "bool"
	TagDecimal  TypeTag = "decimal"
	TagDateTime TypeTag = "datetime"
	TagUUID     TypeTag = "uuid"
	TagBinary   TypeTag = "binary"
	TagJSON     TypeTag = "json"
)

// EnumPolicy controls what happens when an enum-typed column fails to parse.
type EnumPolicy int

const (
	EnumThrow EnumPolicy = iota
	EnumNullAndLog
	EnumDefault
)

// JSONOptions holds per-column serialization options for JSON-typed columns.
type JSONOptions struct {
	Indent bool
}

// Column describes one mapped column of a table.
//
// Get and Set are compiled once at discovery time and reused for every
// instance of the entity type.
type Column struct {
	Name   string
	Tag    TypeTag
	GoType reflect.Type
	Index  []int // field index path into the entity struct

	Identity         bool
	IdentityWritable bool
	Version          bool
	PrimaryKey       bool
	PKOrdinal        int

	CreatedBy bool
	CreatedOn bool
	UpdatedBy bool
	UpdatedOn bool

	NonInsertable bool
	NonUpdatable  bool

	IsEnum     bool
	EnumPolicy EnumPolicy
	IsJSON     bool
	JSON       JSONOptions

	Get func(entity any) any
	Set func(entity any, value any) error
}

// Nullable reports whether the mapped Go field can hold a null (pointer,
// slice, map or interface).
func (c *Column) Nullable() bool {
	switch c.GoType.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

// IsZero reports whether the column's current value on entity is the type's
// default (zero value).
func (c *Column) IsZero(entity any) bool {
	v := c.Get(entity)
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// Table is the compiled metadata of one entity type.
type Table struct {
	Schema string
	Name   string
	GoType reflect.Type

	Columns []*Column
	byName  map[string]*Column

	Identity *Column   // nil when the entity has no identity column
	Version  *Column   // nil when the entity has no version column
	Keys     []*Column // primary-key columns ordered by ordinal
}

// Column returns the column with the given database name, or nil.
func (t *Table) Column(name string) *Column {
	return t.byName[name]
}

// AuditColumns reports whether the table declares any audit column.
func (t *Table) AuditColumns() bool {
	for _, c := range t.Columns {
		if c.CreatedBy || c.CreatedOn || c.UpdatedBy || c.UpdatedOn {
			return true
		}
	}
	return false
}

// UserAuditColumns reports whether the table declares created-by or
// last-updated-by columns, which require an audit resolver to populate.
func (t *Table) UserAuditColumns() bool {
	for _, c := range t.Columns {
		if c.CreatedBy || c.UpdatedBy {
			return true
		}
	}
	return false
}

// ConflictKey resolves the column set upserts key on: a client-writable
// identity wins, then the primary-key set. An empty result means the table
// cannot be upserted.
func (t *Table) ConflictKey() []*Column {
	if t.Identity != nil && t.Identity.IdentityWritable {
		return []*Column{t.Identity}
	}
	if len(t.Keys) > 0 {
		return t.Keys
	}
	return nil
}

// RowKey resolves the column set that identifies a single row for
// retrieve/update/delete: the identity column when present, else the
// primary-key set.
func (t *Table) RowKey() []*Column {
	if t.Identity != nil {
		return []*Column{t.Identity}
	}
	return t.Keys
}

func (t *Table) finish() error {
	t.byName = make(map[string]*Column, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := t.byName[c.Name]; dup {
			return fmt.Errorf("metadata: duplicate column %q on %s", c.Name, t.GoType)
		}
		t.byName[c.Name] = c
		if c.Identity {
			if t.Identity != nil {
				return fmt.Errorf("metadata: %s declares more than one identity column", t.GoType)
			}
			t.Identity = c
		}
		if c.Version {
			if t.Version != nil {
				return fmt.Errorf("metadata: %s declares more than one version column", t.GoType)
			}
			t.Version = c
		}
		if c.PrimaryKey {
			t.Keys = append(t.Keys, c)
		}
	}
	sort.SliceStable(t.Keys, func(i, j int) bool {
		return t.Keys[i].PKOrdinal < t.Keys[j].PKOrdinal
	})
	return nil
}
