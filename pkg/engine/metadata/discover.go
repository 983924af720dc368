package metadata

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Discover builds a Table from a struct type by scanning its `db` tags.
// It runs once per entity type; the resulting accessors are closures over
// precomputed field index paths, so no per-row reflection lookups remain.
//
// Tag grammar: `db:"column_name,opt,opt=value,..."` with options
//
//	pk / pk=N           primary-key column (N = ordinal for composite keys)
//	identity            identity column (database-generated)
//	writable            with identity: client supplies the value
//	version             optimistic-concurrency version column
//	createdby createdon updatedby updatedon
//	noinsert noupdate
//	enum / enum=null / enum=default
//	json / json=indent
//	type=<tag>          provider type override (decimal, datetime, ...)
//
// A tag of "-" skips the field.
func Discover(goType reflect.Type, schema, table string) (*Table, error) {
	rt := goType
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata: %s is not a struct type", goType)
	}

	t := &Table{Schema: schema, Name: table, GoType: rt}
	if err := scanFields(t, rt, nil); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("metadata: %s has no mapped columns", rt)
	}
	if err := t.finish(); err != nil {
		return nil, err
	}
	for _, c := range t.Columns {
		compileAccessors(c)
	}
	return t, nil
}

func scanFields(t *Table, rt reflect.Type, base []int) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue // unexported
		}
		path := append(append([]int(nil), base...), i)

		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if sf.Anonymous && tag == "" {
			ft := sf.Type
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := scanFields(t, ft, path); err != nil {
					return err
				}
				continue
			}
		}

		col, err := parseColumnTag(sf, tag, path)
		if err != nil {
			return fmt.Errorf("metadata: %s.%s: %w", rt, sf.Name, err)
		}
		t.Columns = append(t.Columns, col)
	}
	return nil
}

func parseColumnTag(sf reflect.StructField, tag string, path []int) (*Column, error) {
	col := &Column{
		Name:   strings.ToLower(sf.Name),
		Tag:    TagAuto,
		GoType: sf.Type,
		Index:  path,
	}

	parts := strings.Split(tag, ",")
	if tag != "" && parts[0] != "" {
		col.Name = parts[0]
	}
	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "":
		case "pk":
			col.PrimaryKey = true
			if val != "" {
				n, err := strconv.Atoi(val)
				if err != nil {
					return nil, fmt.Errorf("bad pk ordinal %q", val)
				}
				col.PKOrdinal = n
			}
		case "identity":
			col.Identity = true
		case "writable":
			col.IdentityWritable = true
		case "version":
			col.Version = true
		case "createdby":
			col.CreatedBy = true
		case "createdon":
			col.CreatedOn = true
		case "updatedby":
			col.UpdatedBy = true
		case "updatedon":
			col.UpdatedOn = true
		case "noinsert":
			col.NonInsertable = true
		case "noupdate":
			col.NonUpdatable = true
		case "enum":
			col.IsEnum = true
			switch val {
			case "", "throw":
				col.EnumPolicy = EnumThrow
			case "null":
				col.EnumPolicy = EnumNullAndLog
			case "default":
				col.EnumPolicy = EnumDefault
			default:
				return nil, fmt.Errorf("unknown enum policy %q", val)
			}
		case "json":
			col.IsJSON = true
			col.Tag = TagJSON
			if val == "indent" {
				col.JSON.Indent = true
			}
		case "type":
			col.Tag = TypeTag(val)
		default:
			return nil, fmt.Errorf("unknown column option %q", key)
		}
	}
	if col.IdentityWritable && !col.Identity {
		return nil, fmt.Errorf("writable requires identity")
	}
	if col.Tag == TagAuto {
		col.Tag = inferTag(sf.Type)
	}
	return col, nil
}

var timeType = reflect.TypeOf(time.Time{})

func inferTag(t reflect.Type) TypeTag {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return TagDateTime
	}
	if t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Uint8 {
		return TagUUID
	}
	switch t.Kind() {
	case reflect.String:
		return TagString
	case reflect.Bool:
		return TagBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TagInt
	case reflect.Float32, reflect.Float64:
		return TagFloat
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TagBinary
		}
	}
	return TagString
}

// compileAccessors builds the Get/Set closures for a column. The index path
// is captured once; Set allocates intermediate nil pointers so embedded
// structs behave like flat columns.
func compileAccessors(c *Column) {
	path := c.Index
	goType := c.GoType

	c.Get = func(entity any) any {
		v := reflect.ValueOf(entity)
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		for _, i := range path {
			if v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return nil
				}
				v = v.Elem()
			}
			v = v.Field(i)
		}
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		return v.Interface()
	}

	c.Set = func(entity any, value any) error {
		v := reflect.ValueOf(entity)
		if v.Kind() != reflect.Ptr || v.IsNil() {
			return fmt.Errorf("metadata: Set requires a non-nil pointer entity")
		}
		v = v.Elem()
		for _, i := range path {
			if v.Kind() == reflect.Ptr {
				if v.IsNil() {
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
			v = v.Field(i)
		}
		if value == nil {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		rv := reflect.ValueOf(value)
		if v.Kind() == reflect.Ptr {
			if rv.Type() == v.Type() {
				v.Set(rv)
				return nil
			}
			elem := reflect.New(v.Type().Elem())
			if !rv.Type().ConvertibleTo(v.Type().Elem()) {
				return fmt.Errorf("metadata: cannot assign %s to column %s (%s)", rv.Type(), c.Name, goType)
			}
			elem.Elem().Set(rv.Convert(v.Type().Elem()))
			v.Set(elem)
			return nil
		}
		if rv.Type() == v.Type() {
			v.Set(rv)
			return nil
		}
		if !rv.Type().ConvertibleTo(v.Type()) {
			return fmt.Errorf("metadata: cannot assign %s to column %s (%s)", rv.Type(), c.Name, goType)
		}
		v.Set(rv.Convert(v.Type()))
		return nil
	}
}
