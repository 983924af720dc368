package engine

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// coerceFunc converts one raw provider value into the column's Go type.
// A nil result with a nil error means "no value" (the caller applies the
// leave-default rule).
type coerceFunc func(e *Engine, col *metadata.Column, raw any) (any, error)

// coercerFor builds the coercion entry for a column once, at plan build
// time.
func coercerFor(col *metadata.Column) (coerceFunc, error) {
	switch {
	case col.IsEnum:
		return coerceEnum, nil
	case col.IsJSON:
		return coerceJSON, nil
	case col.Tag == metadata.TagUUID:
		return coerceUUID, nil
	case col.Tag == metadata.TagDecimal:
		return coerceDecimal, nil
	default:
		return coerceGeneric, nil
	}
}

// bindValue renders an entity's column value for parameter binding.
// JSON-typed columns serialize lazily through a driver.Valuer, so a marshal
// failure surfaces as the statement's error; values already in their stored
// text form pass through.
func bindValue(c *metadata.Column, entity any) any {
	v := c.Get(entity)
	if !c.IsJSON || v == nil {
		return v
	}
	switch v.(type) {
	case string, []byte, json.RawMessage:
		return v
	}
	// A typed nil (nil map, slice or pointer) binds as SQL NULL, not "null".
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}
	return jsonArg{v: v, indent: c.JSON.Indent}
}

// jsonArg defers JSON serialization to execution time.
type jsonArg struct {
	v      any
	indent bool
}

func (a jsonArg) Value() (driver.Value, error) {
	if a.indent {
		b, err := json.MarshalIndent(a.v, "", "  ")
		return b, err
	}
	b, err := json.Marshal(a.v)
	return b, err
}

// coerceEnum parses an enum-typed column under the column's failure policy.
func coerceEnum(e *Engine, col *metadata.Column, raw any) (any, error) {
	v, err := convertValue(col.GoType, raw)
	if err == nil {
		return v, nil
	}
	switch col.EnumPolicy {
	case metadata.EnumNullAndLog:
		e.Debug.logWarn("enum value %v does not parse for column %s: %v", raw, col.Name, err)
		return nil, nil
	case metadata.EnumDefault:
		return reflect.Zero(baseType(col.GoType)).Interface(), nil
	default:
		return nil, fmt.Errorf("engine: enum column %s: %w", col.Name, err)
	}
}

// coerceJSON deserializes a JSON-typed column into the field type.
func coerceJSON(e *Engine, col *metadata.Column, raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("engine: json column %s: unexpected %T", col.Name, raw)
	}
	if len(data) == 0 {
		return nil, nil
	}
	target := reflect.New(baseType(col.GoType))
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return nil, fmt.Errorf("engine: json column %s: %w", col.Name, err)
	}
	return target.Elem().Interface(), nil
}

// coerceUUID accepts string and 16-byte forms.
func coerceUUID(e *Engine, col *metadata.Column, raw any) (any, error) {
	var id uuid.UUID
	switch v := raw.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("engine: uuid column %s: %w", col.Name, err)
		}
		id = parsed
	case []byte:
		if len(v) == 16 {
			copy(id[:], v)
		} else {
			parsed, err := uuid.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("engine: uuid column %s: %w", col.Name, err)
			}
			id = parsed
		}
	case [16]byte:
		id = uuid.UUID(v)
	default:
		return nil, fmt.Errorf("engine: uuid column %s: unexpected %T", col.Name, raw)
	}

	t := baseType(col.GoType)
	switch {
	case t == reflect.TypeOf(uuid.UUID{}):
		return id, nil
	case t.Kind() == reflect.String:
		return id.String(), nil
	case t.Kind() == reflect.Array && t.Len() == 16:
		return [16]byte(id), nil
	}
	return nil, configErr("", "unsupported uuid target %s for column %s", col.GoType, col.Name)
}

// coerceDecimal routes currency/decimal values through exact rational
// arithmetic before landing on the target type.
func coerceDecimal(e *Engine, col *metadata.Column, raw any) (any, error) {
	r, err := ratOf(raw)
	if err != nil {
		return nil, fmt.Errorf("engine: decimal column %s: %w", col.Name, err)
	}
	t := baseType(col.GoType)
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		f, _ := r.Float64()
		return f, nil
	case reflect.String:
		return trimRat(r), nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		if !r.IsInt() {
			return nil, fmt.Errorf("engine: decimal column %s: %s is not integral", col.Name, r)
		}
		return r.Num().Int64(), nil
	}
	return nil, configErr("", "unsupported decimal target %s for column %s", col.GoType, col.Name)
}

// coerceGeneric converts between provider and field representations with a
// decimal/numeric fallback for string-typed numbers.
func coerceGeneric(e *Engine, col *metadata.Column, raw any) (any, error) {
	v, err := convertValue(col.GoType, raw)
	if err == nil {
		return v, nil
	}
	// Numeric columns sometimes surface as text; go through exact decimal.
	if r, ratErr := ratOf(raw); ratErr == nil {
		t := baseType(col.GoType)
		switch t.Kind() {
		case reflect.Float32, reflect.Float64:
			f, _ := r.Float64()
			return f, nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if r.IsInt() {
				return r.Num().Int64(), nil
			}
		}
	}
	return nil, fmt.Errorf("engine: column %s: %w", col.Name, err)
}

// convertValue converts raw into target using assignability, then Go
// conversions, then string parsing.
func convertValue(target reflect.Type, raw any) (any, error) {
	t := baseType(target)
	rv := reflect.ValueOf(raw)

	if rv.Type() == t {
		return raw, nil
	}
	if rv.Type().ConvertibleTo(t) {
		// Refuse silent number-to-string conversions ("A" from 65).
		if t.Kind() == reflect.String && rv.Kind() != reflect.String && rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
		}
		return rv.Convert(t).Interface(), nil
	}

	// String and byte forms parsed into primitives.
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(t).Interface(), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(f).Convert(t).Interface(), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	if t == reflect.TypeOf(time.Time{}) {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// ratOf parses a value into an exact rational.
func ratOf(raw any) (*big.Rat, error) {
	switch v := raw.(type) {
	case string:
		if r, ok := new(big.Rat).SetString(v); ok {
			return r, nil
		}
	case []byte:
		if r, ok := new(big.Rat).SetString(string(v)); ok {
			return r, nil
		}
	case float64:
		return new(big.Rat).SetFloat64(v), nil
	case float32:
		return new(big.Rat).SetFloat64(float64(v)), nil
	case int64:
		return new(big.Rat).SetInt64(v), nil
	case int:
		return new(big.Rat).SetInt64(int64(v)), nil
	}
	return nil, fmt.Errorf("%T does not parse as a decimal", raw)
}

// trimRat renders a rational as plain decimal text without trailing zeros.
func trimRat(r *big.Rat) string {
	s := r.FloatString(12)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
