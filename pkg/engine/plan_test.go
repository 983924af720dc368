package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeSignature(t *testing.T) {
	a := shapeSignature([]string{"id", "name"}, []string{"INT8", "TEXT"})
	b := shapeSignature([]string{"id", "name"}, []string{"INT8", "TEXT"})
	assert.Equal(t, a, b, "identical shapes share a signature")

	c := shapeSignature([]string{"name", "id"}, []string{"TEXT", "INT8"})
	assert.NotEqual(t, a, c, "column order is part of the shape")

	d := shapeSignature([]string{"id", "name"}, []string{"INT4", "TEXT"})
	assert.NotEqual(t, a, d, "provider types are part of the shape")

	// The separator keeps ("ab","c") distinct from ("a","bc").
	e := shapeSignature([]string{"ab"}, []string{"c"})
	f := shapeSignature([]string{"a"}, []string{"bc"})
	assert.NotEqual(t, e, f)
}

func TestFastScannable(t *testing.T) {
	type row struct {
		ID     int64     `db:"id,identity"`
		Name   string    `db:"name"`
		NamePt *string   `db:"name_pt"`
		At     time.Time `db:"at"`
		Blob   []byte    `db:"blob"`
		Key    uuid.UUID `db:"key"`
		Amount string    `db:"amount,type=decimal"`
		Level  severity  `db:"level,enum"`
	}
	table := discoverTable(t, row{}, "", "rows")

	fast := map[string]bool{
		"id":      true,
		"name":    true,
		"name_pt": true,
		"at":      true,
		"blob":    true,
		"key":     false, // uuid needs its own coercion entry
		"amount":  false, // decimal goes through exact arithmetic
		"level":   false, // named type, policy-driven parse
	}
	for name, want := range fast {
		assert.Equal(t, want, fastScannable(table.Column(name)), name)
	}
}

func TestDirectScannable(t *testing.T) {
	type row struct {
		ID     int64     `db:"id,identity"`
		Name   string    `db:"name"`
		NamePt *string   `db:"name_pt"`
		At     time.Time `db:"at"`
		Blob   []byte    `db:"blob"`
	}
	table := discoverTable(t, row{}, "", "rows")

	direct := map[string]bool{
		"id":      false, // value types scan through the null-skipping intermediate
		"name":    false,
		"at":      false,
		"name_pt": true,
		"blob":    true,
	}
	for name, want := range direct {
		assert.Equal(t, want, directScannable(table.Column(name).GoType), name)
	}
}

func TestBuildPlan_StepKinds(t *testing.T) {
	table := discoverTable(t, mockUser{}, "", "users")

	p, err := buildPlan(table, []string{"id", "mystery", "email"})
	require.NoError(t, err)
	require.Len(t, p.steps, 3)
	assert.Equal(t, stepFast, p.steps[0].kind)
	assert.Equal(t, stepDrop, p.steps[1].kind, "unmapped result columns are dropped")
	assert.Equal(t, stepFast, p.steps[2].kind)
}
