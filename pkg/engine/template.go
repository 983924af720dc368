package engine

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Neutral SQL tokens. A neutral template carries these instead of concrete
// quoting and markers, so one compiled body renders for any dialect without
// recompiling column logic.
const (
	tokQuoteOpen  = "\x01"
	tokQuoteClose = "\x02"
	tokMarker     = "\x03" // followed by a 1-based ordinal and tokEnd
	tokEnd        = "\x04"
	tokReturning  = "\x05" // replaced by the dialect returning clause or ""
)

func neutralIdent(name string) string {
	return tokQuoteOpen + name + tokQuoteClose
}

func neutralMarker(n int) string {
	return tokMarker + strconv.Itoa(n) + tokEnd
}

// neutralTemplate is the dialect-independent statement skeleton of one
// entity type, built once per type.
type neutralTemplate struct {
	table *metadata.Table

	insertCols []*metadata.Column
	updateCols []*metadata.Column

	tableIdent     string // qualified, neutral-quoted
	insertSQL      string // full INSERT with markers and a returning token
	updateSkeleton string // UPDATE ... SET %s WHERE %s
	deleteSkeleton string // DELETE FROM ... WHERE %s
	selectSkeleton string // SELECT <cols> FROM ... WHERE %s
}

// compiledTemplate is a neutral template specialized for one dialect.
// Immutable; cached until an explicit cache clear.
type compiledTemplate struct {
	table *metadata.Table
	d     dialect.Dialect

	insertCols []*metadata.Column
	updateCols []*metadata.Column

	tableIdent      string
	insert          string // no-return variant
	insertReturning string // with the dialect's returning clause, if supported
	updateSkeleton  string
	deleteSkeleton  string
	selectSkeleton  string
}

type tplKey struct {
	goType  reflect.Type
	dialect string
}

type templateCompiler struct {
	neutral  *BoundedCache[reflect.Type, *neutralTemplate]
	compiled *BoundedCache[tplKey, *compiledTemplate]
}

func newTemplateCompiler(capacity int) *templateCompiler {
	return &templateCompiler{
		neutral:  NewBoundedCache[reflect.Type, *neutralTemplate](capacity),
		compiled: NewBoundedCache[tplKey, *compiledTemplate](capacity * 2),
	}
}

func (tc *templateCompiler) clear() {
	tc.neutral.Clear()
	tc.compiled.Clear()
}

// insertable implements the column classification rule for INSERT lists.
func insertable(c *metadata.Column) bool {
	if c.NonInsertable {
		return false
	}
	if c.Identity && !c.IdentityWritable {
		return false
	}
	return true
}

// updatable implements the column classification rule for SET lists.
func updatable(c *metadata.Column) bool {
	return !c.Identity && !c.Version && !c.NonUpdatable && !c.CreatedBy && !c.CreatedOn
}

// compile builds the neutral template for a table, once per entity type.
func (tc *templateCompiler) compile(table *metadata.Table) (*neutralTemplate, error) {
	return tc.neutral.GetOrInsert(table.GoType, func() (*neutralTemplate, error) {
		return buildNeutral(table), nil
	})
}

func buildNeutral(table *metadata.Table) *neutralTemplate {
	nt := &neutralTemplate{table: table}
	for _, c := range table.Columns {
		if insertable(c) {
			nt.insertCols = append(nt.insertCols, c)
		}
		if updatable(c) {
			nt.updateCols = append(nt.updateCols, c)
		}
	}

	ident := neutralIdent(table.Name)
	if table.Schema != "" {
		ident = neutralIdent(table.Schema) + "." + ident
	}
	nt.tableIdent = ident

	var cols, markers, selectCols strings.Builder
	for i, c := range nt.insertCols {
		if i > 0 {
			cols.WriteString(", ")
			markers.WriteString(", ")
		}
		cols.WriteString(neutralIdent(c.Name))
		markers.WriteString(neutralMarker(i + 1))
	}
	for i, c := range table.Columns {
		if i > 0 {
			selectCols.WriteString(", ")
		}
		selectCols.WriteString(neutralIdent(c.Name))
	}

	nt.insertSQL = "INSERT INTO " + ident + " (" + cols.String() + ") VALUES (" + markers.String() + ")" + tokReturning
	nt.updateSkeleton = "UPDATE " + ident + " SET %s WHERE %s"
	nt.deleteSkeleton = "DELETE FROM " + ident + " WHERE %s"
	nt.selectSkeleton = "SELECT " + selectCols.String() + " FROM " + ident + " WHERE %s"
	return nt
}

// specialize renders a neutral template for one dialect. Results are cached
// by dialect identity; repeated calls are cache hits producing byte-identical
// SQL text.
func (tc *templateCompiler) specialize(nt *neutralTemplate, d dialect.Dialect) (*compiledTemplate, error) {
	key := tplKey{goType: nt.table.GoType, dialect: d.Name()}
	return tc.compiled.GetOrInsert(key, func() (*compiledTemplate, error) {
		ct := &compiledTemplate{
			table:      nt.table,
			d:          d,
			insertCols: nt.insertCols,
			updateCols: nt.updateCols,
			tableIdent: renderTokens(nt.tableIdent, d, ""),
		}

		returning := ""
		if d.Capabilities().InsertReturning && nt.table.Identity != nil {
			returning = d.RenderInsertReturning(d.WrapIdentifier(nt.table.Identity.Name))
		}
		ct.insert = renderTokens(nt.insertSQL, d, "")
		ct.insertReturning = renderTokens(nt.insertSQL, d, returning)
		ct.updateSkeleton = renderTokens(nt.updateSkeleton, d, "")
		ct.deleteSkeleton = renderTokens(nt.deleteSkeleton, d, "")
		ct.selectSkeleton = renderTokens(nt.selectSkeleton, d, "")
		return ct, nil
	})
}

// renderTokens substitutes the neutral tokens of s with the dialect's
// quoting, markers, and returning clause.
func renderTokens(s string, d dialect.Dialect, returning string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case tokQuoteOpen[0]:
			b.WriteString(d.QuotePrefix())
		case tokQuoteClose[0]:
			b.WriteString(d.QuoteSuffix())
		case tokMarker[0]:
			j := i + 1
			for j < len(s) && s[j] != tokEnd[0] {
				j++
			}
			n, _ := strconv.Atoi(s[i+1 : j])
			b.WriteString(d.Marker(n))
			i = j
		case tokReturning[0]:
			b.WriteString(returning)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// templateFor resolves the compiled template for a table under the engine's
// dialect.
func (e *Engine) templateFor(table *metadata.Table) (*compiledTemplate, error) {
	nt, err := e.templates.compile(table)
	if err != nil {
		return nil, err
	}
	return e.templates.specialize(nt, e.d)
}
