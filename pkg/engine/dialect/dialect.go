// Package dialect defines the database-specific policy surface of the
// engine: identifier quoting, parameter markers, capability flags, and
// provider error classification. Adding a database means adding a
// capability set here, not editing engine dispatch code.
package dialect

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Parameter is one bound statement parameter. Instances are pooled by the
// engine; Reset must leave the value reusable.
type Parameter struct {
	Name  string
	Tag   metadata.TypeTag
	Value any
}

// Reset clears the parameter for return to its pool.
func (p *Parameter) Reset() {
	p.Name = ""
	p.Tag = ""
	p.Value = nil
}

// Capabilities are the boolean feature flags and limits of one database
// product. Strategy selection reads these instead of switching on the
// dialect's concrete type.
type Capabilities struct {
	Merge               bool
	InsertOnConflict    bool
	OnDuplicateKey      bool
	InsertReturning     bool
	SetValuedParameters bool
	NamedParameters     bool

	// MaxParameters is the provider's bound-parameter limit per statement.
	MaxParameters int
}

// Dialect is the per-database policy provider consumed by the engine.
type Dialect interface {
	Name() string

	// DriverName is the database/sql driver this dialect executes through.
	DriverName() string

	// QuotePrefix and QuoteSuffix delimit identifiers. WrapIdentifier is
	// the convenience composition of the two.
	QuotePrefix() string
	QuoteSuffix() string
	WrapIdentifier(name string) string

	// Marker renders the parameter marker for the 1-based position n.
	Marker(n int) string

	// ParameterName renders the name a parameter is referenced by in SQL,
	// for dialects with named-parameter support.
	ParameterName(p *Parameter) string

	// CreateParameter builds a parameter value. Engines route all
	// parameter construction through here so dialects can normalize
	// values (e.g. UTC timestamps).
	CreateParameter(name string, tag metadata.TypeTag, value any) *Parameter

	Capabilities() Capabilities

	// RenderInsertReturning renders the clause that makes an INSERT return
	// the given (already wrapped) identity column, including its leading
	// space. Only called when Capabilities().InsertReturning is set.
	RenderInsertReturning(identifier string) string

	// LastInsertIDQuery is the follow-up query used when the dialect has
	// no RETURNING support.
	LastInsertIDQuery() string

	// IsUniqueViolation classifies a provider error as a unique-constraint
	// violation.
	IsUniqueViolation(err error) bool

	// ShouldDisablePrepare classifies a provider error as a prepare
	// failure that warrants disabling statement preparation for the
	// connection.
	ShouldDisablePrepare(err error) bool
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a dialect under its Name. Later registrations of the
// same name win, which lets tests shadow the built-ins.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Name()] = d
}

// Get returns a registered dialect by name.
func Get(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func wrap(prefix, name, suffix string) string {
	return prefix + name + suffix
}

// PositionalName is the canonical name given to the parameter at 1-based
// position n. Engines and dialects agree on this scheme so named and
// positional binding stay interchangeable.
func PositionalName(n int) string {
	return "p" + strconv.Itoa(n)
}
