package engine

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// paramPools pools parameter objects per dialect. Reclamation is deferred
// by the owning command until no live cursor can still read them.
var paramPools sync.Map // dialect name -> *sync.Pool

func poolFor(d dialect.Dialect) *sync.Pool {
	if p, ok := paramPools.Load(d.Name()); ok {
		return p.(*sync.Pool)
	}
	p, _ := paramPools.LoadOrStore(d.Name(), &sync.Pool{
		New: func() any { return new(dialect.Parameter) },
	})
	return p.(*sync.Pool)
}

// ParamSet is the ordered, name-keyed parameter collection of one
// statement. The order doubles as the positional sequence for dialects
// without named-parameter support.
type ParamSet struct {
	d      dialect.Dialect
	params []*dialect.Parameter
	byName map[string]*dialect.Parameter
}

func newParamSet(d dialect.Dialect) *ParamSet {
	return &ParamSet{d: d, byName: make(map[string]*dialect.Parameter)}
}

// Count returns the number of bound parameters.
func (ps *ParamSet) Count() int { return len(ps.params) }

// Add binds an already-built parameter.
func (ps *ParamSet) Add(p *dialect.Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter without a name", ErrInvalidArgument)
	}
	if _, dup := ps.byName[p.Name]; dup {
		return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidArgument, p.Name)
	}
	ps.params = append(ps.params, p)
	ps.byName[p.Name] = p
	return nil
}

// AddValue binds a pooled parameter at the next position and returns it.
func (ps *ParamSet) AddValue(tag metadata.TypeTag, value any) *dialect.Parameter {
	p := poolFor(ps.d).Get().(*dialect.Parameter)
	p.Name = dialect.PositionalName(len(ps.params) + 1)
	p.Tag = tag
	p.Value = dialect.NormalizeValue(tag, value)
	ps.params = append(ps.params, p)
	ps.byName[p.Name] = p
	return p
}

// SetValue rebinds the value of an existing parameter by name.
func (ps *ParamSet) SetValue(name string, value any) error {
	p, ok := ps.byName[name]
	if !ok {
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidArgument, name)
	}
	p.Value = dialect.NormalizeValue(p.Tag, value)
	return nil
}

// args renders the driver argument list: named arguments when the dialect
// binds by name, plain positional values otherwise.
func (ps *ParamSet) args() []any {
	out := make([]any, len(ps.params))
	named := ps.d.Capabilities().NamedParameters
	for i, p := range ps.params {
		if named {
			out[i] = sql.Named(p.Name, p.Value)
		} else {
			out[i] = p.Value
		}
	}
	return out
}

// release returns every parameter to the dialect pool and empties the set.
// Callers must guarantee no live cursor still reads these parameters.
func (ps *ParamSet) release() {
	pool := poolFor(ps.d)
	for _, p := range ps.params {
		p.Reset()
		pool.Put(p)
	}
	ps.params = ps.params[:0]
	for k := range ps.byName {
		delete(ps.byName, k)
	}
}
