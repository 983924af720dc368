package engine

import (
	"fmt"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

// Statements is the rendered SQL surface of a registered entity under one
// dialect. Skeleton placeholders are shown as <set> and <where>.
type Statements struct {
	Dialect         string
	Insert          string
	InsertReturning string
	Update          string
	Delete          string
	Select          string
}

// Statements renders the compiled statement set of a registered entity for
// the given dialect. The entity type must already be registered.
func (e *Engine) Statements(entity any, d dialect.Dialect) (Statements, error) {
	t, err := e.tableOf(entity)
	if err != nil {
		return Statements{}, err
	}
	nt, err := e.templates.compile(t)
	if err != nil {
		return Statements{}, err
	}
	ct, err := e.templates.specialize(nt, d)
	if err != nil {
		return Statements{}, err
	}
	return Statements{
		Dialect:         d.Name(),
		Insert:          ct.insert,
		InsertReturning: ct.insertReturning,
		Update:          fmt.Sprintf(ct.updateSkeleton, "<set>", "<where>"),
		Delete:          fmt.Sprintf(ct.deleteSkeleton, "<where>"),
		Select:          fmt.Sprintf(ct.selectSkeleton, "<where>"),
	}, nil
}
