package engine

import (
	"database/sql"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Cursor is a live result set. It owns the connection lock (and, outside a
// pinned strategy, the connection) from the moment it is created until
// Close. Callers must close cursors promptly.
type Cursor struct {
	eng   *Engine
	cmd   *Command
	lease *lease
	rows  *sql.Rows
	table *metadata.Table

	plan   *readPlan
	closed bool
}

// Next advances to the next row.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	return c.rows.Next()
}

// Err returns the error, if any, encountered during iteration.
func (c *Cursor) Err() error { return c.rows.Err() }

// Columns returns the result column names.
func (c *Cursor) Columns() ([]string, error) { return c.rows.Columns() }

// Scan maps the current row into entity, a pointer to a registered struct
// type. The mapping plan is resolved once per result shape and cached.
func (c *Cursor) Scan(entity any) error {
	if c.plan == nil {
		if c.table == nil {
			return configErr("", "cursor has no entity mapping; use Values")
		}
		plan, err := c.eng.planFor(c.rows, c.table)
		if err != nil {
			return err
		}
		c.plan = plan
	}
	return c.plan.mapRow(c.eng, c.rows, entity)
}

// Values returns the raw column values of the current row.
func (c *Cursor) Values() ([]any, error) {
	cols, err := c.rows.Columns()
	if err != nil {
		return nil, err
	}
	raw := make([]any, len(cols))
	dests := make([]any, len(cols))
	for i := range raw {
		dests[i] = &raw[i]
	}
	if err := c.rows.Scan(dests...); err != nil {
		return nil, err
	}
	return raw, nil
}

// Close releases the result set, the connection lock, and (per strategy)
// the connection, then lets the owning command reclaim pooled parameters
// if it was the last open cursor.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	c.lease.release()
	c.cmd.cursorClosed()
	return err
}
