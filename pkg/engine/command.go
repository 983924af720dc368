package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Command is the execution container statement builders emit into: a
// mutable SQL text buffer plus the parameter set, with execution methods
// returning an affected-row count, a scalar, or a row cursor.
//
// Parameter objects are pooled. Because a live cursor may still read them,
// Close defers reclamation until the last cursor derived from this command
// is itself closed.
type Command struct {
	eng    *Engine
	op     string
	entity string

	sb     strings.Builder
	params *ParamSet

	mu      sync.Mutex
	cursors int
	closed  bool
}

func (e *Engine) newCommand(op, entity string) *Command {
	return &Command{
		eng:    e,
		op:     op,
		entity: entity,
		params: newParamSet(e.d),
	}
}

// Append appends raw text to the SQL buffer.
func (cmd *Command) Append(s string) { cmd.sb.WriteString(s) }

// SQL returns the current statement text.
func (cmd *Command) SQL() string { return cmd.sb.String() }

// AddParameter binds an already-built parameter.
func (cmd *Command) AddParameter(p *dialect.Parameter) error {
	return cmd.params.Add(p)
}

// AddValue binds a pooled parameter at the next position and returns it.
func (cmd *Command) AddValue(tag metadata.TypeTag, value any) *dialect.Parameter {
	return cmd.params.AddValue(tag, value)
}

// SetParameterValue rebinds an existing parameter's value by name.
func (cmd *Command) SetParameterValue(name string, value any) error {
	return cmd.params.SetValue(name, value)
}

// CreateDBParameter builds a parameter through the dialect contract without
// binding it.
func (cmd *Command) CreateDBParameter(name string, tag metadata.TypeTag, value any) *dialect.Parameter {
	return cmd.eng.d.CreateParameter(name, tag, value)
}

// ParameterCount returns the number of bound parameters.
func (cmd *Command) ParameterCount() int { return cmd.params.Count() }

// checkCapacity fails fast when adding n more parameters would exceed the
// provider limit.
func (cmd *Command) checkCapacity(n int) error {
	limit := cmd.eng.d.Capabilities().MaxParameters
	if limit > 0 && cmd.params.Count()+n > limit {
		return &CapacityError{Count: cmd.params.Count() + n, Limit: limit}
	}
	return nil
}

// ExecuteNonQuery runs the statement and returns the affected-row count.
// The connection lock and, outside a pinned strategy, the connection itself
// are released immediately after execution.
func (cmd *Command) ExecuteNonQuery(ctx context.Context) (int64, error) {
	start := time.Now()
	l, err := cmd.eng.acquire(ctx, true)
	if err != nil {
		return 0, err
	}
	defer l.release()
	if err := cmd.eng.assertWriter(l.c); err != nil {
		return 0, err
	}

	sqlText, args := cmd.sb.String(), cmd.params.args()
	cmd.eng.Debug.logSQL(cmd.op, cmd.entity, sqlText, args)

	res, err := l.c.execContext(ctx, sqlText, args)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	cmd.eng.Debug.logTrace(cmd.op, cmd.entity, time.Since(start), affected)
	return affected, nil
}

// executeNonQueryOn runs the statement on an already-leased connection,
// for multi-statement logical units.
func (cmd *Command) executeNonQueryOn(ctx context.Context, l *lease) (int64, error) {
	if err := cmd.eng.assertWriter(l.c); err != nil {
		return 0, err
	}
	sqlText, args := cmd.sb.String(), cmd.params.args()
	cmd.eng.Debug.logSQL(cmd.op, cmd.entity, sqlText, args)
	res, err := l.c.execContext(ctx, sqlText, args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecuteScalar runs the statement and returns the first column of its
// first row, or ErrNotFound when it yields no row.
func (cmd *Command) ExecuteScalar(ctx context.Context) (any, error) {
	l, err := cmd.eng.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	defer l.release()
	return cmd.scalarOn(ctx, l)
}

func (cmd *Command) scalarOn(ctx context.Context, l *lease) (any, error) {
	sqlText, args := cmd.sb.String(), cmd.params.args()
	cmd.eng.Debug.logSQL(cmd.op, cmd.entity, sqlText, args)

	rows, err := l.c.queryContext(ctx, sqlText, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, err
	}
	return v, rows.Err()
}

// ExecuteReader runs the statement and returns a cursor. Ownership of the
// connection lock (and of a non-pinned connection) transfers to the cursor
// at this point; the logical-context lock is released before returning.
// Callers must close the cursor promptly.
func (cmd *Command) ExecuteReader(ctx context.Context, table *metadata.Table) (*Cursor, error) {
	l, err := cmd.eng.acquire(ctx, false)
	if err != nil {
		return nil, err
	}

	sqlText, args := cmd.sb.String(), cmd.params.args()
	cmd.eng.Debug.logSQL(cmd.op, cmd.entity, sqlText, args)

	rows, err := l.c.queryContext(ctx, sqlText, args)
	if err != nil {
		l.release()
		return nil, err
	}

	cmd.mu.Lock()
	cmd.cursors++
	cmd.mu.Unlock()
	l.releaseLogical()

	return &Cursor{eng: cmd.eng, cmd: cmd, lease: l, rows: rows, table: table}, nil
}

// Close releases the command. Pooled parameters return to their pool now,
// or, when cursors derived from this command are still open, when the last
// of them closes.
func (cmd *Command) Close() {
	cmd.mu.Lock()
	cmd.closed = true
	reclaim := cmd.cursors == 0
	cmd.mu.Unlock()
	if reclaim {
		cmd.params.release()
	}
}

// cursorClosed is called by each derived cursor exactly once.
func (cmd *Command) cursorClosed() {
	cmd.mu.Lock()
	cmd.cursors--
	reclaim := cmd.closed && cmd.cursors == 0
	cmd.mu.Unlock()
	if reclaim {
		cmd.params.release()
	}
}
