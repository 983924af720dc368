package engine

import (
	"context"
	"database/sql"
)

// stmt returns a prepared statement for sqlText on this connection, or
// (nil, nil) when the statement should run unprepared. Statement texts are
// prepared at most once per connection; a prepare failure the dialect
// attributes to the provider disables preparation for the whole connection,
// never just the one statement.
//
// Callers hold the connection lock.
func (c *conn) stmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	if c.prepareDisabled {
		return nil, nil
	}
	if st, ok := c.prepared[sqlText]; ok {
		return st, nil
	}
	st, err := c.sc.PrepareContext(ctx, sqlText)
	if err != nil {
		if c.eng.d.ShouldDisablePrepare(err) {
			c.prepareDisabled = true
			return nil, nil
		}
		return nil, err
	}
	c.prepared[sqlText] = st
	return st, nil
}

// execContext runs sqlText on this connection, through the prepared
// statement cache when preparation is enabled.
func (c *conn) execContext(ctx context.Context, sqlText string, args []any) (sql.Result, error) {
	st, err := c.stmt(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st.ExecContext(ctx, args...)
	}
	return c.sc.ExecContext(ctx, sqlText, args...)
}

// queryContext runs sqlText on this connection and returns its rows.
func (c *conn) queryContext(ctx context.Context, sqlText string, args []any) (*sql.Rows, error) {
	st, err := c.stmt(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st.QueryContext(ctx, args...)
	}
	return c.sc.QueryContext(ctx, sqlText, args...)
}
