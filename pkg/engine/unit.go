package engine

import "context"

// WriteScope runs fn inside a BEGIN/COMMIT pair on the strategy's pinned
// write connection, giving SingleWriter (and the other pinned strategies) a
// multi-statement write scope. Operations inside fn execute through the
// engine as usual; the pinned strategy guarantees they land on the scope's
// connection. fn returning an error rolls the scope back and returns that
// error.
//
// Standard strategy has no pinned connection to scope and is refused.
func (e *Engine) WriteScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.scopeExec(ctx, "BEGIN"); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := e.scopeExec(ctx, "ROLLBACK"); rbErr != nil {
			e.Debug.logWarn("write scope rollback failed: %v", rbErr)
		}
		return err
	}
	return e.scopeExec(ctx, "COMMIT")
}

// scopeExec runs a transaction-control statement directly on the pinned
// write connection, bypassing the prepared-statement cache.
func (e *Engine) scopeExec(ctx context.Context, sqlText string) error {
	l, err := e.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer l.release()
	if err := e.assertWriter(l.c); err != nil {
		return err
	}
	if !l.c.pinned {
		return configErr("", "write scope requires a pinned-connection strategy")
	}
	e.Debug.logSQL("SCOPE", "", sqlText, nil)
	_, err = l.c.sc.ExecContext(ctx, sqlText)
	return err
}
