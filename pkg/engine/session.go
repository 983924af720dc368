package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Strategy selects how operations map onto physical connections.
type Strategy int

const (
	// StrategyStandard issues a fresh pooled connection per operation.
	StrategyStandard Strategy = iota
	// StrategyKeepAlive pins one connection and reuses it for every
	// operation.
	StrategyKeepAlive
	// StrategySingleConnection behaves like KeepAlive and is the mode for
	// databases that only tolerate one connection (e.g. file-based).
	StrategySingleConnection
	// StrategySingleWriter pins one connection for writes; reads still use
	// fresh connections. Writes on any other connection are refused.
	StrategySingleWriter
)

func (s Strategy) String() string {
	switch s {
	case StrategyStandard:
		return "standard"
	case StrategyKeepAlive:
		return "keepalive"
	case StrategySingleConnection:
		return "singleconnection"
	case StrategySingleWriter:
		return "singlewriter"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "standard":
		return StrategyStandard, nil
	case "keepalive":
		return StrategyKeepAlive, nil
	case "singleconnection":
		return StrategySingleConnection, nil
	case "singlewriter":
		return StrategySingleWriter, nil
	}
	return StrategyStandard, fmt.Errorf("engine: unknown connection strategy %q", s)
}

// ctxMutex is a mutex whose acquisition honors context cancellation. Locks
// the engine takes while awaiting I/O must be abandonable.
type ctxMutex struct {
	ch chan struct{}
}

func newCtxMutex() *ctxMutex {
	return &ctxMutex{ch: make(chan struct{}, 1)}
}

func (m *ctxMutex) Lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ctxMutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("engine: unlock of unlocked mutex")
	}
}

// conn is one physical connection plus its lock and prepared-statement
// cache. pinned connections belong to the engine's strategy and outlive
// individual operations.
type conn struct {
	mu       *ctxMutex
	sc       *sql.Conn
	eng      *Engine
	pinned   bool
	prepared map[string]*sql.Stmt

	// prepareDisabled is set permanently for this connection once the
	// dialect classifies a prepare failure as provider-attributable.
	prepareDisabled bool
}

func newConn(eng *Engine, sc *sql.Conn, pinned bool) *conn {
	return &conn{
		mu:       newCtxMutex(),
		sc:       sc,
		eng:      eng,
		pinned:   pinned,
		prepared: make(map[string]*sql.Stmt),
	}
}

func (c *conn) close() error {
	for text, st := range c.prepared {
		st.Close()
		delete(c.prepared, text)
	}
	return c.sc.Close()
}

// lease is the engine's hold on the two-level lock pair for one operation.
// The two levels release independently: a read operation hands the
// connection level to its cursor and drops the logical level as soon as the
// rows are flowing.
type lease struct {
	eng         *Engine
	c           *conn
	logicalHeld bool
	connHeld    bool
}

func (l *lease) releaseConn() {
	if !l.connHeld {
		return
	}
	l.connHeld = false
	l.c.mu.Unlock()
	if !l.c.pinned {
		l.c.close()
	}
}

func (l *lease) releaseLogical() {
	if !l.logicalHeld {
		return
	}
	l.logicalHeld = false
	l.eng.logical.Unlock()
}

func (l *lease) release() {
	l.releaseConn()
	l.releaseLogical()
}

// acquire takes the two-level lock (logical context first, then the chosen
// connection). The lock order is invariant across all operations; a
// cancelled acquisition leaves nothing held and no connection checked out.
func (e *Engine) acquire(ctx context.Context, forWrite bool) (*lease, error) {
	if e.db == nil {
		return nil, ErrNotConnected
	}
	if err := e.logical.Lock(ctx); err != nil {
		return nil, err
	}

	c, err := e.connFor(ctx, forWrite)
	if err != nil {
		e.logical.Unlock()
		return nil, err
	}
	if err := c.mu.Lock(ctx); err != nil {
		if !c.pinned {
			c.close()
		}
		e.logical.Unlock()
		return nil, err
	}
	return &lease{eng: e, c: c, logicalHeld: true, connHeld: true}, nil
}

// connFor picks the connection the active strategy demands.
func (e *Engine) connFor(ctx context.Context, forWrite bool) (*conn, error) {
	switch e.strategy {
	case StrategyKeepAlive, StrategySingleConnection:
		return e.pinnedConn(ctx)
	case StrategySingleWriter:
		if forWrite {
			return e.pinnedConn(ctx)
		}
		return e.freshConn(ctx)
	default:
		return e.freshConn(ctx)
	}
}

func (e *Engine) freshConn(ctx context.Context) (*conn, error) {
	sc, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: acquiring connection: %w", err)
	}
	return newConn(e, sc, false), nil
}

// pinnedConn lazily opens and then reuses the strategy's persistent
// connection. It is never disposed out from under a live cursor: pinned
// connections are only closed by Engine.Close, and a cursor holds the
// connection lock until it is done.
func (e *Engine) pinnedConn(ctx context.Context) (*conn, error) {
	e.pinnedMu.Lock()
	defer e.pinnedMu.Unlock()
	if e.pinned != nil {
		return e.pinned, nil
	}
	sc, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: acquiring pinned connection: %w", err)
	}
	e.pinned = newConn(e, sc, true)
	return e.pinned, nil
}

// assertWriter enforces the SingleWriter invariant: every write runs on the
// pinned writer connection.
func (e *Engine) assertWriter(c *conn) error {
	if e.strategy != StrategySingleWriter {
		return nil
	}
	e.pinnedMu.Lock()
	writer := e.pinned
	e.pinnedMu.Unlock()
	if c != writer {
		return &WriteConnectionError{Strategy: e.strategy}
	}
	return nil
}
