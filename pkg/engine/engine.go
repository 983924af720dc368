// Package engine compiles strongly-typed entity operations into
// dialect-correct parameterized SQL, executes them on pooled connections,
// and maps result rows back into entity values. Statement templates,
// column classification, and row-mapping plans are all derived once and
// cached, so steady-state throughput approaches hand-written SQL.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/strata-db/stratadb/pkg/engine/dialect"
	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

const (
	defaultPlanCacheSize     = 32
	defaultTemplateCacheSize = 128
)

// CoercionPolicy tunes the row-mapping leniencies.
type CoercionPolicy struct {
	// StrictNulls turns "null coerced into a non-nullable column" from a
	// silent leave-default into an error.
	StrictNulls bool
}

// Options configures a new Engine.
type Options struct {
	// DSN is used by Connect. Leave empty when handing the engine an
	// already-open pool with UseDB.
	DSN string

	Strategy Strategy
	Audit    AuditResolver
	Coercion CoercionPolicy

	// PlanCacheSize bounds the row-mapping plan cache (default 32).
	PlanCacheSize int
	// TemplateCacheSize bounds the per-type template cache (default 128).
	TemplateCacheSize int

	// MaxOpenConns and MaxIdleConns size the pool Connect opens. Zero
	// leaves the driver defaults. Ignored for pools handed in via UseDB.
	MaxOpenConns int
	MaxIdleConns int
}

// Engine is the entry point. One engine serves one database through one
// dialect; entity types register once and their derived state is cached on
// the engine instance.
type Engine struct {
	d        dialect.Dialect
	dsn      string
	strategy Strategy
	audit    AuditResolver
	coercion CoercionPolicy
	maxOpen  int
	maxIdle  int

	db       *sql.DB
	ownsDB   bool
	logical  *ctxMutex
	pinnedMu sync.Mutex
	pinned   *conn

	regMu    sync.RWMutex
	registry map[reflect.Type]*metadata.Table

	templates *templateCompiler
	plans     *BoundedCache[planKey, *readPlan]

	Debug *DebugContext
}

// New creates an engine for the given dialect.
func New(d dialect.Dialect, opts Options) *Engine {
	planCap := opts.PlanCacheSize
	if planCap <= 0 {
		planCap = defaultPlanCacheSize
	}
	tplCap := opts.TemplateCacheSize
	if tplCap <= 0 {
		tplCap = defaultTemplateCacheSize
	}
	return &Engine{
		d:         d,
		dsn:       opts.DSN,
		strategy:  opts.Strategy,
		audit:     opts.Audit,
		coercion:  opts.Coercion,
		maxOpen:   opts.MaxOpenConns,
		maxIdle:   opts.MaxIdleConns,
		logical:   newCtxMutex(),
		registry:  make(map[reflect.Type]*metadata.Table),
		templates: newTemplateCompiler(tplCap),
		plans:     NewBoundedCache[planKey, *readPlan](planCap),
		Debug:     DefaultDebugContext(),
	}
}

// Dialect returns the engine's dialect.
func (e *Engine) Dialect() dialect.Dialect { return e.d }

// Strategy returns the active connection strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Connect opens the database through the dialect's driver and verifies it.
func (e *Engine) Connect(ctx context.Context) error {
	if e.db != nil {
		return nil
	}
	db, err := sql.Open(e.d.DriverName(), e.dsn)
	if err != nil {
		return fmt.Errorf("engine: opening %s: %w", e.d.Name(), err)
	}
	if e.maxOpen > 0 {
		db.SetMaxOpenConns(e.maxOpen)
	}
	if e.maxIdle > 0 {
		db.SetMaxIdleConns(e.maxIdle)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("engine: pinging %s: %w", e.d.Name(), err)
	}
	e.db = db
	e.ownsDB = true
	return nil
}

// UseDB hands the engine an externally opened pool. The caller keeps
// ownership of the pool's lifetime.
func (e *Engine) UseDB(db *sql.DB) { e.db = db }

// IsConnected reports whether the engine has a database.
func (e *Engine) IsConnected() bool { return e.db != nil }

// Ping verifies the database connection is alive.
func (e *Engine) Ping(ctx context.Context) error {
	if e.db == nil {
		return ErrNotConnected
	}
	return e.db.PingContext(ctx)
}

// Close releases the pinned connection and, when the engine opened it, the
// pool.
func (e *Engine) Close() error {
	e.pinnedMu.Lock()
	if e.pinned != nil {
		e.pinned.close()
		e.pinned = nil
	}
	e.pinnedMu.Unlock()
	if e.db != nil && e.ownsDB {
		err := e.db.Close()
		e.db = nil
		return err
	}
	e.db = nil
	return nil
}

// WithDebug switches debug output on and returns the engine.
func (e *Engine) WithDebug(level DebugLevel) *Engine {
	e.Debug = &DebugContext{Level: level, Writer: DefaultDebugContext().Writer, ColorOutput: true}
	return e
}

// Register scans and registers an entity struct type under a table name.
// Registration runs once per type; re-registering replaces the metadata.
func (e *Engine) Register(prototype any, schema, table string) error {
	rt := reflect.TypeOf(prototype)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	t, err := metadata.Discover(rt, schema, table)
	if err != nil {
		return err
	}
	e.regMu.Lock()
	e.registry[rt] = t
	e.regMu.Unlock()
	return nil
}

// MustRegister is Register that panics on error, for package init wiring.
func (e *Engine) MustRegister(prototype any, schema, table string) {
	if err := e.Register(prototype, schema, table); err != nil {
		panic(err)
	}
}

// tableOf resolves the registered metadata for an entity value.
func (e *Engine) tableOf(entity any) (*metadata.Table, error) {
	rt := reflect.TypeOf(entity)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrInvalidArgument)
	}
	e.regMu.RLock()
	t, ok := e.registry[rt]
	e.regMu.RUnlock()
	if !ok {
		return nil, configErr(rt.String(), "entity type is not registered")
	}
	return t, nil
}

func (e *Engine) tableOfType(rt reflect.Type) (*metadata.Table, error) {
	e.regMu.RLock()
	t, ok := e.registry[rt]
	e.regMu.RUnlock()
	if !ok {
		return nil, configErr(rt.String(), "entity type is not registered")
	}
	return t, nil
}

// ResetCaches drops every compiled template and row-mapping plan. Safe at
// any time; the next use recompiles.
func (e *Engine) ResetCaches() {
	e.templates.clear()
	e.plans.Clear()
}
