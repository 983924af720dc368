package dialect

import (
	"errors"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// SQLite targets SQLite through the modernc pure-Go driver.
type SQLite struct{}

func init() { Register(SQLite{}) }

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) QuotePrefix() string { return `"` }
func (SQLite) QuoteSuffix() string { return `"` }

func (d SQLite) WrapIdentifier(name string) string {
	return wrap(d.QuotePrefix(), name, d.QuoteSuffix())
}

// SQLite binds by name; markers follow the engine's positional parameter
// naming so SetParameterValue can address them.
func (SQLite) Marker(n int) string { return ":" + PositionalName(n) }

func (SQLite) ParameterName(p *Parameter) string { return ":" + p.Name }

func (SQLite) CreateParameter(name string, tag metadata.TypeTag, value any) *Parameter {
	return &Parameter{Name: name, Tag: tag, Value: NormalizeValue(tag, value)}
}

func (SQLite) Capabilities() Capabilities {
	return Capabilities{
		InsertOnConflict: true,
		InsertReturning:  true,
		NamedParameters:  true,
		MaxParameters:    32766,
	}
}

func (SQLite) RenderInsertReturning(identifier string) string {
	return " RETURNING " + identifier
}

func (SQLite) LastInsertIDQuery() string { return "SELECT last_insert_rowid()" }

func (SQLite) IsUniqueViolation(err error) bool {
	var sErr *sqlite.Error
	if errors.As(err, &sErr) {
		code := sErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (SQLite) ShouldDisablePrepare(err error) bool { return false }
