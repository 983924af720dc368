package dialect

import (
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// Postgres targets PostgreSQL through the pgx stdlib driver.
type Postgres struct{}

func init() { Register(Postgres{}) }

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) QuotePrefix() string { return `"` }
func (Postgres) QuoteSuffix() string { return `"` }

func (d Postgres) WrapIdentifier(name string) string {
	return wrap(d.QuotePrefix(), name, d.QuoteSuffix())
}

func (Postgres) Marker(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) ParameterName(p *Parameter) string { return p.Name }

func (Postgres) CreateParameter(name string, tag metadata.TypeTag, value any) *Parameter {
	return &Parameter{Name: name, Tag: tag, Value: NormalizeValue(tag, value)}
}

func (Postgres) Capabilities() Capabilities {
	return Capabilities{
		InsertOnConflict:    true,
		InsertReturning:     true,
		SetValuedParameters: true,
		MaxParameters:       65535,
	}
}

func (Postgres) RenderInsertReturning(identifier string) string {
	return " RETURNING " + identifier
}

func (Postgres) LastInsertIDQuery() string { return "SELECT lastval()" }

func (Postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (Postgres) ShouldDisablePrepare(err error) bool {
	// 0A000 feature_not_supported: raised by pgbouncer-style proxies that
	// cannot hold server-side prepared statements.
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "0A000"
}

// NormalizeValue applies the provider-independent value conventions: all
// timestamps travel as UTC, UUID arrays as their 16-byte form.
func NormalizeValue(tag metadata.TypeTag, value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return nil
		}
		u := v.UTC()
		return &u
	}
	return value
}
