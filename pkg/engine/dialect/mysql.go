package dialect

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/strata-db/stratadb/pkg/engine/metadata"
)

// MySQL targets MySQL / MariaDB through go-sql-driver.
type MySQL struct{}

func init() { Register(MySQL{}) }

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) QuotePrefix() string { return "`" }
func (MySQL) QuoteSuffix() string { return "`" }

func (d MySQL) WrapIdentifier(name string) string {
	return wrap(d.QuotePrefix(), name, d.QuoteSuffix())
}

func (MySQL) Marker(n int) string { return "?" }

func (MySQL) ParameterName(p *Parameter) string { return p.Name }

func (MySQL) CreateParameter(name string, tag metadata.TypeTag, value any) *Parameter {
	return &Parameter{Name: name, Tag: tag, Value: NormalizeValue(tag, value)}
}

func (MySQL) Capabilities() Capabilities {
	return Capabilities{
		OnDuplicateKey: true,
		MaxParameters:  65535,
	}
}

func (MySQL) RenderInsertReturning(identifier string) string { return "" }

func (MySQL) LastInsertIDQuery() string { return "SELECT LAST_INSERT_ID()" }

func (MySQL) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func (MySQL) ShouldDisablePrepare(err error) bool {
	// 1295 ER_UNSUPPORTED_PS: statement cannot be prepared server-side.
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1295
}
