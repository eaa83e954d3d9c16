package crud

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Driver names accepted by DialectFor. They match the names the drivers
// register with database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Dialect holds the differences between supported databases: placeholder
// style and schema introspection queries.
type Dialect struct {
	Name     string
	numbered bool
}

// DialectFor returns Dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverMySQL, DriverSQLite:
		return Dialect{Name: driver}, nil
	case DriverPostgres:
		return Dialect{Name: driver, numbered: true}, nil
	}
	return Dialect{}, errors.Errorf("unsupported driver: %s", driver)
}

// Rebind rewrites "?" placeholders into the style of the dialect. Postgres
// uses $1, $2 etc.
func (d Dialect) Rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(q); i++ {
		ch := q[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
			b.WriteByte(ch)
		case '?':
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// TablesStatement returns a query listing base tables of schema, one per row,
// in a "table_name" column
func (d Dialect) TablesStatement(schema string) Statement {
	if d.Name == DriverSQLite {
		return NewStatement("SELECT name AS table_name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	}
	return NewStatement("SELECT table_name AS table_name FROM information_schema.tables WHERE table_schema = ? AND table_type = 'BASE TABLE' ORDER BY table_name", schema)
}

// ColumnsStatement returns a query listing columns of a table, in their
// ordinal position, in a "column_name" column
func (d Dialect) ColumnsStatement(schema string, table string) Statement {
	if d.Name == DriverSQLite {
		return NewStatement("SELECT name AS column_name FROM pragma_table_info(?) ORDER BY cid", table)
	}
	return NewStatement("SELECT column_name AS column_name FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position", schema, table)
}
