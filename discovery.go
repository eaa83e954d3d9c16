package crud

import (
	"context"
	"fmt"
	"strings"
)

// Discoverer lists tables of the database and their columns
type Discoverer interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]string, error)
}

// SchemaDiscoverer implements Discoverer with introspection queries run
// through the Gateway
type SchemaDiscoverer struct {
	gw      Gateway
	dialect Dialect
	schema  string
}

// NewSchemaDiscoverer returns discoverer for a schema (database name in
// MySQL, schema name in Postgres, ignored in SQLite)
func NewSchemaDiscoverer(gw Gateway, dialect Dialect, schema string) *SchemaDiscoverer {
	return &SchemaDiscoverer{gw: gw, dialect: dialect, schema: schema}
}

func (d *SchemaDiscoverer) ListTables(ctx context.Context) ([]string, error) {
	return d.listNames(ctx, d.dialect.TablesStatement(d.schema), "table_name")
}

func (d *SchemaDiscoverer) ListColumns(ctx context.Context, table string) ([]string, error) {
	return d.listNames(ctx, d.dialect.ColumnsStatement(d.schema, table), "column_name")
}

func (d *SchemaDiscoverer) listNames(ctx context.Context, st Statement, col string) ([]string, error) {
	res, err := d.gw.Execute(ctx, st)
	if err != nil {
		return nil, err
	}
	xs := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, ok := row[col]
		if !ok {
			// some MySQL versions return information_schema columns upper-cased
			v = row[strings.ToUpper(col)]
		}
		if v == nil {
			continue
		}
		xs = append(xs, fmt.Sprint(v))
	}
	return xs, nil
}
