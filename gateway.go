package crud

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gen64/mustwatch-api"

// Row is a single result row keyed by column name
type Row map[string]any

// Result is what a statement returned: rows for queries, number of affected
// rows for everything else
type Result struct {
	Kind     StatementKind
	Rows     []Row
	RowCount int64
}

// Gateway is the only component that talks to the database. Each call to
// Execute runs exactly one statement on its own connection.
type Gateway interface {
	Execute(ctx context.Context, st Statement) (*Result, error)
}

// GatewayOptions are optional collaborators of SQLGateway
type GatewayOptions struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// SQLGateway executes statements using database/sql. A dedicated connection
// is taken from db for every statement and released before Execute returns.
type SQLGateway struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewSQLGateway returns new SQLGateway object
func NewSQLGateway(db *sql.DB, dialect Dialect, opts *GatewayOptions) *SQLGateway {
	if opts == nil {
		opts = &GatewayOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLGateway{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "gateway"),
		metrics: opts.Metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Dialect returns dialect the gateway rebinds statements with
func (g *SQLGateway) Dialect() Dialect {
	return g.dialect
}

// Execute runs st and returns its rows or affected row count. Failures are
// logged here and returned as *GatewayError of kind ErrConnection or
// ErrExecution.
func (g *SQLGateway) Execute(ctx context.Context, st Statement) (res *Result, err error) {
	kind := st.Kind()
	ctx, span := g.tracer.Start(ctx, "crud.Execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", g.dialect.Name),
			attribute.String("db.statement.kind", kind.String()),
		),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "execution_error"
			if errors.Is(err, ErrConnection) {
				outcome = "connection_error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			g.logger.ErrorContext(ctx, "statement failed", "kind", kind.String(), "sql", st.Text, "error", err)
		}
		g.metrics.observeStatement(kind, outcome, time.Since(start))
		span.End()
	}()

	if err := st.Check(); err != nil {
		return nil, &GatewayError{Op: "Check", Kind: ErrExecution, Err: err}
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, &GatewayError{Op: "Connect", Kind: ErrConnection, Err: err}
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return nil, &GatewayError{Op: "Ping", Kind: ErrConnection, Err: err}
	}

	q := g.dialect.Rebind(st.Text)
	g.logger.DebugContext(ctx, "executing statement", "kind", kind.String(), "sql", q, "args", len(st.Args))

	if kind == KindQuery {
		rows, err := conn.QueryContext(ctx, q, st.Args...)
		if err != nil {
			return nil, &GatewayError{Op: "Query", Kind: ErrExecution, Err: err}
		}
		defer rows.Close()

		xr, err := scanRows(rows)
		if err != nil {
			return nil, &GatewayError{Op: "Scan", Kind: ErrExecution, Err: err}
		}
		return &Result{Kind: KindQuery, Rows: xr}, nil
	}

	r, err := conn.ExecContext(ctx, q, st.Args...)
	if err != nil {
		return nil, &GatewayError{Op: "Exec", Kind: ErrExecution, Err: err}
	}
	n, err := r.RowsAffected()
	if err != nil {
		return nil, &GatewayError{Op: "RowsAffected", Kind: ErrExecution, Err: err}
	}
	return &Result{Kind: KindMutation, RowCount: n}, nil
}

// scanRows reads all rows into column name to value maps. Byte slices are
// turned into strings so rows marshal to readable JSON.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	xr := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		xr = append(xr, row)
	}
	return xr, rows.Err()
}

// IsUniqueViolation reports whether err was caused by a unique or primary key
// constraint in any of the supported drivers
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
