package crud

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

var errNoColumns = errors.New("no columns discovered")

// PKConvention tells how the primary key column of a table is named
type PKConvention string

const (
	// PKTableID names the primary key <table>_id, e.g. serie_id
	PKTableID PKConvention = "table_id"
	// PKID names the primary key of every table id
	PKID PKConvention = "id"
)

// Column returns primary key column of table
func (c PKConvention) Column(table string) string {
	if c == PKID {
		return "id"
	}
	return table + "_id"
}

// BinderOptions configure a Binder
type BinderOptions struct {
	// Models maps table names to structs (or pointers to structs) their
	// records are decoded into. Tables without a model get an OpenShape.
	Models       map[string]any
	PKConvention PKConvention
	// Exclude lists tables that get no endpoints
	Exclude []string
	Logger  *slog.Logger
}

// Binder discovers tables and registers CRUD endpoints for each of them
type Binder struct {
	discoverer Discoverer
	controller *Controller
	shapes     map[string]Shape
	pk         PKConvention
	exclude    map[string]bool
	logger     *slog.Logger
}

// NewBinder returns new Binder. Model structs are reflected here so invalid
// models fail at startup.
func NewBinder(d Discoverer, c *Controller, opts BinderOptions) (*Binder, error) {
	b := &Binder{
		discoverer: d,
		controller: c,
		shapes:     make(map[string]Shape, len(opts.Models)),
		pk:         opts.PKConvention,
		exclude:    make(map[string]bool, len(opts.Exclude)),
		logger:     opts.Logger,
	}
	if b.pk == "" {
		b.pk = PKTableID
	}
	if b.pk != PKTableID && b.pk != PKID {
		return nil, errors.Errorf("unknown primary key convention %q", b.pk)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "binder")

	for table, model := range opts.Models {
		s, err := NewStructShape(model)
		if err != nil {
			return nil, errors.WithMessagef(err, "model for table %s", table)
		}
		b.shapes[table] = s
	}
	for _, t := range opts.Exclude {
		b.exclude[t] = true
	}
	return b, nil
}

// Bind lists tables and registers endpoints for each of them on r. It returns
// tables that were bound.
func (b *Binder) Bind(ctx context.Context, r Router) ([]Table, error) {
	names, err := b.discoverer.ListTables(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "cannot list tables")
	}

	xt := make([]Table, 0, len(names))
	for _, name := range names {
		if b.exclude[name] {
			continue
		}
		if !isSafeIdentifier(name) {
			b.logger.WarnContext(ctx, "skipping table with unsafe name", "table", name)
			continue
		}

		t, err := b.Resolve(ctx, name)
		if errors.Is(err, errNoColumns) {
			b.logger.WarnContext(ctx, "skipping table without discovered columns", "table", name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := b.controller.RegisterTable(r, t); err != nil {
			return nil, err
		}

		_, typed := t.Shape.(*StructShape)
		b.logger.InfoContext(ctx, "table bound", "table", t.Name, "pk", t.PK, "typed", typed)
		xt = append(xt, t)
	}
	return xt, nil
}

// Resolve returns Table for a table name: its model shape, or an OpenShape
// over its columns when there is no model. A table without a model and
// without discovered columns cannot be resolved.
func (b *Binder) Resolve(ctx context.Context, name string) (Table, error) {
	t := Table{Name: name, PK: b.pk.Column(name)}
	if s, ok := b.shapes[name]; ok {
		t.Shape = s
		return t, nil
	}

	columns, err := b.discoverer.ListColumns(ctx, name)
	if err != nil {
		return Table{}, errors.WithMessagef(err, "cannot list columns of %s", name)
	}
	if len(columns) == 0 {
		return Table{}, errors.Wrapf(errNoColumns, "table %s", name)
	}
	t.Shape = NewOpenShape(columns)
	return t, nil
}
