package crud

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscoverer struct {
	tables  []string
	columns map[string][]string
	err     error
}

func (d *fakeDiscoverer) ListTables(ctx context.Context) ([]string, error) {
	return d.tables, d.err
}

func (d *fakeDiscoverer) ListColumns(ctx context.Context, table string) ([]string, error) {
	return d.columns[table], d.err
}

// recordingRouter keeps registered patterns
type recordingRouter struct {
	patterns []string
}

func (r *recordingRouter) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.patterns = append(r.patterns, pattern)
}

func TestSchemaDiscoverer(t *testing.T) {
	env := newTestEnv(t)
	d := NewSchemaDiscoverer(env.gw, env.gw.Dialect(), "")
	ctx := context.Background()

	tables, err := d.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ator", "ator_serie", "categoria", "motivo_assistir", "serie"}, tables)

	columns, err := d.ListColumns(ctx, "ator_serie")
	require.NoError(t, err)
	assert.Equal(t, []string{"ator_serie_id", "ator_id", "serie_id"}, columns)
}

func TestSchemaDiscovererUpperCaseColumns(t *testing.T) {
	gw := &fakeGateway{results: []fakeResult{{res: &Result{Kind: KindQuery, Rows: []Row{{"TABLE_NAME": "serie"}, {"table_name": "ator"}, {"other": 1}}}}}}
	my, _ := DialectFor(DriverMySQL)

	tables, err := NewSchemaDiscoverer(gw, my, "mustwatch").ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"serie", "ator"}, tables)
	assert.Equal(t, []any{"mustwatch"}, gw.executed[0].Args)
}

func TestBinderBind(t *testing.T) {
	env := newTestEnv(t)
	b, err := NewBinder(NewSchemaDiscoverer(env.gw, env.gw.Dialect(), ""), env.c, BinderOptions{
		Models:  map[string]any{"serie": &testSerie{}, "ator": testAtor{}},
		Exclude: []string{"motivo_assistir"},
		Logger:  testLogger,
	})
	require.NoError(t, err)

	tables, err := b.Bind(context.Background(), env.mux)
	require.NoError(t, err)

	names := []string{}
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"ator", "ator_serie", "categoria", "serie"}, names)

	byName := map[string]Table{}
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}
	assert.IsType(t, &StructShape{}, byName["serie"].Shape)
	assert.IsType(t, &OpenShape{}, byName["categoria"].Shape)
	assert.Equal(t, "categoria_id", byName["categoria"].PK)

	// typed table
	code, body := env.do(t, http.MethodPost, "/serie", `{"titulo": "Dark", "id_categoria": 1}`)
	assert.Equal(t, http.StatusCreated, code, string(body))
	code, _ = env.do(t, http.MethodPost, "/serie", `{"titulo": "Dark"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	// table without a model accepts its own columns only
	code, body = env.do(t, http.MethodPost, "/categoria", `{"nome_categoria": "Drama"}`)
	assert.Equal(t, http.StatusCreated, code, string(body))
	code, _ = env.do(t, http.MethodPost, "/categoria", `{"nome": "Drama"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = env.do(t, http.MethodPut, "/categoria/1", `{"nome_categoria": "Suspense"}`)
	assert.Equal(t, http.StatusOK, code)

	// excluded table has no routes
	code, _ = env.do(t, http.MethodGet, "/motivo_assistir", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodPost, "/motivo_assistir", `{"motivo": "plot", "id_serie": 1}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBinderPKConvention(t *testing.T) {
	d := &fakeDiscoverer{tables: []string{"serie"}, columns: map[string][]string{"serie": {"id", "titulo"}}}
	r := &recordingRouter{}
	b, err := NewBinder(d, NewController(&fakeGateway{}, testLogger), BinderOptions{PKConvention: PKID, Logger: testLogger})
	require.NoError(t, err)

	tables, err := b.Bind(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "id", tables[0].PK)
	assert.Equal(t, []string{"GET /serie", "POST /serie", "PUT /serie/{id}", "DELETE /serie/{id}"}, r.patterns)

	assert.Equal(t, "serie_id", PKTableID.Column("serie"))
	assert.Equal(t, "id", PKID.Column("serie"))
}

func TestBinderSkipsUnsafeTables(t *testing.T) {
	d := &fakeDiscoverer{tables: []string{"serie", "my table", "x;y"}, columns: map[string][]string{"serie": {"serie_id", "titulo"}}}
	r := &recordingRouter{}
	b, err := NewBinder(d, NewController(&fakeGateway{}, testLogger), BinderOptions{Logger: testLogger})
	require.NoError(t, err)

	tables, err := b.Bind(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "serie", tables[0].Name)
	assert.Len(t, r.patterns, 4)
}

func TestBinderSkipsTablesWithoutColumns(t *testing.T) {
	d := &fakeDiscoverer{
		tables:  []string{"ator", "categoria", "serie"},
		columns: map[string][]string{"categoria": {"categoria_id", "nome_categoria"}},
	}
	r := &recordingRouter{}
	b, err := NewBinder(d, NewController(&fakeGateway{}, testLogger), BinderOptions{
		Models: map[string]any{"serie": &testSerie{}},
		Logger: testLogger,
	})
	require.NoError(t, err)

	tables, err := b.Bind(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "categoria", tables[0].Name)
	assert.Equal(t, "serie", tables[1].Name)
	assert.NotContains(t, r.patterns, "POST /ator")

	_, err = b.Resolve(context.Background(), "ator")
	assert.True(t, errors.Is(err, errNoColumns))
}

func TestBinderErrors(t *testing.T) {
	c := NewController(&fakeGateway{}, testLogger)

	_, err := NewBinder(&fakeDiscoverer{}, c, BinderOptions{PKConvention: "uuid"})
	assert.Error(t, err)

	_, err = NewBinder(&fakeDiscoverer{}, c, BinderOptions{Models: map[string]any{"serie": 42}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model for table serie")

	b, err := NewBinder(&fakeDiscoverer{err: errors.New("connection refused")}, c, BinderOptions{})
	require.NoError(t, err)
	_, err = b.Bind(context.Background(), &recordingRouter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot list tables")
}
