//go:build integration

package crud

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbUser = "mustwatchtest"
var dbPass = "secret"
var dbName = "mustwatch"

var postgresSchema = []string{
	`CREATE TABLE categoria (categoria_id SERIAL PRIMARY KEY, nome_categoria VARCHAR(255) NOT NULL)`,
	`CREATE TABLE serie (serie_id SERIAL PRIMARY KEY, titulo VARCHAR(255) NOT NULL, descricao TEXT, ano_lancamento INT, id_categoria INT NOT NULL)`,
	`CREATE TABLE ator (ator_id SERIAL PRIMARY KEY, nome_ator VARCHAR(255) NOT NULL)`,
	`CREATE TABLE ator_serie (ator_serie_id SERIAL PRIMARY KEY, ator_id INT NOT NULL, serie_id INT NOT NULL, UNIQUE (ator_id, serie_id))`,
}

// createDocker starts postgres 13 and returns a connection to it. The
// container is purged when the test ends.
func createDocker(t *testing.T) *sql.DB {
	t.Helper()

	dockerPool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}
	dockerResource, err := dockerPool.Run("postgres", "13", []string{"POSTGRES_PASSWORD=" + dbPass, "POSTGRES_USER=" + dbUser, "POSTGRES_DB=" + dbName})
	if err != nil {
		t.Fatalf("Could not start resource: %s", err)
	}
	t.Cleanup(func() { dockerPool.Purge(dockerResource) })

	var dbConn *sql.DB
	if err = dockerPool.Retry(func() error {
		var err error
		dbConn, err = sql.Open(DriverPostgres, fmt.Sprintf("host=localhost user=%s password=%s port=%s dbname=%s sslmode=disable", dbUser, dbPass, dockerResource.GetPort("5432/tcp"), dbName))
		if err != nil {
			return err
		}
		return dbConn.Ping()
	}); err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}
	t.Cleanup(func() { dbConn.Close() })

	for _, q := range postgresSchema {
		if _, err := dbConn.Exec(q); err != nil {
			t.Fatalf("Could not create schema: %s", err)
		}
	}
	return dbConn
}

func TestPostgres(t *testing.T) {
	db := createDocker(t)
	dialect, err := DialectFor(DriverPostgres)
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	gw := NewSQLGateway(db, dialect, &GatewayOptions{Logger: testLogger, Metrics: metrics})
	c := NewController(gw, testLogger)
	mux := http.NewServeMux()
	env := &testEnv{db: db, gw: gw, c: c, mux: mux, handler: Middleware(mux, testLogger, metrics), metrics: metrics}

	b, err := NewBinder(NewSchemaDiscoverer(gw, dialect, "public"), c, BinderOptions{
		Models: map[string]any{"serie": &testSerie{}, "ator": &testAtor{}},
		Logger: testLogger,
	})
	require.NoError(t, err)
	tables, err := b.Bind(context.Background(), mux)
	require.NoError(t, err)
	assert.Len(t, tables, 4)

	_, err = c.RegisterAssociation(mux, NewAssociation("ator"))
	require.NoError(t, err)

	code, _ := env.do(t, http.MethodGet, "/serie", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := env.do(t, http.MethodPost, "/serie", `{"titulo": "Dark", "id_categoria": 1}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	code, body = env.do(t, http.MethodPost, "/ator", `{"nome_ator": "Louis Hofmann"}`)
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = env.do(t, http.MethodGet, "/serie", "")
	require.Equal(t, http.StatusOK, code)
	rows := decodeRows(t, body)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dark", rows[0]["titulo"])

	code, _ = env.do(t, http.MethodPut, "/serie/1", `{"titulo": "Dark", "id_categoria": 2}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, "/serie/42", `{"titulo": "Dark", "id_categoria": 2}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/ator/1/series/1", "")
	assert.Equal(t, http.StatusCreated, code)
	code, _ = env.do(t, http.MethodPost, "/ator/1/series/1", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 1, env.count(t, "SELECT COUNT(*) FROM ator_serie"))

	code, body = env.do(t, http.MethodGet, "/ator/1/series", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeRows(t, body), 1)

	code, _ = env.do(t, http.MethodDelete, "/ator/1/series/1", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/serie/1", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/serie/1", "")
	assert.Equal(t, http.StatusNotFound, code)

	_, err = gw.Execute(context.Background(), NewStatement("INSERT INTO ator_serie (ator_id, serie_id) VALUES (?, ?), (?, ?)", 1, 1, 1, 1))
	assert.True(t, IsUniqueViolation(err))
}
