package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	crud "github.com/gen64/mustwatch-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqliteSchema = []string{
	`CREATE TABLE categoria (categoria_id INTEGER PRIMARY KEY AUTOINCREMENT, nome_categoria TEXT NOT NULL)`,
	`CREATE TABLE serie (serie_id INTEGER PRIMARY KEY AUTOINCREMENT, titulo TEXT NOT NULL, descricao TEXT, ano_lancamento INTEGER, id_categoria INTEGER NOT NULL REFERENCES categoria (categoria_id))`,
	`CREATE TABLE ator (ator_id INTEGER PRIMARY KEY AUTOINCREMENT, nome_ator TEXT NOT NULL)`,
	`CREATE TABLE autor (autor_id INTEGER PRIMARY KEY AUTOINCREMENT, nome_autor TEXT NOT NULL)`,
	`CREATE TABLE ator_serie (ator_serie_id INTEGER PRIMARY KEY AUTOINCREMENT, ator_id INTEGER NOT NULL, serie_id INTEGER NOT NULL, UNIQUE (ator_id, serie_id))`,
	`CREATE TABLE autor_serie (autor_serie_id INTEGER PRIMARY KEY AUTOINCREMENT, autor_id INTEGER NOT NULL, serie_id INTEGER NOT NULL, UNIQUE (autor_id, serie_id))`,
}

func TestNewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := defaultConfig()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.Name = filepath.Join(t.TempDir(), "mustwatch.db")
	cfg.API.Associations = []string{"ator", "autor"}

	conn, err := NewDB(&cfg.DB).GetConn()
	require.NoError(t, err)
	defer conn.Close()
	for _, q := range sqliteSchema {
		_, err := conn.Exec(q)
		require.NoError(t, err)
	}

	dialect, err := crud.DialectFor(cfg.DB.Driver)
	require.NoError(t, err)
	h, err := newHandler(context.Background(), cfg, crud.NewSQLGateway(conn, dialect, &crud.GatewayOptions{Logger: logger}), dialect, logger)
	require.NoError(t, err)

	do := func(method string, path string, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/serie", ""))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/categoria", `{"nome_categoria": "Drama"}`))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/serie", `{"titulo": "Dark", "ano_lancamento": 2017, "id_categoria": 1}`))
	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPost, "/serie", `{"titulo": "Dark", "ano_lancamento": 1500, "id_categoria": 1}`))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/autor", `{"nome_autor": "Baran bo Odar"}`))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/autor/1/series/1", ""))
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/autor/1/series/1", ""))
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/ator/1/series/1", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/autor/1/series", ""))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/autor_serie", `{"autor_id": 1, "serie_id": 2}`))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics", ""))
}

func TestNewHandlerUnsafeAssociation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := defaultConfig()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.Name = filepath.Join(t.TempDir(), "mustwatch.db")
	cfg.API.Associations = []string{"ator serie"}

	conn, err := NewDB(&cfg.DB).GetConn()
	require.NoError(t, err)
	defer conn.Close()

	dialect, _ := crud.DialectFor(cfg.DB.Driver)
	_, err = newHandler(context.Background(), cfg, crud.NewSQLGateway(conn, dialect, nil), dialect, logger)
	assert.Error(t, err)
}

func TestNewHandlerRouteConflicts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := defaultConfig()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.Name = filepath.Join(t.TempDir(), "mustwatch.db")

	conn, err := NewDB(&cfg.DB).GetConn()
	require.NoError(t, err)
	defer conn.Close()
	for _, q := range append(sqliteSchema, `CREATE TABLE metrics (metrics_id INTEGER PRIMARY KEY AUTOINCREMENT, nome TEXT)`) {
		_, err := conn.Exec(q)
		require.NoError(t, err)
	}
	dialect, _ := crud.DialectFor(cfg.DB.Driver)
	gw := crud.NewSQLGateway(conn, dialect, &crud.GatewayOptions{Logger: logger})

	// metrics table is not bound, the endpoint keeps its route
	var h http.Handler
	require.NotPanics(t, func() {
		h, err = newHandler(context.Background(), cfg, gw, dialect, logger)
	})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	cfg.API.Associations = []string{"ator", "ator"}
	require.NotPanics(t, func() {
		_, err = newHandler(context.Background(), cfg, gw, dialect, logger)
	})
	assert.Error(t, err)
}
