package crud

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Router is the part of an HTTP mux the controller registers handlers on.
// *http.ServeMux satisfies it; patterns use the "METHOD /path/{wildcard}"
// syntax.
type Router interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// Table describes a database table that gets CRUD endpoints
type Table struct {
	Name  string
	PK    string
	Shape Shape
}

// Controller is the main component that generates list, create, update and
// delete HTTP handlers for tables and runs their statements through Gateway.
type Controller struct {
	gw     Gateway
	logger *slog.Logger

	mu     sync.Mutex
	routes map[string]bool
}

// NewController returns new Controller object
func NewController(gw Gateway, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gw:     gw,
		logger: logger.With("component", "controller"),
		routes: map[string]bool{},
	}
}

// Reserve claims patterns registered on the router outside of the controller
// (e.g. "GET /metrics"), so tables and associations cannot take them later.
func (c *Controller) Reserve(patterns ...string) error {
	return c.claim("Reserve", "", patterns)
}

// claim marks patterns as taken. Nothing is claimed when any of them is
// already taken, as http.ServeMux panics on a duplicate pattern.
func (c *Controller) claim(op string, table string, patterns []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range patterns {
		if c.routes[p] {
			return &ControllerError{Op: op, Table: table, Err: errors.Errorf("route %q is already registered", p)}
		}
	}
	for _, p := range patterns {
		c.routes[p] = true
	}
	return nil
}

// RegisterTables registers handlers for each of the tables (see
// RegisterTable for a single table)
func (c *Controller) RegisterTables(r Router, xt ...Table) error {
	for _, t := range xt {
		if _, err := c.RegisterTable(r, t); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTable creates four endpoints for the table:
//
//	GET    /{table}       lists all rows
//	POST   /{table}       inserts a record
//	PUT    /{table}/{id}  updates a row by primary key
//	DELETE /{table}/{id}  deletes a row by primary key
//
// Handlers are bound to their own copy of the table, so registering tables in
// a loop is safe.
func (c *Controller) RegisterTable(r Router, t Table) (*TableHandler, error) {
	if t.Shape == nil {
		return nil, &ControllerError{Op: "RegisterTable", Table: t.Name, Err: errors.New("shape is missing")}
	}
	h, err := NewHelper(t.Name, t.PK)
	if err != nil {
		return nil, &ControllerError{Op: "RegisterTable", Table: t.Name, Err: err}
	}

	patterns := []string{
		"GET /" + t.Name,
		"POST /" + t.Name,
		"PUT /" + t.Name + "/{id}",
		"DELETE /" + t.Name + "/{id}",
	}
	if err := c.claim("RegisterTable", t.Name, patterns); err != nil {
		return nil, err
	}

	th := &TableHandler{
		gw:     c.gw,
		table:  t,
		helper: h,
		logger: c.logger.With("table", t.Name),
	}
	r.HandleFunc(patterns[0], th.handleHTTPList)
	r.HandleFunc(patterns[1], th.handleHTTPCreate)
	r.HandleFunc(patterns[2], th.handleHTTPUpdate)
	r.HandleFunc(patterns[3], th.handleHTTPDelete)
	return th, nil
}

// TableHandler runs CRUD operations for one table
type TableHandler struct {
	gw     Gateway
	table  Table
	helper *Helper
	logger *slog.Logger
}

// Table returns the table the handler is bound to
func (th *TableHandler) Table() Table {
	return th.table
}

// List returns all rows of the table. An empty table is reported as
// ErrNotFound.
func (th *TableHandler) List(ctx context.Context) ([]Row, error) {
	res, err := th.gw.Execute(ctx, th.helper.GetQuerySelect())
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, errors.Wrap(ErrNotFound, "no items found")
	}
	return res.Rows, nil
}

// Create decodes body with the table shape and inserts it
func (th *TableHandler) Create(ctx context.Context, body []byte) error {
	rec, err := th.table.Shape.Decode(body)
	if err != nil {
		return err
	}
	st, err := th.helper.GetQueryInsert(rec)
	if err != nil {
		return &ValidationError{Err: err}
	}
	_, err = th.gw.Execute(ctx, st)
	return err
}

// Update decodes body with the table shape and writes it to the row with
// primary key id. ErrNotFound is returned when no row matched.
func (th *TableHandler) Update(ctx context.Context, id int64, body []byte) error {
	rec, err := th.table.Shape.Decode(body)
	if err != nil {
		return err
	}
	st, err := th.helper.GetQueryUpdateById(rec, id)
	if err != nil {
		return &ValidationError{Err: err}
	}
	res, err := th.gw.Execute(ctx, st)
	if err != nil {
		return err
	}
	if res.RowCount == 0 {
		return errors.Wrap(ErrNotFound, "item not found")
	}
	return nil
}

// Delete removes the row with primary key id. ErrNotFound is returned when no
// row matched.
func (th *TableHandler) Delete(ctx context.Context, id int64) error {
	res, err := th.gw.Execute(ctx, th.helper.GetQueryDeleteById(id))
	if err != nil {
		return err
	}
	if res.RowCount == 0 {
		return errors.Wrap(ErrNotFound, "item not found")
	}
	return nil
}

func (th *TableHandler) handleHTTPList(w http.ResponseWriter, r *http.Request) {
	rows, err := th.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (th *TableHandler) handleHTTPCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := th.Create(r.Context(), body); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusCreated, th.table.Name+" created")
}

func (th *TableHandler) handleHTTPUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := th.Update(r.Context(), id, body); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusOK, th.table.Name+" updated")
}

func (th *TableHandler) handleHTTPDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := th.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusOK, th.table.Name+" deleted")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &ValidationError{Err: errors.Wrap(err, "cannot read body")}
	}
	return body, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, &ValidationError{Fields: []string{name}, Err: errors.New("must be an integer")}
	}
	return id, nil
}
