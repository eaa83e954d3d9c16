package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// Association describes a link table joining an entity (ator, autor) with
// series
type Association struct {
	Entity   string
	EntityPK string
	Link     string
	Series   string
	SeriesPK string
}

// NewAssociation returns association of entity with the "serie" table using
// the <table>_id and <entity>_serie naming of the schema
func NewAssociation(entity string) Association {
	return Association{
		Entity:   entity,
		EntityPK: entity + "_id",
		Link:     entity + "_serie",
		Series:   "serie",
		SeriesPK: "serie_id",
	}
}

func (a Association) check() error {
	for _, n := range []string{a.Entity, a.EntityPK, a.Link, a.Series, a.SeriesPK} {
		if !isSafeIdentifier(n) {
			return errors.Errorf("unsafe identifier %q", n)
		}
	}
	return nil
}

// associationStage is the progress of creating an association. Each stage is
// reached only when the previous check passed.
type associationStage int

const (
	stageStart associationStage = iota
	stageLeftChecked
	stageRightChecked
	stagePairChecked
	stageInserted
)

func (s associationStage) String() string {
	switch s {
	case stageStart:
		return "start"
	case stageLeftChecked:
		return "left-checked"
	case stageRightChecked:
		return "right-checked"
	case stagePairChecked:
		return "pair-checked"
	case stageInserted:
		return "inserted"
	}
	return "unknown"
}

// AssociationHandler serves the link table of one Association
type AssociationHandler struct {
	gw     Gateway
	a      Association
	logger *slog.Logger

	queryList        string
	queryCountEntity string
	queryCountSeries string
	queryCountPair   string
	queryInsert      string
	queryUpdate      string
	queryDelete      string
}

// RegisterAssociation creates endpoints for the link table of a:
//
//	GET    /{entity}/{entity_id}/series             series linked to the entity
//	POST   /{entity}/{entity_id}/series/{serie_id}  links series to the entity
//	PUT    /{entity}/{entity_id}/series/{serie_id}  moves the link to another series
//	DELETE /{entity}/{entity_id}/series/{serie_id}  removes the link
func (c *Controller) RegisterAssociation(r Router, a Association) (*AssociationHandler, error) {
	if err := a.check(); err != nil {
		return nil, &ControllerError{Op: "RegisterAssociation", Table: a.Link, Err: err}
	}

	ah := &AssociationHandler{
		gw:     c.gw,
		a:      a,
		logger: c.logger.With("association", a.Link),

		queryList: "SELECT s.* FROM " + a.Series + " s JOIN " + a.Link + " l ON s." + a.SeriesPK + " = l." + a.SeriesPK +
			" WHERE l." + a.EntityPK + " = ? ORDER BY s." + a.SeriesPK,
		queryCountEntity: "SELECT COUNT(*) AS cnt FROM " + a.Entity + " WHERE " + a.EntityPK + " = ?",
		queryCountSeries: "SELECT COUNT(*) AS cnt FROM " + a.Series + " WHERE " + a.SeriesPK + " = ?",
		queryCountPair:   "SELECT COUNT(*) AS cnt FROM " + a.Link + " WHERE " + a.EntityPK + " = ? AND " + a.SeriesPK + " = ?",
		queryInsert:      "INSERT INTO " + a.Link + " (" + a.EntityPK + ", " + a.SeriesPK + ") VALUES (?, ?)",
		queryUpdate:      "UPDATE " + a.Link + " SET " + a.SeriesPK + " = ? WHERE " + a.EntityPK + " = ? AND " + a.SeriesPK + " = ?",
		queryDelete:      "DELETE FROM " + a.Link + " WHERE " + a.EntityPK + " = ? AND " + a.SeriesPK + " = ?",
	}

	base := "/" + a.Entity + "/{entity_id}/series"
	patterns := []string{
		"GET " + base,
		"POST " + base + "/{serie_id}",
		"PUT " + base + "/{serie_id}",
		"DELETE " + base + "/{serie_id}",
	}
	if err := c.claim("RegisterAssociation", a.Link, patterns); err != nil {
		return nil, err
	}
	r.HandleFunc(patterns[0], ah.handleHTTPList)
	r.HandleFunc(patterns[1], ah.handleHTTPCreate)
	r.HandleFunc(patterns[2], ah.handleHTTPUpdate)
	r.HandleFunc(patterns[3], ah.handleHTTPDelete)
	return ah, nil
}

// List returns series linked to the entity. No links is reported as
// ErrNotFound.
func (ah *AssociationHandler) List(ctx context.Context, entityID int64) ([]Row, error) {
	res, err := ah.gw.Execute(ctx, NewStatement(ah.queryList, entityID))
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no series found for %s %d", ah.a.Entity, entityID)
	}
	return res.Rows, nil
}

// Create links series to the entity. Both must exist and the pair must not be
// linked yet. The checks and the insert are separate statements, so two
// concurrent calls for the same pair can both pass the duplicate check.
func (ah *AssociationHandler) Create(ctx context.Context, entityID int64, seriesID int64) error {
	stage := stageStart
	err := func() error {
		if err := ah.mustExist(ctx, ah.queryCountEntity, "%s %d not found", ah.a.Entity, entityID); err != nil {
			return err
		}
		stage = stageLeftChecked

		if err := ah.mustExist(ctx, ah.queryCountSeries, "%s %d not found", ah.a.Series, seriesID); err != nil {
			return err
		}
		stage = stageRightChecked

		n, err := ah.count(ctx, NewStatement(ah.queryCountPair, entityID, seriesID))
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(ErrConflict, "%s %d is already linked to %s %d", ah.a.Entity, entityID, ah.a.Series, seriesID)
		}
		stage = stagePairChecked

		if _, err := ah.gw.Execute(ctx, NewStatement(ah.queryInsert, entityID, seriesID)); err != nil {
			if IsUniqueViolation(err) {
				return errors.Wrapf(ErrConflict, "%s %d is already linked to %s %d", ah.a.Entity, entityID, ah.a.Series, seriesID)
			}
			return err
		}
		stage = stageInserted
		return nil
	}()
	if err != nil {
		ah.logger.DebugContext(ctx, "association not created", "stage", stage.String(), "entity_id", entityID, "serie_id", seriesID, "error", err)
	}
	return err
}

// Update moves the link of the entity from seriesID to newSeriesID. The link
// and the new series must exist, and the new pair must not be linked yet.
func (ah *AssociationHandler) Update(ctx context.Context, entityID int64, seriesID int64, newSeriesID int64) error {
	n, err := ah.count(ctx, NewStatement(ah.queryCountPair, entityID, seriesID))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s %d is not linked to %s %d", ah.a.Entity, entityID, ah.a.Series, seriesID)
	}

	if err := ah.mustExist(ctx, ah.queryCountSeries, "%s %d not found", ah.a.Series, newSeriesID); err != nil {
		return err
	}

	if newSeriesID != seriesID {
		n, err = ah.count(ctx, NewStatement(ah.queryCountPair, entityID, newSeriesID))
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(ErrConflict, "%s %d is already linked to %s %d", ah.a.Entity, entityID, ah.a.Series, newSeriesID)
		}
	}

	_, err = ah.gw.Execute(ctx, NewStatement(ah.queryUpdate, newSeriesID, entityID, seriesID))
	if IsUniqueViolation(err) {
		return errors.Wrapf(ErrConflict, "%s %d is already linked to %s %d", ah.a.Entity, entityID, ah.a.Series, newSeriesID)
	}
	return err
}

// Delete removes the link between the entity and series
func (ah *AssociationHandler) Delete(ctx context.Context, entityID int64, seriesID int64) error {
	n, err := ah.count(ctx, NewStatement(ah.queryCountPair, entityID, seriesID))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s %d is not linked to %s %d", ah.a.Entity, entityID, ah.a.Series, seriesID)
	}

	res, err := ah.gw.Execute(ctx, NewStatement(ah.queryDelete, entityID, seriesID))
	if err != nil {
		return err
	}
	if res.RowCount == 0 {
		return errors.Wrapf(ErrNotFound, "%s %d is not linked to %s %d", ah.a.Entity, entityID, ah.a.Series, seriesID)
	}
	return nil
}

func (ah *AssociationHandler) mustExist(ctx context.Context, query string, format string, table string, id int64) error {
	n, err := ah.count(ctx, NewStatement(query, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, format, table, id)
	}
	return nil
}

// count runs a "SELECT COUNT(*) AS cnt" statement and returns the number
func (ah *AssociationHandler) count(ctx context.Context, st Statement) (int64, error) {
	res, err := ah.gw.Execute(ctx, st)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return toInt64(res.Rows[0]["cnt"])
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, &GatewayError{Op: "Count", Kind: ErrExecution, Err: errors.Errorf("unexpected count type %T", v)}
}

func (ah *AssociationHandler) handleHTTPList(w http.ResponseWriter, r *http.Request) {
	entityID, err := pathID(r, "entity_id")
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := ah.List(r.Context(), entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (ah *AssociationHandler) handleHTTPCreate(w http.ResponseWriter, r *http.Request) {
	entityID, seriesID, err := pathPair(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ah.Create(r.Context(), entityID, seriesID); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusCreated, ah.a.Entity+" "+strconv.FormatInt(entityID, 10)+" linked to "+ah.a.Series+" "+strconv.FormatInt(seriesID, 10))
}

func (ah *AssociationHandler) handleHTTPUpdate(w http.ResponseWriter, r *http.Request) {
	entityID, seriesID, err := pathPair(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	newSeriesID, err := ah.decodeNewSeriesID(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ah.Update(r.Context(), entityID, seriesID, newSeriesID); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusOK, ah.a.Entity+" "+strconv.FormatInt(entityID, 10)+" linked to "+ah.a.Series+" "+strconv.FormatInt(newSeriesID, 10))
}

func (ah *AssociationHandler) handleHTTPDelete(w http.ResponseWriter, r *http.Request) {
	entityID, seriesID, err := pathPair(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ah.Delete(r.Context(), entityID, seriesID); err != nil {
		writeError(w, err)
		return
	}
	writeAck(w, http.StatusOK, ah.a.Entity+" "+strconv.FormatInt(entityID, 10)+" unlinked from "+ah.a.Series+" "+strconv.FormatInt(seriesID, 10))
}

// decodeNewSeriesID reads {"serie_id": <int>} from body
func (ah *AssociationHandler) decodeNewSeriesID(body []byte) (int64, error) {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	m := map[string]any{}
	if err := d.Decode(&m); err != nil {
		return 0, &ValidationError{Err: errors.Wrap(err, "invalid JSON body")}
	}
	n, ok := m[ah.a.SeriesPK].(json.Number)
	if !ok {
		return 0, &ValidationError{Fields: []string{ah.a.SeriesPK}, Err: errors.New("field required")}
	}
	id, err := n.Int64()
	if err != nil {
		return 0, &ValidationError{Fields: []string{ah.a.SeriesPK}, Err: errors.New("must be an integer")}
	}
	return id, nil
}

func pathPair(r *http.Request) (int64, int64, error) {
	entityID, err := pathID(r, "entity_id")
	if err != nil {
		return 0, 0, err
	}
	seriesID, err := pathID(r, "serie_id")
	if err != nil {
		return 0, 0, err
	}
	return entityID, seriesID, nil
}
