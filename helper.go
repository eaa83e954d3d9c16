package crud

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Helper builds SQL queries for a single table. Table and column names are
// only ever taken from the bound Table (never from request input) and they
// are checked with isSafeIdentifier before a Helper is created. Values are
// always passed as "?" placeholders.
// Helper is created within Controller and there is no need to instantiate it
type Helper struct {
	dbTbl string
	dbPK  string

	querySelect     string
	queryDeleteById string
}

// NewHelper takes table name and primary key column and returns Helper
// instance
func NewHelper(table string, pk string) (*Helper, error) {
	if !isSafeIdentifier(table) {
		return nil, HelperError{Op: "NewHelper", Tag: "table", Err: errors.Errorf("unsafe identifier %q", table)}
	}
	if !isSafeIdentifier(pk) {
		return nil, HelperError{Op: "NewHelper", Tag: "pk", Err: errors.Errorf("unsafe identifier %q", pk)}
	}
	return &Helper{
		dbTbl:           table,
		dbPK:            pk,
		querySelect:     "SELECT * FROM " + table,
		queryDeleteById: "DELETE FROM " + table + " WHERE " + pk + " = ?",
	}, nil
}

// GetQuerySelect returns query listing all rows of the table
func (h *Helper) GetQuerySelect() Statement {
	return NewStatement(h.querySelect)
}

// GetQueryInsert returns insert statement for the record. Columns and values
// keep the order of the record fields.
func (h *Helper) GetQueryInsert(r *Record) (Statement, error) {
	if err := h.checkRecord(r); err != nil {
		return Statement{}, err
	}
	q := "INSERT INTO " + h.dbTbl + " (" + strings.Join(r.Fields, ", ") + ") VALUES (" + placeholders(r.Len()) + ")"
	return NewStatement(q, append([]any{}, r.Values...)...), nil
}

// GetQueryUpdateById returns update statement setting the record fields on
// the row with primary key id. id is bound as the last value.
func (h *Helper) GetQueryUpdateById(r *Record, id any) (Statement, error) {
	if err := h.checkRecord(r); err != nil {
		return Statement{}, err
	}
	var queryUpdateCols string
	for _, f := range r.Fields {
		queryUpdateCols = h.addWithComma(queryUpdateCols, f+" = ?")
	}
	q := "UPDATE " + h.dbTbl + " SET " + queryUpdateCols + " WHERE " + h.dbPK + " = ?"
	args := make([]any, 0, r.Len()+1)
	args = append(args, r.Values...)
	args = append(args, id)
	return NewStatement(q, args...), nil
}

// GetQueryDeleteById returns delete statement for row with primary key id
func (h *Helper) GetQueryDeleteById(id any) Statement {
	return NewStatement(h.queryDeleteById, id)
}

func (h *Helper) checkRecord(r *Record) error {
	if r == nil || r.Len() == 0 {
		return HelperError{Op: "CheckRecord", Err: errors.New("record has no fields")}
	}
	if len(r.Fields) != len(r.Values) {
		return HelperError{Op: "CheckRecord", Err: errors.Errorf("record has %d fields and %d values", len(r.Fields), len(r.Values))}
	}
	for _, f := range r.Fields {
		if !isSafeIdentifier(f) {
			return HelperError{Op: "CheckRecord", Tag: f, Err: errors.New("unsafe column name")}
		}
	}
	return nil
}

func (h *Helper) addWithComma(s string, v string) string {
	if s != "" {
		s += ", "
	}
	s += v
	return s
}

func placeholders(n int) string {
	if n < 1 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// reflectFields turns exported fields of struct type s into shape fields, in
// declared order
func reflectFields(s reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, s.NumField())
	for j := 0; j < s.NumField(); j++ {
		field := s.Field(j)
		if !field.IsExported() {
			continue
		}

		skip, req, err := parseTag(field.Tag.Get("crud"))
		if err != nil {
			return nil, err
		}
		name := jsonFieldName(field)
		if skip || name == "" {
			continue
		}
		if !isSafeIdentifier(name) {
			return nil, HelperError{Op: "ReflectFields", Tag: name, Err: errors.New("unsafe column name")}
		}

		t := field.Type
		nullable := false
		if t.Kind() == reflect.Ptr {
			nullable = true
			t = t.Elem()
		}

		var kind FieldKind
		switch t.Kind() {
		case reflect.String:
			kind = FieldString
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			kind = FieldInt
		default:
			return nil, HelperError{Op: "ReflectFields", Tag: name, Err: errors.Errorf("unsupported field type %s", field.Type)}
		}

		fields = append(fields, Field{
			Name:     name,
			Kind:     kind,
			Required: !nullable || req,
			Nullable: nullable && !req,
			index:    j,
		})
	}
	return fields, nil
}

// parseTag parses value of the "crud" tag. "-" skips the field and "req"
// makes a pointer field required.
func parseTag(s string) (bool, bool, error) {
	var skip, req bool
	for _, t := range strings.Fields(s) {
		switch t {
		case "-":
			skip = true
		case "req":
			req = true
		default:
			return false, false, HelperError{Op: "ParseTag", Tag: t, Err: errors.New("unknown option")}
		}
	}
	return skip, req, nil
}
