package crud

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldKind is the scalar type of a shape field
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
)

func (k FieldKind) String() string {
	if k == FieldInt {
		return "int"
	}
	return "string"
}

// Field describes one field of a StructShape
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	Nullable bool

	index int
}

// Shape decides which request bodies are valid records for a table. It is
// either a *StructShape or an *OpenShape and is chosen when routes are bound.
type Shape interface {
	// Decode turns a JSON request body into an ordered Record. It returns
	// *ValidationError when the body does not fit the shape.
	Decode(body []byte) (*Record, error)
}

// StructShape is a shape reflected from a Go struct. Fields keep the order in
// which they are declared in the struct.
type StructShape struct {
	typ      reflect.Type
	fields   []Field
	validate *validator.Validate
}

// NewStructShape reflects obj (a struct or pointer to struct) into a shape.
// Field names are taken from the "json" tag. Non-pointer fields are required,
// pointer fields are optional and nullable unless tagged with crud:"req".
// Fields tagged crud:"-" are skipped. Constraints in "validate" tags are
// checked on every decoded body.
func NewStructShape(obj any) (*StructShape, error) {
	t := reflect.TypeOf(obj)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, HelperError{Op: "NewStructShape", Err: errors.Errorf("%v is not a struct", reflect.TypeOf(obj))}
	}

	fields, err := reflectFields(t)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, HelperError{Op: "NewStructShape", Err: errors.Errorf("%s has no fields", t.Name())}
	}

	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	return &StructShape{typ: t, fields: fields, validate: v}, nil
}

// Fields returns fields of the shape in declared order
func (s *StructShape) Fields() []Field {
	return s.fields
}

// FieldNames returns names of fields in declared order
func (s *StructShape) FieldNames() []string {
	xs := make([]string, len(s.fields))
	for i, f := range s.fields {
		xs[i] = f.Name
	}
	return xs
}

func (s *StructShape) Decode(body []byte) (*Record, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ValidationError{Err: errors.Wrap(err, "invalid JSON body")}
	}

	failed := []string{}
	for _, f := range s.fields {
		v, ok := raw[f.Name]
		isNull := ok && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
		if (f.Required && (!ok || isNull)) || (isNull && !f.Nullable) {
			failed = append(failed, f.Name)
		}
	}
	if len(failed) > 0 {
		return nil, &ValidationError{Fields: failed, Err: errors.New("field required")}
	}

	obj := reflect.New(s.typ)
	if err := json.Unmarshal(body, obj.Interface()); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{Fields: []string{typeErr.Field}, Err: errors.Errorf("expected %s", typeErr.Type)}
		}
		return nil, &ValidationError{Err: errors.Wrap(err, "invalid JSON body")}
	}

	if err := s.validate.Struct(obj.Interface()); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				failed = append(failed, fe.Field())
			}
		}
		return nil, &ValidationError{Fields: failed, Err: errors.New("field validation failed")}
	}

	r := &Record{}
	val := obj.Elem()
	for _, f := range s.fields {
		fv := val.Field(f.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				r.Add(f.Name, nil)
				continue
			}
			fv = fv.Elem()
		}
		r.Add(f.Name, fv.Interface())
	}
	return r, nil
}

// OpenShape accepts any non-empty JSON object whose keys are known columns of
// the table and whose values are strings, integers or nulls. Fields of the
// resulting record are sorted by name.
type OpenShape struct {
	columns map[string]bool
}

// NewOpenShape returns shape accepting the listed columns. With no columns,
// any key that is a safe SQL identifier is accepted.
func NewOpenShape(columns []string) *OpenShape {
	s := &OpenShape{}
	if len(columns) > 0 {
		s.columns = make(map[string]bool, len(columns))
		for _, c := range columns {
			s.columns[c] = true
		}
	}
	return s
}

func (s *OpenShape) Decode(body []byte) (*Record, error) {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	m := map[string]any{}
	if err := d.Decode(&m); err != nil {
		return nil, &ValidationError{Err: errors.Wrap(err, "invalid JSON body")}
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, &ValidationError{Err: errors.New("invalid JSON body: data after top-level object")}
	}
	if len(m) == 0 {
		return nil, &ValidationError{Err: errors.New("no fields in body")}
	}

	keys := make([]string, 0, len(m))
	failed := []string{}
	for k := range m {
		if !isSafeIdentifier(k) || (s.columns != nil && !s.columns[k]) {
			failed = append(failed, k)
			continue
		}
		keys = append(keys, k)
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return nil, &ValidationError{Fields: failed, Err: errors.New("unknown field")}
	}
	sort.Strings(keys)

	r := &Record{}
	for _, k := range keys {
		v, err := scalarValue(m[k])
		if err != nil {
			return nil, &ValidationError{Fields: []string{k}, Err: err}
		}
		r.Add(k, v)
	}
	return r, nil
}

// scalarValue accepts the values a record can hold: string, integer or null
func scalarValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string:
		return x, nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, errors.New("value must be an integer")
		}
		return i, nil
	}
	return nil, errors.New("value must be a string, an integer or null")
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
