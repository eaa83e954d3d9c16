package crud

// Record is an ordered list of field names and the values bound to them.
// Values[i] belongs to Fields[i].
type Record struct {
	Fields []string
	Values []any
}

// Add appends a field with its value
func (r *Record) Add(name string, v any) {
	r.Fields = append(r.Fields, name)
	r.Values = append(r.Values, v)
}

// Len returns number of fields in the record
func (r *Record) Len() int {
	return len(r.Fields)
}

// Get returns value of a field and whether the record has it
func (r *Record) Get(name string) (any, bool) {
	for i, f := range r.Fields {
		if f == name {
			return r.Values[i], true
		}
	}
	return nil, false
}
