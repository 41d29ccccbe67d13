package domain

import "encoding/json"

// Record is one row of a query result. Keys and Values are parallel slices
// in the column order the engine returned.
type Record struct {
	Keys   []string
	Values []Value
}

// NewRecord pairs keys with values. Missing values are null.
func NewRecord(keys []string, values ...Value) Record {
	vals := make([]Value, len(keys))
	copy(vals, values)
	return Record{Keys: keys, Values: vals}
}

// Get returns the value of the named column.
func (r Record) Get(key string) (Value, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Len returns the number of columns.
func (r Record) Len() int {
	return len(r.Keys)
}

// AsMap returns the record as a plain map.
func (r Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.Keys))
	for i, k := range r.Keys {
		out[k] = r.Values[i].Any()
	}
	return out
}

// MarshalJSON encodes the record as a JSON object.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AsMap())
}
