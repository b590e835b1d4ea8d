package record

import "sort"

// Record is one telemetry item: a mutable set of named, typed attributes.
// A record is exclusively owned by whichever pipeline node currently holds
// it; ownership transfers across channels, so no locking is needed.
type Record struct {
	attrs map[string]Value
}

// New creates an empty record.
func New() *Record {
	return &Record{attrs: make(map[string]Value)}
}

// FromMap creates a record with the given attributes.
func FromMap(attrs map[string]Value) *Record {
	r := &Record{attrs: make(map[string]Value, len(attrs))}
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// Get returns the named attribute.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Set adds or overwrites an attribute.
func (r *Record) Set(name string, v Value) {
	r.attrs[name] = v
}

// Len returns the number of attributes.
func (r *Record) Len() int {
	return len(r.attrs)
}

// Names returns the attribute names in sorted order, for deterministic
// serialization and test output.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	return FromMap(r.attrs)
}
