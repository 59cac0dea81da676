// Package step reads ISO 10303-21 exchange structures ("STEP files").
// StripFlatten normalizes the raw text and Parse turns the normalized bytes
// into an immutable entity graph keyed by instance id. The parser copies
// everything it keeps, so the input buffer may be discarded after Parse.
package step

import (
	"fmt"
	"sort"
)

// ID is an entity instance name, the n in "#n".
type ID uint64

// Kind enumerates the parameter value encodings of the exchange structure.
type Kind int

const (
	KindUnset   Kind = iota // $
	KindDerived             // *
	KindInteger
	KindReal
	KindString
	KindBinary
	KindEnum
	KindRef
	KindList
	KindTyped
)

var kindNames = [...]string{
	KindUnset:   "unset",
	KindDerived: "derived",
	KindInteger: "integer",
	KindReal:    "real",
	KindString:  "string",
	KindBinary:  "binary",
	KindEnum:    "enumeration",
	KindRef:     "reference",
	KindList:    "list",
	KindTyped:   "typed",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a single entity parameter.
type Value struct {
	Kind Kind
	Int  int64
	Real float64
	// Str holds the decoded text of a string, the hex digits of a binary,
	// the name of an enumeration, or the type name of a typed value.
	Str  string
	Ref  ID
	List []Value // list elements, or the parameters of a typed value
}

// Float returns the numeric value of an integer or real parameter.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindReal:
		return v.Real, true
	case KindInteger:
		return float64(v.Int), true
	}
	return 0, false
}

// Bool returns the value of a .T. or .F. enumeration.
func (v Value) Bool() (bool, bool) {
	if v.Kind != KindEnum {
		return false, false
	}
	switch v.Str {
	case "T":
		return true, true
	case "F":
		return false, true
	}
	return false, false
}

// Record is one typed parameter list: the whole of a simple instance or
// one partial entity of a complex instance.
type Record struct {
	Type   string
	Params []Value
}

// Entity is a parsed instance. Simple instances have exactly one record.
type Entity struct {
	ID      ID
	Records []Record
}

// Type returns the entity type of a simple instance, or "" for a complex one.
func (e *Entity) Type() string {
	if len(e.Records) == 1 {
		return e.Records[0].Type
	}
	return ""
}

// TypeName describes the instance for diagnostics.
func (e *Entity) TypeName() string {
	if t := e.Type(); t != "" {
		return t
	}
	name := "("
	for i, r := range e.Records {
		if i > 0 {
			name += " "
		}
		name += r.Type
	}
	return name + ")"
}

// Record returns the record of the given type, searching partial entities
// of complex instances as well.
func (e *Entity) Record(typ string) (Record, bool) {
	for _, r := range e.Records {
		if r.Type == typ {
			return r, true
		}
	}
	return Record{}, false
}

// Is reports whether the instance carries a record of the given type.
func (e *Entity) Is(typ string) bool {
	_, ok := e.Record(typ)
	return ok
}

// File is a parsed exchange structure.
type File struct {
	Header   []Record
	entities map[ID]*Entity
	order    []ID
}

// Get returns the instance with the given id, or nil.
func (f *File) Get(id ID) *Entity {
	return f.entities[id]
}

// Len returns the number of instances in the data sections.
func (f *File) Len() int {
	return len(f.order)
}

// Entities returns all instances in ascending id order.
func (f *File) Entities() []*Entity {
	out := make([]*Entity, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.entities[id])
	}
	return out
}

// OfType returns the instances carrying a record of the given type,
// in ascending id order.
func (f *File) OfType(typ string) []*Entity {
	var out []*Entity
	for _, id := range f.order {
		if e := f.entities[id]; e.Is(typ) {
			out = append(out, e)
		}
	}
	return out
}

// Schema returns the schema identifiers listed in FILE_SCHEMA.
func (f *File) Schema() []string {
	for _, r := range f.Header {
		if r.Type != "FILE_SCHEMA" || len(r.Params) == 0 || r.Params[0].Kind != KindList {
			continue
		}
		var out []string
		for _, v := range r.Params[0].List {
			if v.Kind == KindString {
				out = append(out, v.Str)
			}
		}
		return out
	}
	return nil
}

func (f *File) add(e *Entity) bool {
	if _, dup := f.entities[e.ID]; dup {
		return false
	}
	f.entities[e.ID] = e
	f.order = append(f.order, e.ID)
	return true
}

func (f *File) seal() {
	sort.Slice(f.order, func(i, j int) bool { return f.order[i] < f.order[j] })
}
