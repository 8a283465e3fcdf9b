package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Param is one declared parameter slot on a list.
//
// Slots are addressed by ID, never by position. Authoring tools reorder and
// resize parameter sets over a project's lifetime, so positional references
// would dangle; the ID is assigned once and survives every edit.
type Param struct {
	ID      int
	Name    string
	Type    Type
	Default cty.Value
}

// Set is the ordered parameter declaration of a list. It is immutable after
// construction; runtime values live in a Store.
type Set struct {
	ordered []Param
	byID    map[int]int
	byName  map[string]int
}

// NewSet validates and indexes a parameter declaration.
func NewSet(params []Param) (*Set, error) {
	s := &Set{
		ordered: make([]Param, 0, len(params)),
		byID:    make(map[int]int, len(params)),
		byName:  make(map[string]int, len(params)),
	}
	for _, p := range params {
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate parameter id %d (%q)", p.ID, p.Name)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		if p.Default == cty.NilVal {
			p.Default = p.Type.Zero()
		}
		s.byID[p.ID] = len(s.ordered)
		s.byName[p.Name] = len(s.ordered)
		s.ordered = append(s.ordered, p)
	}
	return s, nil
}

// EmptySet returns a Set with no declared parameters.
func EmptySet() *Set {
	s, _ := NewSet(nil)
	return s
}

// ByID looks a parameter up by its stable ID.
func (s *Set) ByID(id int) (Param, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return Param{}, false
	}
	return s.ordered[idx], true
}

// ByName looks a parameter up by its declared name.
func (s *Set) ByName(name string) (Param, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Param{}, false
	}
	return s.ordered[idx], true
}

// All returns the declared parameters in authoring order.
func (s *Set) All() []Param {
	out := make([]Param, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of declared parameters.
func (s *Set) Len() int {
	return len(s.ordered)
}

// Store holds runtime values for one Set. A run either owns a private Store
// seeded from the declaration defaults, or shares the template's Store when
// the list syncs parameter values across runs.
type Store struct {
	set    *Set
	values map[int]cty.Value
}

// NewStore creates a Store seeded with each slot's default.
func NewStore(set *Set) *Store {
	st := &Store{set: set, values: make(map[int]cty.Value, set.Len())}
	for _, p := range set.All() {
		st.values[p.ID] = p.Default
	}
	return st
}

// Set returns the declaration this store holds values for.
func (st *Store) Set() *Set {
	return st.set
}

// Get returns the current value of a slot by stable ID.
func (st *Store) Get(id int) (cty.Value, bool) {
	v, ok := st.values[id]
	return v, ok
}

// GetNamed returns the current value of a slot by name.
func (st *Store) GetNamed(name string) (cty.Value, bool) {
	p, ok := st.set.ByName(name)
	if !ok {
		return cty.NilVal, false
	}
	return st.Get(p.ID)
}

// Assign converts v to the slot's declared type and stores it. Unknown IDs
// are an error; conversion follows the universal-string rule in Convert.
func (st *Store) Assign(id int, v cty.Value) error {
	p, ok := st.set.ByID(id)
	if !ok {
		return fmt.Errorf("no parameter with id %d", id)
	}
	conv, err := Convert(v, p.Type)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	st.values[id] = conv
	return nil
}

// AssignNamed assigns a slot by name.
func (st *Store) AssignNamed(name string, v cty.Value) error {
	p, ok := st.set.ByName(name)
	if !ok {
		return fmt.Errorf("no parameter named %q", name)
	}
	return st.Assign(p.ID, v)
}

// Clone returns an independent copy with the same current values.
func (st *Store) Clone() *Store {
	c := &Store{set: st.set, values: make(map[int]cty.Value, len(st.values))}
	for id, v := range st.values {
		c.values[id] = v
	}
	return c
}

// Named returns the current values keyed by parameter name, in the shape the
// script evaluator exposes as the `param` object.
func (st *Store) Named() map[string]cty.Value {
	out := make(map[string]cty.Value, st.set.Len())
	for _, p := range st.set.All() {
		out[p.Name] = st.values[p.ID]
	}
	return out
}
