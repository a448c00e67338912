// Package mappings implements the namespace-generic name-mapping forest
// (spec §3.4): an insertion-ordered tree of class/field/method/parameter
// name tuples, its tiny v2 text codec, a diff algebra, and a remapper
// that rewrites descriptors by chasing class-name mappings through a
// superclass oracle.
package mappings

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrMappingSemantic covers an unknown namespace name, fewer than 2 or
// duplicate namespaces, a names tuple of the wrong width or without a
// namespace-0 name, and empty input or a duplicate javadoc while
// decoding. A duplicate class/field/method key is not an error
// (AddClass, AddField and AddMethod return the existing entry), and a
// remapper lookup that finds no entry in any superclass leaves the name
// unchanged.
var ErrMappingSemantic = errors.New("mappings: semantic error")

// dummyPrefixes mark a namespace-0 name as compiler/obfuscator
// generated rather than human-meaningful (spec §3.4).
var dummyPrefixes = []string{"C_", "f_", "m_", "p_"}

func isDummyName(name string) bool {
	for _, p := range dummyPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Names is a tuple of optional names, one slot per namespace; an empty
// string means the name is not known in that namespace.
type Names struct {
	Values []string
}

// NewNames returns a Names tuple with width namespaces, all empty.
func NewNames(width int) Names { return Names{Values: make([]string, width)} }

func (n Names) Name(ns int) (string, bool) {
	if ns < 0 || ns >= len(n.Values) || n.Values[ns] == "" {
		return "", false
	}
	return n.Values[ns], true
}

// IsDummy reports whether n's namespace-0 name looks generated.
func (n Names) IsDummy() bool {
	ns0, ok := n.Name(0)
	return ok && isDummyName(ns0)
}

// FieldKey identifies a field within a class independent of namespace:
// the descriptor plus the namespace-0 name (spec §3.4).
type FieldKey struct{ Descriptor, Name string }

// MethodKey identifies a method the same way.
type MethodKey struct{ Descriptor, Name string }

type ParameterMapping struct {
	Index   int
	Names   Names
	Javadoc string
}

// IsDummy reports whether a parameter's entry is uninformative: a
// generated name and no javadoc.
func (p *ParameterMapping) IsDummy() bool { return p.Names.IsDummy() && p.Javadoc == "" }

type MethodMapping struct {
	Descriptor string
	Names      Names
	Javadoc    string
	Parameters *orderedMap[int, *ParameterMapping]
}

func newMethodMapping(descriptor string, names Names) *MethodMapping {
	return &MethodMapping{Descriptor: descriptor, Names: names, Parameters: newOrderedMap[int, *ParameterMapping]()}
}

func (m *MethodMapping) IsDummy() bool {
	if !m.Names.IsDummy() || m.Javadoc != "" {
		return false
	}
	for _, idx := range m.Parameters.Keys() {
		p, _ := m.Parameters.Get(idx)
		if !p.IsDummy() {
			return false
		}
	}
	return true
}

type FieldMapping struct {
	Descriptor string
	Names      Names
	Javadoc    string
}

func (f *FieldMapping) IsDummy() bool { return f.Names.IsDummy() && f.Javadoc == "" }

type ClassMapping struct {
	Names   Names
	Javadoc string
	Fields  *orderedMap[FieldKey, *FieldMapping]
	Methods *orderedMap[MethodKey, *MethodMapping]
}

func newClassMapping(names Names) *ClassMapping {
	return &ClassMapping{
		Names:   names,
		Fields:  newOrderedMap[FieldKey, *FieldMapping](),
		Methods: newOrderedMap[MethodKey, *MethodMapping](),
	}
}

// IsDummy reports whether a class entry carries no information beyond
// a generated ns0 name: no javadoc, and every field/method/parameter
// underneath it is itself dummy.
func (c *ClassMapping) IsDummy() bool {
	if !c.Names.IsDummy() || c.Javadoc != "" {
		return false
	}
	for _, k := range c.Fields.Keys() {
		f, _ := c.Fields.Get(k)
		if !f.IsDummy() {
			return false
		}
	}
	for _, k := range c.Methods.Keys() {
		m, _ := c.Methods.Get(k)
		if !m.IsDummy() {
			return false
		}
	}
	return true
}

// Mappings is a namespace-generic forest keyed by the class's
// namespace-0 name (spec §3.4).
type Mappings struct {
	Namespaces []string
	Javadoc    string
	Classes    *orderedMap[string, *ClassMapping]
}

// New returns an empty Mappings over the given ordered, unique
// namespace names. At least two namespaces are required (spec §1).
func New(namespaces []string) (*Mappings, error) {
	if len(namespaces) < 2 {
		return nil, errors.Wrapf(ErrMappingSemantic, "mappings require at least 2 namespaces, got %d", len(namespaces))
	}
	seen := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		if seen[ns] {
			return nil, errors.Wrapf(ErrMappingSemantic, "duplicate namespace name %q", ns)
		}
		seen[ns] = true
	}
	return &Mappings{
		Namespaces: append([]string(nil), namespaces...),
		Classes:    newOrderedMap[string, *ClassMapping](),
	}, nil
}

func (m *Mappings) width() int { return len(m.Namespaces) }

// AddClass inserts or returns the existing class mapping keyed by its
// namespace-0 name.
func (m *Mappings) AddClass(names Names) (*ClassMapping, error) {
	if len(names.Values) != m.width() {
		return nil, errors.Wrapf(ErrMappingSemantic, "class names width %d does not match namespace count %d", len(names.Values), m.width())
	}
	ns0, ok := names.Name(0)
	if !ok {
		return nil, errors.Wrap(ErrMappingSemantic, "class entry missing a namespace-0 name")
	}
	if existing, ok := m.Classes.Get(ns0); ok {
		return existing, nil
	}
	c := newClassMapping(names)
	m.Classes.Set(ns0, c)
	return c, nil
}

// AddField inserts or returns the field keyed by (descriptor, ns0 name)
// under class.
func (c *ClassMapping) AddField(descriptor string, names Names) (*FieldMapping, error) {
	ns0, ok := names.Name(0)
	if !ok {
		return nil, errors.Wrap(ErrMappingSemantic, "field entry missing a namespace-0 name")
	}
	key := FieldKey{Descriptor: descriptor, Name: ns0}
	if existing, ok := c.Fields.Get(key); ok {
		return existing, nil
	}
	f := &FieldMapping{Descriptor: descriptor, Names: names}
	c.Fields.Set(key, f)
	return f, nil
}

// AddMethod inserts or returns the method keyed by (descriptor, ns0
// name) under class.
func (c *ClassMapping) AddMethod(descriptor string, names Names) (*MethodMapping, error) {
	ns0, ok := names.Name(0)
	if !ok {
		return nil, errors.Wrap(ErrMappingSemantic, "method entry missing a namespace-0 name")
	}
	key := MethodKey{Descriptor: descriptor, Name: ns0}
	if existing, ok := c.Methods.Get(key); ok {
		return existing, nil
	}
	m := newMethodMapping(descriptor, names)
	c.Methods.Set(key, m)
	return m, nil
}

// AddParameter inserts or returns the parameter keyed by its JVM
// local-variable index under method.
func (m *MethodMapping) AddParameter(index int, names Names) *ParameterMapping {
	if existing, ok := m.Parameters.Get(index); ok {
		return existing
	}
	p := &ParameterMapping{Index: index, Names: names}
	m.Parameters.Set(index, p)
	return p
}
