package mappings

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ludoforge/classkit/classfile/descriptor"
)

// SuperclassProvider answers the set of immediate superclasses (and,
// for interfaces, extended interfaces) of a class name, so the
// B-remapper can chase an inherited field/method reference up the
// hierarchy (spec §4.8, §9 "Cyclic inheritance for remapping"). A
// caller backs this by either a precomputed inheritance index (see
// package bridge) or a live class loader.
type SuperclassProvider interface {
	Superclasses(className string) []string
}

// SuperclassProviderFunc adapts a plain function to SuperclassProvider.
type SuperclassProviderFunc func(className string) []string

func (f SuperclassProviderFunc) Superclasses(className string) []string { return f(className) }

// ARemapper maps class names only; it is the basis descriptor/signature
// rewriting is built on (spec §4.8 "A-remapper").
type ARemapper struct {
	classes map[string]string
}

// NewARemapper builds a class-name-only remapper from an explicit
// from->to table.
func NewARemapper(classes map[string]string) *ARemapper {
	cp := make(map[string]string, len(classes))
	for k, v := range classes {
		cp[k] = v
	}
	return &ARemapper{classes: cp}
}

// MapClass rewrites a single internal class name, passing it through
// unchanged if it has no entry (spec §4.8).
func (r *ARemapper) MapClass(name string) string {
	if to, ok := r.classes[name]; ok {
		return to
	}
	return name
}

// Inverse returns the class-name remapper for the opposite direction;
// used by the round-trip property in spec §8 invariant 5.
func (r *ARemapper) Inverse() *ARemapper {
	inv := make(map[string]string, len(r.classes))
	for k, v := range r.classes {
		inv[v] = k
	}
	return &ARemapper{classes: inv}
}

// MapFieldDesc rewrites a single field descriptor, remapping any class
// name it references.
func (r *ARemapper) MapFieldDesc(d string) (string, error) {
	ft, err := descriptor.ParseField(descriptor.FieldDescriptor(d))
	if err != nil {
		return "", errors.Wrapf(err, "remap: field descriptor %q", d)
	}
	return r.writeFieldType(ft), nil
}

// MapMethodDesc rewrites a full method descriptor, each parameter and
// the return type.
func (r *ARemapper) MapMethodDesc(d string) (string, error) {
	params, ret, err := descriptor.Parameters(descriptor.MethodDescriptor(d))
	if err != nil {
		return "", errors.Wrapf(err, "remap: method descriptor %q", d)
	}
	mapped := make([]*descriptor.FieldType, len(params))
	for i, p := range params {
		mapped[i] = r.mapFieldType(p)
	}
	return string(descriptor.WriteMethod(mapped, r.mapFieldType(ret))), nil
}

// MapReturnDesc rewrites only the return-type portion of a method
// descriptor.
func (r *ARemapper) MapReturnDesc(d string) (string, error) {
	_, ret, err := descriptor.Parameters(descriptor.MethodDescriptor(d))
	if err != nil {
		return "", errors.Wrapf(err, "remap: method descriptor %q", d)
	}
	return r.writeFieldType(ret), nil
}

// MapDesc rewrites whichever kind of descriptor d is: a field
// descriptor if it does not start with '(', a method descriptor
// otherwise (spec §4.8 "map_desc").
func (r *ARemapper) MapDesc(d string) (string, error) {
	if strings.HasPrefix(d, "(") {
		return r.MapMethodDesc(d)
	}
	return r.MapFieldDesc(d)
}

func (r *ARemapper) mapFieldType(ft *descriptor.FieldType) *descriptor.FieldType {
	switch ft.Sort {
	case descriptor.Object:
		return &descriptor.FieldType{Sort: descriptor.Object, ClassName: descriptor.ClassName(r.MapClass(string(ft.ClassName)))}
	case descriptor.Array:
		return &descriptor.FieldType{Sort: descriptor.Array, Dimension: ft.Dimension, Elem: r.mapFieldType(ft.Elem)}
	default:
		return ft
	}
}

func (r *ARemapper) writeFieldType(ft *descriptor.FieldType) string {
	return r.mapFieldType(ft).Write()
}

// MapSignature rewrites every internal class name embedded in a JVM
// generic signature (the same `L...;` grammar as a descriptor, plus
// type-variable/wildcard punctuation the remapper passes through
// untouched since it carries no class names of its own).
func (r *ARemapper) MapSignature(sig string) string {
	var sb strings.Builder
	i := 0
	for i < len(sig) {
		if sig[i] == 'L' {
			end := strings.IndexAny(sig[i:], ";<")
			if end < 0 {
				sb.WriteString(sig[i:])
				break
			}
			name := sig[i+1 : i+end]
			sb.WriteByte('L')
			sb.WriteString(r.MapClass(name))
			i += end
			continue
		}
		sb.WriteByte(sig[i])
		i++
	}
	return sb.String()
}

// memberKey identifies a field or method by (name, descriptor) within
// whatever class owns it, for the B-remapper's per-class tables.
type memberKey struct{ Name, Descriptor string }

type memberTarget struct{ Name, Descriptor string }

// BRemapper additionally maps field and method (name, descriptor)
// pairs, per class, and walks a superclass provider when a direct
// lookup misses because the reference's static owner is a subclass
// that merely inherits the member (spec §4.8 "B-remapper").
type BRemapper struct {
	*ARemapper
	fields  map[string]map[memberKey]memberTarget
	methods map[string]map[memberKey]memberTarget
	super   SuperclassProvider
}

// NewBRemapper builds an empty B-remapper over the given class table
// and superclass provider; use AddField/AddMethod to populate per-class
// member tables, or build one from a Mappings tree with FromMappings.
func NewBRemapper(classes map[string]string, super SuperclassProvider) *BRemapper {
	return &BRemapper{
		ARemapper: NewARemapper(classes),
		fields:    make(map[string]map[memberKey]memberTarget),
		methods:   make(map[string]map[memberKey]memberTarget),
		super:     super,
	}
}

// AddField records that owner's field (name, descriptor) maps to
// (toName, toDescriptor).
func (r *BRemapper) AddField(owner, name, desc, toName, toDesc string) {
	m, ok := r.fields[owner]
	if !ok {
		m = make(map[memberKey]memberTarget)
		r.fields[owner] = m
	}
	m[memberKey{name, desc}] = memberTarget{toName, toDesc}
}

// AddMethod records that owner's method (name, descriptor) maps to
// (toName, toDescriptor).
func (r *BRemapper) AddMethod(owner, name, desc, toName, toDesc string) {
	m, ok := r.methods[owner]
	if !ok {
		m = make(map[memberKey]memberTarget)
		r.methods[owner] = m
	}
	m[memberKey{name, desc}] = memberTarget{toName, toDesc}
}

// MapFieldName resolves owner's field name, recursing into superclasses
// when owner itself has no matching entry (the reference's static owner
// may be a subclass inheriting the member).
func (r *BRemapper) MapFieldName(owner, name, desc string) string {
	if n, _, ok := r.lookup(r.fields, owner, name, desc, nil); ok {
		return n
	}
	return name
}

// MapMethodName resolves owner's method name the same way.
func (r *BRemapper) MapMethodName(owner, name, desc string) string {
	if n, _, ok := r.lookup(r.methods, owner, name, desc, nil); ok {
		return n
	}
	return name
}

func (r *BRemapper) lookup(tables map[string]map[memberKey]memberTarget, owner, name, desc string, seen map[string]bool) (string, string, bool) {
	if m, ok := tables[owner]; ok {
		if t, ok := m[memberKey{name, desc}]; ok {
			return t.Name, t.Descriptor, true
		}
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	if seen[owner] {
		return "", "", false
	}
	seen[owner] = true
	if r.super == nil {
		return "", "", false
	}
	for _, parent := range r.super.Superclasses(owner) {
		if n, d, ok := r.lookup(tables, parent, name, desc, seen); ok {
			return n, d, true
		}
	}
	return "", "", false
}

// FromMappings builds a B-remapper for the `from`->`to` namespace pair
// of m, per spec §4.8's construction algorithm: build the A-remappers
// ns0->from and ns0->to, then for every class compute each
// field/method's descriptor in each namespace via the A-remapper and
// record the (from-name,from-desc)->(to-name,to-desc) entry. A class or
// member with no `from` name is keyed by its namespace-0 name; a member
// with no `to` name is skipped.
func FromMappings(m *Mappings, from, to string, super SuperclassProvider) (*BRemapper, error) {
	fromIdx, ok := m.NamespaceIndex(from)
	if !ok {
		return nil, errors.Wrapf(ErrMappingSemantic, "unknown namespace %q", from)
	}
	toIdx, ok := m.NamespaceIndex(to)
	if !ok {
		return nil, errors.Wrapf(ErrMappingSemantic, "unknown namespace %q", to)
	}

	classesFrom := make(map[string]string)
	classesTo := make(map[string]string)
	for _, ns0 := range m.Classes.Keys() {
		c, _ := m.Classes.Get(ns0)
		if fromName, ok := c.Names.Name(fromIdx); ok {
			classesFrom[ns0] = fromName
		}
		if toName, ok := c.Names.Name(toIdx); ok {
			classesTo[ns0] = toName
		}
	}
	aFrom := NewARemapper(classesFrom)
	aTo := NewARemapper(classesTo)

	classesFromTo := make(map[string]string, len(classesTo))
	for ns0, toName := range classesTo {
		fromName, ok := classesFrom[ns0]
		if !ok {
			fromName = ns0
		}
		classesFromTo[fromName] = toName
	}
	b := NewBRemapper(classesFromTo, super)
	for _, ns0 := range m.Classes.Keys() {
		c, _ := m.Classes.Get(ns0)
		fromOwner, ok := c.Names.Name(fromIdx)
		if !ok {
			fromOwner = ns0
		}

		for _, fk := range c.Fields.Keys() {
			f, _ := c.Fields.Get(fk)
			toName, hasTo := f.Names.Name(toIdx)
			if !hasTo {
				continue
			}
			fromName, ok := f.Names.Name(fromIdx)
			if !ok {
				fromName = fk.Name
			}
			fromDesc, err := aFrom.MapFieldDesc(f.Descriptor)
			if err != nil {
				return nil, errors.Wrapf(err, "class %s field %s", ns0, fk.Name)
			}
			toDesc, err := aTo.MapFieldDesc(f.Descriptor)
			if err != nil {
				return nil, errors.Wrapf(err, "class %s field %s", ns0, fk.Name)
			}
			b.AddField(fromOwner, fromName, fromDesc, toName, toDesc)
		}

		for _, mk := range c.Methods.Keys() {
			meth, _ := c.Methods.Get(mk)
			toName, hasTo := meth.Names.Name(toIdx)
			if !hasTo {
				continue
			}
			fromName, ok := meth.Names.Name(fromIdx)
			if !ok {
				fromName = mk.Name
			}
			fromDesc, err := aFrom.MapMethodDesc(meth.Descriptor)
			if err != nil {
				return nil, errors.Wrapf(err, "class %s method %s", ns0, mk.Name)
			}
			toDesc, err := aTo.MapMethodDesc(meth.Descriptor)
			if err != nil {
				return nil, errors.Wrapf(err, "class %s method %s", ns0, mk.Name)
			}
			b.AddMethod(fromOwner, fromName, fromDesc, toName, toDesc)
		}
	}
	return b, nil
}

func (m *Mappings) NamespaceIndex(name string) (int, bool) {
	for i, ns := range m.Namespaces {
		if ns == name {
			return i, true
		}
	}
	return 0, false
}
