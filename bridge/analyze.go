// Package bridge implements the whole-jar bridge/specialized-method
// analyzer spec §3.7/§4.10 describes: scan every class in a jar to
// build an inheritance and call-graph index, then pair each synthetic
// bridge method with the specialized method it forwards to.
//
// No repo in the retrieved pack performs bridge-method detection; this
// package is new, grounded directly on spec §4.10's explicit predicate
// definitions and built on classfile.ClassReader's own visitor protocol the
// way the teacher's main.go/simplevisitor.go drive a ClassReader.Accept
// call (DESIGN.md).
package bridge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/descriptor"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/jarfile"
)

// ErrBridge is the sentinel wrapped by every bridge package failure.
var ErrBridge = errors.New("bridge: error")

// MethodRef identifies a method by its declaring class and its
// (name, descriptor) pair (spec §3.7).
type MethodRef struct {
	Owner, Name, Descriptor string
}

// EntryIndex records every class and method known to the analyzed jar,
// with each method's access flags (spec §3.7).
type EntryIndex struct {
	Classes map[string]bool
	Access  map[MethodRef]int
}

// InheritanceIndex maps a class to its immediate parents (superclass
// plus implemented/extended interfaces) and, inversely, to its direct
// children (spec §3.7).
type InheritanceIndex struct {
	Parents  map[string][]string
	Children map[string][]string
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following Parents edges (possibly through several hops).
func (idx *InheritanceIndex) IsAncestor(ancestor, descendant string) bool {
	if ancestor == descendant {
		return false
	}
	seen := make(map[string]bool)
	var walk func(string) bool
	walk = func(c string) bool {
		if seen[c] {
			return false
		}
		seen[c] = true
		for _, p := range idx.Parents[c] {
			if p == ancestor {
				return true
			}
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(descendant)
}

// ReferenceIndex maps every method body to the set of methods it
// invokes (spec §3.7).
type ReferenceIndex map[MethodRef]map[MethodRef]bool

// Index is the full result of scanning a jar: the three tables spec
// §3.7 names, built together in one pass.
type Index struct {
	Entries      EntryIndex
	Inheritance  InheritanceIndex
	References   ReferenceIndex
}

// BuildIndex scans every class in jr and returns the combined index.
// Scanning is deterministic given a fixed jar iteration order (spec §5
// "Bridge-method analysis is deterministic").
func BuildIndex(ctx context.Context, jr *jarfile.Jar) (*Index, error) {
	idx := &Index{
		Entries:     EntryIndex{Classes: make(map[string]bool), Access: make(map[MethodRef]int)},
		Inheritance: InheritanceIndex{Parents: make(map[string][]string), Children: make(map[string][]string)},
		References:  make(ReferenceIndex),
	}

	err := jr.EachClass(func(name string, node *classfile.ClassNode) error {
		idx.Entries.Classes[node.Name] = true

		var parents []string
		if node.SuperName != "" {
			parents = append(parents, node.SuperName)
		}
		parents = append(parents, node.Interfaces...)
		idx.Inheritance.Parents[node.Name] = parents
		for _, p := range parents {
			idx.Inheritance.Children[p] = append(idx.Inheritance.Children[p], node.Name)
		}

		for _, m := range node.Methods {
			ref := MethodRef{Owner: node.Name, Name: m.Name, Descriptor: m.Descriptor}
			idx.Entries.Access[ref] = m.Access
			if m.Code == nil {
				continue
			}
			calls := make(map[MethodRef]bool)
			for _, insn := range m.Code.Instructions {
				if !isInvoke(insn.Op) {
					continue
				}
				calls[MethodRef{Owner: insn.Owner, Name: insn.Name, Descriptor: insn.Descriptor}] = true
			}
			if len(calls) > 0 {
				idx.References[ref] = calls
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bridge: scan jar")
	}
	return idx, nil
}

func isInvoke(op int) bool {
	switch op {
	case opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC, opcodes.INVOKEINTERFACE:
		return true
	default:
		return false
	}
}

// Pairing holds the bridge<->specialized dictionaries spec §3.7/§4.10
// describe.
type Pairing struct {
	BridgeToSpecialized map[MethodRef]MethodRef
	SpecializedToBridge map[MethodRef]MethodRef
}

// Analyze runs the bridge/specialized detection algorithm over idx
// (spec §4.10).
func Analyze(idx *Index) *Pairing {
	candidates := make(map[MethodRef]MethodRef) // bridge -> specialized
	for s, calls := range idx.References {
		access, known := idx.Entries.Access[s]
		if !known || access&opcodes.ACC_SYNTHETIC == 0 {
			continue
		}
		if len(calls) != 1 {
			continue
		}
		var t MethodRef
		for c := range calls {
			t = c
		}
		if t == s {
			continue
		}
		if !(access&opcodes.ACC_BRIDGE != 0 || isPotentialBridge(idx, s, t)) {
			continue
		}
		candidates[s] = t
	}

	// When the same t has multiple candidate bridges, keep the one
	// whose declaring class is highest in the hierarchy (spec §4.10).
	bestForTarget := make(map[MethodRef]MethodRef)
	for s, t := range candidates {
		cur, ok := bestForTarget[t]
		if !ok {
			bestForTarget[t] = s
			continue
		}
		if idx.Inheritance.IsAncestor(s.Owner, cur.Owner) {
			bestForTarget[t] = s
		}
	}

	p := &Pairing{
		BridgeToSpecialized: make(map[MethodRef]MethodRef, len(bestForTarget)),
		SpecializedToBridge: make(map[MethodRef]MethodRef, len(bestForTarget)),
	}
	for t, s := range bestForTarget {
		p.BridgeToSpecialized[s] = t
		p.SpecializedToBridge[t] = s
	}
	return p
}

func isPotentialBridge(idx *Index, s, t MethodRef) bool {
	access := idx.Entries.Access[s]
	if access&(opcodes.ACC_PRIVATE|opcodes.ACC_FINAL|opcodes.ACC_STATIC) != 0 {
		return false
	}
	sParams, sRet, err := descriptor.Parameters(descriptor.MethodDescriptor(s.Descriptor))
	if err != nil {
		return false
	}
	tParams, tRet, err := descriptor.Parameters(descriptor.MethodDescriptor(t.Descriptor))
	if err != nil {
		return false
	}
	if len(sParams) != len(tParams) {
		return false
	}
	for i := range sParams {
		if !bridgeCompatible(idx, sParams[i], tParams[i]) {
			return false
		}
	}
	return bridgeCompatible(idx, sRet, tRet)
}

// bridgeCompatible implements spec §4.10's "Bridge-compatibility"
// relation between a bridge parameter/return type and the specialized
// method's corresponding type.
func bridgeCompatible(idx *Index, s, t *descriptor.FieldType) bool {
	if sameType(s, t) {
		return true
	}
	if s.Sort == descriptor.Object && t.Sort == descriptor.Object && string(s.ClassName) == "java/lang/Object" {
		return true
	}
	if s.Sort == descriptor.Object && !idx.Entries.Classes[string(s.ClassName)] {
		return true // external library type
	}
	if s.Sort == descriptor.Object && t.Sort == descriptor.Object && idx.Inheritance.IsAncestor(string(s.ClassName), string(t.ClassName)) {
		return true
	}
	return false
}

func sameType(a, b *descriptor.FieldType) bool {
	if a.Sort != b.Sort {
		return false
	}
	switch a.Sort {
	case descriptor.Object:
		return a.ClassName == b.ClassName
	case descriptor.Array:
		return a.Dimension == b.Dimension && sameType(a.Elem, b.Elem)
	default:
		return true
	}
}
