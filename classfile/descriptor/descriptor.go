// Package descriptor implements validated semantic types for JVM names
// and descriptors (spec §2 "Names & descriptors") and the parser/writer
// for field, method and return descriptors.
//
// The sort constants mirror the teacher's asm/typed package
// (VOID..INTERNAL); the descriptor grammar walker itself is new, since
// the teacher's Type only stores an opaque value buffer and never
// decomposes a method descriptor into its parameter list.
package descriptor

import (
	"strings"

	"github.com/pkg/errors"
)

// Sort identifies which kind of JVM type a descriptor denotes.
type Sort int

const (
	Void Sort = iota
	Boolean
	Char
	Byte
	Short
	Int
	Float
	Long
	Double
	Array
	Object
	Method
)

// ErrMalformed is returned for any descriptor that does not parse.
var ErrMalformed = errors.New("descriptor: malformed")

// ClassName is a validated internal class name (slash-separated, e.g.
// "java/lang/Object").
type ClassName string

// Valid reports whether the name is structurally well-formed: non-empty,
// with no leading/trailing slash and no empty path segment.
func (c ClassName) Valid() bool {
	s := string(c)
	if s == "" || strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// FieldDescriptor is a validated field type descriptor, e.g. "I" or
// "[Ljava/lang/String;".
type FieldDescriptor string

// MethodDescriptor is a validated method descriptor, e.g.
// "(ILjava/lang/String;)V".
type MethodDescriptor string

// FieldType is the parsed form of a single field descriptor.
type FieldType struct {
	Sort      Sort
	Dimension int       // array nesting depth; 0 for non-arrays
	ClassName ClassName // set when Sort == Object or (Sort == Array and element is Object)
	Elem      *FieldType
}

// ParseField parses a single field descriptor starting at offset 0 and
// requires it to consume the whole string.
func ParseField(d FieldDescriptor) (*FieldType, error) {
	ft, n, err := parseFieldAt(string(d), 0)
	if err != nil {
		return nil, err
	}
	if n != len(d) {
		return nil, errors.Wrapf(ErrMalformed, "trailing data in field descriptor %q", d)
	}
	return ft, nil
}

func parseFieldAt(s string, i int) (*FieldType, int, error) {
	if i >= len(s) {
		return nil, i, errors.Wrapf(ErrMalformed, "unterminated descriptor %q", s)
	}
	switch s[i] {
	case 'V':
		return &FieldType{Sort: Void}, i + 1, nil
	case 'Z':
		return &FieldType{Sort: Boolean}, i + 1, nil
	case 'C':
		return &FieldType{Sort: Char}, i + 1, nil
	case 'B':
		return &FieldType{Sort: Byte}, i + 1, nil
	case 'S':
		return &FieldType{Sort: Short}, i + 1, nil
	case 'I':
		return &FieldType{Sort: Int}, i + 1, nil
	case 'F':
		return &FieldType{Sort: Float}, i + 1, nil
	case 'J':
		return &FieldType{Sort: Long}, i + 1, nil
	case 'D':
		return &FieldType{Sort: Double}, i + 1, nil
	case '[':
		elem, n, err := parseFieldAt(s, i+1)
		if err != nil {
			return nil, n, err
		}
		ft := &FieldType{Sort: Array, Dimension: elem.Dimension + 1, Elem: elem, ClassName: elem.ClassName}
		if elem.Sort == Array {
			ft.Elem = elem.Elem
		} else {
			ft.Elem = elem
		}
		return ft, n, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return nil, i, errors.Wrapf(ErrMalformed, "unterminated class name in %q", s)
		}
		name := ClassName(s[i+1 : i+end])
		if !name.Valid() {
			return nil, i, errors.Wrapf(ErrMalformed, "invalid class name %q in %q", name, s)
		}
		return &FieldType{Sort: Object, ClassName: name}, i + end + 1, nil
	default:
		return nil, i, errors.Wrapf(ErrMalformed, "unknown descriptor byte %q at %d in %q", s[i], i, s)
	}
}

// Parameters parses a method descriptor into its parameter field types
// and the return field type.
func Parameters(d MethodDescriptor) ([]*FieldType, *FieldType, error) {
	s := string(d)
	if len(s) == 0 || s[0] != '(' {
		return nil, nil, errors.Wrapf(ErrMalformed, "method descriptor %q does not start with '('", d)
	}
	i := 1
	var params []*FieldType
	for i < len(s) && s[i] != ')' {
		ft, n, err := parseFieldAt(s, i)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, ft)
		i = n
	}
	if i >= len(s) {
		return nil, nil, errors.Wrapf(ErrMalformed, "unterminated parameter list in %q", d)
	}
	i++ // skip ')'
	ret, n, err := parseFieldAt(s, i)
	if err != nil {
		return nil, nil, err
	}
	if n != len(s) {
		return nil, nil, errors.Wrapf(ErrMalformed, "trailing data after return type in %q", d)
	}
	return params, ret, nil
}

// Write renders a FieldType back to its descriptor string.
func (ft *FieldType) Write() string {
	var sb strings.Builder
	writeFieldType(&sb, ft)
	return sb.String()
}

func writeFieldType(sb *strings.Builder, ft *FieldType) {
	switch ft.Sort {
	case Void:
		sb.WriteByte('V')
	case Boolean:
		sb.WriteByte('Z')
	case Char:
		sb.WriteByte('C')
	case Byte:
		sb.WriteByte('B')
	case Short:
		sb.WriteByte('S')
	case Int:
		sb.WriteByte('I')
	case Float:
		sb.WriteByte('F')
	case Long:
		sb.WriteByte('J')
	case Double:
		sb.WriteByte('D')
	case Object:
		sb.WriteByte('L')
		sb.WriteString(string(ft.ClassName))
		sb.WriteByte(';')
	case Array:
		for i := 0; i < ft.Dimension; i++ {
			sb.WriteByte('[')
		}
		writeFieldType(sb, ft.Elem)
	}
}

// WriteMethod renders a parameter list and return type back to a method
// descriptor string.
func WriteMethod(params []*FieldType, ret *FieldType) MethodDescriptor {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		writeFieldType(&sb, p)
	}
	sb.WriteByte(')')
	writeFieldType(&sb, ret)
	return MethodDescriptor(sb.String())
}

// ClassNamesIn returns every object/array-element class name referenced
// by a descriptor, in left-to-right order, for remapper use.
func ClassNamesIn(d string) []ClassName {
	var names []ClassName
	i := 0
	for i < len(d) {
		switch d[i] {
		case '[', 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D', 'V', '(', ')':
			i++
		case 'L':
			end := strings.IndexByte(d[i:], ';')
			if end < 0 {
				return names
			}
			names = append(names, ClassName(d[i+1:i+end]))
			i += end + 1
		default:
			i++
		}
	}
	return names
}
