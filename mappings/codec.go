package mappings

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const tinyHeaderTag = "tiny"

// Encode renders m as tiny v2 text (spec §4.7, §6.2): tab-delimited,
// indentation-nested, with classes/fields/methods/parameters emitted in
// canonical (info-key) sorted order regardless of insertion order.
func Encode(m *Mappings) (string, error) {
	var b strings.Builder
	b.WriteString(tinyHeaderTag)
	b.WriteByte('\t')
	b.WriteString("2")
	b.WriteByte('\t')
	b.WriteString("0")
	for _, ns := range m.Namespaces {
		b.WriteByte('\t')
		b.WriteString(ns)
	}
	b.WriteByte('\n')

	classKeys := append([]string(nil), m.Classes.Keys()...)
	sort.Strings(classKeys)
	for _, ck := range classKeys {
		c, _ := m.Classes.Get(ck)
		writeEntry(&b, 0, "c", nil, c.Names.Values)
		if c.Javadoc != "" {
			writeJavadocLine(&b, 1, c.Javadoc)
		}

		fieldKeys := append([]FieldKey(nil), c.Fields.Keys()...)
		sort.Slice(fieldKeys, func(i, j int) bool { return fieldKeyLess(fieldKeys[i], fieldKeys[j]) })
		for _, fk := range fieldKeys {
			f, _ := c.Fields.Get(fk)
			writeEntry(&b, 1, "f", []string{f.Descriptor}, f.Names.Values)
			if f.Javadoc != "" {
				writeJavadocLine(&b, 2, f.Javadoc)
			}
		}

		methodKeys := append([]MethodKey(nil), c.Methods.Keys()...)
		sort.Slice(methodKeys, func(i, j int) bool { return methodKeyLess(methodKeys[i], methodKeys[j]) })
		for _, mk := range methodKeys {
			mm, _ := c.Methods.Get(mk)
			writeEntry(&b, 1, "m", []string{mm.Descriptor}, mm.Names.Values)
			if mm.Javadoc != "" {
				writeJavadocLine(&b, 2, mm.Javadoc)
			}
			paramIdx := append([]int(nil), mm.Parameters.Keys()...)
			sort.Ints(paramIdx)
			for _, idx := range paramIdx {
				p, _ := mm.Parameters.Get(idx)
				writeEntry(&b, 2, "p", []string{strconv.Itoa(idx)}, p.Names.Values)
				if p.Javadoc != "" {
					writeJavadocLine(&b, 3, p.Javadoc)
				}
			}
		}
	}
	return b.String(), nil
}

func fieldKeyLess(a, b FieldKey) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Descriptor < b.Descriptor
}

func methodKeyLess(a, b MethodKey) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Descriptor < b.Descriptor
}

func writeEntry(b *strings.Builder, depth int, tag string, leadingFields []string, names []string) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
	b.WriteString(tag)
	for _, f := range leadingFields {
		b.WriteByte('\t')
		b.WriteString(f)
	}
	for _, n := range names {
		b.WriteByte('\t')
		b.WriteString(n) // None names emit as empty strings (spec §4.7)
	}
	b.WriteByte('\n')
}

func writeJavadocLine(b *strings.Builder, depth int, javadoc string) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
	b.WriteString("c\t")
	b.WriteString(javadoc)
	b.WriteByte('\n')
}

// node is the parse-time stack entry at one depth: whichever of
// class/field/method/parameter is currently open, plus whether a
// javadoc child has already been consumed for it.
type node struct {
	class       *ClassMapping
	field       *FieldMapping
	method      *MethodMapping
	param       *ParameterMapping
	hasJavadoc  bool
}

func (n *node) setJavadoc(text string) error {
	if n.hasJavadoc {
		return errors.Wrap(ErrMappingSemantic, "duplicate javadoc for the same node")
	}
	n.hasJavadoc = true
	switch {
	case n.param != nil:
		n.param.Javadoc = text
	case n.field != nil:
		n.field.Javadoc = text
	case n.method != nil:
		n.method.Javadoc = text
	case n.class != nil:
		n.class.Javadoc = text
	}
	return nil
}

// Decode parses tiny v2 text (spec §4.7): line-buffered, tracking
// nesting depth by leading-tab count, rejecting depth jumps greater
// than 1, duplicate javadocs, and fewer than 2 namespaces.
func Decode(r io.Reader) (*Mappings, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	if !scanner.Scan() {
		return nil, errors.Wrap(ErrMappingSemantic, "empty mappings input: missing tiny header line")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 3 || header[0] != tinyHeaderTag {
		return nil, errors.Errorf("mappings: unrecognized header %q, expected tiny v2", scanner.Text())
	}
	namespaces := header[3:]
	m, err := New(namespaces)
	if err != nil {
		return nil, err
	}

	stack := make([]*node, 0, 4)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if raw == "" {
			continue
		}
		depth := 0
		for depth < len(raw) && raw[depth] == '\t' {
			depth++
		}
		fields := strings.Split(raw[depth:], "\t")
		if len(fields) == 0 {
			continue
		}

		if depth > len(stack) {
			return nil, errors.Errorf("mappings: line %d indents by %d tabs, more than one past the open depth %d", lineNo, depth, len(stack))
		}
		stack = stack[:depth]

		tag, rest := fields[0], fields[1:]
		switch tag {
		case "c":
			if depth == 0 {
				names, err := namesFromFields(rest, len(namespaces))
				if err != nil {
					return nil, errors.Wrapf(err, "mappings: line %d", lineNo)
				}
				c, err := m.AddClass(names)
				if err != nil {
					return nil, err
				}
				stack = append(stack, &node{class: c})
				continue
			}
			if len(stack) == 0 {
				return nil, errors.Errorf("mappings: line %d is a javadoc with no open parent", lineNo)
			}
			if len(rest) != 1 {
				return nil, errors.Errorf("mappings: line %d javadoc entry needs exactly one field", lineNo)
			}
			if err := stack[len(stack)-1].setJavadoc(rest[0]); err != nil {
				return nil, errors.Wrapf(err, "mappings: line %d", lineNo)
			}
			stack = append(stack, &node{})

		case "f":
			if len(stack) == 0 || stack[0].class == nil {
				return nil, errors.Errorf("mappings: line %d field entry outside a class", lineNo)
			}
			if len(rest) < 1 {
				return nil, errors.Errorf("mappings: line %d field entry missing descriptor", lineNo)
			}
			names, err := namesFromFields(rest[1:], len(namespaces))
			if err != nil {
				return nil, errors.Wrapf(err, "mappings: line %d", lineNo)
			}
			f, err := stack[0].class.AddField(rest[0], names)
			if err != nil {
				return nil, err
			}
			stack = stack[:1]
			stack = append(stack, &node{field: f})

		case "m":
			if len(stack) == 0 || stack[0].class == nil {
				return nil, errors.Errorf("mappings: line %d method entry outside a class", lineNo)
			}
			if len(rest) < 1 {
				return nil, errors.Errorf("mappings: line %d method entry missing descriptor", lineNo)
			}
			names, err := namesFromFields(rest[1:], len(namespaces))
			if err != nil {
				return nil, errors.Wrapf(err, "mappings: line %d", lineNo)
			}
			mm, err := stack[0].class.AddMethod(rest[0], names)
			if err != nil {
				return nil, err
			}
			stack = stack[:1]
			stack = append(stack, &node{method: mm})

		case "p":
			if len(stack) < 2 || stack[1].method == nil {
				return nil, errors.Errorf("mappings: line %d parameter entry outside a method", lineNo)
			}
			if len(rest) < 1 {
				return nil, errors.Errorf("mappings: line %d parameter entry missing index", lineNo)
			}
			idx, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, errors.Wrapf(err, "mappings: line %d parameter index", lineNo)
			}
			names, err := namesFromFields(rest[1:], len(namespaces))
			if err != nil {
				return nil, errors.Wrapf(err, "mappings: line %d", lineNo)
			}
			p := stack[1].method.AddParameter(idx, names)
			stack = stack[:2]
			stack = append(stack, &node{param: p})

		default:
			return nil, errors.Errorf("mappings: line %d has unrecognized tag %q", lineNo, tag)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func namesFromFields(fields []string, width int) (Names, error) {
	if len(fields) != width {
		return Names{}, errors.Errorf("expected %d name columns, got %d", width, len(fields))
	}
	return Names{Values: append([]string(nil), fields...)}, nil
}
