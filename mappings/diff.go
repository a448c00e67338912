package mappings

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrDiffApply is returned when an action's "before" value does not
// match the tree being patched (spec §7); the partially-applied tree
// must be discarded by the caller.
var ErrDiffApply = errors.New("mappings: diff apply error")

// ActionKind discriminates the Action<T> algebra (spec §3.5).
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionAdd
	ActionRemove
	ActionEdit
)

// Action is a before/after pair tagged by kind; only the fields the
// kind implies are meaningful (Before for Remove/Edit, After for
// Add/Edit).
type Action[T any] struct {
	Kind   ActionKind
	Before T
	After  T
}

func addAction[T any](after T) Action[T]              { return Action[T]{Kind: ActionAdd, After: after} }
func removeAction[T any](before T) Action[T]           { return Action[T]{Kind: ActionRemove, Before: before} }
func editAction[T any](before, after T) Action[T]       { return Action[T]{Kind: ActionEdit, Before: before, After: after} }

// invert swaps before/after and Add<->Remove, leaving Edit/None shaped
// the same with sides flipped (spec §3.5).
func (a Action[T]) invert() Action[T] {
	switch a.Kind {
	case ActionAdd:
		return Action[T]{Kind: ActionRemove, Before: a.After}
	case ActionRemove:
		return Action[T]{Kind: ActionAdd, After: a.Before}
	case ActionEdit:
		return Action[T]{Kind: ActionEdit, Before: a.After, After: a.Before}
	default:
		return a
	}
}

type ParameterDiff struct {
	Index   int
	Info    Action[Names]
	Javadoc Action[string]
}

type MethodDiff struct {
	Key        MethodKey
	Info       Action[Names]
	Javadoc    Action[string]
	Parameters *orderedMap[int, *ParameterDiff]
}

type FieldDiff struct {
	Key     FieldKey
	Info    Action[Names]
	Javadoc Action[string]
}

type ClassDiff struct {
	Key     string
	Info    Action[Names]
	Javadoc Action[string]
	Fields  *orderedMap[FieldKey, *FieldDiff]
	Methods *orderedMap[MethodKey, *MethodDiff]
}

// MappingsDiff has the same tree shape as a two-namespace Mappings, but
// every node's info/javadoc is an Action instead of a plain value
// (spec §3.5).
type MappingsDiff struct {
	Classes *orderedMap[string, *ClassDiff]
}

func NewDiff() *MappingsDiff {
	return &MappingsDiff{Classes: newOrderedMap[string, *ClassDiff]()}
}

func (d *MappingsDiff) classKey(a, b *ClassMapping) string {
	if a != nil {
		if ns0, ok := a.Names.Name(0); ok {
			return ns0
		}
	}
	ns0, _ := b.Names.Name(0)
	return ns0
}

// Diff computes a MappingsDiff whose "before" side is a and whose
// "after" side is b. Both must be two-namespace mappings sharing the
// same key space.
func Diff(a, b *Mappings) (*MappingsDiff, error) {
	d := NewDiff()
	seen := make(map[string]bool)
	for _, k := range a.Classes.Keys() {
		seen[k] = true
	}
	for _, k := range b.Classes.Keys() {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		ca, inA := a.Classes.Get(k)
		cb, inB := b.Classes.Get(k)
		cd := diffClass(k, ca, inA, cb, inB)
		d.Classes.Set(k, cd)
	}
	return d, nil
}

func diffClass(key string, a *ClassMapping, inA bool, b *ClassMapping, inB bool) *ClassDiff {
	cd := &ClassDiff{
		Key:     key,
		Fields:  newOrderedMap[FieldKey, *FieldDiff](),
		Methods: newOrderedMap[MethodKey, *MethodDiff](),
	}
	// A class present on only one side still needs its field/method
	// tables diffed (every member becomes an Add or a Remove) rather
	// than short-circuiting here, else Apply(invert(diff), Apply(diff,
	// tree)) would lose every member of a one-sided class. Substitute
	// an empty placeholder for the absent side so the union loops
	// below see a non-nil, member-less ClassMapping to diff against.
	switch {
	case inA && !inB:
		cd.Info = removeAction(a.Names)
		cd.Javadoc = removeAction(a.Javadoc)
		b = newClassMapping(Names{})
	case !inA && inB:
		cd.Info = addAction(b.Names)
		cd.Javadoc = addAction(b.Javadoc)
		a = newClassMapping(Names{})
	default:
		cd.Info = infoAction(a.Names, b.Names)
		cd.Javadoc = stringAction(a.Javadoc, b.Javadoc)
	}

	fieldKeys := unionFieldKeys(a, b)
	for _, fk := range fieldKeys {
		fa, inFA := a.Fields.Get(fk)
		fb, inFB := b.Fields.Get(fk)
		fd := &FieldDiff{Key: fk}
		switch {
		case inFA && !inFB:
			fd.Info, fd.Javadoc = removeAction(fa.Names), removeAction(fa.Javadoc)
		case !inFA && inFB:
			fd.Info, fd.Javadoc = addAction(fb.Names), addAction(fb.Javadoc)
		default:
			fd.Info, fd.Javadoc = infoAction(fa.Names, fb.Names), stringAction(fa.Javadoc, fb.Javadoc)
		}
		cd.Fields.Set(fk, fd)
	}

	methodKeys := unionMethodKeys(a, b)
	for _, mk := range methodKeys {
		ma, inMA := a.Methods.Get(mk)
		mb, inMB := b.Methods.Get(mk)
		md := &MethodDiff{Key: mk, Parameters: newOrderedMap[int, *ParameterDiff]()}
		switch {
		case inMA && !inMB:
			md.Info, md.Javadoc = removeAction(ma.Names), removeAction(ma.Javadoc)
			for _, idx := range ma.Parameters.Keys() {
				p, _ := ma.Parameters.Get(idx)
				md.Parameters.Set(idx, &ParameterDiff{Index: idx, Info: removeAction(p.Names), Javadoc: removeAction(p.Javadoc)})
			}
		case !inMA && inMB:
			md.Info, md.Javadoc = addAction(mb.Names), addAction(mb.Javadoc)
			for _, idx := range mb.Parameters.Keys() {
				p, _ := mb.Parameters.Get(idx)
				md.Parameters.Set(idx, &ParameterDiff{Index: idx, Info: addAction(p.Names), Javadoc: addAction(p.Javadoc)})
			}
		default:
			md.Info, md.Javadoc = infoAction(ma.Names, mb.Names), stringAction(ma.Javadoc, mb.Javadoc)
			paramSeen := make(map[int]bool)
			for _, idx := range ma.Parameters.Keys() {
				paramSeen[idx] = true
			}
			for _, idx := range mb.Parameters.Keys() {
				paramSeen[idx] = true
			}
			idxs := make([]int, 0, len(paramSeen))
			for idx := range paramSeen {
				idxs = append(idxs, idx)
			}
			sort.Ints(idxs)
			for _, idx := range idxs {
				pa, inPA := ma.Parameters.Get(idx)
				pb, inPB := mb.Parameters.Get(idx)
				pd := &ParameterDiff{Index: idx}
				switch {
				case inPA && !inPB:
					pd.Info, pd.Javadoc = removeAction(pa.Names), removeAction(pa.Javadoc)
				case !inPA && inPB:
					pd.Info, pd.Javadoc = addAction(pb.Names), addAction(pb.Javadoc)
				default:
					pd.Info, pd.Javadoc = infoAction(pa.Names, pb.Names), stringAction(pa.Javadoc, pb.Javadoc)
				}
				md.Parameters.Set(idx, pd)
			}
		}
		cd.Methods.Set(mk, md)
	}
	return cd
}

func infoAction(a, b Names) Action[Names] {
	if namesEqual(a, b) {
		return Action[Names]{Kind: ActionNone, Before: a, After: b}
	}
	return editAction(a, b)
}

func stringAction(a, b string) Action[string] {
	if a == b {
		return Action[string]{Kind: ActionNone, Before: a, After: b}
	}
	return editAction(a, b)
}

func namesEqual(a, b Names) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

func unionFieldKeys(a, b *ClassMapping) []FieldKey {
	seen := make(map[FieldKey]bool)
	for _, k := range a.Fields.Keys() {
		seen[k] = true
	}
	for _, k := range b.Fields.Keys() {
		seen[k] = true
	}
	keys := make([]FieldKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return fieldKeyLess(keys[i], keys[j]) })
	return keys
}

func unionMethodKeys(a, b *ClassMapping) []MethodKey {
	seen := make(map[MethodKey]bool)
	for _, k := range a.Methods.Keys() {
		seen[k] = true
	}
	for _, k := range b.Methods.Keys() {
		seen[k] = true
	}
	keys := make([]MethodKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return methodKeyLess(keys[i], keys[j]) })
	return keys
}

// Invert swaps before/after (and Add<->Remove) throughout the diff
// (spec §3.5).
func (d *MappingsDiff) Invert() *MappingsDiff {
	out := NewDiff()
	for _, ck := range d.Classes.Keys() {
		cd, _ := d.Classes.Get(ck)
		icd := &ClassDiff{
			Key:     cd.Key,
			Info:    cd.Info.invert(),
			Javadoc: cd.Javadoc.invert(),
			Fields:  newOrderedMap[FieldKey, *FieldDiff](),
			Methods: newOrderedMap[MethodKey, *MethodDiff](),
		}
		for _, fk := range cd.Fields.Keys() {
			fd, _ := cd.Fields.Get(fk)
			icd.Fields.Set(fk, &FieldDiff{Key: fd.Key, Info: fd.Info.invert(), Javadoc: fd.Javadoc.invert()})
		}
		for _, mk := range cd.Methods.Keys() {
			md, _ := cd.Methods.Get(mk)
			imd := &MethodDiff{Key: md.Key, Info: md.Info.invert(), Javadoc: md.Javadoc.invert(), Parameters: newOrderedMap[int, *ParameterDiff]()}
			for _, idx := range md.Parameters.Keys() {
				pd, _ := md.Parameters.Get(idx)
				imd.Parameters.Set(idx, &ParameterDiff{Index: idx, Info: pd.Info.invert(), Javadoc: pd.Javadoc.invert()})
			}
			icd.Methods.Set(mk, imd)
		}
		out.Classes.Set(ck, icd)
	}
	return out
}

// Apply produces a new Mappings by applying d to tree. tree may be nil
// to represent the empty starting state (for a diff consisting only of
// Add actions).
func Apply(d *MappingsDiff, tree *Mappings, namespaces []string) (*Mappings, error) {
	out, err := New(namespaces)
	if err != nil {
		return nil, err
	}
	for _, ck := range d.Classes.Keys() {
		cd, _ := d.Classes.Get(ck)
		var existing *ClassMapping
		if tree != nil {
			existing, _ = tree.Classes.Get(ck)
		}
		names, err := applyInfo(cd.Info, existing, func(c *ClassMapping) Names { return c.Names })
		if err != nil {
			return nil, errors.Wrapf(err, "class %q", ck)
		}
		if cd.Info.Kind == ActionRemove {
			continue // resulting tree simply omits it
		}
		c, err := out.AddClass(names)
		if err != nil {
			return nil, err
		}
		c.Javadoc, err = applyString(cd.Javadoc, existing, func(c *ClassMapping) string { return c.Javadoc })
		if err != nil {
			return nil, errors.Wrapf(err, "class %q javadoc", ck)
		}

		for _, fk := range cd.Fields.Keys() {
			fd, _ := cd.Fields.Get(fk)
			var existingField *FieldMapping
			if existing != nil {
				existingField, _ = existing.Fields.Get(fk)
			}
			fnames, err := applyInfo(fd.Info, existingField, func(f *FieldMapping) Names { return f.Names })
			if err != nil {
				return nil, errors.Wrapf(err, "field %v", fk)
			}
			if fd.Info.Kind == ActionRemove {
				continue
			}
			f, err := c.AddField(fk.Descriptor, fnames)
			if err != nil {
				return nil, err
			}
			f.Javadoc, err = applyString(fd.Javadoc, existingField, func(f *FieldMapping) string { return f.Javadoc })
			if err != nil {
				return nil, errors.Wrapf(err, "field %v javadoc", fk)
			}
		}

		for _, mk := range cd.Methods.Keys() {
			md, _ := cd.Methods.Get(mk)
			var existingMethod *MethodMapping
			if existing != nil {
				existingMethod, _ = existing.Methods.Get(mk)
			}
			mnames, err := applyInfo(md.Info, existingMethod, func(m *MethodMapping) Names { return m.Names })
			if err != nil {
				return nil, errors.Wrapf(err, "method %v", mk)
			}
			if md.Info.Kind == ActionRemove {
				continue
			}
			mm, err := c.AddMethod(mk.Descriptor, mnames)
			if err != nil {
				return nil, err
			}
			mm.Javadoc, err = applyString(md.Javadoc, existingMethod, func(m *MethodMapping) string { return m.Javadoc })
			if err != nil {
				return nil, errors.Wrapf(err, "method %v javadoc", mk)
			}
			for _, idx := range md.Parameters.Keys() {
				pd, _ := md.Parameters.Get(idx)
				var existingParam *ParameterMapping
				if existingMethod != nil {
					existingParam, _ = existingMethod.Parameters.Get(idx)
				}
				pnames, err := applyInfo(pd.Info, existingParam, func(p *ParameterMapping) Names { return p.Names })
				if err != nil {
					return nil, errors.Wrapf(err, "parameter %d", idx)
				}
				if pd.Info.Kind == ActionRemove {
					continue
				}
				p := mm.AddParameter(idx, pnames)
				p.Javadoc, err = applyString(pd.Javadoc, existingParam, func(p *ParameterMapping) string { return p.Javadoc })
				if err != nil {
					return nil, errors.Wrapf(err, "parameter %d javadoc", idx)
				}
			}
		}
	}
	return out, nil
}

func applyInfo[N any](a Action[Names], existing *N, get func(*N) Names) (Names, error) {
	switch a.Kind {
	case ActionNone:
		return a.After, nil
	case ActionAdd:
		if existing != nil {
			return Names{}, errors.Wrap(ErrDiffApply, "add action on a node that already exists")
		}
		return a.After, nil
	case ActionRemove:
		if existing == nil || !namesEqual(get(existing), a.Before) {
			return Names{}, errors.Wrap(ErrDiffApply, "remove action's before value does not match the tree")
		}
		return Names{}, nil
	case ActionEdit:
		if existing == nil || !namesEqual(get(existing), a.Before) {
			return Names{}, errors.Wrap(ErrDiffApply, "edit action's before value does not match the tree")
		}
		return a.After, nil
	default:
		return Names{}, nil
	}
}

func applyString[N any](a Action[string], existing *N, get func(*N) string) (string, error) {
	switch a.Kind {
	case ActionNone:
		return a.After, nil
	case ActionAdd:
		return a.After, nil
	case ActionRemove:
		if existing == nil || get(existing) != a.Before {
			return "", errors.Wrap(ErrDiffApply, "remove action's before javadoc does not match the tree")
		}
		return "", nil
	case ActionEdit:
		if existing == nil || get(existing) != a.Before {
			return "", errors.Wrap(ErrDiffApply, "edit action's before javadoc does not match the tree")
		}
		return a.After, nil
	default:
		return "", nil
	}
}

// Compose produces a diff equivalent to applying d1 then d2, so that
// apply(compose(d1,d2), t) == apply(d2, apply(d1, t)) wherever both
// sides are defined.
func Compose(d1, d2 *MappingsDiff) *MappingsDiff {
	out := NewDiff()
	seen := make(map[string]bool)
	for _, k := range d1.Classes.Keys() {
		seen[k] = true
	}
	for _, k := range d2.Classes.Keys() {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c1, in1 := d1.Classes.Get(k)
		c2, in2 := d2.Classes.Get(k)
		switch {
		case in1 && !in2:
			out.Classes.Set(k, c1)
		case !in1 && in2:
			out.Classes.Set(k, c2)
		default:
			out.Classes.Set(k, &ClassDiff{
				Key:     k,
				Info:    composeAction(c1.Info, c2.Info),
				Javadoc: composeStringAction(c1.Javadoc, c2.Javadoc),
				Fields:  composeFieldMap(c1.Fields, c2.Fields),
				Methods: composeMethodMap(c1.Methods, c2.Methods),
			})
		}
	}
	return out
}

func composeAction(a, b Action[Names]) Action[Names] {
	if a.Kind == ActionNone {
		return b
	}
	if b.Kind == ActionNone {
		return a
	}
	return Action[Names]{Kind: ActionEdit, Before: a.Before, After: b.After}
}

func composeStringAction(a, b Action[string]) Action[string] {
	if a.Kind == ActionNone {
		return b
	}
	if b.Kind == ActionNone {
		return a
	}
	return Action[string]{Kind: ActionEdit, Before: a.Before, After: b.After}
}

func composeFieldMap(m1, m2 *orderedMap[FieldKey, *FieldDiff]) *orderedMap[FieldKey, *FieldDiff] {
	out := newOrderedMap[FieldKey, *FieldDiff]()
	seen := make(map[FieldKey]bool)
	for _, k := range m1.Keys() {
		seen[k] = true
	}
	for _, k := range m2.Keys() {
		seen[k] = true
	}
	keys := make([]FieldKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return fieldKeyLess(keys[i], keys[j]) })
	for _, k := range keys {
		f1, in1 := m1.Get(k)
		f2, in2 := m2.Get(k)
		switch {
		case in1 && !in2:
			out.Set(k, f1)
		case !in1 && in2:
			out.Set(k, f2)
		default:
			out.Set(k, &FieldDiff{Key: k, Info: composeAction(f1.Info, f2.Info), Javadoc: composeStringAction(f1.Javadoc, f2.Javadoc)})
		}
	}
	return out
}

func composeMethodMap(m1, m2 *orderedMap[MethodKey, *MethodDiff]) *orderedMap[MethodKey, *MethodDiff] {
	out := newOrderedMap[MethodKey, *MethodDiff]()
	seen := make(map[MethodKey]bool)
	for _, k := range m1.Keys() {
		seen[k] = true
	}
	for _, k := range m2.Keys() {
		seen[k] = true
	}
	keys := make([]MethodKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return methodKeyLess(keys[i], keys[j]) })
	for _, k := range keys {
		a1, in1 := m1.Get(k)
		a2, in2 := m2.Get(k)
		switch {
		case in1 && !in2:
			out.Set(k, a1)
		case !in1 && in2:
			out.Set(k, a2)
		default:
			params := newOrderedMap[int, *ParameterDiff]()
			for _, idx := range a1.Parameters.Keys() {
				p1, _ := a1.Parameters.Get(idx)
				params.Set(idx, p1)
			}
			for _, idx := range a2.Parameters.Keys() {
				p2, _ := a2.Parameters.Get(idx)
				if p1, ok := params.Get(idx); ok {
					p2 = &ParameterDiff{Index: idx, Info: composeAction(p1.Info, p2.Info), Javadoc: composeStringAction(p1.Javadoc, p2.Javadoc)}
				}
				params.Set(idx, p2)
			}
			out.Set(k, &MethodDiff{
				Key:        k,
				Info:       composeAction(a1.Info, a2.Info),
				Javadoc:    composeStringAction(a1.Javadoc, a2.Javadoc),
				Parameters: params,
			})
		}
	}
	return out
}

// EncodeDiff renders d as tiny v2 diff text (spec §6.3): the same
// grammar with an empty namespace header and two trailing name
// columns (a, b) per entry.
func EncodeDiff(d *MappingsDiff) string {
	var b strings.Builder
	b.WriteString("tiny\t2\t0\n")
	classKeys := append([]string(nil), d.Classes.Keys()...)
	sort.Strings(classKeys)
	for _, ck := range classKeys {
		cd, _ := d.Classes.Get(ck)
		writeDiffEntry(&b, 0, "c", []string{cd.Key}, cd.Info)
		writeDiffJavadoc(&b, 1, cd.Javadoc)

		fieldKeys := append([]FieldKey(nil), cd.Fields.Keys()...)
		sort.Slice(fieldKeys, func(i, j int) bool { return fieldKeyLess(fieldKeys[i], fieldKeys[j]) })
		for _, fk := range fieldKeys {
			fd, _ := cd.Fields.Get(fk)
			writeDiffEntry(&b, 1, "f", []string{fk.Descriptor, fk.Name}, fd.Info)
			writeDiffJavadoc(&b, 2, fd.Javadoc)
		}

		methodKeys := append([]MethodKey(nil), cd.Methods.Keys()...)
		sort.Slice(methodKeys, func(i, j int) bool { return methodKeyLess(methodKeys[i], methodKeys[j]) })
		for _, mk := range methodKeys {
			md, _ := cd.Methods.Get(mk)
			writeDiffEntry(&b, 1, "m", []string{mk.Descriptor, mk.Name}, md.Info)
			writeDiffJavadoc(&b, 2, md.Javadoc)
			paramIdx := append([]int(nil), md.Parameters.Keys()...)
			sort.Ints(paramIdx)
			for _, idx := range paramIdx {
				pd, _ := md.Parameters.Get(idx)
				writeDiffEntry(&b, 2, "p", []string{strconv.Itoa(idx)}, pd.Info)
				writeDiffJavadoc(&b, 3, pd.Javadoc)
			}
		}
	}
	return b.String()
}

func diffNameColumns(a Action[Names]) (string, string) {
	var av, bv string
	if a.Kind != ActionAdd {
		av, _ = a.Before.Name(0)
	}
	if a.Kind != ActionRemove {
		bv, _ = a.After.Name(0)
	}
	return av, bv
}

func writeDiffEntry(b *strings.Builder, depth int, tag string, leadingFields []string, info Action[Names]) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
	b.WriteString(tag)
	for _, f := range leadingFields {
		b.WriteByte('\t')
		b.WriteString(f)
	}
	av, bv := diffNameColumns(info)
	b.WriteByte('\t')
	b.WriteString(av)
	b.WriteByte('\t')
	b.WriteString(bv)
	b.WriteByte('\n')
}

func writeDiffJavadoc(b *strings.Builder, depth int, a Action[string]) {
	if a.Kind == ActionNone && a.Before == "" && a.After == "" {
		return
	}
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
	b.WriteString("c\t")
	if a.Kind != ActionAdd {
		b.WriteString(a.Before)
	}
	b.WriteByte('\t')
	if a.Kind != ActionRemove {
		b.WriteString(a.After)
	}
	b.WriteByte('\n')
}

// DecodeDiff parses tiny v2 diff text, producing Action::Add when the
// `a` column is empty, Remove when `b` is empty, Edit when both are
// present and differ, and None when both are present and equal (spec
// §4.7).
func DecodeDiff(r io.Reader) (*MappingsDiff, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	if !scanner.Scan() {
		return nil, errors.Wrap(ErrDiffApply, "empty diff input: missing header line")
	}

	d := NewDiff()
	var curClass *ClassDiff
	var curField *FieldDiff
	var curMethod *MethodDiff
	var curParam *ParameterDiff
	depthStack := 0

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
		if depth > depthStack+1 {
			return nil, errors.Errorf("mappings diff: line %d indents past the open depth", lineNo)
		}
		depthStack = depth

		tag := fields[0]
		switch {
		case depth == 0 && tag == "c":
			if len(fields) != 4 {
				return nil, errors.Errorf("mappings diff: line %d malformed class entry, want tag+key+a+b", lineNo)
			}
			key := fields[1]
			curClass = &ClassDiff{
				Key:     key,
				Info:    nameAction(fields[2], fields[3]),
				Fields:  newOrderedMap[FieldKey, *FieldDiff](),
				Methods: newOrderedMap[MethodKey, *MethodDiff](),
			}
			d.Classes.Set(key, curClass)
			curField, curMethod, curParam = nil, nil, nil

		case depth == 1 && tag == "f":
			if curClass == nil || len(fields) != 5 {
				return nil, errors.Errorf("mappings diff: line %d malformed field entry, want tag+descriptor+name+a+b", lineNo)
			}
			key := FieldKey{Descriptor: fields[1], Name: fields[2]}
			curField = &FieldDiff{Key: key, Info: nameAction(fields[3], fields[4])}
			curClass.Fields.Set(key, curField)
			curMethod, curParam = nil, nil

		case depth == 1 && tag == "m":
			if curClass == nil || len(fields) != 5 {
				return nil, errors.Errorf("mappings diff: line %d malformed method entry, want tag+descriptor+name+a+b", lineNo)
			}
			key := MethodKey{Descriptor: fields[1], Name: fields[2]}
			curMethod = &MethodDiff{Key: key, Info: nameAction(fields[3], fields[4]), Parameters: newOrderedMap[int, *ParameterDiff]()}
			curClass.Methods.Set(key, curMethod)
			curField, curParam = nil, nil

		case depth == 2 && tag == "p":
			if curMethod == nil || len(fields) != 4 {
				return nil, errors.Errorf("mappings diff: line %d malformed parameter entry", lineNo)
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "mappings diff: line %d parameter index", lineNo)
			}
			curParam = &ParameterDiff{Index: idx, Info: nameAction(fields[2], fields[3])}
			curMethod.Parameters.Set(idx, curParam)

		case tag == "c": // javadoc at whatever depth the active node sits at
			if len(fields) != 3 {
				return nil, errors.Errorf("mappings diff: line %d malformed javadoc entry", lineNo)
			}
			action := stringDiffAction(fields[1], fields[2])
			switch {
			case curParam != nil && depth == 3:
				curParam.Javadoc = action
			case curMethod != nil && depth == 2:
				curMethod.Javadoc = action
			case curField != nil && depth == 2:
				curField.Javadoc = action
			case curClass != nil && depth == 1:
				curClass.Javadoc = action
			default:
				return nil, errors.Errorf("mappings diff: line %d javadoc has no matching open parent", lineNo)
			}

		default:
			return nil, errors.Errorf("mappings diff: line %d unrecognized entry %q at depth %d", lineNo, tag, depth)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

func nameAction(a, b string) Action[Names] {
	an := Names{Values: []string{a}}
	bn := Names{Values: []string{b}}
	switch {
	case a == "":
		return Action[Names]{Kind: ActionAdd, After: bn}
	case b == "":
		return Action[Names]{Kind: ActionRemove, Before: an}
	case a == b:
		return Action[Names]{Kind: ActionNone, Before: an, After: bn}
	default:
		return Action[Names]{Kind: ActionEdit, Before: an, After: bn}
	}
}

func stringDiffAction(a, b string) Action[string] {
	switch {
	case a == "":
		return Action[string]{Kind: ActionAdd, After: b}
	case b == "":
		return Action[string]{Kind: ActionRemove, Before: a}
	case a == b:
		return Action[string]{Kind: ActionNone, Before: a, After: b}
	default:
		return Action[string]{Kind: ActionEdit, Before: a, After: b}
	}
}
