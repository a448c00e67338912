package classfile

import (
	"encoding/binary"

	"github.com/ludoforge/classkit/classfile/descriptor"
	"github.com/ludoforge/classkit/classfile/opcodes"
)

const classMagic = 0xCAFEBABE

// ClassReader parses one class file's byte stream and drives a
// ClassVisitor over it (spec §4.5). It follows the teacher's
// classreader.go shape: parse the constant pool eagerly, then walk
// members lazily. The visitor's Interests are recorded but not
// consulted: every attribute is decoded and delivered whatever the
// visitor declares.
type ClassReader struct {
	b    []byte
	pool *ConstantPool

	minorVersion, majorVersion int
	accessFlags                int
	thisClass, superClass      int
	interfaces                 []int

	fieldsOffset int // bookmark: offset of fields_count, spec §4.5
	prototypes   *prototypeRegistry
}

// NewClassReader parses the magic, version, and constant pool of b and
// returns a reader ready to Accept a visitor. The remainder of the
// class body is decoded lazily during Accept.
func NewClassReader(b []byte) (*ClassReader, error) {
	return newClassReaderWithPrototypes(b, nil)
}

// NewClassReaderWithAttributes is like NewClassReader but additionally
// stores AttributePrototype decoders for non-standard attributes (see
// attribute.go). Accept does not consult them: a non-standard attribute
// still reaches the visitor as an opaque Attribute.
func NewClassReaderWithAttributes(b []byte, prototypes []AttributePrototype) (*ClassReader, error) {
	return newClassReaderWithPrototypes(b, newPrototypeRegistry(prototypes))
}

func newClassReaderWithPrototypes(b []byte, reg *prototypeRegistry) (*ClassReader, error) {
	if len(b) < 10 {
		return nil, wrapErr(KindBadMagic, ErrStructuralParse, "", "class file too short")
	}
	magic := binary.BigEndian.Uint32(b[0:4])
	if magic != classMagic {
		return nil, wrapErr(KindBadMagic, ErrStructuralParse, "", "bad magic 0x%08X", magic)
	}
	minor := int(binary.BigEndian.Uint16(b[4:6]))
	major := int(binary.BigEndian.Uint16(b[6:8]))
	if major < opcodes.V1_1&0xFFFF || major > opcodes.MajorV23 {
		return nil, wrapErr(KindUnsupportedVersion, ErrStructuralParse, "", "unsupported major version %d", major)
	}

	pool, off, err := parsePool(b, 8)
	if err != nil {
		return nil, err
	}

	if off+8 > len(b) {
		return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated class header")
	}
	access := int(binary.BigEndian.Uint16(b[off:]))
	thisClass := int(binary.BigEndian.Uint16(b[off+2:]))
	superClass := int(binary.BigEndian.Uint16(b[off+4:]))
	ifaceCount := int(binary.BigEndian.Uint16(b[off+6:]))
	off += 8

	ifaces := make([]int, ifaceCount)
	for i := 0; i < ifaceCount; i++ {
		if off+2 > len(b) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated interfaces table")
		}
		ifaces[i] = int(binary.BigEndian.Uint16(b[off:]))
		off += 2
	}

	r := &ClassReader{
		b: b, pool: pool,
		minorVersion: minor, majorVersion: major,
		accessFlags: access, thisClass: thisClass, superClass: superClass,
		interfaces: ifaces, fieldsOffset: off, prototypes: reg,
	}
	return r, nil
}

// Accept drives v over the parsed class. It decodes every attribute
// body; v.Interests() does not cause any of them to be skipped.
func (r *ClassReader) Accept(v ClassVisitor) error {
	ctx := &parseContext{pool: r.pool, prototypes: r.prototypes, interests: v.Interests(), majorVersion: r.majorVersion}

	className, err := r.className(r.thisClass)
	if err != nil {
		return err
	}
	superName := ""
	if r.superClass != 0 {
		superName, err = r.className(r.superClass)
		if err != nil {
			return err
		}
	}
	ifaceNames := make([]string, len(r.interfaces))
	for i, idx := range r.interfaces {
		ifaceNames[i], err = r.className(idx)
		if err != nil {
			return err
		}
	}

	var signature string
	var sourceFile, sourceDebug string
	var hasSource bool
	var innerClasses []InnerClassEntry
	var outerOwner, outerName, outerDesc string
	var hasOuter bool
	var module *moduleAttrData
	var visibleAnns, invisibleAnns []Annotation
	var typeAnns []TypeAnnotation
	var pendingAttrs []Attribute

	off := r.fieldsOffset
	// The fields/methods tables sit between the class header and the
	// class attribute table on disk; parse class-level attributes only
	// after walking both member tables, so bookmark their offsets first
	// and decode the members in a second pass (spec §4.5).
	fieldsCount, off2, err := r.u16(off)
	if err != nil {
		return err
	}
	off = off2
	fieldStarts := make([]int, 0, fieldsCount)
	for i := 0; i < fieldsCount; i++ {
		start := off
		fieldStarts = append(fieldStarts, start)
		off, err = r.skipMember(off)
		if err != nil {
			return err
		}
	}
	methodsCount, off3, err := r.u16(off)
	if err != nil {
		return err
	}
	off = off3
	methodStarts := make([]int, 0, methodsCount)
	for i := 0; i < methodsCount; i++ {
		start := off
		methodStarts = append(methodStarts, start)
		off, err = r.skipMember(off)
		if err != nil {
			return err
		}
	}

	attrCount, off4, err := r.u16(off)
	if err != nil {
		return err
	}
	off = off4
	for i := 0; i < attrCount; i++ {
		var name string
		var body []byte
		name, body, off, err = r.readAttributeHeader(off)
		if err != nil {
			return err
		}
		switch name {
		case "Signature":
			signature, err = r.attrUtf8(body)
		case "SourceFile":
			var idx int
			idx, _, err = readU16(body, 0, 0)
			if err == nil {
				sourceFile, err = r.pool.GetUtf8(idx)
				hasSource = true
			}
		case "SourceDebugExtension":
			sourceDebug = string(body)
			hasSource = true
		case "InnerClasses":
			innerClasses, err = r.readInnerClasses(body)
		case "EnclosingMethod":
			hasOuter = true
			outerOwner, outerName, outerDesc, err = r.readEnclosingMethod(body)
		case "Module":
			module, err = r.readModuleAttr(body)
		case "BootstrapMethods":
			err = r.pool.parseBootstrapMethods(body, 0)
		case "RuntimeVisibleAnnotations":
			visibleAnns, err = r.readAnnotations(body)
		case "RuntimeInvisibleAnnotations":
			invisibleAnns, err = r.readAnnotations(body)
		case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
			var anns []TypeAnnotation
			anns, err = r.readTypeAnnotations(body, name == "RuntimeVisibleTypeAnnotations")
			typeAnns = append(typeAnns, anns...)
		case "Deprecated", "Synthetic":
			// structural flags only; nothing to surface beyond Access bits
		default:
			pendingAttrs = append(pendingAttrs, Attribute{Name: name, Data: body})
		}
		if err != nil {
			return err
		}
	}

	if err := v.Visit(r.majorVersion, r.accessFlags, className, signature, superName, ifaceNames); err != nil {
		return err
	}
	if hasSource {
		if err := v.VisitSource(sourceFile, sourceDebug); err != nil {
			return err
		}
	}
	if module != nil {
		mv, err := v.VisitModule(module.name, module.access, module.version)
		if err != nil {
			return err
		}
		if mv != nil {
			if err := module.replay(mv); err != nil {
				return err
			}
		}
	}
	if hasOuter {
		if err := v.VisitOuterClass(outerOwner, outerName, outerDesc); err != nil {
			return err
		}
	}
	for _, ic := range innerClasses {
		if err := v.VisitInnerClass(ic.Name, ic.OuterName, ic.InnerName, ic.Access); err != nil {
			return err
		}
	}
	for i, anns := range [][]Annotation{visibleAnns, invisibleAnns} {
		for _, a := range anns {
			av, err := v.VisitAnnotation(a.Descriptor, i == 0)
			if err == nil && av != nil {
				err = replayAnnotationBody(av, a)
			}
			if err != nil {
				return err
			}
		}
	}
	for _, ta := range typeAnns {
		if err := v.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, attr := range pendingAttrs {
		if err := v.VisitAttribute(attr); err != nil {
			return err
		}
	}

	for _, start := range fieldStarts {
		if err := r.readField(start, ctx, v); err != nil {
			return err
		}
	}
	for _, start := range methodStarts {
		if err := r.readMethod(start, ctx, v); err != nil {
			return err
		}
	}

	return v.VisitEnd()
}

func (r *ClassReader) className(idx int) (string, error) {
	if idx == 0 {
		return "", nil
	}
	return r.pool.GetClass(idx)
}

func (r *ClassReader) u16(off int) (int, int, error) {
	v, off2, err := readU16(r.b, off, 0)
	return int(v), off2, err
}

func (r *ClassReader) attrUtf8(body []byte) (string, error) {
	idx, _, err := readU16(body, 0, 0)
	if err != nil {
		return "", err
	}
	return r.pool.GetUtf8(idx)
}

// readAttributeHeader reads the 2-byte name index and 4-byte length of
// one attribute_info starting at off, resolves the name, and returns
// the body slice plus the offset of the next attribute.
func (r *ClassReader) readAttributeHeader(off int) (string, []byte, int, error) {
	if off+6 > len(r.b) {
		return "", nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated attribute header")
	}
	nameIdx := int(binary.BigEndian.Uint16(r.b[off:]))
	length := int(binary.BigEndian.Uint32(r.b[off+2:]))
	name, err := r.pool.GetUtf8(nameIdx)
	if err != nil {
		return "", nil, 0, err
	}
	bodyStart := off + 6
	if bodyStart+length > len(r.b) {
		return "", nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, name, "attribute body exceeds class file length")
	}
	return name, r.b[bodyStart : bodyStart+length], bodyStart + length, nil
}

// skipMember walks one field_info/method_info far enough to find its
// end, without decoding it, so the reader can bookmark member table
// offsets before parsing them (spec §4.5's two-pass access pattern).
func (r *ClassReader) skipMember(off int) (int, error) {
	if off+8 > len(r.b) {
		return 0, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated member header")
	}
	off += 6 // access_flags, name_index, descriptor_index
	attrCount := int(binary.BigEndian.Uint16(r.b[off:]))
	off += 2
	for i := 0; i < attrCount; i++ {
		if off+6 > len(r.b) {
			return 0, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated attribute header")
		}
		length := int(binary.BigEndian.Uint32(r.b[off+2:]))
		off += 6 + length
	}
	return off, nil
}

func (r *ClassReader) readInnerClasses(body []byte) ([]InnerClassEntry, error) {
	n, off, err := readU16(body, 0, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]InnerClassEntry, 0, n)
	for i := 0; i < int(n); i++ {
		if off+8 > len(body) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "InnerClasses", "truncated entry %d", i)
		}
		innerIdx := int(binary.BigEndian.Uint16(body[off:]))
		outerIdx := int(binary.BigEndian.Uint16(body[off+2:]))
		nameIdx := int(binary.BigEndian.Uint16(body[off+4:]))
		access := int(binary.BigEndian.Uint16(body[off+6:]))
		off += 8
		name, err := r.className(innerIdx)
		if err != nil {
			return nil, err
		}
		var outer, innerName string
		if outerIdx != 0 {
			outer, err = r.className(outerIdx)
			if err != nil {
				return nil, err
			}
		}
		if nameIdx != 0 {
			innerName, err = r.pool.GetUtf8(nameIdx)
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, InnerClassEntry{Name: name, OuterName: outer, InnerName: innerName, Access: access})
	}
	return entries, nil
}

func (r *ClassReader) readEnclosingMethod(body []byte) (owner, name, desc string, err error) {
	if len(body) < 4 {
		return "", "", "", wrapErr(KindMalformedPool, ErrStructuralParse, "EnclosingMethod", "truncated")
	}
	classIdx := int(binary.BigEndian.Uint16(body[0:]))
	natIdx := int(binary.BigEndian.Uint16(body[2:]))
	owner, err = r.className(classIdx)
	if err != nil {
		return "", "", "", err
	}
	if natIdx != 0 {
		name, desc, err = r.pool.GetNameAndType(natIdx)
		if err != nil {
			return "", "", "", err
		}
	}
	return owner, name, desc, nil
}

type moduleAttrData struct {
	name, version string
	access        int
	mainClass     string
	packages      []string
	requires      []ModuleRequire
	exports       []ModuleExportOpen
	opens         []ModuleExportOpen
	uses          []string
	provides      []ModuleProvide
}

func (r *ClassReader) readModuleAttr(body []byte) (*moduleAttrData, error) {
	if len(body) < 6 {
		return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "Module", "truncated header")
	}
	nameIdx := int(binary.BigEndian.Uint16(body[0:]))
	access := int(binary.BigEndian.Uint16(body[2:]))
	versionIdx := int(binary.BigEndian.Uint16(body[4:]))
	name, err := r.pool.GetClass(nameIdx)
	if err != nil {
		return nil, err
	}
	var version string
	if versionIdx != 0 {
		version, err = r.pool.GetUtf8(versionIdx)
		if err != nil {
			return nil, err
		}
	}
	m := &moduleAttrData{name: name, version: version, access: access}
	off := 6

	readModuleNameList := func(countOff int) ([]string, int, error) {
		n, off2, err := readU16(body, countOff, 0)
		if err != nil {
			return nil, 0, err
		}
		names := make([]string, n)
		for i := 0; i < int(n); i++ {
			idx, off3, err := readU16(body, off2, 0)
			if err != nil {
				return nil, 0, err
			}
			off2 = off3
			names[i], err = r.pool.GetUtf8(idx)
			if err != nil {
				return nil, 0, err
			}
		}
		return names, off2, nil
	}

	reqCount, off2, err := readU16(body, off, 0)
	if err != nil {
		return nil, err
	}
	off = off2
	for i := 0; i < int(reqCount); i++ {
		if off+6 > len(body) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "Module", "truncated requires")
		}
		modIdx := int(binary.BigEndian.Uint16(body[off:]))
		reqAccess := int(binary.BigEndian.Uint16(body[off+2:]))
		verIdx := int(binary.BigEndian.Uint16(body[off+4:]))
		off += 6
		modName, err := r.pool.GetModuleOrUtf8(modIdx)
		if err != nil {
			return nil, err
		}
		var ver string
		if verIdx != 0 {
			ver, err = r.pool.GetUtf8(verIdx)
			if err != nil {
				return nil, err
			}
		}
		m.requires = append(m.requires, ModuleRequire{Module: modName, Access: reqAccess, Version: ver})
	}

	expCount, off3, err := readU16(body, off, 0)
	if err != nil {
		return nil, err
	}
	off = off3
	for i := 0; i < int(expCount); i++ {
		if off+4 > len(body) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "Module", "truncated exports")
		}
		pkgIdx := int(binary.BigEndian.Uint16(body[off:]))
		expAccess := int(binary.BigEndian.Uint16(body[off+2:]))
		off += 4
		pkg, err := r.pool.GetPackageOrUtf8(pkgIdx)
		if err != nil {
			return nil, err
		}
		mods, off4, err := readModuleNameList(off)
		if err != nil {
			return nil, err
		}
		off = off4
		m.exports = append(m.exports, ModuleExportOpen{Package: pkg, Access: expAccess, Modules: mods})
	}

	openCount, off5, err := readU16(body, off, 0)
	if err != nil {
		return nil, err
	}
	off = off5
	for i := 0; i < int(openCount); i++ {
		if off+4 > len(body) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "Module", "truncated opens")
		}
		pkgIdx := int(binary.BigEndian.Uint16(body[off:]))
		openAccess := int(binary.BigEndian.Uint16(body[off+2:]))
		off += 4
		pkg, err := r.pool.GetPackageOrUtf8(pkgIdx)
		if err != nil {
			return nil, err
		}
		mods, off6, err := readModuleNameList(off)
		if err != nil {
			return nil, err
		}
		off = off6
		m.opens = append(m.opens, ModuleExportOpen{Package: pkg, Access: openAccess, Modules: mods})
	}

	usesCount, off7, err := readU16(body, off, 0)
	if err != nil {
		return nil, err
	}
	off = off7
	for i := 0; i < int(usesCount); i++ {
		idx, off8, err := readU16(body, off, 0)
		if err != nil {
			return nil, err
		}
		off = off8
		svc, err := r.pool.GetClass(int(idx))
		if err != nil {
			return nil, err
		}
		m.uses = append(m.uses, svc)
	}

	providesCount, off9, err := readU16(body, off, 0)
	if err != nil {
		return nil, err
	}
	off = off9
	for i := 0; i < int(providesCount); i++ {
		svcIdx, off10, err := readU16(body, off, 0)
		if err != nil {
			return nil, err
		}
		off = off10
		svc, err := r.pool.GetClass(int(svcIdx))
		if err != nil {
			return nil, err
		}
		providers, off11, err := readModuleNameList(off)
		if err != nil {
			return nil, err
		}
		off = off11
		m.provides = append(m.provides, ModuleProvide{Service: svc, Providers: providers})
	}

	return m, nil
}

func (m *moduleAttrData) replay(v ModuleVisitor) error {
	if m.mainClass != "" {
		if err := v.VisitMainClass(m.mainClass); err != nil {
			return err
		}
	}
	for _, p := range m.packages {
		if err := v.VisitPackage(p); err != nil {
			return err
		}
	}
	for _, r := range m.requires {
		if err := v.VisitRequire(r.Module, r.Access, r.Version); err != nil {
			return err
		}
	}
	for _, e := range m.exports {
		if err := v.VisitExport(e.Package, e.Access, e.Modules); err != nil {
			return err
		}
	}
	for _, o := range m.opens {
		if err := v.VisitOpen(o.Package, o.Access, o.Modules); err != nil {
			return err
		}
	}
	for _, u := range m.uses {
		if err := v.VisitUse(u); err != nil {
			return err
		}
	}
	for _, p := range m.provides {
		if err := v.VisitProvide(p.Service, p.Providers); err != nil {
			return err
		}
	}
	return v.VisitEnd()
}

// readField decodes one field_info starting at off and drives v's
// FieldVisitor callbacks for it.
func (r *ClassReader) readField(off int, ctx *parseContext, cv ClassVisitor) error {
	access := int(binary.BigEndian.Uint16(r.b[off:]))
	nameIdx := int(binary.BigEndian.Uint16(r.b[off+2:]))
	descIdx := int(binary.BigEndian.Uint16(r.b[off+4:]))
	attrCount := int(binary.BigEndian.Uint16(r.b[off+6:]))
	off += 8

	name, err := r.pool.GetUtf8(nameIdx)
	if err != nil {
		return err
	}
	desc, err := r.pool.GetUtf8(descIdx)
	if err != nil {
		return err
	}

	var constVal interface{}
	var signature string
	var visible, invisible []Annotation
	var typeAnns []TypeAnnotation
	var others []Attribute

	for i := 0; i < attrCount; i++ {
		var name2 string
		var body []byte
		name2, body, off, err = r.readAttributeHeader(off)
		if err != nil {
			return err
		}
		switch name2 {
		case "ConstantValue":
			idx, _, err2 := readU16(body, 0, 0)
			if err2 != nil {
				return err2
			}
			constVal, err = r.pool.GetLoadableValue(int(idx))
		case "Signature":
			signature, err = r.attrUtf8(body)
		case "RuntimeVisibleAnnotations":
			visible, err = r.readAnnotations(body)
		case "RuntimeInvisibleAnnotations":
			invisible, err = r.readAnnotations(body)
		case "RuntimeVisibleTypeAnnotations":
			var anns []TypeAnnotation
			anns, err = r.readTypeAnnotations(body, true)
			typeAnns = append(typeAnns, anns...)
		case "RuntimeInvisibleTypeAnnotations":
			var anns []TypeAnnotation
			anns, err = r.readTypeAnnotations(body, false)
			typeAnns = append(typeAnns, anns...)
		case "Deprecated", "Synthetic":
		default:
			others = append(others, Attribute{Name: name2, Data: body})
		}
		if err != nil {
			return err
		}
	}

	fv, err := cv.VisitField(access, name, desc, signature, constVal)
	if err != nil || fv == nil {
		return err
	}
	for _, a := range visible {
		if err := replayToFieldAnnotation(fv, a, true); err != nil {
			return err
		}
	}
	for _, a := range invisible {
		if err := replayToFieldAnnotation(fv, a, false); err != nil {
			return err
		}
	}
	for _, ta := range typeAnns {
		if err := fv.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, a := range others {
		if err := fv.VisitAttribute(a); err != nil {
			return err
		}
	}
	return fv.VisitEnd()
}

func replayToFieldAnnotation(fv FieldVisitor, a Annotation, visible bool) error {
	av, err := fv.VisitAnnotation(a.Descriptor, visible)
	if err != nil || av == nil {
		return err
	}
	return replayAnnotationBody(av, a)
}

func (r *ClassReader) readAnnotations(body []byte) ([]Annotation, error) {
	n, off, err := readU16(body, 0, 0)
	if err != nil {
		return nil, err
	}
	anns := make([]Annotation, 0, n)
	for i := 0; i < int(n); i++ {
		var a Annotation
		a, off, err = r.readAnnotation(body, off)
		if err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	return anns, nil
}

func (r *ClassReader) readAnnotation(body []byte, off int) (Annotation, int, error) {
	typeIdx, off2, err := readU16(body, off, 0)
	if err != nil {
		return Annotation{}, 0, err
	}
	desc, err := r.pool.GetUtf8(int(typeIdx))
	if err != nil {
		return Annotation{}, 0, err
	}
	values, off3, err := r.readElementValuePairs(body, off2)
	if err != nil {
		return Annotation{}, 0, err
	}
	return Annotation{Descriptor: desc, Values: values}, off3, nil
}

func (r *ClassReader) readElementValuePairs(body []byte, off int) ([]ElementValue, int, error) {
	n, off2, err := readU16(body, off, 0)
	if err != nil {
		return nil, 0, err
	}
	values := make([]ElementValue, 0, n)
	off = off2
	for i := 0; i < int(n); i++ {
		nameIdx, off3, err := readU16(body, off, 0)
		if err != nil {
			return nil, 0, err
		}
		name, err := r.pool.GetUtf8(int(nameIdx))
		if err != nil {
			return nil, 0, err
		}
		var val interface{}
		val, off, err = r.readElementValue(body, off3)
		if err != nil {
			return nil, 0, err
		}
		values = append(values, ElementValue{Name: name, Value: val})
	}
	return values, off, nil
}

func (r *ClassReader) readElementValue(body []byte, off int) (interface{}, int, error) {
	if off >= len(body) {
		return nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "element_value", "truncated tag")
	}
	tag := body[off]
	off++
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, 0, err
		}
		if tag == 's' {
			s, err := r.pool.GetUtf8(int(idx))
			return s, off2, err
		}
		v, err := r.pool.GetLoadableValue(int(idx))
		if err != nil {
			return nil, 0, err
		}
		return coerceConst(tag, v), off2, nil
	case 'e':
		typeIdx, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, 0, err
		}
		constIdx, off3, err := readU16(body, off2, 0)
		if err != nil {
			return nil, 0, err
		}
		descr, err := r.pool.GetUtf8(int(typeIdx))
		if err != nil {
			return nil, 0, err
		}
		val, err := r.pool.GetUtf8(int(constIdx))
		if err != nil {
			return nil, 0, err
		}
		return &EnumValue{Descriptor: descr, Value: val}, off3, nil
	case 'c':
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, 0, err
		}
		s, err := r.pool.GetUtf8(int(idx))
		return descriptor.ClassName(s), off2, err
	case '@':
		a, off2, err := r.readAnnotation(body, off)
		return &a, off2, err
	case '[':
		n, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, 0, err
		}
		items := make([]ElementValue, 0, n)
		off = off2
		for i := 0; i < int(n); i++ {
			var v interface{}
			v, off, err = r.readElementValue(body, off)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, ElementValue{Value: v})
		}
		return items, off, nil
	default:
		return nil, 0, wrapErr(KindWrongTag, ErrStructuralParse, "element_value", "unknown tag %q", rune(tag))
	}
}

func coerceConst(tag byte, v interface{}) interface{} {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch tag {
	case 'B':
		return int8(i)
	case 'C':
		return uint16(i)
	case 'S':
		return int16(i)
	case 'Z':
		return i != 0
	default:
		return i
	}
}

func (r *ClassReader) readTypeAnnotations(body []byte, visible bool) ([]TypeAnnotation, error) {
	n, off, err := readU16(body, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]TypeAnnotation, 0, n)
	for i := 0; i < int(n); i++ {
		var ta TypeAnnotation
		ta, off, err = r.readTypeAnnotation(body, off, visible)
		if err != nil {
			return nil, err
		}
		out = append(out, ta)
	}
	return out, nil
}

// readTypeAnnotation decodes one type_annotation entry. The target_info
// shape is simplified to (sort, index) pairs rather than exhaustive
// per-kind structs, since every consumer in this module only needs to
// know which declaration element a type annotation decorates.
func (r *ClassReader) readTypeAnnotation(body []byte, off int, visible bool) (TypeAnnotation, int, error) {
	if off >= len(body) {
		return TypeAnnotation{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_annotation", "truncated target_type")
	}
	targetType := body[off]
	off++
	var ref TypeReference
	var localVars []LocalVariableTarget

	switch {
	case targetType == 0x00 || targetType == 0x01:
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])}
		off++
	case targetType == 0x10:
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return TypeAnnotation{}, 0, err
		}
		ref = TypeReference{Sort: RefClassExtends, Index: int(idx)}
		off = off2
	case targetType == 0x11 || targetType == 0x12:
		if off+2 > len(body) {
			return TypeAnnotation{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_annotation", "truncated type_parameter_bound_target")
		}
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])<<8 | int(body[off+1])}
		off += 2
	case targetType == 0x13 || targetType == 0x14 || targetType == 0x15:
		ref = TypeReference{Sort: int(targetType)}
	case targetType == 0x16:
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])}
		off++
	case targetType == 0x17:
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return TypeAnnotation{}, 0, err
		}
		ref = TypeReference{Sort: RefThrows, Index: int(idx)}
		off = off2
	case targetType >= 0x40 && targetType <= 0x41:
		n, off2, err := readU16(body, off, 0)
		if err != nil {
			return TypeAnnotation{}, 0, err
		}
		off = off2
		for i := 0; i < int(n); i++ {
			if off+6 > len(body) {
				return TypeAnnotation{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_annotation", "truncated localvar_target")
			}
			off += 6 // start_pc, length, index: resolved against code by the caller if needed
			localVars = append(localVars, LocalVariableTarget{})
		}
		ref = TypeReference{Sort: int(targetType)}
	case targetType == 0x42:
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])}
		off++
	case targetType >= 0x43 && targetType <= 0x46:
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return TypeAnnotation{}, 0, err
		}
		ref = TypeReference{Sort: int(targetType), Index: int(idx)}
		off = off2
	case targetType == 0x47:
		if off+2 > len(body) {
			return TypeAnnotation{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_annotation", "truncated cast target")
		}
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])<<8 | int(body[off+1])}
		off += 2
	case targetType >= 0x48 && targetType <= 0x4B:
		if off+3 > len(body) {
			return TypeAnnotation{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_annotation", "truncated type_argument target")
		}
		off += 2
		ref = TypeReference{Sort: int(targetType), Index: int(body[off])}
		off++
	default:
		return TypeAnnotation{}, 0, wrapErr(KindOutOfRange, ErrStructuralParse, "type_annotation", "unknown target_type 0x%02X", targetType)
	}

	path, off2, err := r.readTypePath(body, off)
	if err != nil {
		return TypeAnnotation{}, 0, err
	}
	ann, off3, err := r.readAnnotation(body, off2)
	if err != nil {
		return TypeAnnotation{}, 0, err
	}
	return TypeAnnotation{TypeRef: ref, TypePath: path, Descriptor: ann.Descriptor, Visible: visible, Values: ann.Values, LocalVars: localVars}, off3, nil
}

func (r *ClassReader) readTypePath(body []byte, off int) (*TypePath, int, error) {
	if off >= len(body) {
		return nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_path", "truncated path_length")
	}
	n := int(body[off])
	off++
	steps := make([]TypePathStep, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(body) {
			return nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "type_path", "truncated path entry")
		}
		kind := TypePathStepKind(body[off])
		arg := int(body[off+1])
		off += 2
		steps = append(steps, TypePathStep{Kind: kind, ArgIndex: arg})
	}
	return &TypePath{Steps: steps}, off, nil
}
