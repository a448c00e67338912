package classfile

import (
	"github.com/ludoforge/classkit/classfile/descriptor"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/classfile/symbol"
)

// WriteClass serializes a ClassNode back into class file bytes (spec
// §4.6). Unlike the reader, which drives an arbitrary ClassVisitor, the
// writer consumes an already-materialized tree directly: every caller
// that wants a streaming ClassVisitor-shaped writer can build a
// ClassNode first (its Visit* methods already implement ClassVisitor)
// and call WriteClass on the result, so this module only needs one
// serialization path instead of two.
func WriteClass(c *ClassNode) ([]byte, error) {
	pool := newPoolWriter()

	thisIdx, err := pool.putClass(c.Name)
	if err != nil {
		return nil, err
	}
	superIdx := 0
	if c.SuperName != "" {
		superIdx, err = pool.putClass(c.SuperName)
		if err != nil {
			return nil, err
		}
	}
	ifaceIdx := make([]int, len(c.Interfaces))
	for i, name := range c.Interfaces {
		ifaceIdx[i], err = pool.putClass(name)
		if err != nil {
			return nil, err
		}
	}

	var fieldsBuf byteBuffer
	for _, f := range c.Fields {
		if err := writeField(&fieldsBuf, pool, f); err != nil {
			return nil, err
		}
	}

	var methodsBuf byteBuffer
	for _, m := range c.Methods {
		if err := writeMethod(&methodsBuf, pool, m); err != nil {
			return nil, err
		}
	}

	var attrsBuf byteBuffer
	attrCount := 0

	if c.Signature != "" {
		if err := writeUtf8Attr(&attrsBuf, pool, "Signature", c.Signature); err != nil {
			return nil, err
		}
		attrCount++
	}
	if c.Source != "" {
		if err := writeConstUtf8Attr(&attrsBuf, pool, "SourceFile", c.Source); err != nil {
			return nil, err
		}
		attrCount++
	}
	if c.Debug != "" {
		if err := writeAttr(&attrsBuf, pool, "SourceDebugExtension", []byte(c.Debug)); err != nil {
			return nil, err
		}
		attrCount++
	}
	if c.Module != nil {
		body, err := writeModuleAttrBody(pool, c.Module)
		if err != nil {
			return nil, err
		}
		if err := writeAttr(&attrsBuf, pool, "Module", body); err != nil {
			return nil, err
		}
		attrCount++
		if len(c.Module.Packages) > 0 {
			var pkgBody byteBuffer
			pkgBody.putU16(len(c.Module.Packages))
			for _, p := range c.Module.Packages {
				idx, err := pool.putPackage(p)
				if err != nil {
					return nil, err
				}
				pkgBody.putU16(idx)
			}
			if err := writeAttr(&attrsBuf, pool, "ModulePackages", pkgBody.buf); err != nil {
				return nil, err
			}
			attrCount++
		}
		if c.Module.MainClass != "" {
			if err := writeConstClassAttr(&attrsBuf, pool, "ModuleMainClass", c.Module.MainClass); err != nil {
				return nil, err
			}
			attrCount++
		}
	}
	if c.OuterClass.Present {
		if err := writeEnclosingMethodAttr(&attrsBuf, pool, c.OuterClass.Owner, c.OuterClass.Name, c.OuterClass.Descriptor); err != nil {
			return nil, err
		}
		attrCount++
	}
	if len(c.InnerClasses) > 0 {
		if err := writeInnerClassesAttr(&attrsBuf, pool, c.InnerClasses); err != nil {
			return nil, err
		}
		attrCount++
	}
	if n, err := writeAnnotationAttrs(&attrsBuf, pool, c.VisibleAnnotations, c.InvisibleAnnotations); err != nil {
		return nil, err
	} else {
		attrCount += n
	}
	if n, err := writeTypeAnnotationAttrs(&attrsBuf, pool, c.TypeAnnotations); err != nil {
		return nil, err
	} else {
		attrCount += n
	}
	for _, a := range c.Attributes {
		if err := writeAttr(&attrsBuf, pool, a.Name, a.Data); err != nil {
			return nil, err
		}
		attrCount++
	}
	if len(pool.bsm) > 0 {
		body, err := writeBootstrapMethodsBody(pool)
		if err != nil {
			return nil, err
		}
		if err := writeAttr(&attrsBuf, pool, "BootstrapMethods", body); err != nil {
			return nil, err
		}
		attrCount++
	}

	out := &byteBuffer{}
	out.putU32(classMagic)
	out.putU16(0)
	out.putU16(c.Version)
	if err := pool.write(out); err != nil {
		return nil, err
	}
	out.putU16(c.Access)
	out.putU16(thisIdx)
	out.putU16(superIdx)
	out.putU16(len(ifaceIdx))
	for _, idx := range ifaceIdx {
		out.putU16(idx)
	}
	out.putU16(len(c.Fields))
	out.putBytes(fieldsBuf.buf)
	out.putU16(len(c.Methods))
	out.putBytes(methodsBuf.buf)
	out.putU16(attrCount)
	out.putBytes(attrsBuf.buf)
	return out.buf, nil
}

func writeAttr(buf *byteBuffer, pool *poolWriter, name string, body []byte) error {
	nameIdx, err := pool.putUtf8(name)
	if err != nil {
		return err
	}
	buf.putU16(nameIdx)
	buf.putU32(uint32(len(body)))
	buf.putBytes(body)
	return nil
}

func writeUtf8Attr(buf *byteBuffer, pool *poolWriter, name, value string) error {
	idx, err := pool.putUtf8(value)
	if err != nil {
		return err
	}
	var body byteBuffer
	body.putU16(idx)
	return writeAttr(buf, pool, name, body.buf)
}

func writeConstUtf8Attr(buf *byteBuffer, pool *poolWriter, name, value string) error {
	return writeUtf8Attr(buf, pool, name, value)
}

func writeConstClassAttr(buf *byteBuffer, pool *poolWriter, name, className string) error {
	idx, err := pool.putClass(className)
	if err != nil {
		return err
	}
	var body byteBuffer
	body.putU16(idx)
	return writeAttr(buf, pool, name, body.buf)
}

func writeEnclosingMethodAttr(buf *byteBuffer, pool *poolWriter, owner, name, descriptor string) error {
	classIdx, err := pool.putClass(owner)
	if err != nil {
		return err
	}
	natIdx := 0
	if name != "" {
		natIdx, err = pool.putNameAndType(name, descriptor)
		if err != nil {
			return err
		}
	}
	var body byteBuffer
	body.putU16(classIdx)
	body.putU16(natIdx)
	return writeAttr(buf, pool, "EnclosingMethod", body.buf)
}

func writeInnerClassesAttr(buf *byteBuffer, pool *poolWriter, entries []InnerClassEntry) error {
	var body byteBuffer
	body.putU16(len(entries))
	for _, ic := range entries {
		innerIdx, err := pool.putClass(ic.Name)
		if err != nil {
			return err
		}
		outerIdx := 0
		if ic.OuterName != "" {
			outerIdx, err = pool.putClass(ic.OuterName)
			if err != nil {
				return err
			}
		}
		nameIdx := 0
		if ic.InnerName != "" {
			nameIdx, err = pool.putUtf8(ic.InnerName)
			if err != nil {
				return err
			}
		}
		body.putU16(innerIdx)
		body.putU16(outerIdx)
		body.putU16(nameIdx)
		body.putU16(ic.Access)
	}
	return writeAttr(buf, pool, "InnerClasses", body.buf)
}

func writeModuleAttrBody(pool *poolWriter, m *ModuleNode) ([]byte, error) {
	var body byteBuffer
	nameIdx, err := pool.putModule(m.Name)
	if err != nil {
		return nil, err
	}
	verIdx := 0
	if m.Version != "" {
		verIdx, err = pool.putUtf8(m.Version)
		if err != nil {
			return nil, err
		}
	}
	body.putU16(nameIdx)
	body.putU16(m.Access)
	body.putU16(verIdx)

	writeModuleNames := func(names []string) error {
		body.putU16(len(names))
		for _, n := range names {
			idx, err := pool.putUtf8(n)
			if err != nil {
				return err
			}
			body.putU16(idx)
		}
		return nil
	}

	body.putU16(len(m.Requires))
	for _, req := range m.Requires {
		modIdx, err := pool.putModule(req.Module)
		if err != nil {
			return nil, err
		}
		vIdx := 0
		if req.Version != "" {
			vIdx, err = pool.putUtf8(req.Version)
			if err != nil {
				return nil, err
			}
		}
		body.putU16(modIdx)
		body.putU16(req.Access)
		body.putU16(vIdx)
	}

	body.putU16(len(m.Exports))
	for _, exp := range m.Exports {
		pkgIdx, err := pool.putPackage(exp.Package)
		if err != nil {
			return nil, err
		}
		body.putU16(pkgIdx)
		body.putU16(exp.Access)
		if err := writeModuleNames(exp.Modules); err != nil {
			return nil, err
		}
	}

	body.putU16(len(m.Opens))
	for _, o := range m.Opens {
		pkgIdx, err := pool.putPackage(o.Package)
		if err != nil {
			return nil, err
		}
		body.putU16(pkgIdx)
		body.putU16(o.Access)
		if err := writeModuleNames(o.Modules); err != nil {
			return nil, err
		}
	}

	body.putU16(len(m.Uses))
	for _, svc := range m.Uses {
		idx, err := pool.putClass(svc)
		if err != nil {
			return nil, err
		}
		body.putU16(idx)
	}

	body.putU16(len(m.Provides))
	for _, p := range m.Provides {
		svcIdx, err := pool.putClass(p.Service)
		if err != nil {
			return nil, err
		}
		body.putU16(svcIdx)
		if err := writeModuleNames(p.Providers); err != nil {
			return nil, err
		}
	}

	return body.buf, nil
}

func writeBootstrapMethodsBody(pool *poolWriter) ([]byte, error) {
	var body byteBuffer
	body.putU16(len(pool.bsm))
	for _, bsm := range pool.bsm {
		handleIdx, err := pool.putMethodHandle(bsm.Handle)
		if err != nil {
			return nil, err
		}
		body.putU16(handleIdx)
		body.putU16(len(bsm.Arguments))
		for _, argIdx := range bsm.Arguments {
			body.putU16(int(argIdx))
		}
	}
	return body.buf, nil
}

// writeAnnotationAttrs emits RuntimeVisible/InvisibleAnnotations when
// non-empty, returning how many attributes it added.
func writeAnnotationAttrs(buf *byteBuffer, pool *poolWriter, visible, invisible []Annotation) (int, error) {
	n := 0
	if len(visible) > 0 {
		body, err := writeAnnotationList(pool, visible)
		if err != nil {
			return 0, err
		}
		if err := writeAttr(buf, pool, "RuntimeVisibleAnnotations", body); err != nil {
			return 0, err
		}
		n++
	}
	if len(invisible) > 0 {
		body, err := writeAnnotationList(pool, invisible)
		if err != nil {
			return 0, err
		}
		if err := writeAttr(buf, pool, "RuntimeInvisibleAnnotations", body); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func writeTypeAnnotationAttrs(buf *byteBuffer, pool *poolWriter, anns []TypeAnnotation) (int, error) {
	var visible, invisible []TypeAnnotation
	for _, a := range anns {
		if a.Visible {
			visible = append(visible, a)
		} else {
			invisible = append(invisible, a)
		}
	}
	n := 0
	if len(visible) > 0 {
		body, err := writeTypeAnnotationList(pool, visible)
		if err != nil {
			return 0, err
		}
		if err := writeAttr(buf, pool, "RuntimeVisibleTypeAnnotations", body); err != nil {
			return 0, err
		}
		n++
	}
	if len(invisible) > 0 {
		body, err := writeTypeAnnotationList(pool, invisible)
		if err != nil {
			return 0, err
		}
		if err := writeAttr(buf, pool, "RuntimeInvisibleTypeAnnotations", body); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func writeAnnotationList(pool *poolWriter, anns []Annotation) ([]byte, error) {
	var body byteBuffer
	body.putU16(len(anns))
	for _, a := range anns {
		if err := writeAnnotation(&body, pool, a); err != nil {
			return nil, err
		}
	}
	return body.buf, nil
}

func writeAnnotation(buf *byteBuffer, pool *poolWriter, a Annotation) error {
	descIdx, err := pool.putUtf8(a.Descriptor)
	if err != nil {
		return err
	}
	buf.putU16(descIdx)
	buf.putU16(len(a.Values))
	for _, ev := range a.Values {
		nameIdx, err := pool.putUtf8(ev.Name)
		if err != nil {
			return err
		}
		buf.putU16(nameIdx)
		if err := writeElementValue(buf, pool, ev.Value); err != nil {
			return err
		}
	}
	return nil
}

// writeElementValue is the inverse of ClassReader.readElementValue.
func writeElementValue(buf *byteBuffer, pool *poolWriter, v interface{}) error {
	switch val := v.(type) {
	case bool:
		idx, err := boolConst(pool, val)
		if err != nil {
			return err
		}
		buf.putU8('Z')
		buf.putU16(idx)
	case int8:
		idx, err := pool.putInteger(int32(val))
		if err != nil {
			return err
		}
		buf.putU8('B')
		buf.putU16(idx)
	case uint16:
		idx, err := pool.putInteger(int32(val))
		if err != nil {
			return err
		}
		buf.putU8('C')
		buf.putU16(idx)
	case int16:
		idx, err := pool.putInteger(int32(val))
		if err != nil {
			return err
		}
		buf.putU8('S')
		buf.putU16(idx)
	case int32:
		idx, err := pool.putInteger(val)
		if err != nil {
			return err
		}
		buf.putU8('I')
		buf.putU16(idx)
	case int64:
		idx, err := pool.putLong(val)
		if err != nil {
			return err
		}
		buf.putU8('J')
		buf.putU16(idx)
	case float32:
		idx, err := pool.putFloat(val)
		if err != nil {
			return err
		}
		buf.putU8('F')
		buf.putU16(idx)
	case float64:
		idx, err := pool.putDouble(val)
		if err != nil {
			return err
		}
		buf.putU8('D')
		buf.putU16(idx)
	case string:
		idx, err := pool.putUtf8(val)
		if err != nil {
			return err
		}
		buf.putU8('s')
		buf.putU16(idx)
	case *EnumValue:
		typeIdx, err := pool.putUtf8(val.Descriptor)
		if err != nil {
			return err
		}
		constIdx, err := pool.putUtf8(val.Value)
		if err != nil {
			return err
		}
		buf.putU8('e')
		buf.putU16(typeIdx)
		buf.putU16(constIdx)
	case descriptor.ClassName:
		idx, err := pool.putUtf8(string(val))
		if err != nil {
			return err
		}
		buf.putU8('c')
		buf.putU16(idx)
	case *Annotation:
		buf.putU8('@')
		return writeAnnotation(buf, pool, *val)
	case []ElementValue:
		buf.putU8('[')
		buf.putU16(len(val))
		for _, item := range val {
			if err := writeElementValue(buf, pool, item.Value); err != nil {
				return err
			}
		}
	default:
		return wrapErr(KindWrongTag, ErrStructuralParse, "element_value", "unsupported element value type %T", v)
	}
	return nil
}

func boolConst(pool *poolWriter, b bool) (int, error) {
	if b {
		return pool.putInteger(1)
	}
	return pool.putInteger(0)
}

func writeTypeAnnotationList(pool *poolWriter, anns []TypeAnnotation) ([]byte, error) {
	var body byteBuffer
	body.putU16(len(anns))
	for _, ta := range anns {
		if err := writeTypeAnnotation(&body, pool, ta); err != nil {
			return nil, err
		}
	}
	return body.buf, nil
}

// writeTypeAnnotation is the inverse of ClassReader.readTypeAnnotation,
// under the same (sort, index) target_info simplification.
func writeTypeAnnotation(buf *byteBuffer, pool *poolWriter, ta TypeAnnotation) error {
	sort := ta.TypeRef.Sort
	buf.putU8(byte(sort))
	switch {
	case sort == RefClassTypeParameter || sort == RefMethodTypeParameter:
		buf.putU8(byte(ta.TypeRef.Index))
	case sort == RefClassExtends || sort == RefThrows:
		buf.putU16(ta.TypeRef.Index)
	case sort == RefClassTypeParameterBound || sort == RefMethodTypeParameterBound:
		buf.putU8(byte(ta.TypeRef.Index >> 8))
		buf.putU8(byte(ta.TypeRef.Index))
	case sort == RefField || sort == RefMethodReturn || sort == RefMethodReceiver:
		// no operand
	case sort == RefMethodFormalParameter:
		buf.putU8(byte(ta.TypeRef.Index))
	case sort == RefLocalVariable || sort == RefResourceVariable:
		// The reader never resolves individual localvar_target entries
		// against the code (it only counts them), so LocalVars carries no
		// recoverable Start/End/Index; emit zeroed entries of the right
		// count to keep the attribute's shape round-trippable.
		buf.putU16(len(ta.LocalVars))
		for range ta.LocalVars {
			buf.putU16(0)
			buf.putU16(0)
			buf.putU16(0)
		}
	case sort == RefExceptionParameter:
		buf.putU8(byte(ta.TypeRef.Index))
	case sort >= RefInstanceof && sort <= RefMethodReference:
		buf.putU16(ta.TypeRef.Index)
	case sort == RefCast:
		buf.putU8(byte(ta.TypeRef.Index >> 8))
		buf.putU8(byte(ta.TypeRef.Index))
	case sort >= RefConstructorInvocationTypeArg && sort <= RefMethodReferenceTypeArg:
		buf.putU16(0)
		buf.putU8(byte(ta.TypeRef.Index))
	default:
		return wrapErr(KindOutOfRange, ErrStructuralParse, "type_annotation", "unknown target sort 0x%02X", sort)
	}

	if ta.TypePath == nil {
		buf.putU8(0)
	} else {
		buf.putU8(byte(len(ta.TypePath.Steps)))
		for _, step := range ta.TypePath.Steps {
			buf.putU8(byte(step.Kind))
			buf.putU8(byte(step.ArgIndex))
		}
	}

	return writeAnnotation(buf, pool, Annotation{Descriptor: ta.Descriptor, Values: ta.Values})
}

// writeField serializes one field_info into buf.
func writeField(buf *byteBuffer, pool *poolWriter, f *FieldNode) error {
	nameIdx, err := pool.putUtf8(f.Name)
	if err != nil {
		return err
	}
	descIdx, err := pool.putUtf8(f.Descriptor)
	if err != nil {
		return err
	}
	buf.putU16(f.Access)
	buf.putU16(nameIdx)
	buf.putU16(descIdx)

	var attrs byteBuffer
	count := 0
	if f.Value != nil {
		idx, err := putLoadableValue(pool, f.Value)
		if err != nil {
			return err
		}
		var body byteBuffer
		body.putU16(idx)
		if err := writeAttr(&attrs, pool, "ConstantValue", body.buf); err != nil {
			return err
		}
		count++
	}
	if f.Signature != "" {
		if err := writeUtf8Attr(&attrs, pool, "Signature", f.Signature); err != nil {
			return err
		}
		count++
	}
	if n, err := writeAnnotationAttrs(&attrs, pool, f.VisibleAnnotations, f.InvisibleAnnotations); err != nil {
		return err
	} else {
		count += n
	}
	if n, err := writeTypeAnnotationAttrs(&attrs, pool, f.TypeAnnotations); err != nil {
		return err
	} else {
		count += n
	}
	for _, a := range f.Attributes {
		if err := writeAttr(&attrs, pool, a.Name, a.Data); err != nil {
			return err
		}
		count++
	}

	buf.putU16(count)
	buf.putBytes(attrs.buf)
	return nil
}

// putLoadableValue interns a ConstantValue/element_value primitive
// (the counterpart of ConstantPool.GetLoadableValue) and returns its
// pool index.
func putLoadableValue(pool *poolWriter, v interface{}) (int, error) {
	switch val := v.(type) {
	case int32:
		return pool.putInteger(val)
	case int:
		return pool.putInteger(int32(val))
	case int64:
		return pool.putLong(val)
	case float32:
		return pool.putFloat(val)
	case float64:
		return pool.putDouble(val)
	case string:
		return pool.putString(val)
	default:
		return 0, wrapErr(KindWrongTag, ErrStructuralParse, "ConstantValue", "unsupported constant value type %T", v)
	}
}

// writeMethod serializes one method_info, including its Code attribute
// when present, into buf.
func writeMethod(buf *byteBuffer, pool *poolWriter, m *MethodNode) error {
	nameIdx, err := pool.putUtf8(m.Name)
	if err != nil {
		return err
	}
	descIdx, err := pool.putUtf8(m.Descriptor)
	if err != nil {
		return err
	}
	buf.putU16(m.Access)
	buf.putU16(nameIdx)
	buf.putU16(descIdx)

	var attrs byteBuffer
	count := 0

	if m.Signature != "" {
		if err := writeUtf8Attr(&attrs, pool, "Signature", m.Signature); err != nil {
			return err
		}
		count++
	}
	if len(m.Exceptions) > 0 {
		var body byteBuffer
		body.putU16(len(m.Exceptions))
		for _, e := range m.Exceptions {
			idx, err := pool.putClass(e)
			if err != nil {
				return err
			}
			body.putU16(idx)
		}
		if err := writeAttr(&attrs, pool, "Exceptions", body.buf); err != nil {
			return err
		}
		count++
	}
	if len(m.Parameters) > 0 {
		var body byteBuffer
		body.putU8(byte(len(m.Parameters)))
		for _, p := range m.Parameters {
			nameIdx := 0
			if p.Name != "" {
				nameIdx, err = pool.putUtf8(p.Name)
				if err != nil {
					return err
				}
			}
			body.putU16(nameIdx)
			body.putU16(p.Access)
		}
		if err := writeAttr(&attrs, pool, "MethodParameters", body.buf); err != nil {
			return err
		}
		count++
	}
	if m.AnnotationDefault != nil {
		var body byteBuffer
		if err := writeElementValue(&body, pool, m.AnnotationDefault.Value); err != nil {
			return err
		}
		if err := writeAttr(&attrs, pool, "AnnotationDefault", body.buf); err != nil {
			return err
		}
		count++
	}
	if n, err := writeAnnotationAttrs(&attrs, pool, m.VisibleAnnotations, m.InvisibleAnnotations); err != nil {
		return err
	} else {
		count += n
	}
	if len(m.ParameterAnnotations) > 0 {
		if n, err := writeParameterAnnotationAttrs(&attrs, pool, m.ParameterAnnotations); err != nil {
			return err
		} else {
			count += n
		}
	}
	if n, err := writeTypeAnnotationAttrs(&attrs, pool, m.TypeAnnotations); err != nil {
		return err
	} else {
		count += n
	}
	for _, a := range m.Attributes {
		if err := writeAttr(&attrs, pool, a.Name, a.Data); err != nil {
			return err
		}
		count++
	}
	if m.Code != nil {
		body, err := writeCodeAttrBody(pool, m.Code)
		if err != nil {
			return err
		}
		if err := writeAttr(&attrs, pool, "Code", body); err != nil {
			return err
		}
		count++
	}

	buf.putU16(count)
	buf.putBytes(attrs.buf)
	return nil
}

func writeParameterAnnotationAttrs(buf *byteBuffer, pool *poolWriter, pas []ParameterAnnotations) (int, error) {
	n := 0
	hasVisible, hasInvisible := false, false
	for _, pa := range pas {
		if len(pa.Visible) > 0 {
			hasVisible = true
		}
		if len(pa.Invisible) > 0 {
			hasInvisible = true
		}
	}
	if hasVisible {
		var body byteBuffer
		body.putU8(byte(len(pas)))
		for _, pa := range pas {
			if err := writeAnnotationListInto(&body, pool, pa.Visible); err != nil {
				return 0, err
			}
		}
		if err := writeAttr(buf, pool, "RuntimeVisibleParameterAnnotations", body.buf); err != nil {
			return 0, err
		}
		n++
	}
	if hasInvisible {
		var body byteBuffer
		body.putU8(byte(len(pas)))
		for _, pa := range pas {
			if err := writeAnnotationListInto(&body, pool, pa.Invisible); err != nil {
				return 0, err
			}
		}
		if err := writeAttr(buf, pool, "RuntimeInvisibleParameterAnnotations", body.buf); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func writeAnnotationListInto(buf *byteBuffer, pool *poolWriter, anns []Annotation) error {
	buf.putU16(len(anns))
	for _, a := range anns {
		if err := writeAnnotation(buf, pool, a); err != nil {
			return err
		}
	}
	return nil
}

// writeCodeAttrBody serializes a CodeNode's Code attribute body,
// promoting branch instructions to their wide form as needed (branch.go)
// before emitting the final byte layout.
func writeCodeAttrBody(pool *poolWriter, code *CodeNode) ([]byte, error) {
	layout, err := layoutCode(code.Instructions)
	if err != nil {
		return nil, err
	}

	var real []Instruction
	for _, insn := range code.Instructions {
		if insn.Label == nil {
			real = append(real, insn)
			continue
		}
		// Resolve every label against the final layout so downstream
		// TryCatchBlock/LocalVariable/LineNumber entries can call Offset().
		insn.Label.resolve(layout.labelOffset[insn.Label])
	}

	var codeBuf byteBuffer
	type framePoint struct {
		offset int
		frame  StackMapFrame
	}
	var frames []framePoint
	for i, insn := range real {
		if insn.Frame != nil {
			frames = append(frames, framePoint{offset: layout.positions[i], frame: *insn.Frame})
		}
		if err := encodeInstruction(&codeBuf, insn, layout, i, pool); err != nil {
			return nil, err
		}
	}
	if codeBuf.len() != layout.length {
		return nil, wrapErr(KindCodeTooLarge, ErrStructuralParse, "Code", "layout mismatch: computed %d, emitted %d", layout.length, codeBuf.len())
	}

	var body byteBuffer
	body.putU16(code.MaxStack)
	body.putU16(code.MaxLocals)
	body.putU32(uint32(codeBuf.len()))
	body.putBytes(codeBuf.buf)

	body.putU16(len(code.TryCatchBlocks))
	for _, tc := range code.TryCatchBlocks {
		start, _ := tc.Start.Offset()
		end, _ := tc.End.Offset()
		handler, _ := tc.Handler.Offset()
		ctIdx := 0
		if tc.CatchType != "" {
			var err error
			ctIdx, err = pool.putClass(tc.CatchType)
			if err != nil {
				return nil, err
			}
		}
		body.putU16(start)
		body.putU16(end)
		body.putU16(handler)
		body.putU16(ctIdx)
	}

	var codeAttrs byteBuffer
	codeAttrCount := 0

	if len(code.LineNumbers) > 0 {
		var b byteBuffer
		b.putU16(len(code.LineNumbers))
		for _, ln := range code.LineNumbers {
			start, _ := ln.Start.Offset()
			b.putU16(start)
			b.putU16(ln.Line)
		}
		if err := writeAttr(&codeAttrs, pool, "LineNumberTable", b.buf); err != nil {
			return nil, err
		}
		codeAttrCount++
	}

	if len(code.LocalVariables) > 0 {
		var lvt, lvtt byteBuffer
		lvtCount, lvttCount := 0, 0
		for _, lv := range code.LocalVariables {
			start, _ := lv.Start.Offset()
			end, _ := lv.End.Offset()
			nameIdx, err := pool.putUtf8(lv.Name)
			if err != nil {
				return nil, err
			}
			descIdx, err := pool.putUtf8(lv.Descriptor)
			if err != nil {
				return nil, err
			}
			lvt.putU16(start)
			lvt.putU16(end - start)
			lvt.putU16(nameIdx)
			lvt.putU16(descIdx)
			lvt.putU16(lv.Index)
			lvtCount++
			if lv.Signature != "" {
				sigIdx, err := pool.putUtf8(lv.Signature)
				if err != nil {
					return nil, err
				}
				lvtt.putU16(start)
				lvtt.putU16(end - start)
				lvtt.putU16(nameIdx)
				lvtt.putU16(sigIdx)
				lvtt.putU16(lv.Index)
				lvttCount++
			}
		}
		var lvtBody byteBuffer
		lvtBody.putU16(lvtCount)
		lvtBody.putBytes(lvt.buf)
		if err := writeAttr(&codeAttrs, pool, "LocalVariableTable", lvtBody.buf); err != nil {
			return nil, err
		}
		codeAttrCount++
		if lvttCount > 0 {
			var lvttBody byteBuffer
			lvttBody.putU16(lvttCount)
			lvttBody.putBytes(lvtt.buf)
			if err := writeAttr(&codeAttrs, pool, "LocalVariableTypeTable", lvttBody.buf); err != nil {
				return nil, err
			}
			codeAttrCount++
		}
	}

	if len(frames) > 0 {
		var smt byteBuffer
		smt.putU16(len(frames))
		prevOffset := -1
		for _, fp := range frames {
			delta := fp.offset
			if prevOffset != -1 {
				delta = fp.offset - prevOffset - 1
			}
			prevOffset = fp.offset
			resolveNew := func(l *Label) (int, error) {
				if off, ok := layout.labelOffset[l]; ok {
					return off, nil
				}
				if off, ok := l.Offset(); ok {
					return off, nil
				}
				return 0, wrapErr(KindOutOfRange, ErrStructuralParse, "StackMapTable", "unresolved NEW target")
			}
			if err := encodeFullFrame(&smt, delta, fp.frame, pool, resolveNew); err != nil {
				return nil, err
			}
		}
		if err := writeAttr(&codeAttrs, pool, "StackMapTable", smt.buf); err != nil {
			return nil, err
		}
		codeAttrCount++
	}

	for _, a := range code.codeAttrsPassthrough() {
		if err := writeAttr(&codeAttrs, pool, a.Name, a.Data); err != nil {
			return nil, err
		}
		codeAttrCount++
	}

	body.putU16(codeAttrCount)
	body.putBytes(codeAttrs.buf)
	return body.buf, nil
}

// codeAttrsPassthrough is always empty: CodeNode has no field for
// opaque code-level attributes (the reader folds every known one into
// LineNumberTable/LocalVariableTable/StackMapTable and hands an
// unrecognized code attribute to MethodVisitor.VisitAttribute, so a
// MethodNode stores it among its method-level Attributes). Kept as a named hook
// so a future opaque-attribute field on CodeNode only needs to change
// one place.
func (c *CodeNode) codeAttrsPassthrough() []Attribute { return nil }

// encodeInstruction is the structural inverse of decodeOneInstruction,
// using layout to resolve branch/switch targets and to decide whether
// a GOTO/JSR needs its _W form.
func encodeInstruction(out *byteBuffer, insn Instruction, layout *codeLayout, idx int, pool *poolWriter) error {
	switch insn.Op {
	case opcodes.BIPUSH:
		out.putU8(byte(insn.Op))
		out.putU8(byte(int8(insn.IntOperand)))
	case opcodes.NEWARRAY:
		out.putU8(byte(insn.Op))
		out.putU8(byte(insn.IntOperand))
	case opcodes.SIPUSH:
		out.putU8(byte(insn.Op))
		out.putU16(int(int16(insn.IntOperand)))

	case opcodes.LDC, opcodes.LDC_W, opcodes.LDC2_W:
		poolIdx, err := putLoadable(pool, *insn.Loadable)
		if err != nil {
			return err
		}
		out.putU8(byte(insn.Op))
		if insn.Op == opcodes.LDC {
			if poolIdx > 255 {
				return wrapErr(KindOutOfRange, ErrStructuralParse, "Code", "ldc operand index %d needs ldc_w", poolIdx)
			}
			out.putU8(byte(poolIdx))
		} else {
			out.putU16(poolIdx)
		}

	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE, opcodes.RET:
		if insn.Var > 255 {
			out.putU8(opcodes.WIDE)
			out.putU8(byte(insn.Op))
			out.putU16(insn.Var)
		} else {
			out.putU8(byte(insn.Op))
			out.putU8(byte(insn.Var))
		}

	case opcodes.IINC:
		if insn.Var > 255 || insn.IncAmount < -128 || insn.IncAmount > 127 {
			out.putU8(opcodes.WIDE)
			out.putU8(opcodes.IINC)
			out.putU16(insn.Var)
			out.putU16(int(int16(insn.IncAmount)))
		} else {
			out.putU8(opcodes.IINC)
			out.putU8(byte(insn.Var))
			out.putU8(byte(int8(insn.IncAmount)))
		}

	case opcodes.GOTO, opcodes.JSR:
		target := layout.labelOffset[insn.Target]
		if layout.wide[idx] {
			op := opcodes.GOTO_W
			if insn.Op == opcodes.JSR {
				op = opcodes.JSR_W
			}
			out.putU8(byte(op))
			out.putU32(uint32(int32(target - layout.positions[idx])))
		} else {
			out.putU8(byte(insn.Op))
			out.putU16(int(int16(target - layout.positions[idx])))
		}

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE,
		opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE, opcodes.IF_ICMPGT, opcodes.IF_ICMPLE,
		opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE, opcodes.IFNULL, opcodes.IFNONNULL:
		target := layout.labelOffset[insn.Target]
		out.putU8(byte(insn.Op))
		out.putU16(int(int16(target - layout.positions[idx])))

	case opcodes.TABLESWITCH:
		out.putU8(opcodes.TABLESWITCH)
		pos := layout.positions[idx]
		pad := (4 - (pos+1)%4) % 4
		for i := 0; i < pad; i++ {
			out.putU8(0)
		}
		out.putU32(uint32(int32(layout.labelOffset[insn.Default] - pos)))
		out.putU32(uint32(insn.Low))
		out.putU32(uint32(insn.High))
		for _, t := range insn.SwitchTargets {
			out.putU32(uint32(int32(layout.labelOffset[t] - pos)))
		}

	case opcodes.LOOKUPSWITCH:
		out.putU8(opcodes.LOOKUPSWITCH)
		pos := layout.positions[idx]
		pad := (4 - (pos+1)%4) % 4
		for i := 0; i < pad; i++ {
			out.putU8(0)
		}
		out.putU32(uint32(int32(layout.labelOffset[insn.Default] - pos)))
		out.putU32(uint32(len(insn.LookupKeys)))
		for i, k := range insn.LookupKeys {
			out.putU32(uint32(k))
			out.putU32(uint32(int32(layout.labelOffset[insn.LookupTargets[i]] - pos)))
		}

	case opcodes.GETSTATIC, opcodes.PUTSTATIC, opcodes.GETFIELD, opcodes.PUTFIELD:
		refIdx, err := pool.putFieldRef(insn.Owner, insn.Name, insn.Descriptor)
		if err != nil {
			return err
		}
		out.putU8(byte(insn.Op))
		out.putU16(refIdx)

	case opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC:
		refIdx, err := pool.putMethodRef(insn.Owner, insn.Name, insn.Descriptor, insn.IsInterface)
		if err != nil {
			return err
		}
		out.putU8(byte(insn.Op))
		out.putU16(refIdx)

	case opcodes.INVOKEINTERFACE:
		refIdx, err := pool.putMethodRef(insn.Owner, insn.Name, insn.Descriptor, true)
		if err != nil {
			return err
		}
		argCount := countArgSlots(insn.Descriptor)
		out.putU8(byte(insn.Op))
		out.putU16(refIdx)
		out.putU8(byte(argCount))
		out.putU8(0)

	case opcodes.INVOKEDYNAMIC:
		argIdx := make([]int, len(insn.BootstrapArgs))
		for i, a := range insn.BootstrapArgs {
			vi, err := putLoadable(pool, a)
			if err != nil {
				return err
			}
			argIdx[i] = vi
		}
		bsmIdx, err := pool.putBootstrapMethod(insn.BootstrapHandle, argIdx)
		if err != nil {
			return err
		}
		dynIdx, err := pool.putDynamic(symbol.ConstantInvokeDynamicTag, insn.Name, insn.Descriptor, bsmIdx)
		if err != nil {
			return err
		}
		out.putU8(opcodes.INVOKEDYNAMIC)
		out.putU16(dynIdx)
		out.putU16(0)

	case opcodes.NEW, opcodes.ANEWARRAY, opcodes.CHECKCAST, opcodes.INSTANCEOF:
		classIdx, err := pool.putClass(insn.TypeName)
		if err != nil {
			return err
		}
		out.putU8(byte(insn.Op))
		out.putU16(classIdx)

	case opcodes.MULTIANEWARRAY:
		classIdx, err := pool.putClass(insn.TypeName)
		if err != nil {
			return err
		}
		out.putU8(opcodes.MULTIANEWARRAY)
		out.putU16(classIdx)
		out.putU8(byte(insn.Dimensions))

	default:
		out.putU8(byte(insn.Op))
	}
	return nil
}

// putLoadable interns a Loadable value as a constant-pool entry,
// returning its index, for use by LDC/LDC_W/LDC2_W and invokedynamic
// bootstrap arguments.
func putLoadable(pool *poolWriter, l Loadable) (int, error) {
	switch l.Sort {
	case LoadableInt:
		return pool.putInteger(l.Int)
	case LoadableFloat:
		return pool.putFloat(l.Float)
	case LoadableLong:
		return pool.putLong(l.Long)
	case LoadableDouble:
		return pool.putDouble(l.Double)
	case LoadableString:
		return pool.putString(l.String)
	case LoadableClass:
		return pool.putClass(l.ClassName)
	case LoadableMethodType:
		return pool.putMethodType(l.Method.Descriptor)
	case LoadableMethodHandle:
		return pool.putMethodHandle(l.Handle)
	case LoadableDynamic:
		// l.DynamicBSM is assumed to already index pool's bootstrap
		// methods table (populated by an invokedynamic sharing the same
		// handle elsewhere in the class); this module has no way to
		// mint a fresh bootstrap method from a bare Loadable value.
		return pool.putDynamic(symbol.ConstantDynamicTag, l.DynamicName, l.DynamicDesc, l.DynamicBSM)
	default:
		return 0, wrapErr(KindWrongTag, ErrStructuralParse, "Loadable", "unknown loadable sort %d", l.Sort)
	}
}

// countArgSlots computes the invokeinterface count operand (argument
// slot count including the receiver, per JVMS §6.5 invokeinterface).
func countArgSlots(methodDescriptor string) int {
	params, _, err := descriptor.Parameters(descriptor.MethodDescriptor(methodDescriptor))
	if err != nil {
		return 1
	}
	slots := 1 // this
	for _, p := range params {
		if p.Sort == descriptor.Long || p.Sort == descriptor.Double {
			slots += 2
		} else {
			slots++
		}
	}
	return slots
}
