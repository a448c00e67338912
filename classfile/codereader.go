package classfile

import "encoding/binary"

// readMethod decodes one method_info starting at off and drives cv's
// MethodVisitor callbacks for it, including its Code body when present.
func (r *ClassReader) readMethod(off int, ctx *parseContext, cv ClassVisitor) error {
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

	var signature string
	var exceptions []string
	var params []MethodParameter
	var annotationDefault *ElementValue
	var visible, invisible []Annotation
	var paramAnns []ParameterAnnotations
	var typeAnns []TypeAnnotation
	var others []Attribute
	var codeBody []byte
	hasCode := false

	for i := 0; i < attrCount; i++ {
		var aname string
		var body []byte
		aname, body, off, err = r.readAttributeHeader(off)
		if err != nil {
			return err
		}
		switch aname {
		case "Signature":
			signature, err = r.attrUtf8(body)
		case "Exceptions":
			exceptions, err = r.readExceptions(body)
		case "MethodParameters":
			params, err = r.readMethodParameters(body)
		case "AnnotationDefault":
			var ev interface{}
			ev, _, err = r.readElementValue(body, 0)
			if err == nil {
				annotationDefault = &ElementValue{Value: ev}
			}
		case "RuntimeVisibleAnnotations":
			visible, err = r.readAnnotations(body)
		case "RuntimeInvisibleAnnotations":
			invisible, err = r.readAnnotations(body)
		case "RuntimeVisibleParameterAnnotations":
			var pa []ParameterAnnotations
			pa, err = r.readParameterAnnotations(body, true)
			paramAnns = mergeParameterAnnotations(paramAnns, pa)
		case "RuntimeInvisibleParameterAnnotations":
			var pa []ParameterAnnotations
			pa, err = r.readParameterAnnotations(body, false)
			paramAnns = mergeParameterAnnotations(paramAnns, pa)
		case "RuntimeVisibleTypeAnnotations":
			var anns []TypeAnnotation
			anns, err = r.readTypeAnnotations(body, true)
			typeAnns = append(typeAnns, anns...)
		case "RuntimeInvisibleTypeAnnotations":
			var anns []TypeAnnotation
			anns, err = r.readTypeAnnotations(body, false)
			typeAnns = append(typeAnns, anns...)
		case "Code":
			codeBody = body
			hasCode = true
		case "Deprecated", "Synthetic":
		default:
			others = append(others, Attribute{Name: aname, Data: body})
		}
		if err != nil {
			return err
		}
	}

	mv, err := cv.VisitMethod(access, name, desc, signature, exceptions)
	if err != nil || mv == nil {
		return err
	}

	for _, p := range params {
		if err := mv.VisitParameter(p.Name, p.Access); err != nil {
			return err
		}
	}
	if annotationDefault != nil {
		av, err := mv.VisitAnnotationDefault()
		if err != nil {
			return err
		}
		if av != nil {
			if err := replayElementValue(av, "", *annotationDefault); err != nil {
				return err
			}
			if err := av.VisitEnd(); err != nil {
				return err
			}
		}
	}
	for _, a := range visible {
		av, err := mv.VisitAnnotation(a.Descriptor, true)
		if err != nil {
			return err
		}
		if av != nil {
			if err := replayAnnotationBody(av, a); err != nil {
				return err
			}
		}
	}
	for _, a := range invisible {
		av, err := mv.VisitAnnotation(a.Descriptor, false)
		if err != nil {
			return err
		}
		if av != nil {
			if err := replayAnnotationBody(av, a); err != nil {
				return err
			}
		}
	}
	for i, pa := range paramAnns {
		for _, a := range pa.Visible {
			if err := replayAnnotation(mv.VisitParameterAnnotation, i, a, true); err != nil {
				return err
			}
		}
		for _, a := range pa.Invisible {
			if err := replayAnnotation(mv.VisitParameterAnnotation, i, a, false); err != nil {
				return err
			}
		}
	}
	for _, ta := range typeAnns {
		if err := mv.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, a := range others {
		if err := mv.VisitAttribute(a); err != nil {
			return err
		}
	}

	if hasCode {
		if err := r.readCode(codeBody, ctx, mv); err != nil {
			return err
		}
	}

	return mv.VisitEnd()
}

func mergeParameterAnnotations(dst, src []ParameterAnnotations) []ParameterAnnotations {
	for len(dst) < len(src) {
		dst = append(dst, ParameterAnnotations{})
	}
	for i, pa := range src {
		dst[i].Visible = append(dst[i].Visible, pa.Visible...)
		dst[i].Invisible = append(dst[i].Invisible, pa.Invisible...)
	}
	return dst
}

func (r *ClassReader) readExceptions(body []byte) ([]string, error) {
	n, off, err := readU16(body, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < int(n); i++ {
		idx, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, err
		}
		off = off2
		out[i], err = r.className(int(idx))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ClassReader) readMethodParameters(body []byte) ([]MethodParameter, error) {
	if len(body) < 1 {
		return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "MethodParameters", "truncated count")
	}
	n := int(body[0])
	off := 1
	out := make([]MethodParameter, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(body) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "MethodParameters", "truncated entry %d", i)
		}
		nameIdx := int(binary.BigEndian.Uint16(body[off:]))
		access := int(binary.BigEndian.Uint16(body[off+2:]))
		off += 4
		var name string
		var err error
		if nameIdx != 0 {
			name, err = r.pool.GetUtf8(nameIdx)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, MethodParameter{Name: name, Access: access})
	}
	return out, nil
}

func (r *ClassReader) readParameterAnnotations(body []byte, visible bool) ([]ParameterAnnotations, error) {
	if len(body) < 1 {
		return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "ParameterAnnotations", "truncated count")
	}
	numParams := int(body[0])
	off := 1
	out := make([]ParameterAnnotations, numParams)
	for p := 0; p < numParams; p++ {
		n, off2, err := readU16(body, off, 0)
		if err != nil {
			return nil, err
		}
		off = off2
		for i := 0; i < int(n); i++ {
			var a Annotation
			a, off, err = r.readAnnotation(body, off)
			if err != nil {
				return nil, err
			}
			if visible {
				out[p].Visible = append(out[p].Visible, a)
			} else {
				out[p].Invisible = append(out[p].Invisible, a)
			}
		}
	}
	return out, nil
}

const maxCodeLength = 1 << 16

// readCode decodes a Code attribute body and drives mv's bytecode
// callbacks. It runs the decoder twice over the instruction array (spec
// §4.5): the first pass establishes every label a branch, exception
// handler, stack-map frame, or debug table entry refers to; the second
// replays the instructions, emitting a VisitLabel just before any
// instruction a label targets.
func (r *ClassReader) readCode(body []byte, ctx *parseContext, mv MethodVisitor) error {
	if len(body) < 8 {
		return wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated header")
	}
	maxStack := int(binary.BigEndian.Uint16(body[0:]))
	maxLocals := int(binary.BigEndian.Uint16(body[2:]))
	codeLength := int(binary.BigEndian.Uint32(body[4:]))
	if codeLength == 0 || codeLength >= maxCodeLength {
		return wrapErr(KindCodeTooLarge, ErrStructuralParse, "Code", "code_length %d out of range", codeLength)
	}
	off := 8
	if off+codeLength > len(body) {
		return wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated code array")
	}
	code := body[off : off+codeLength]
	off += codeLength

	exCount := int(binary.BigEndian.Uint16(body[off:]))
	off += 2
	type rawExc struct{ start, end, handler, catchType int }
	excs := make([]rawExc, exCount)
	for i := 0; i < exCount; i++ {
		if off+8 > len(body) {
			return wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated exception_table")
		}
		excs[i] = rawExc{
			start:     int(binary.BigEndian.Uint16(body[off:])),
			end:       int(binary.BigEndian.Uint16(body[off+2:])),
			handler:   int(binary.BigEndian.Uint16(body[off+4:])),
			catchType: int(binary.BigEndian.Uint16(body[off+6:])),
		}
		off += 8
	}

	attrCount := int(binary.BigEndian.Uint16(body[off:]))
	off += 2

	var lineNumbers []struct{ start, line int }
	var localVars []struct {
		start, end, index      int
		name, desc, sig        string
		isTypeTable            bool
	}
	var frames []frameEntry
	var codeAttrs []Attribute
	sawStackMap := false

	for i := 0; i < attrCount; i++ {
		nameIdx := int(binary.BigEndian.Uint16(body[off:]))
		length := int(binary.BigEndian.Uint32(body[off+2:]))
		attrName, err := r.pool.GetUtf8(nameIdx)
		if err != nil {
			return err
		}
		bodyStart := off + 6
		if bodyStart+length > len(body) {
			return wrapErr(KindMalformedPool, ErrStructuralParse, attrName, "code attribute body exceeds bounds")
		}
		attrBody := body[bodyStart : bodyStart+length]
		off = bodyStart + length

		switch attrName {
		case "LineNumberTable":
			n, o, err := readU16(attrBody, 0, 0)
			if err != nil {
				return err
			}
			for i := 0; i < int(n); i++ {
				if o+4 > len(attrBody) {
					return wrapErr(KindMalformedPool, ErrStructuralParse, "LineNumberTable", "truncated")
				}
				start := int(binary.BigEndian.Uint16(attrBody[o:]))
				line := int(binary.BigEndian.Uint16(attrBody[o+2:]))
				o += 4
				lineNumbers = append(lineNumbers, struct{ start, line int }{start, line})
			}
		case "LocalVariableTable", "LocalVariableTypeTable":
			n, o, err := readU16(attrBody, 0, 0)
			if err != nil {
				return err
			}
			for i := 0; i < int(n); i++ {
				if o+10 > len(attrBody) {
					return wrapErr(KindMalformedPool, ErrStructuralParse, attrName, "truncated entry")
				}
				start := int(binary.BigEndian.Uint16(attrBody[o:]))
				length := int(binary.BigEndian.Uint16(attrBody[o+2:]))
				nameIdx := int(binary.BigEndian.Uint16(attrBody[o+4:]))
				descIdx := int(binary.BigEndian.Uint16(attrBody[o+6:]))
				index := int(binary.BigEndian.Uint16(attrBody[o+8:]))
				o += 10
				name, err := r.pool.GetUtf8(nameIdx)
				if err != nil {
					return err
				}
				desc, err := r.pool.GetUtf8(descIdx)
				if err != nil {
					return err
				}
				localVars = append(localVars, struct {
					start, end, index int
					name, desc, sig   string
					isTypeTable       bool
				}{start, start + length, index, name, desc, "", attrName == "LocalVariableTypeTable"})
			}
		case "StackMapTable", "StackMap":
			// spec §9 Open Question: either attribute name is accepted
			// for a method's stack map, but a second occurrence of
			// *either* name on the same method is a DuplicateAttribute.
			if sawStackMap {
				return wrapErr(KindDuplicateAttribute, ErrAttributeSemantic, attrName, "a Code attribute may carry at most one stack map")
			}
			sawStackMap = true
			fs, err := decodeStackMapTable(attrBody, codeLength)
			if err != nil {
				return err
			}
			frames = fs
		default:
			codeAttrs = append(codeAttrs, Attribute{Name: attrName, Data: attrBody})
		}
	}

	labels := newLabelTable()
	for _, e := range excs {
		labels.markReal(e.start)
		labels.markReal(e.end)
		labels.markReal(e.handler)
	}
	for _, ln := range lineNumbers {
		labels.markReal(ln.start)
	}
	for _, lv := range localVars {
		labels.markReal(lv.start)
		labels.markReal(lv.end)
	}
	for _, fr := range frames {
		labels.markReal(fr.offset)
		for _, vt := range fr.frame.Locals {
			if vt.Tag == 8 { // ITEM_UNINITIALIZED
				labels.markDebugOnly(int(vt.Raw))
			}
		}
		for _, vt := range fr.frame.Stack {
			if vt.Tag == 8 {
				labels.markDebugOnly(int(vt.Raw))
			}
		}
	}

	// Pass 1: scan branch/switch targets to populate the label table
	// before any instruction referencing them forward has been decoded.
	pos := 0
	for pos < len(code) {
		ri, length, err := decodeOneInstruction(code, pos, r.pool)
		if err != nil {
			return err
		}
		if ri.hasTarget {
			labels.markReal(ri.targetOffset)
		}
		for _, t := range ri.switchTargets {
			labels.markReal(t)
		}
		for _, t := range ri.lookupTargets {
			labels.markReal(t)
		}
		if ri.hasDefault {
			labels.markReal(ri.defaultTarget)
		}
		pos += length
	}

	ctx.labels = labels

	if err := mv.VisitCode(); err != nil {
		return err
	}

	// Interleave frames (by offset) with the instruction stream during
	// pass 2.
	frameIdx := 0

	pos = 0
	for pos < len(code) {
		if lbl, ok := labels.byOffset[pos]; ok {
			lbl.resolve(pos)
			if err := mv.VisitLabel(lbl); err != nil {
				return err
			}
		}
		for frameIdx < len(frames) && frames[frameIdx].offset == pos {
			f := frames[frameIdx]
			resolved, err := r.resolveFrame(f.frame, labels)
			if err != nil {
				return err
			}
			if err := mv.VisitFrame(resolved); err != nil {
				return err
			}
			frameIdx++
		}

		ri, length, err := decodeOneInstruction(code, pos, r.pool)
		if err != nil {
			return err
		}
		insn, err := ri.toInstruction(labels)
		if err != nil {
			return err
		}
		if err := mv.VisitInsn(insn); err != nil {
			return err
		}
		pos += length
	}
	if lbl, ok := labels.byOffset[len(code)]; ok {
		lbl.resolve(len(code))
		if err := mv.VisitLabel(lbl); err != nil {
			return err
		}
	}

	for _, e := range excs {
		ct := ""
		if e.catchType != 0 {
			var err error
			ct, err = r.className(e.catchType)
			if err != nil {
				return err
			}
		}
		if err := mv.VisitTryCatchBlock(TryCatchBlock{
			Start:     labels.getOrCreate(e.start),
			End:       labels.getOrCreate(e.end),
			Handler:   labels.getOrCreate(e.handler),
			CatchType: ct,
		}); err != nil {
			return err
		}
	}

	for _, lv := range localVars {
		if lv.isTypeTable {
			continue // folded into the matching LocalVariableTable entry below
		}
		entry := LocalVariableEntry{
			Name: lv.name, Descriptor: lv.desc,
			Start: labels.getOrCreate(lv.start), End: labels.getOrCreate(lv.end),
			Index: lv.index,
		}
		for _, other := range localVars {
			if other.isTypeTable && other.index == lv.index && other.start == lv.start && other.name == lv.name {
				entry.Signature = other.desc
			}
		}
		if err := mv.VisitLocalVariable(entry); err != nil {
			return err
		}
	}

	for _, ln := range lineNumbers {
		if err := mv.VisitLineNumber(LineNumberEntry{Start: labels.getOrCreate(ln.start), Line: ln.line}); err != nil {
			return err
		}
	}

	for _, a := range codeAttrs {
		if err := mv.VisitAttribute(a); err != nil {
			return err
		}
	}

	if err := mv.VisitMaxs(maxStack, maxLocals); err != nil {
		return err
	}
	ctx.labels = nil
	return nil
}

func (r *ClassReader) resolveFrame(raw rawStackMapFrame, labels *labelTable) (StackMapFrame, error) {
	locals, err := r.resolveVerificationTypes(raw.Locals, labels)
	if err != nil {
		return StackMapFrame{}, err
	}
	stack, err := r.resolveVerificationTypes(raw.Stack, labels)
	if err != nil {
		return StackMapFrame{}, err
	}
	return StackMapFrame{Locals: locals, Stack: stack}, nil
}

func (r *ClassReader) resolveVerificationTypes(raw []rawVerificationType, labels *labelTable) ([]VerificationType, error) {
	out := make([]VerificationType, len(raw))
	for i, rv := range raw {
		vt := VerificationType{Tag: rv.Tag}
		switch rv.Tag {
		case 7: // ITEM_OBJECT
			name, err := r.pool.GetClass(int(rv.Raw))
			if err != nil {
				return nil, err
			}
			vt.ClassName = name
		case 8: // ITEM_UNINITIALIZED
			vt.NewTarget = labels.getOrCreate(int(rv.Raw))
		}
		out[i] = vt
	}
	return out, nil
}
