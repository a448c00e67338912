package classfile

// ClassNode is an in-memory, fully materialized class: a ClassVisitor
// that records every callback into plain fields, and which can replay
// itself into another ClassVisitor via Accept. This is the tree
// representation spec §4.4 describes as "implemented as visitors too":
// building one is driving a ClassVisitor, and consuming one is nothing
// more than another visitor walk.
type ClassNode struct {
	Version    int
	Access     int
	Name       string
	Signature  string
	SuperName  string
	Interfaces []string

	Source, Debug string

	Module *ModuleNode

	OuterClass struct {
		Owner, Name, Descriptor string
		Present                 bool
	}

	VisibleAnnotations   []Annotation
	InvisibleAnnotations []Annotation
	TypeAnnotations      []TypeAnnotation
	Attributes           []Attribute

	InnerClasses []InnerClassEntry

	Fields  []*FieldNode
	Methods []*MethodNode
}

// InnerClassEntry is one InnerClasses attribute entry.
type InnerClassEntry struct {
	Name, OuterName, InnerName string
	Access                     int
}

// ModuleNode is an in-memory Module attribute, built by driving a
// ModuleVisitor.
type ModuleNode struct {
	Name, Version string
	Access        int

	MainClass string
	Packages  []string

	Requires []ModuleRequire
	Exports  []ModuleExportOpen
	Opens    []ModuleExportOpen
	Uses     []string
	Provides []ModuleProvide
}

type ModuleRequire struct {
	Module, Version string
	Access          int
}

type ModuleExportOpen struct {
	Package string
	Access  int
	Modules []string
}

type ModuleProvide struct {
	Service   string
	Providers []string
}

// FieldNode is an in-memory field.
type FieldNode struct {
	Access                int
	Name, Descriptor      string
	Signature             string
	Value                 interface{}

	VisibleAnnotations   []Annotation
	InvisibleAnnotations []Annotation
	TypeAnnotations      []TypeAnnotation
	Attributes           []Attribute
}

// MethodNode is an in-memory method, including its code body when
// present.
type MethodNode struct {
	Access                   int
	Name, Descriptor         string
	Signature                string
	Exceptions               []string
	Parameters               []MethodParameter

	AnnotationDefault    *ElementValue
	VisibleAnnotations   []Annotation
	InvisibleAnnotations []Annotation
	ParameterAnnotations []ParameterAnnotations
	TypeAnnotations      []TypeAnnotation
	Attributes           []Attribute

	Code *CodeNode

	pendingFrame *StackMapFrame
}

// MethodParameter is one MethodParameters attribute entry.
type MethodParameter struct {
	Name   string
	Access int
}

// CodeNode is an in-memory method body.
type CodeNode struct {
	MaxStack, MaxLocals int
	Instructions        []Instruction
	TryCatchBlocks      []TryCatchBlock
	LocalVariables      []LocalVariableEntry
	LineNumbers         []LineNumberEntry
}

// NewClassNode returns an empty ClassNode ready to be used as a
// ClassVisitor target.
func NewClassNode() *ClassNode { return &ClassNode{} }

func (c *ClassNode) Interests() Interest { return InterestAll }

func (c *ClassNode) Visit(version, access int, name, signature, superName string, interfaces []string) error {
	c.Version, c.Access, c.Name, c.Signature, c.SuperName = version, access, name, signature, superName
	c.Interfaces = interfaces
	return nil
}

func (c *ClassNode) VisitSource(source, debug string) error {
	c.Source, c.Debug = source, debug
	return nil
}

func (c *ClassNode) VisitModule(name string, access int, version string) (ModuleVisitor, error) {
	c.Module = &ModuleNode{Name: name, Access: access, Version: version}
	return c.Module, nil
}

func (c *ClassNode) VisitOuterClass(owner, name, descriptor string) error {
	c.OuterClass.Owner, c.OuterClass.Name, c.OuterClass.Descriptor = owner, name, descriptor
	c.OuterClass.Present = true
	return nil
}

func (c *ClassNode) VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error) {
	a := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	a.onDone = func(built Annotation) {
		if visible {
			c.VisibleAnnotations = append(c.VisibleAnnotations, built)
		} else {
			c.InvisibleAnnotations = append(c.InvisibleAnnotations, built)
		}
	}
	return a, nil
}

func (c *ClassNode) VisitTypeAnnotation(ann TypeAnnotation) error {
	c.TypeAnnotations = append(c.TypeAnnotations, ann)
	return nil
}

func (c *ClassNode) VisitAttribute(attr Attribute) error {
	c.Attributes = append(c.Attributes, attr)
	return nil
}

func (c *ClassNode) VisitInnerClass(name, outerName, innerName string, access int) error {
	c.InnerClasses = append(c.InnerClasses, InnerClassEntry{name, outerName, innerName, access})
	return nil
}

func (c *ClassNode) VisitField(access int, name, descriptor, signature string, value interface{}) (FieldVisitor, error) {
	f := &FieldNode{Access: access, Name: name, Descriptor: descriptor, Signature: signature, Value: value}
	c.Fields = append(c.Fields, f)
	return f, nil
}

func (c *ClassNode) VisitMethod(access int, name, descriptor, signature string, exceptions []string) (MethodVisitor, error) {
	m := &MethodNode{Access: access, Name: name, Descriptor: descriptor, Signature: signature, Exceptions: exceptions}
	c.Methods = append(c.Methods, m)
	return m, nil
}

func (c *ClassNode) VisitEnd() error { return nil }

// Accept replays the recorded class into v: header, source, module,
// outer class, annotations, type annotations, attributes, inner
// classes, then fields and methods (spec §4.4). The reader delivers the
// inner classes right after the outer class instead.
func (c *ClassNode) Accept(v ClassVisitor) error {
	if err := v.Visit(c.Version, c.Access, c.Name, c.Signature, c.SuperName, c.Interfaces); err != nil {
		return err
	}
	if c.Source != "" || c.Debug != "" {
		if err := v.VisitSource(c.Source, c.Debug); err != nil {
			return err
		}
	}
	if c.Module != nil {
		mv, err := v.VisitModule(c.Module.Name, c.Module.Access, c.Module.Version)
		if err != nil {
			return err
		}
		if mv != nil {
			if err := c.Module.Accept(mv); err != nil {
				return err
			}
		}
	}
	if c.OuterClass.Present {
		if err := v.VisitOuterClass(c.OuterClass.Owner, c.OuterClass.Name, c.OuterClass.Descriptor); err != nil {
			return err
		}
	}
	if err := acceptAnnotations(v.VisitAnnotation, c.VisibleAnnotations, c.InvisibleAnnotations); err != nil {
		return err
	}
	for _, ta := range c.TypeAnnotations {
		if err := v.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, a := range c.Attributes {
		if err := v.VisitAttribute(a); err != nil {
			return err
		}
	}
	for _, ic := range c.InnerClasses {
		if err := v.VisitInnerClass(ic.Name, ic.OuterName, ic.InnerName, ic.Access); err != nil {
			return err
		}
	}
	for _, f := range c.Fields {
		fv, err := v.VisitField(f.Access, f.Name, f.Descriptor, f.Signature, f.Value)
		if err != nil {
			return err
		}
		if fv != nil {
			if err := f.Accept(fv); err != nil {
				return err
			}
		}
	}
	for _, m := range c.Methods {
		mv, err := v.VisitMethod(m.Access, m.Name, m.Descriptor, m.Signature, m.Exceptions)
		if err != nil {
			return err
		}
		if mv != nil {
			if err := m.Accept(mv); err != nil {
				return err
			}
		}
	}
	return v.VisitEnd()
}

func (m *ModuleNode) VisitMainClass(mainClass string) error { m.MainClass = mainClass; return nil }
func (m *ModuleNode) VisitPackage(p string) error            { m.Packages = append(m.Packages, p); return nil }
func (m *ModuleNode) VisitRequire(module string, access int, version string) error {
	m.Requires = append(m.Requires, ModuleRequire{module, version, access})
	return nil
}
func (m *ModuleNode) VisitExport(p string, access int, modules []string) error {
	m.Exports = append(m.Exports, ModuleExportOpen{p, access, modules})
	return nil
}
func (m *ModuleNode) VisitOpen(p string, access int, modules []string) error {
	m.Opens = append(m.Opens, ModuleExportOpen{p, access, modules})
	return nil
}
func (m *ModuleNode) VisitUse(service string) error { m.Uses = append(m.Uses, service); return nil }
func (m *ModuleNode) VisitProvide(service string, providers []string) error {
	m.Provides = append(m.Provides, ModuleProvide{service, providers})
	return nil
}
func (m *ModuleNode) VisitEnd() error { return nil }

func (m *ModuleNode) Accept(v ModuleVisitor) error {
	if m.MainClass != "" {
		if err := v.VisitMainClass(m.MainClass); err != nil {
			return err
		}
	}
	for _, p := range m.Packages {
		if err := v.VisitPackage(p); err != nil {
			return err
		}
	}
	for _, r := range m.Requires {
		if err := v.VisitRequire(r.Module, r.Access, r.Version); err != nil {
			return err
		}
	}
	for _, e := range m.Exports {
		if err := v.VisitExport(e.Package, e.Access, e.Modules); err != nil {
			return err
		}
	}
	for _, o := range m.Opens {
		if err := v.VisitOpen(o.Package, o.Access, o.Modules); err != nil {
			return err
		}
	}
	for _, u := range m.Uses {
		if err := v.VisitUse(u); err != nil {
			return err
		}
	}
	for _, pr := range m.Provides {
		if err := v.VisitProvide(pr.Service, pr.Providers); err != nil {
			return err
		}
	}
	return v.VisitEnd()
}

func (f *FieldNode) Interests() Interest { return InterestAll }

func (f *FieldNode) VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error) {
	a := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	a.onDone = func(built Annotation) {
		if visible {
			f.VisibleAnnotations = append(f.VisibleAnnotations, built)
		} else {
			f.InvisibleAnnotations = append(f.InvisibleAnnotations, built)
		}
	}
	return a, nil
}

func (f *FieldNode) VisitTypeAnnotation(ann TypeAnnotation) error {
	f.TypeAnnotations = append(f.TypeAnnotations, ann)
	return nil
}

func (f *FieldNode) VisitAttribute(attr Attribute) error {
	f.Attributes = append(f.Attributes, attr)
	return nil
}

func (f *FieldNode) VisitEnd() error { return nil }

func (f *FieldNode) Accept(v FieldVisitor) error {
	if err := acceptAnnotations(v.VisitAnnotation, f.VisibleAnnotations, f.InvisibleAnnotations); err != nil {
		return err
	}
	for _, ta := range f.TypeAnnotations {
		if err := v.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, a := range f.Attributes {
		if err := v.VisitAttribute(a); err != nil {
			return err
		}
	}
	return v.VisitEnd()
}

func (m *MethodNode) Interests() Interest { return InterestAll }

func (m *MethodNode) VisitParameter(name string, access int) error {
	m.Parameters = append(m.Parameters, MethodParameter{name, access})
	return nil
}

func (m *MethodNode) VisitAnnotationDefault() (AnnotationVisitor, error) {
	a := &annotationDefaultNode{}
	a.onDone = func(ev ElementValue) { m.AnnotationDefault = &ev }
	return a, nil
}

func (m *MethodNode) VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error) {
	a := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	a.onDone = func(built Annotation) {
		if visible {
			m.VisibleAnnotations = append(m.VisibleAnnotations, built)
		} else {
			m.InvisibleAnnotations = append(m.InvisibleAnnotations, built)
		}
	}
	return a, nil
}

func (m *MethodNode) VisitParameterAnnotation(parameter int, descriptor string, visible bool) (AnnotationVisitor, error) {
	for len(m.ParameterAnnotations) <= parameter {
		m.ParameterAnnotations = append(m.ParameterAnnotations, ParameterAnnotations{})
	}
	a := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	a.onDone = func(built Annotation) {
		if visible {
			m.ParameterAnnotations[parameter].Visible = append(m.ParameterAnnotations[parameter].Visible, built)
		} else {
			m.ParameterAnnotations[parameter].Invisible = append(m.ParameterAnnotations[parameter].Invisible, built)
		}
	}
	return a, nil
}

func (m *MethodNode) VisitTypeAnnotation(ann TypeAnnotation) error {
	m.TypeAnnotations = append(m.TypeAnnotations, ann)
	return nil
}

func (m *MethodNode) VisitAttribute(attr Attribute) error {
	m.Attributes = append(m.Attributes, attr)
	return nil
}

func (m *MethodNode) VisitCode() error {
	if m.Code == nil {
		m.Code = &CodeNode{}
	}
	return nil
}

func (m *MethodNode) VisitFrame(frame StackMapFrame) error {
	f := frame
	m.pendingFrame = &f
	return nil
}

func (m *MethodNode) VisitInsn(insn Instruction) error {
	insn.Frame = m.pendingFrame
	m.pendingFrame = nil
	m.Code.Instructions = append(m.Code.Instructions, insn)
	return nil
}

func (m *MethodNode) VisitLabel(label *Label) error {
	m.Code.Instructions = append(m.Code.Instructions, Instruction{Label: label, Frame: m.pendingFrame})
	m.pendingFrame = nil
	return nil
}

func (m *MethodNode) VisitTryCatchBlock(block TryCatchBlock) error {
	m.Code.TryCatchBlocks = append(m.Code.TryCatchBlocks, block)
	return nil
}

func (m *MethodNode) VisitLocalVariable(entry LocalVariableEntry) error {
	m.Code.LocalVariables = append(m.Code.LocalVariables, entry)
	return nil
}

func (m *MethodNode) VisitLineNumber(entry LineNumberEntry) error {
	m.Code.LineNumbers = append(m.Code.LineNumbers, entry)
	return nil
}

func (m *MethodNode) VisitMaxs(maxStack, maxLocals int) error {
	m.Code.MaxStack, m.Code.MaxLocals = maxStack, maxLocals
	return nil
}

func (m *MethodNode) VisitEnd() error { return nil }

func (m *MethodNode) Accept(v MethodVisitor) error {
	for _, p := range m.Parameters {
		if err := v.VisitParameter(p.Name, p.Access); err != nil {
			return err
		}
	}
	if m.AnnotationDefault != nil {
		av, err := v.VisitAnnotationDefault()
		if err != nil {
			return err
		}
		if av != nil {
			if err := replayElementValue(av, "", *m.AnnotationDefault); err != nil {
				return err
			}
			if err := av.VisitEnd(); err != nil {
				return err
			}
		}
	}
	if err := acceptAnnotations(v.VisitAnnotation, m.VisibleAnnotations, m.InvisibleAnnotations); err != nil {
		return err
	}
	for i, pa := range m.ParameterAnnotations {
		for _, ann := range pa.Visible {
			if err := replayAnnotation(v.VisitParameterAnnotation, i, ann, true); err != nil {
				return err
			}
		}
		for _, ann := range pa.Invisible {
			if err := replayAnnotation(v.VisitParameterAnnotation, i, ann, false); err != nil {
				return err
			}
		}
	}
	for _, ta := range m.TypeAnnotations {
		if err := v.VisitTypeAnnotation(ta); err != nil {
			return err
		}
	}
	for _, a := range m.Attributes {
		if err := v.VisitAttribute(a); err != nil {
			return err
		}
	}
	if m.Code != nil {
		if err := v.VisitCode(); err != nil {
			return err
		}
		for _, insn := range m.Code.Instructions {
			if insn.Frame != nil {
				if err := v.VisitFrame(*insn.Frame); err != nil {
					return err
				}
			}
			if insn.Label != nil {
				if err := v.VisitLabel(insn.Label); err != nil {
					return err
				}
				continue
			}
			if err := v.VisitInsn(insn); err != nil {
				return err
			}
		}
		for _, tc := range m.Code.TryCatchBlocks {
			if err := v.VisitTryCatchBlock(tc); err != nil {
				return err
			}
		}
		for _, lv := range m.Code.LocalVariables {
			if err := v.VisitLocalVariable(lv); err != nil {
				return err
			}
		}
		for _, ln := range m.Code.LineNumbers {
			if err := v.VisitLineNumber(ln); err != nil {
				return err
			}
		}
		if err := v.VisitMaxs(m.Code.MaxStack, m.Code.MaxLocals); err != nil {
			return err
		}
	}
	return v.VisitEnd()
}

func acceptAnnotations(visit func(string, bool) (AnnotationVisitor, error), visible, invisible []Annotation) error {
	for _, a := range visible {
		av, err := visit(a.Descriptor, true)
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
		av, err := visit(a.Descriptor, false)
		if err != nil {
			return err
		}
		if av != nil {
			if err := replayAnnotationBody(av, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func replayAnnotation(visit func(int, string, bool) (AnnotationVisitor, error), index int, a Annotation, visible bool) error {
	av, err := visit(index, a.Descriptor, visible)
	if err != nil {
		return err
	}
	if av == nil {
		return nil
	}
	return replayAnnotationBody(av, a)
}

func replayAnnotationBody(av AnnotationVisitor, a Annotation) error {
	for _, ev := range a.Values {
		if err := replayElementValue(av, ev.Name, ev); err != nil {
			return err
		}
	}
	return av.VisitEnd()
}

func replayElementValue(av AnnotationVisitor, name string, ev ElementValue) error {
	switch v := ev.Value.(type) {
	case *EnumValue:
		return av.VisitEnum(name, v.Descriptor, v.Value)
	case *Annotation:
		nested, err := av.VisitAnnotation(name, v.Descriptor)
		if err != nil {
			return err
		}
		if nested == nil {
			return nil
		}
		return replayAnnotationBody(nested, *v)
	case []ElementValue:
		arr, err := av.VisitArray(name)
		if err != nil {
			return err
		}
		if arr == nil {
			return nil
		}
		for _, item := range v {
			if err := replayElementValue(arr, "", item); err != nil {
				return err
			}
		}
		return arr.VisitEnd()
	default:
		return av.Visit(name, v)
	}
}

// annotationNode accumulates one annotation body, then hands the
// built Annotation to onDone from VisitEnd.
type annotationNode struct {
	ann    Annotation
	onDone func(Annotation)
}

func (a *annotationNode) Visit(name string, value interface{}) error {
	a.ann.Values = append(a.ann.Values, ElementValue{Name: name, Value: value})
	return nil
}

func (a *annotationNode) VisitEnum(name, descriptor, value string) error {
	a.ann.Values = append(a.ann.Values, ElementValue{Name: name, Value: &EnumValue{descriptor, value}})
	return nil
}

func (a *annotationNode) VisitAnnotation(name, descriptor string) (AnnotationVisitor, error) {
	nested := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	idx := len(a.ann.Values)
	a.ann.Values = append(a.ann.Values, ElementValue{Name: name})
	nested.onDone = func(built Annotation) {
		a.ann.Values[idx].Value = &built
	}
	return nested, nil
}

func (a *annotationNode) VisitArray(name string) (AnnotationVisitor, error) {
	arr := &arrayNode{}
	idx := len(a.ann.Values)
	a.ann.Values = append(a.ann.Values, ElementValue{Name: name})
	arr.onDone = func(items []ElementValue) {
		a.ann.Values[idx].Value = items
	}
	return arr, nil
}

func (a *annotationNode) VisitEnd() error {
	if a.onDone != nil {
		a.onDone(a.ann)
	}
	return nil
}

// arrayNode accumulates the elements of one annotation array value.
type arrayNode struct {
	items  []ElementValue
	onDone func([]ElementValue)
}

func (a *arrayNode) Visit(name string, value interface{}) error {
	a.items = append(a.items, ElementValue{Value: value})
	return nil
}
func (a *arrayNode) VisitEnum(name, descriptor, value string) error {
	a.items = append(a.items, ElementValue{Value: &EnumValue{descriptor, value}})
	return nil
}
func (a *arrayNode) VisitAnnotation(name, descriptor string) (AnnotationVisitor, error) {
	nested := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	idx := len(a.items)
	a.items = append(a.items, ElementValue{})
	nested.onDone = func(built Annotation) { a.items[idx].Value = &built }
	return nested, nil
}
func (a *arrayNode) VisitArray(name string) (AnnotationVisitor, error) {
	nested := &arrayNode{}
	idx := len(a.items)
	a.items = append(a.items, ElementValue{})
	nested.onDone = func(items []ElementValue) { a.items[idx].Value = items }
	return nested, nil
}
func (a *arrayNode) VisitEnd() error {
	if a.onDone != nil {
		a.onDone(a.items)
	}
	return nil
}

// annotationDefaultNode captures the single value of an
// AnnotationDefault attribute.
type annotationDefaultNode struct {
	value  ElementValue
	onDone func(ElementValue)
}

func (a *annotationDefaultNode) Visit(name string, value interface{}) error {
	a.value = ElementValue{Value: value}
	return nil
}
func (a *annotationDefaultNode) VisitEnum(name, descriptor, value string) error {
	a.value = ElementValue{Value: &EnumValue{descriptor, value}}
	return nil
}
func (a *annotationDefaultNode) VisitAnnotation(name, descriptor string) (AnnotationVisitor, error) {
	nested := &annotationNode{ann: Annotation{Descriptor: descriptor}}
	nested.onDone = func(built Annotation) { a.value = ElementValue{Value: &built} }
	return nested, nil
}
func (a *annotationDefaultNode) VisitArray(name string) (AnnotationVisitor, error) {
	nested := &arrayNode{}
	nested.onDone = func(items []ElementValue) { a.value = ElementValue{Value: items} }
	return nested, nil
}
func (a *annotationDefaultNode) VisitEnd() error {
	if a.onDone != nil {
		a.onDone(a.value)
	}
	return nil
}
