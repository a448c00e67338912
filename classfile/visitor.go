package classfile

// Interest is a bitset a visitor exposes to declare which attributes it
// cares about (spec §4.4), generalizing the teacher's SKIP_CODE/SKIP_DEBUG/
// SKIP_FRAMES/EXPAND_FRAMES reader flags into a property of the visitor
// rather than the reader. ClassReader does not skip any bytes on its
// basis: every attribute is decoded and delivered whatever the visitor
// declares.
type Interest uint8

const (
	InterestCode Interest = 1 << iota
	InterestDebug
	InterestFrames
	InterestAnnotations
	InterestTypeAnnotations
	InterestAttributes

	InterestAll = InterestCode | InterestDebug | InterestFrames |
		InterestAnnotations | InterestTypeAnnotations | InterestAttributes
)

func (i Interest) has(want Interest) bool { return i&want != 0 }

// ClassVisitor receives the members of one class as the reader walks
// its byte stream, or as a tree is traversed (spec §4.4). Returning nil
// from VisitField/VisitMethod/VisitAnnotation/VisitModule tells the
// caller the corresponding body should be skipped; this is this
// module's idiomatic-Go substitute for the ownership-passing
// "residual visitor" pattern, since a nil return already expresses
// "not interested" without needing a finish-style handoff.
type ClassVisitor interface {
	Visit(version int, access int, name, signature, superName string, interfaces []string) error
	VisitSource(source, debug string) error
	VisitModule(name string, access int, version string) (ModuleVisitor, error)
	VisitOuterClass(owner, name, descriptor string) error
	VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error)
	VisitTypeAnnotation(ann TypeAnnotation) error
	VisitAttribute(attr Attribute) error
	VisitInnerClass(name, outerName, innerName string, access int) error
	VisitField(access int, name, descriptor, signature string, value interface{}) (FieldVisitor, error)
	VisitMethod(access int, name, descriptor, signature string, exceptions []string) (MethodVisitor, error)
	VisitEnd() error

	Interests() Interest
}

// FieldVisitor receives the annotations and attributes of one field.
type FieldVisitor interface {
	VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error)
	VisitTypeAnnotation(ann TypeAnnotation) error
	VisitAttribute(attr Attribute) error
	VisitEnd() error

	Interests() Interest
}

// MethodVisitor receives a method's metadata, its code (if any), and
// its annotations, in the fixed order the reader produces them: the
// annotation-default value, then parameter/ordinary annotations, then
// the code body, then VisitEnd.
type MethodVisitor interface {
	VisitParameter(name string, access int) error
	VisitAnnotationDefault() (AnnotationVisitor, error)
	VisitAnnotation(descriptor string, visible bool) (AnnotationVisitor, error)
	VisitParameterAnnotation(parameter int, descriptor string, visible bool) (AnnotationVisitor, error)
	VisitTypeAnnotation(ann TypeAnnotation) error
	VisitAttribute(attr Attribute) error

	VisitCode() error
	VisitFrame(frame StackMapFrame) error
	VisitInsn(insn Instruction) error
	VisitLabel(label *Label) error
	VisitTryCatchBlock(block TryCatchBlock) error
	VisitLocalVariable(entry LocalVariableEntry) error
	VisitLineNumber(entry LineNumberEntry) error
	VisitMaxs(maxStack, maxLocals int) error

	VisitEnd() error

	Interests() Interest
}

// AnnotationVisitor receives the element/value pairs of one annotation
// body, including nested annotations and arrays.
type AnnotationVisitor interface {
	Visit(name string, value interface{}) error
	VisitEnum(name, descriptor, value string) error
	VisitAnnotation(name, descriptor string) (AnnotationVisitor, error)
	VisitArray(name string) (AnnotationVisitor, error)
	VisitEnd() error
}

// ModuleVisitor receives the requires/exports/opens/uses/provides
// directives of a Module attribute (spec §4.4).
type ModuleVisitor interface {
	VisitMainClass(mainClass string) error
	VisitPackage(packaze string) error
	VisitRequire(module string, access int, version string) error
	VisitExport(packaze string, access int, modules []string) error
	VisitOpen(packaze string, access int, modules []string) error
	VisitUse(service string) error
	VisitProvide(service string, providers []string) error
	VisitEnd() error
}
