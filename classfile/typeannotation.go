package classfile

// Type-reference target-info sorts (JVMS §4.7.20.1), ported from the
// teacher's asm/typereference package constants.
const (
	RefClassTypeParameter              = 0x00
	RefMethodTypeParameter             = 0x01
	RefClassExtends                    = 0x10
	RefClassTypeParameterBound         = 0x11
	RefMethodTypeParameterBound        = 0x12
	RefField                           = 0x13
	RefMethodReturn                    = 0x14
	RefMethodReceiver                  = 0x15
	RefMethodFormalParameter           = 0x16
	RefThrows                          = 0x17
	RefLocalVariable                   = 0x40
	RefResourceVariable                = 0x41
	RefExceptionParameter              = 0x42
	RefInstanceof                      = 0x43
	RefNew                             = 0x44
	RefConstructorReference            = 0x45
	RefMethodReference                 = 0x46
	RefCast                            = 0x47
	RefConstructorInvocationTypeArg    = 0x48
	RefMethodInvocationTypeArg         = 0x49
	RefConstructorReferenceTypeArg     = 0x4A
	RefMethodReferenceTypeArg          = 0x4B
)

// TypeReference identifies what a type annotation targets: a sort (one
// of the Ref* constants above) plus whatever index that sort needs
// (type parameter index, formal parameter index, throws index, ...).
// This collapses the teacher's packed-int encoding (asm/type-reference.go)
// into a small struct, since this module never needs the bit-packed
// on-the-wire form outside the reader/writer.
type TypeReference struct {
	Sort  int
	Index int // meaning depends on Sort; unused (0) for sorts with no index
}

// TypePath is a parsed type_path structure (JVMS §4.7.20.2): a sequence
// of steps descending into an array element, a wildcard bound, an inner
// type, or a type argument.
type TypePath struct {
	Steps []TypePathStep
}

// TypePathStepKind distinguishes the four step kinds.
type TypePathStepKind int

const (
	StepArrayElement TypePathStepKind = iota
	StepInnerType
	StepWildcardBound
	StepTypeArgument
)

// TypePathStep is one step of a TypePath.
type TypePathStep struct {
	Kind     TypePathStepKind
	ArgIndex int // meaningful only for StepTypeArgument
}

// LocalVariableTarget describes the bytecode ranges a
// RefLocalVariable/RefResourceVariable type annotation applies to
// (JVMS §4.7.20.1 local var target table).
type LocalVariableTarget struct {
	Start, End *Label
	Index      int
}

// TypeAnnotation is one RuntimeVisibleTypeAnnotations /
// RuntimeInvisibleTypeAnnotations entry, attached at the class, field,
// method, or code level depending on its TypeReference's sort.
type TypeAnnotation struct {
	TypeRef    TypeReference
	TypePath   *TypePath
	Descriptor string
	Visible    bool
	Values     []ElementValue

	// LocalVars is non-empty only for RefLocalVariable/RefResourceVariable.
	LocalVars []LocalVariableTarget
}

// ElementValue is one name/value pair of an annotation body (spec §4.4
// "AnnotationVisitor"); Value holds a Go primitive, a string, an
// *EnumValue, a nested *Annotation, or a []ElementValue for arrays.
type ElementValue struct {
	Name  string
	Value interface{}
}

// EnumValue is the value of an annotation element of enum type.
type EnumValue struct {
	Descriptor string
	Value      string
}

// Annotation is a fully-materialized annotation: its type descriptor
// plus its element values, used both for ordinary annotations and as
// the Value of a nested-annotation ElementValue.
type Annotation struct {
	Descriptor string
	Values     []ElementValue
}

// ParameterAnnotations holds the annotations declared on one formal
// parameter (RuntimeVisibleParameterAnnotations / Invisible variant),
// implementing the spec §9 Open Question decision to fully parse these
// rather than round-trip them as opaque bytes.
type ParameterAnnotations struct {
	Visible   []Annotation
	Invisible []Annotation
}
