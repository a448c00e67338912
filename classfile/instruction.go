package classfile

// Instruction is the tagged-union representation of one bytecode
// instruction (spec §3.3). Op is a classfile/opcodes constant; which
// other fields are meaningful depends on Op, mirroring the teacher's
// visitXInsn family of callbacks collapsed into one plain-data shape.
//
// Label and Frame are optional per spec §3.2/§3.3: Label is set when
// some other part of the Code body (a branch, an exception handler, a
// local-variable range, a line-number entry, or a stack-map entry)
// refers to this instruction's position; Frame is set when a stack-map
// frame applies starting at this position.
type Instruction struct {
	Label *Label
	Frame *StackMapFrame

	Op int

	// ICONST/BIPUSH/SIPUSH/NEWARRAY
	IntOperand int

	// xLOAD/xSTORE/RET/IINC
	Var       int
	IncAmount int

	// NEW/ANEWARRAY/CHECKCAST/INSTANCEOF/MULTIANEWARRAY
	TypeName   string
	Dimensions int

	// GETFIELD/PUTFIELD/GETSTATIC/PUTSTATIC/INVOKE*
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool

	// LDC/LDC_W/LDC2_W
	Loadable *Loadable

	// IFEQ.../GOTO/JSR/IFNULL/IFNONNULL
	Target *Label

	// TABLESWITCH
	Low, High     int32
	SwitchTargets []*Label

	// LOOKUPSWITCH
	LookupKeys    []int32
	LookupTargets []*Label

	// TABLESWITCH/LOOKUPSWITCH shared
	Default *Label

	// INVOKEDYNAMIC
	BootstrapHandle Handle
	BootstrapArgs   []Loadable
}

// StackMapFrame is the in-memory form of one stack-map entry (spec
// §3.1). The writer always emits frames in the uncompressed "full_frame"
// form (a compliant, if not size-optimal, encoding choice per spec
// §6.1); the reader decodes whichever compressed or full form the class
// file actually uses.
type StackMapFrame struct {
	Locals []VerificationType
	Stack  []VerificationType
}

// VerificationType is one JVMS verification_type_info entry.
type VerificationType struct {
	Tag       int    // opcodes.ITEM_*
	ClassName string // set when Tag == ITEM_OBJECT
	NewTarget *Label // set when Tag == ITEM_UNINITIALIZED
}

// TryCatchBlock is one exception_table entry of a Code attribute.
type TryCatchBlock struct {
	Start, End, Handler *Label
	CatchType           string // "" means catch-all (index 0 on disk)
}

// LineNumberEntry is one entry of a LineNumberTable attribute.
type LineNumberEntry struct {
	Start *Label
	Line  int
}

// LocalVariableEntry is one entry of a LocalVariableTable or
// LocalVariableTypeTable attribute; Signature is empty for the former.
type LocalVariableEntry struct {
	Name, Descriptor, Signature string
	Start, End                  *Label
	Index                       int
}
