package classfile

import (
	"github.com/ludoforge/classkit/classfile/symbol"
)

// rawEntry is the tagged-union representation of one constant-pool slot,
// kept in its raw numeric-index form; cross-references are resolved on
// demand by the accessor methods below (spec §4.2), never eagerly.
type rawEntry struct {
	tag byte

	// Index-bearing fields, meaning depends on tag.
	idx1 uint16
	idx2 uint16

	// Direct-value fields.
	u8Byte  byte   // method handle reference kind
	i32     int32  // Integer, or the raw bits of Float
	i64     int64  // Long, or the raw bits of Double
	utf8Val string // decoded Modified UTF-8 value, for Utf8 entries
}

// BootstrapMethod is one entry of the class's BootstrapMethods side
// table (spec §4.3): a method handle plus its static argument indices,
// each of which may itself be a Dynamic constant-pool entry.
type BootstrapMethod struct {
	Handle    Handle
	Arguments []uint16 // constant-pool indices
}

// Handle is a resolved CONSTANT_MethodHandle_info (spec §3.1).
type Handle struct {
	Kind        byte // opcodes.H_*
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

// Loadable is the resolved value of any constant-pool entry legal as the
// operand of ldc/ldc_w/ldc2_w (spec glossary "Loadable").
type Loadable struct {
	// Exactly one of these is meaningful, selected by Sort.
	Sort      LoadableSort
	Int       int32
	Float     float32
	Long      int64
	Double    float64
	String    string
	ClassName string // for Sort == LoadableClass
	Method    struct {
		Descriptor string
	} // for Sort == LoadableMethodType
	Handle        Handle // for Sort == LoadableMethodHandle
	DynamicName   string // for Sort == LoadableDynamic
	DynamicDesc   string
	DynamicBSM    int // index into BootstrapMethods
}

// LoadableSort discriminates the Loadable tagged union.
type LoadableSort int

const (
	LoadableInt LoadableSort = iota
	LoadableFloat
	LoadableLong
	LoadableDouble
	LoadableString
	LoadableClass
	LoadableMethodType
	LoadableMethodHandle
	LoadableDynamic
)

// ConstantPool is a 1-indexed, lazily-resolved view over a parsed
// constant pool (spec §4.2). Index 0 is always nil/unused; the slot
// following a Long or Double is nil too (spec §3.1 invariant).
type ConstantPool struct {
	entries          []*rawEntry // entries[0] always nil
	bootstrapMethods []BootstrapMethod
}

// maxLoadableRecursion bounds the depth GetLoadable recurses into nested
// Dynamic bootstrap arguments (spec §4.2, §5 "bound any recursive load").
const maxLoadableRecursion = 64

// Count returns the constant_pool_count value that produced this pool
// (including the unused index 0 and the ghost slots after Long/Double).
func (p *ConstantPool) Count() int { return len(p.entries) }

func (p *ConstantPool) entryAt(i int, context string) (*rawEntry, error) {
	if i <= 0 || i >= len(p.entries) || p.entries[i] == nil {
		return nil, wrapErr(KindOutOfRange, ErrStructuralParse, context, "constant pool index %d out of range (count=%d)", i, len(p.entries))
	}
	return p.entries[i], nil
}

// GetUtf8 resolves a CONSTANT_Utf8_info entry.
func (p *ConstantPool) GetUtf8(i int) (string, error) {
	e, err := p.entryAt(i, "Utf8")
	if err != nil {
		return "", err
	}
	if e.tag != symbol.ConstantUtf8Tag {
		return "", wrapErr(KindWrongTag, ErrStructuralParse, "Utf8", "pool index %d has tag %d, want Utf8", i, e.tag)
	}
	return e.utf8Val, nil
}

// GetClass resolves a CONSTANT_Class_info entry to its internal name.
func (p *ConstantPool) GetClass(i int) (string, error) {
	e, err := p.entryAt(i, "Class")
	if err != nil {
		return "", err
	}
	if e.tag != symbol.ConstantClassTag {
		return "", wrapErr(KindWrongTag, ErrStructuralParse, "Class", "pool index %d has tag %d, want Class", i, e.tag)
	}
	return p.GetUtf8(int(e.idx1))
}

// GetNameAndType resolves a CONSTANT_NameAndType_info entry.
func (p *ConstantPool) GetNameAndType(i int) (name, descriptor string, err error) {
	e, err := p.entryAt(i, "NameAndType")
	if err != nil {
		return "", "", err
	}
	if e.tag != symbol.ConstantNameAndTypeTag {
		return "", "", wrapErr(KindWrongTag, ErrStructuralParse, "NameAndType", "pool index %d has tag %d, want NameAndType", i, e.tag)
	}
	name, err = p.GetUtf8(int(e.idx1))
	if err != nil {
		return "", "", err
	}
	descriptor, err = p.GetUtf8(int(e.idx2))
	return name, descriptor, err
}

// MemberRef is a resolved Fieldref/Methodref/InterfaceMethodref.
type MemberRef struct {
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

// GetFieldRef resolves a CONSTANT_Fieldref_info entry.
func (p *ConstantPool) GetFieldRef(i int) (MemberRef, error) {
	return p.getMemberRef(i, symbol.ConstantFieldrefTag, "FieldRef")
}

// GetMethodRefOrInterfaceMethodRef resolves either a Methodref or an
// InterfaceMethodref entry, as spec §4.2 groups them in one accessor.
func (p *ConstantPool) GetMethodRefOrInterfaceMethodRef(i int) (MemberRef, error) {
	e, err := p.entryAt(i, "MethodRef")
	if err != nil {
		return MemberRef{}, err
	}
	switch e.tag {
	case symbol.ConstantMethodrefTag:
		return p.getMemberRef(i, symbol.ConstantMethodrefTag, "MethodRef")
	case symbol.ConstantInterfaceMethodrefTag:
		ref, err := p.getMemberRef(i, symbol.ConstantInterfaceMethodrefTag, "InterfaceMethodRef")
		ref.IsInterface = true
		return ref, err
	default:
		return MemberRef{}, wrapErr(KindWrongTag, ErrStructuralParse, "MethodRef", "pool index %d has tag %d, want Methodref/InterfaceMethodref", i, e.tag)
	}
}

func (p *ConstantPool) getMemberRef(i int, wantTag byte, context string) (MemberRef, error) {
	e, err := p.entryAt(i, context)
	if err != nil {
		return MemberRef{}, err
	}
	if e.tag != wantTag {
		return MemberRef{}, wrapErr(KindWrongTag, ErrStructuralParse, context, "pool index %d has tag %d, want %d", i, e.tag, wantTag)
	}
	owner, err := p.GetClass(int(e.idx1))
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.GetNameAndType(int(e.idx2))
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Owner: owner, Name: name, Descriptor: desc, IsInterface: wantTag == symbol.ConstantInterfaceMethodrefTag}, nil
}

// GetMethodHandle resolves a CONSTANT_MethodHandle_info entry.
func (p *ConstantPool) GetMethodHandle(i int) (Handle, error) {
	e, err := p.entryAt(i, "MethodHandle")
	if err != nil {
		return Handle{}, err
	}
	if e.tag != symbol.ConstantMethodHandleTag {
		return Handle{}, wrapErr(KindWrongTag, ErrStructuralParse, "MethodHandle", "pool index %d has tag %d, want MethodHandle", i, e.tag)
	}
	if e.u8Byte < 1 || e.u8Byte > 9 {
		return Handle{}, wrapErr(KindUnknownMethodHandle, ErrStructuralParse, "MethodHandle", "unknown reference_kind %d at pool index %d", e.u8Byte, i)
	}
	ref, err := p.GetMethodRefOrInterfaceMethodRef(int(e.idx1))
	if err != nil {
		// GETFIELD/GETSTATIC/PUTFIELD/PUTSTATIC reference a Fieldref, not a Methodref.
		fref, ferr := p.GetFieldRef(int(e.idx1))
		if ferr != nil {
			return Handle{}, err
		}
		ref = MemberRef{Owner: fref.Owner, Name: fref.Name, Descriptor: fref.Descriptor}
	}
	return Handle{Kind: e.u8Byte, Owner: ref.Owner, Name: ref.Name, Descriptor: ref.Descriptor, IsInterface: ref.IsInterface}, nil
}

// GetLoadable resolves any constant-pool entry legal as an ldc/ldc_w/
// ldc2_w operand, recursing into bootstrap-method arguments for Dynamic
// entries up to maxLoadableRecursion (spec §4.2).
func (p *ConstantPool) GetLoadable(i int) (Loadable, error) {
	return p.getLoadable(i, 0)
}

func (p *ConstantPool) getLoadable(i int, depth int) (Loadable, error) {
	if depth > maxLoadableRecursion {
		return Loadable{}, wrapErr(KindRecursion, ErrStructuralParse, "Loadable", "bootstrap argument recursion exceeded %d at pool index %d", maxLoadableRecursion, i)
	}
	e, err := p.entryAt(i, "Loadable")
	if err != nil {
		return Loadable{}, err
	}
	switch e.tag {
	case symbol.ConstantIntegerTag:
		return Loadable{Sort: LoadableInt, Int: e.i32}, nil
	case symbol.ConstantFloatTag:
		return Loadable{Sort: LoadableFloat, Float: int32bitsToFloat32(e.i32)}, nil
	case symbol.ConstantLongTag:
		return Loadable{Sort: LoadableLong, Long: e.i64}, nil
	case symbol.ConstantDoubleTag:
		return Loadable{Sort: LoadableDouble, Double: int64bitsToFloat64(e.i64)}, nil
	case symbol.ConstantStringTag:
		s, err := p.GetUtf8(int(e.idx1))
		if err != nil {
			return Loadable{}, err
		}
		return Loadable{Sort: LoadableString, String: s}, nil
	case symbol.ConstantClassTag:
		c, err := p.GetClass(i)
		if err != nil {
			return Loadable{}, err
		}
		return Loadable{Sort: LoadableClass, ClassName: c}, nil
	case symbol.ConstantMethodTypeTag:
		d, err := p.GetUtf8(int(e.idx1))
		if err != nil {
			return Loadable{}, err
		}
		l := Loadable{Sort: LoadableMethodType}
		l.Method.Descriptor = d
		return l, nil
	case symbol.ConstantMethodHandleTag:
		h, err := p.GetMethodHandle(i)
		if err != nil {
			return Loadable{}, err
		}
		return Loadable{Sort: LoadableMethodHandle, Handle: h}, nil
	case symbol.ConstantDynamicTag:
		if int(e.idx1) >= len(p.bootstrapMethods) {
			return Loadable{}, wrapErr(KindMissingBootstrap, ErrStructuralParse, "Dynamic", "bootstrap method index %d out of range at pool index %d", e.idx1, i)
		}
		name, desc, err := p.GetNameAndType(int(e.idx2))
		if err != nil {
			return Loadable{}, err
		}
		// Recurse into the bootstrap method's own arguments to enforce
		// the depth bound even though the Loadable itself only reports
		// the top-level Dynamic; a cyclic/very deep bootstrap argument
		// chain must still fail rather than recurse unboundedly.
		for _, argIdx := range p.bootstrapMethods[e.idx1].Arguments {
			if arg, aerr := p.entryAt(int(argIdx), "Dynamic-argument"); aerr == nil && arg.tag == symbol.ConstantDynamicTag {
				if _, err := p.getLoadable(int(argIdx), depth+1); err != nil {
					return Loadable{}, err
				}
			}
		}
		return Loadable{Sort: LoadableDynamic, DynamicName: name, DynamicDesc: desc, DynamicBSM: int(e.idx1)}, nil
	default:
		return Loadable{}, wrapErr(KindWrongTag, ErrStructuralParse, "Loadable", "pool index %d has tag %d, not a loadable constant", i, e.tag)
	}
}

// GetModuleOrUtf8 resolves a CONSTANT_Module_info entry, tolerating a
// plain Utf8 for older tooling that never bumped the class's major
// version past the module attribute's introduction.
func (p *ConstantPool) GetModuleOrUtf8(i int) (string, error) {
	e, err := p.entryAt(i, "Module")
	if err != nil {
		return "", err
	}
	if e.tag == symbol.ConstantModuleTag {
		return p.GetUtf8(int(e.idx1))
	}
	return p.GetUtf8(i)
}

// GetPackageOrUtf8 resolves a CONSTANT_Package_info entry the same way
// GetModuleOrUtf8 resolves CONSTANT_Module_info.
func (p *ConstantPool) GetPackageOrUtf8(i int) (string, error) {
	e, err := p.entryAt(i, "Package")
	if err != nil {
		return "", err
	}
	if e.tag == symbol.ConstantPackageTag {
		return p.GetUtf8(int(e.idx1))
	}
	return p.GetUtf8(i)
}

// GetLoadableValue resolves a constant-pool index used by a
// ConstantValue attribute or an element_value, returning a Go
// primitive (int32/float32/int64/float64/string) rather than a
// Loadable, since those contexts never admit class/method-type/handle
// constants.
func (p *ConstantPool) GetLoadableValue(i int) (interface{}, error) {
	e, err := p.entryAt(i, "ConstantValue")
	if err != nil {
		return nil, err
	}
	switch e.tag {
	case symbol.ConstantIntegerTag:
		return e.i32, nil
	case symbol.ConstantFloatTag:
		return int32bitsToFloat32(e.i32), nil
	case symbol.ConstantLongTag:
		return e.i64, nil
	case symbol.ConstantDoubleTag:
		return int64bitsToFloat64(e.i64), nil
	case symbol.ConstantStringTag:
		return p.GetUtf8(int(e.idx1))
	default:
		return nil, wrapErr(KindWrongTag, ErrStructuralParse, "ConstantValue", "pool index %d has tag %d, not a primitive constant", i, e.tag)
	}
}

// BootstrapMethods returns the class's bootstrap-method side table,
// reached only through Dynamic/InvokeDynamic entries (spec §3.1).
func (p *ConstantPool) BootstrapMethods() []BootstrapMethod { return p.bootstrapMethods }

// GetDynamic resolves a CONSTANT_Dynamic_info or CONSTANT_InvokeDynamic_info
// entry's name/descriptor/bootstrap-method-index triple.
func (p *ConstantPool) GetDynamic(i int) (name, descriptor string, bsmIndex int, err error) {
	e, err := p.entryAt(i, "Dynamic")
	if err != nil {
		return "", "", 0, err
	}
	if e.tag != symbol.ConstantDynamicTag && e.tag != symbol.ConstantInvokeDynamicTag {
		return "", "", 0, wrapErr(KindWrongTag, ErrStructuralParse, "Dynamic", "pool index %d has tag %d, want Dynamic/InvokeDynamic", i, e.tag)
	}
	name, descriptor, err = p.GetNameAndType(int(e.idx2))
	return name, descriptor, int(e.idx1), err
}
