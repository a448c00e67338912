package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/ludoforge/classkit/classfile/mutf8"
	"github.com/ludoforge/classkit/classfile/symbol"
)

// poolWriter accumulates a constant pool while a class is emitted,
// interning every entry so no value is written twice (spec §4.3). It
// also owns the bootstrap-methods interning table, since ldc/invokedynamic
// writes anywhere in the class body may add to it.
type poolWriter struct {
	entries   []*rawEntry // entries[0] is an unused placeholder
	interning map[string]int

	bsm      []BootstrapMethod
	bsmIndex map[string]int
}

func newPoolWriter() *poolWriter {
	return &poolWriter{
		entries:   []*rawEntry{nil},
		interning: make(map[string]int),
		bsmIndex:  make(map[string]int),
	}
}

// errPoolOverflow is returned when the pool would need a constant_pool_count
// that does not fit in a u16 (spec §4.3).
var errPoolOverflow = wrapErr(KindOutOfRange, ErrStructuralParse, "ConstantPool", "constant pool overflow: more than 65535 entries")

func (w *poolWriter) count() int { return len(w.entries) }

func (w *poolWriter) intern(key string, build func() *rawEntry) (int, error) {
	if idx, ok := w.interning[key]; ok {
		return idx, nil
	}
	if len(w.entries) >= 0xFFFF {
		return 0, errPoolOverflow
	}
	idx := len(w.entries)
	w.entries = append(w.entries, build())
	w.interning[key] = idx
	return idx, nil
}

func (w *poolWriter) internWide(key string, build func() *rawEntry) (int, error) {
	if idx, ok := w.interning[key]; ok {
		return idx, nil
	}
	if len(w.entries)+1 >= 0xFFFF {
		return 0, errPoolOverflow
	}
	idx := len(w.entries)
	w.entries = append(w.entries, build(), nil)
	w.interning[key] = idx
	return idx, nil
}

func (w *poolWriter) putUtf8(s string) (int, error) {
	return w.intern("u:"+s, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantUtf8Tag, utf8Val: s}
	})
}

func (w *poolWriter) putClass(name string) (int, error) {
	nameIdx, err := w.putUtf8(name)
	if err != nil {
		return 0, err
	}
	return w.intern("c:"+name, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantClassTag, idx1: uint16(nameIdx)}
	})
}

func (w *poolWriter) putNameAndType(name, descriptor string) (int, error) {
	nameIdx, err := w.putUtf8(name)
	if err != nil {
		return 0, err
	}
	descIdx, err := w.putUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	return w.intern("nt:"+name+"\x00"+descriptor, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantNameAndTypeTag, idx1: uint16(nameIdx), idx2: uint16(descIdx)}
	})
}

func (w *poolWriter) putMemberRef(tag byte, prefix, owner, name, descriptor string) (int, error) {
	classIdx, err := w.putClass(owner)
	if err != nil {
		return 0, err
	}
	natIdx, err := w.putNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return w.intern(prefix+owner+"\x00"+name+"\x00"+descriptor, func() *rawEntry {
		return &rawEntry{tag: tag, idx1: uint16(classIdx), idx2: uint16(natIdx)}
	})
}

func (w *poolWriter) putFieldRef(owner, name, descriptor string) (int, error) {
	return w.putMemberRef(symbol.ConstantFieldrefTag, "f:", owner, name, descriptor)
}

func (w *poolWriter) putMethodRef(owner, name, descriptor string, isInterface bool) (int, error) {
	if isInterface {
		return w.putMemberRef(symbol.ConstantInterfaceMethodrefTag, "im:", owner, name, descriptor)
	}
	return w.putMemberRef(symbol.ConstantMethodrefTag, "m:", owner, name, descriptor)
}

func (w *poolWriter) putString(s string) (int, error) {
	utf8Idx, err := w.putUtf8(s)
	if err != nil {
		return 0, err
	}
	return w.intern("s:"+s, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantStringTag, idx1: uint16(utf8Idx)}
	})
}

func (w *poolWriter) putInteger(v int32) (int, error) {
	return w.intern(fmt.Sprintf("i:%d", v), func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantIntegerTag, i32: v}
	})
}

func (w *poolWriter) putFloat(v float32) (int, error) {
	bits := float32bitsToInt32(v)
	return w.intern(fmt.Sprintf("fl:%d", bits), func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantFloatTag, i32: bits}
	})
}

func (w *poolWriter) putLong(v int64) (int, error) {
	return w.internWide(fmt.Sprintf("l:%d", v), func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantLongTag, i64: v}
	})
}

func (w *poolWriter) putDouble(v float64) (int, error) {
	bits := float64bitsToInt64(v)
	return w.internWide(fmt.Sprintf("d:%d", bits), func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantDoubleTag, i64: bits}
	})
}

func (w *poolWriter) putMethodType(descriptor string) (int, error) {
	descIdx, err := w.putUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	return w.intern("mt:"+descriptor, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantMethodTypeTag, idx1: uint16(descIdx)}
	})
}

func (w *poolWriter) putMethodHandle(h Handle) (int, error) {
	refIdx, err := w.putMemberRefForHandle(h)
	if err != nil {
		return 0, err
	}
	return w.intern(fmt.Sprintf("mh:%d:%s.%s%s", h.Kind, h.Owner, h.Name, h.Descriptor), func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantMethodHandleTag, u8Byte: h.Kind, idx1: uint16(refIdx)}
	})
}

func (w *poolWriter) putMemberRefForHandle(h Handle) (int, error) {
	isFieldKind := h.Kind >= 1 && h.Kind <= 4
	if isFieldKind {
		return w.putFieldRef(h.Owner, h.Name, h.Descriptor)
	}
	return w.putMethodRef(h.Owner, h.Name, h.Descriptor, h.IsInterface)
}

func (w *poolWriter) putModule(name string) (int, error) {
	nameIdx, err := w.putUtf8(name)
	if err != nil {
		return 0, err
	}
	return w.intern("mod:"+name, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantModuleTag, idx1: uint16(nameIdx)}
	})
}

func (w *poolWriter) putPackage(name string) (int, error) {
	nameIdx, err := w.putUtf8(name)
	if err != nil {
		return 0, err
	}
	return w.intern("pkg:"+name, func() *rawEntry {
		return &rawEntry{tag: symbol.ConstantPackageTag, idx1: uint16(nameIdx)}
	})
}

// putBootstrapMethod interns a (handle, args) pair into the class's
// BootstrapMethods side table, returning its index. Emitted only after
// every Loadable in the class body has been put (spec §4.3/§4.6).
func (w *poolWriter) putBootstrapMethod(h Handle, args []int) (int, error) {
	key := fmt.Sprintf("%d:%s.%s%s/%v", h.Kind, h.Owner, h.Name, h.Descriptor, args)
	if idx, ok := w.bsmIndex[key]; ok {
		return idx, nil
	}
	argIdx := make([]uint16, len(args))
	copy16 := func(i int) uint16 { return uint16(args[i]) }
	for i := range args {
		argIdx[i] = copy16(i)
	}
	idx := len(w.bsm)
	w.bsm = append(w.bsm, BootstrapMethod{Handle: h, Arguments: argIdx})
	w.bsmIndex[key] = idx
	return idx, nil
}

// putDynamic interns a Dynamic or InvokeDynamic entry referencing a
// bootstrap method already present in the side table (see putBootstrapMethod).
func (w *poolWriter) putDynamic(tag byte, name, descriptor string, bsmIndex int) (int, error) {
	natIdx, err := w.putNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	key := fmt.Sprintf("dyn:%d:%d:%s\x00%s", tag, bsmIndex, name, descriptor)
	return w.intern(key, func() *rawEntry {
		return &rawEntry{tag: tag, idx1: uint16(bsmIndex), idx2: uint16(natIdx)}
	})
}

// write serializes the pool (count prefix + every entry) to out.
func (w *poolWriter) write(out *byteBuffer) error {
	out.putU16(len(w.entries))
	for i := 1; i < len(w.entries); i++ {
		e := w.entries[i]
		if e == nil {
			continue // Long/Double ghost slot
		}
		out.putU8(e.tag)
		switch e.tag {
		case symbol.ConstantClassTag, symbol.ConstantStringTag, symbol.ConstantMethodTypeTag,
			symbol.ConstantModuleTag, symbol.ConstantPackageTag:
			out.putU16(int(e.idx1))
		case symbol.ConstantFieldrefTag, symbol.ConstantMethodrefTag, symbol.ConstantInterfaceMethodrefTag,
			symbol.ConstantNameAndTypeTag, symbol.ConstantDynamicTag, symbol.ConstantInvokeDynamicTag:
			out.putU16(int(e.idx1))
			out.putU16(int(e.idx2))
		case symbol.ConstantIntegerTag, symbol.ConstantFloatTag:
			out.putU32(uint32(e.i32))
		case symbol.ConstantLongTag, symbol.ConstantDoubleTag:
			out.putU64(uint64(e.i64))
		case symbol.ConstantUtf8Tag:
			encoded := mutf8.Encode(e.utf8Val)
			out.putU16(len(encoded))
			out.putBytes(encoded)
		case symbol.ConstantMethodHandleTag:
			out.putU8(e.u8Byte)
			out.putU16(int(e.idx1))
		default:
			return wrapErr(KindWrongTag, ErrStructuralParse, "ConstantPool", "cannot serialize unknown tag %d", e.tag)
		}
	}
	return nil
}

// byteBuffer is a growable big-endian byte sink, the writer's equivalent
// of the teacher's never-implemented ByteVector.
type byteBuffer struct {
	buf []byte
}

func (b *byteBuffer) putU8(v byte)    { b.buf = append(b.buf, v) }
func (b *byteBuffer) putBytes(v []byte) { b.buf = append(b.buf, v...) }

func (b *byteBuffer) putU16(v int) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	b.buf = append(b.buf, tmp[:]...)
}

func (b *byteBuffer) putU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *byteBuffer) putU64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *byteBuffer) len() int { return len(b.buf) }

// patchU16 overwrites the two bytes at pos (used by the code writer to
// backfill branch offsets and length-prefixed sections).
func (b *byteBuffer) patchU16(pos int, v int) {
	binary.BigEndian.PutUint16(b.buf[pos:], uint16(v))
}

func (b *byteBuffer) patchU32(pos int, v uint32) {
	binary.BigEndian.PutUint32(b.buf[pos:], v)
}
