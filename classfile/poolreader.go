package classfile

import (
	"encoding/binary"

	"github.com/ludoforge/classkit/classfile/mutf8"
	"github.com/ludoforge/classkit/classfile/symbol"
)

// parsePool reads constant_pool_count-1 entries starting at offset
// (which must point at the two-byte count field itself, spec §4.2) into
// a dense, 1-indexed slice, inserting a nil placeholder after each
// Long/Double (spec §3.1 invariant). It returns the pool and the offset
// of the first byte following the pool.
func parsePool(b []byte, offset int) (*ConstantPool, int, error) {
	if offset+2 > len(b) {
		return nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated constant_pool_count")
	}
	count := int(binary.BigEndian.Uint16(b[offset:]))
	entries := make([]*rawEntry, count)
	off := offset + 2

	for i := 1; i < count; i++ {
		if off >= len(b) {
			return nil, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated constant pool at index %d", i)
		}
		tag := b[off]
		off++
		e := &rawEntry{tag: tag}
		var err error
		switch tag {
		case symbol.ConstantClassTag, symbol.ConstantStringTag, symbol.ConstantMethodTypeTag,
			symbol.ConstantModuleTag, symbol.ConstantPackageTag:
			e.idx1, off, err = readU16(b, off, i)
		case symbol.ConstantFieldrefTag, symbol.ConstantMethodrefTag, symbol.ConstantInterfaceMethodrefTag,
			symbol.ConstantNameAndTypeTag, symbol.ConstantDynamicTag, symbol.ConstantInvokeDynamicTag:
			e.idx1, off, err = readU16(b, off, i)
			if err == nil {
				e.idx2, off, err = readU16(b, off, i)
			}
		case symbol.ConstantIntegerTag:
			var v uint32
			v, off, err = readU32(b, off, i)
			e.i32 = int32(v)
		case symbol.ConstantFloatTag:
			var v uint32
			v, off, err = readU32(b, off, i)
			e.i32 = int32(v)
		case symbol.ConstantLongTag, symbol.ConstantDoubleTag:
			var v uint64
			v, off, err = readU64(b, off, i)
			e.i64 = int64(v)
		case symbol.ConstantUtf8Tag:
			var length uint16
			length, off, err = readU16(b, off, i)
			if err == nil {
				if off+int(length) > len(b) {
					err = wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated Utf8 at index %d", i)
				} else {
					s, derr := mutf8.Decode(b[off : off+int(length)])
					if derr != nil {
						err = wrapErr(KindMalformedPool, ErrStructuralParse, "", "index %d: %v", i, derr)
					} else {
						e.utf8Val = s
					}
					off += int(length)
				}
			}
		case symbol.ConstantMethodHandleTag:
			if off+3 > len(b) {
				err = wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated MethodHandle at index %d", i)
			} else {
				e.u8Byte = b[off]
				e.idx1 = binary.BigEndian.Uint16(b[off+1:])
				off += 3
			}
		default:
			err = wrapErr(KindMalformedPool, ErrStructuralParse, "", "unknown constant pool tag %d at index %d", tag, i)
		}
		if err != nil {
			return nil, 0, err
		}
		entries[i] = e
		if tag == symbol.ConstantLongTag || tag == symbol.ConstantDoubleTag {
			i++ // the following index is unusable (spec §3.1)
		}
	}

	return &ConstantPool{entries: entries}, off, nil
}

func readU16(b []byte, off int, ctxIndex int) (uint16, int, error) {
	if off+2 > len(b) {
		return 0, off, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated entry at index %d", ctxIndex)
	}
	return binary.BigEndian.Uint16(b[off:]), off + 2, nil
}

func readU32(b []byte, off int, ctxIndex int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated entry at index %d", ctxIndex)
	}
	return binary.BigEndian.Uint32(b[off:]), off + 4, nil
}

func readU64(b []byte, off int, ctxIndex int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated entry at index %d", ctxIndex)
	}
	return binary.BigEndian.Uint64(b[off:]), off + 8, nil
}

// parseBootstrapMethods reads a BootstrapMethods attribute body (offset
// pointing just past the 6-byte attribute header) into the pool's side
// table, resolving each method handle eagerly since the table itself is
// small and always read in full (spec §4.5 step 5).
func (p *ConstantPool) parseBootstrapMethods(b []byte, offset int) error {
	if offset+2 > len(b) {
		return wrapErr(KindMalformedPool, ErrStructuralParse, "BootstrapMethods", "truncated num_bootstrap_methods")
	}
	n := int(binary.BigEndian.Uint16(b[offset:]))
	off := offset + 2
	methods := make([]BootstrapMethod, n)
	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return wrapErr(KindMalformedPool, ErrStructuralParse, "BootstrapMethods", "truncated entry %d", i)
		}
		handleIdx := binary.BigEndian.Uint16(b[off:])
		numArgs := int(binary.BigEndian.Uint16(b[off+2:]))
		off += 4
		handle, err := p.GetMethodHandle(int(handleIdx))
		if err != nil {
			return err
		}
		args := make([]uint16, numArgs)
		for j := 0; j < numArgs; j++ {
			if off+2 > len(b) {
				return wrapErr(KindMalformedPool, ErrStructuralParse, "BootstrapMethods", "truncated argument %d of entry %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(b[off:])
			off += 2
		}
		methods[i] = BootstrapMethod{Handle: handle, Arguments: args}
	}
	p.bootstrapMethods = methods
	return nil
}
