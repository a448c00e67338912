package classfile

import "github.com/ludoforge/classkit/classfile/opcodes"

// Wire-format frame_type boundaries from JVMS §4.7.4, distinct from the
// opcodes package's abstract F_* frame-kind constants (which describe a
// frame's shape, not its on-disk tag range).
const (
	frameTagSameMax        = 63
	frameTagSame1Max       = 127
	frameTagSameLocals1Ext = 247
	frameTagChopMax        = 250
	frameTagSameExt        = 251
	frameTagAppendMax      = 254
)

// frameEntry is one decoded stack_map_frame entry together with the
// bytecode offset it applies to (already resolved from the cumulative
// offset_delta encoding of JVMS §4.7.4). Its verification types carry
// raw u16 operands (a cpool index for ITEM_OBJECT, a bytecode offset
// for ITEM_UNINITIALIZED); the reader resolves these into ClassName /
// NewTarget once the code's label table exists.
type frameEntry struct {
	offset int
	frame  rawStackMapFrame
}

type rawStackMapFrame struct {
	Locals []rawVerificationType
	Stack  []rawVerificationType
}

type rawVerificationType struct {
	Tag   int
	Raw   uint16 // cpool index (ITEM_OBJECT) or code offset (ITEM_UNINITIALIZED)
}

// decodeStackMapTable parses a StackMapTable (or legacy StackMap)
// attribute body into a sequence of frames, resolving each entry's
// bytecode offset along the way. codeLength bounds-checks NEW targets
// against the method body.
func decodeStackMapTable(b []byte, codeLength int) ([]frameEntry, error) {
	if len(b) < 2 {
		return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "StackMapTable", "truncated number_of_entries")
	}
	n := int(be16(b, 0))
	off := 2
	entries := make([]frameEntry, 0, n)

	var locals, stack []rawVerificationType
	offset := -1

	for i := 0; i < n; i++ {
		if off >= len(b) {
			return nil, wrapErr(KindMalformedPool, ErrStructuralParse, "StackMapTable", "truncated entry %d", i)
		}
		tag := int(b[off])
		off++

		var delta int
		switch {
		case tag <= frameTagSameMax: // 0-63: SAME
			delta = tag
			stack = nil

		case tag <= frameTagSame1Max: // 64-127: SAME_LOCALS_1_STACK_ITEM
			delta = tag - 64
			var vt rawVerificationType
			var err error
			vt, off, err = readVerificationType(b, off)
			if err != nil {
				return nil, err
			}
			stack = []rawVerificationType{vt}

		case tag < 247: // reserved for future use
			return nil, wrapErr(KindBadOpcode, ErrStructuralParse, "StackMapTable", "reserved frame tag %d", tag)

		case tag == frameTagSameLocals1Ext:
			var err error
			delta, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			var vt rawVerificationType
			vt, off, err = readVerificationType(b, off)
			if err != nil {
				return nil, err
			}
			stack = []rawVerificationType{vt}

		case tag <= frameTagChopMax: // 248-250: CHOP
			var err error
			delta, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			chop := 251 - tag
			if chop > len(locals) {
				return nil, wrapErr(KindOutOfRange, ErrAttributeSemantic, "StackMapTable", "chop %d exceeds %d locals", chop, len(locals))
			}
			locals = locals[:len(locals)-chop]
			stack = nil

		case tag == frameTagSameExt:
			var err error
			delta, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			stack = nil

		case tag <= frameTagAppendMax: // 252-254: APPEND
			var err error
			delta, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			appendCount := tag - 251
			for j := 0; j < appendCount; j++ {
				var vt rawVerificationType
				vt, off, err = readVerificationType(b, off)
				if err != nil {
					return nil, err
				}
				locals = append(locals, vt)
			}
			stack = nil

		default: // 255: FULL_FRAME
			var err error
			delta, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			var numLocals int
			numLocals, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			locals = make([]rawVerificationType, numLocals)
			for j := 0; j < numLocals; j++ {
				locals[j], off, err = readVerificationType(b, off)
				if err != nil {
					return nil, err
				}
			}
			var numStack int
			numStack, off, err = readU16Int(b, off)
			if err != nil {
				return nil, err
			}
			stack = make([]rawVerificationType, numStack)
			for j := 0; j < numStack; j++ {
				stack[j], off, err = readVerificationType(b, off)
				if err != nil {
					return nil, err
				}
			}
		}

		if offset == -1 {
			offset = delta
		} else {
			offset += delta + 1
		}
		if offset > codeLength {
			return nil, wrapErr(KindOutOfRange, ErrAttributeSemantic, "StackMapTable", "frame offset %d beyond code length %d", offset, codeLength)
		}

		entries = append(entries, frameEntry{
			offset: offset,
			frame:  rawStackMapFrame{Locals: append([]rawVerificationType(nil), locals...), Stack: append([]rawVerificationType(nil), stack...)},
		})
	}

	return entries, nil
}

func readVerificationType(b []byte, off int) (rawVerificationType, int, error) {
	if off >= len(b) {
		return rawVerificationType{}, off, wrapErr(KindMalformedPool, ErrStructuralParse, "verification_type_info", "truncated tag")
	}
	tag := int(b[off])
	off++
	vt := rawVerificationType{Tag: tag}
	switch tag {
	case opcodes.ITEM_OBJECT, opcodes.ITEM_UNINITIALIZED:
		if off+2 > len(b) {
			return vt, off, wrapErr(KindMalformedPool, ErrStructuralParse, "verification_type_info", "truncated operand")
		}
		vt.Raw = be16(b, off)
		off += 2
	}
	return vt, off, nil
}

func readU16Int(b []byte, off int) (int, int, error) {
	if off+2 > len(b) {
		return 0, off, wrapErr(KindMalformedPool, ErrStructuralParse, "", "truncated u16")
	}
	return int(be16(b, off)), off + 2, nil
}

func be16(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

// encodeFullFrame writes one stack-map frame in the uncompressed
// full_frame form (frame_type 255), the writer's fixed choice for every
// emitted frame (spec §6.1): always valid, never the smallest. resolveNew
// maps a VerificationType's NewTarget label to its bytecode offset,
// since by the time frames are emitted every label is resolved.
func encodeFullFrame(out *byteBuffer, offsetDelta int, frame StackMapFrame, pool *poolWriter, resolveNew func(*Label) (int, error)) error {
	out.putU8(255)
	out.putU16(offsetDelta)
	out.putU16(len(frame.Locals))
	for _, vt := range frame.Locals {
		if err := writeVerificationType(out, vt, pool, resolveNew); err != nil {
			return err
		}
	}
	out.putU16(len(frame.Stack))
	for _, vt := range frame.Stack {
		if err := writeVerificationType(out, vt, pool, resolveNew); err != nil {
			return err
		}
	}
	return nil
}

func writeVerificationType(out *byteBuffer, vt VerificationType, pool *poolWriter, resolveNew func(*Label) (int, error)) error {
	out.putU8(byte(vt.Tag))
	switch vt.Tag {
	case opcodes.ITEM_OBJECT:
		idx, err := pool.putClass(vt.ClassName)
		if err != nil {
			return err
		}
		out.putU16(idx)
	case opcodes.ITEM_UNINITIALIZED:
		offset, err := resolveNew(vt.NewTarget)
		if err != nil {
			return err
		}
		out.putU16(offset)
	}
	return nil
}
