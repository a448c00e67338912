package classfile

import "github.com/ludoforge/classkit/classfile/opcodes"

// shortJumpOpcodes are the instructions with a 2-byte signed branch
// offset that may need widening to their _W form once the method's
// final layout is known (spec §4.6.1).
var shortJumpOpcodes = map[int]int{
	opcodes.IFEQ: opcodes.IFEQ, opcodes.IFNE: opcodes.IFNE,
	opcodes.IFLT: opcodes.IFLT, opcodes.IFGE: opcodes.IFGE,
	opcodes.IFGT: opcodes.IFGT, opcodes.IFLE: opcodes.IFLE,
	opcodes.IF_ICMPEQ: opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE: opcodes.IF_ICMPNE,
	opcodes.IF_ICMPLT: opcodes.IF_ICMPLT, opcodes.IF_ICMPGE: opcodes.IF_ICMPGE,
	opcodes.IF_ICMPGT: opcodes.IF_ICMPGT, opcodes.IF_ICMPLE: opcodes.IF_ICMPLE,
	opcodes.IF_ACMPEQ: opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE: opcodes.IF_ACMPNE,
	opcodes.IFNULL: opcodes.IFNULL, opcodes.IFNONNULL: opcodes.IFNONNULL,
	opcodes.GOTO: opcodes.GOTO_W, opcodes.JSR: opcodes.JSR_W,
}

// widenableOnlyViaGotoOrJsr reports whether op, once its target proves
// out of int16 range, must change opcode (GOTO/JSR -> their _W form)
// rather than just growing the IFxx family's effective reach through an
// inserted GOTO_W (which this module does not synthesize, matching the
// teacher's own branch.go note that conditional branches stay
// conditional and only their unconditional escape widens).
func widenableOnlyViaGotoOrJsr(op int) bool {
	return op == opcodes.GOTO || op == opcodes.JSR
}

// codeLayout is the stable result of layoutCode: every instruction's
// final bytecode offset and the final size of the code array, with the
// jump-widening fixpoint already resolved.
type codeLayout struct {
	positions    []int // parallel to the non-label instruction stream
	labelOffset  map[*Label]int
	wide         map[int]bool // index into the non-label instruction stream
	length       int
}

const maxBranchPromotionIterations = 64

// layoutCode computes the final bytecode offset of every instruction
// and label in a method body, iteratively promoting short jumps to
// their wide form when a computed delta no longer fits in a signed
// 16-bit offset (spec §4.6.1). Each promotion can shift every
// subsequent offset, including tableswitch/lookupswitch padding, so
// the computation repeats to a fixpoint rather than running once.
func layoutCode(instructions []Instruction) (*codeLayout, error) {
	var real []Instruction
	for _, insn := range instructions {
		if insn.Label == nil {
			real = append(real, insn)
		}
	}

	wide := make(map[int]bool)
	for iter := 0; iter < maxBranchPromotionIterations; iter++ {
		positions := make([]int, len(real))
		labelOffset := make(map[*Label]int)

		offset := 0
		for _, insn := range instructions {
			if insn.Label != nil {
				labelOffset[insn.Label] = offset
			}
		}
		// Labels can be resolved out of instruction order relative to
		// positions (a label entry precedes its instruction in the
		// stream), so compute offsets in one linear walk that advances
		// only on real instructions.
		offset = 0
		idx := 0
		for _, insn := range instructions {
			if insn.Label != nil {
				labelOffset[insn.Label] = offset
				continue
			}
			positions[idx] = offset
			offset += instructionSize(real[idx], idx, wide, offset)
			idx++
		}
		length := offset
		if length >= maxCodeLength {
			return nil, wrapErr(KindCodeTooLarge, ErrStructuralParse, "Code", "code_length %d exceeds u16 range", length)
		}

		changed := false
		for i, insn := range real {
			target, _, ok := jumpTarget(insn)
			if !ok || wide[i] {
				continue
			}
			delta := labelOffset[target] - positions[i]
			if delta < -1<<15 || delta > 1<<15-1 {
				if !widenableOnlyViaGotoOrJsr(insn.Op) {
					return nil, wrapErr(KindBranchOutOfRange, ErrStructuralParse, "Code", "conditional branch at offset %d out of 16-bit range (delta %d); insert an explicit GOTO_W escape", positions[i], delta)
				}
				wide[i] = true
				changed = true
			}
		}
		if !changed {
			return &codeLayout{positions: positions, labelOffset: labelOffset, wide: wide, length: length}, nil
		}
	}
	return nil, wrapErr(KindBranchOutOfRange, ErrStructuralParse, "Code", "branch offset promotion did not converge")
}

func jumpTarget(insn Instruction) (*Label, int, bool) {
	if _, ok := shortJumpOpcodes[insn.Op]; ok && insn.Target != nil {
		return insn.Target, insn.Op, true
	}
	return nil, 0, false
}

// instructionSize returns the on-disk size, in bytes, of real[idx] when
// placed at offset, consulting wide for whether it has been promoted.
func instructionSize(insn Instruction, idx int, wide map[int]bool, offset int) int {
	switch insn.Op {
	case opcodes.WIDE:
		return 1 // never emitted directly; wide-prefixed ops computed below
	case opcodes.BIPUSH, opcodes.NEWARRAY:
		return 2
	case opcodes.SIPUSH, opcodes.LDC_W, opcodes.LDC2_W:
		return 3
	case opcodes.LDC:
		return 2
	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE, opcodes.RET:
		if insn.Var > 255 {
			return 4 // wide prefix + opcode + u16
		}
		return 2
	case opcodes.IINC:
		if insn.Var > 255 || insn.IncAmount < -128 || insn.IncAmount > 127 {
			return 6
		}
		return 3
	case opcodes.GETSTATIC, opcodes.PUTSTATIC, opcodes.GETFIELD, opcodes.PUTFIELD,
		opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC,
		opcodes.NEW, opcodes.ANEWARRAY, opcodes.CHECKCAST, opcodes.INSTANCEOF:
		return 3
	case opcodes.INVOKEINTERFACE, opcodes.INVOKEDYNAMIC:
		return 5
	case opcodes.MULTIANEWARRAY:
		return 4
	case opcodes.GOTO_W, opcodes.JSR_W:
		return 5
	case opcodes.TABLESWITCH:
		pad := (4 - (offset+1)%4) % 4
		n := int(insn.High - insn.Low + 1)
		return 1 + pad + 12 + 4*n
	case opcodes.LOOKUPSWITCH:
		pad := (4 - (offset+1)%4) % 4
		return 1 + pad + 8 + 8*len(insn.LookupKeys)
	default:
		if wide[idx] {
			if op, ok := shortJumpOpcodes[insn.Op]; ok && widenableOnlyViaGotoOrJsr(insn.Op) {
				_ = op
				return 5
			}
		}
		if _, ok := shortJumpOpcodes[insn.Op]; ok {
			return 3
		}
		return 1
	}
}
