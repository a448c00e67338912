package classfile

import (
	"encoding/binary"

	"github.com/ludoforge/classkit/classfile/opcodes"
)

// rawInstr is the intermediate form produced while scanning the code
// array: branch/switch targets are plain absolute offsets here, not yet
// resolved to *Label (see toInstruction), so the same decode logic can
// run in both the label-discovery pass and the final build pass.
type rawInstr struct {
	op int

	intOperand int
	varIdx     int
	incAmount  int

	typeName   string
	dimensions int

	owner, name, descriptor string
	isInterface             bool

	loadable *Loadable

	hasTarget    bool
	targetOffset int

	low, high     int32
	switchTargets []int

	lookupKeys    []int32
	lookupTargets []int

	hasDefault    bool
	defaultTarget int

	bootstrapHandle Handle
	bootstrapArgs   []Loadable
}

func (ri rawInstr) toInstruction(labels *labelTable) (Instruction, error) {
	insn := Instruction{
		Op: ri.op, IntOperand: ri.intOperand, Var: ri.varIdx, IncAmount: ri.incAmount,
		TypeName: ri.typeName, Dimensions: ri.dimensions,
		Owner: ri.owner, Name: ri.name, Descriptor: ri.descriptor, IsInterface: ri.isInterface,
		Loadable: ri.loadable,
		Low:      ri.low, High: ri.high,
		LookupKeys:      ri.lookupKeys,
		BootstrapHandle: ri.bootstrapHandle, BootstrapArgs: ri.bootstrapArgs,
	}
	if ri.hasTarget {
		insn.Target = labels.getOrCreate(ri.targetOffset)
	}
	if len(ri.switchTargets) > 0 {
		insn.SwitchTargets = make([]*Label, len(ri.switchTargets))
		for i, t := range ri.switchTargets {
			insn.SwitchTargets[i] = labels.getOrCreate(t)
		}
	}
	if len(ri.lookupTargets) > 0 {
		insn.LookupTargets = make([]*Label, len(ri.lookupTargets))
		for i, t := range ri.lookupTargets {
			insn.LookupTargets[i] = labels.getOrCreate(t)
		}
	}
	if ri.hasDefault {
		insn.Default = labels.getOrCreate(ri.defaultTarget)
	}
	return insn, nil
}

// decodeOneInstruction decodes the instruction starting at pos, returning
// it and the number of bytes it (and, for WIDE, its wrapped instruction)
// occupies.
func decodeOneInstruction(code []byte, pos int, pool *ConstantPool) (rawInstr, int, error) {
	if pos >= len(code) {
		return rawInstr{}, 0, wrapErr(KindBadOpcode, ErrStructuralParse, "Code", "instruction at end of code array")
	}
	op := int(code[pos])

	switch op {
	case opcodes.WIDE:
		return decodeWide(code, pos)

	case opcodes.BIPUSH:
		return need(code, pos, 2, func() (rawInstr, error) {
			return rawInstr{op: op, intOperand: int(int8(code[pos+1]))}, nil
		})
	case opcodes.NEWARRAY:
		return need(code, pos, 2, func() (rawInstr, error) {
			return rawInstr{op: op, intOperand: int(code[pos+1])}, nil
		})
	case opcodes.SIPUSH:
		return need(code, pos, 3, func() (rawInstr, error) {
			return rawInstr{op: op, intOperand: int(int16(be16(code, pos+1)))}, nil
		})

	case opcodes.LDC:
		return need(code, pos, 2, func() (rawInstr, error) {
			l, err := pool.GetLoadable(int(code[pos+1]))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, loadable: &l}, nil
		})
	case opcodes.LDC_W, opcodes.LDC2_W:
		return need(code, pos, 3, func() (rawInstr, error) {
			l, err := pool.GetLoadable(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, loadable: &l}, nil
		})

	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE, opcodes.RET:
		return need(code, pos, 2, func() (rawInstr, error) {
			return rawInstr{op: op, varIdx: int(code[pos+1])}, nil
		})

	case opcodes.IINC:
		return need(code, pos, 3, func() (rawInstr, error) {
			return rawInstr{op: op, varIdx: int(code[pos+1]), incAmount: int(int8(code[pos+2]))}, nil
		})

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE,
		opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE, opcodes.IF_ICMPGT, opcodes.IF_ICMPLE,
		opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE, opcodes.GOTO, opcodes.JSR, opcodes.IFNULL, opcodes.IFNONNULL:
		return need(code, pos, 3, func() (rawInstr, error) {
			target := pos + int(int16(be16(code, pos+1)))
			return rawInstr{op: op, hasTarget: true, targetOffset: target}, nil
		})

	case opcodes.GOTO_W, opcodes.JSR_W:
		return need(code, pos, 5, func() (rawInstr, error) {
			target := pos + int(int32(binary.BigEndian.Uint32(code[pos+1:])))
			return rawInstr{op: op, hasTarget: true, targetOffset: target}, nil
		})

	case opcodes.TABLESWITCH:
		return decodeTableSwitch(code, pos)
	case opcodes.LOOKUPSWITCH:
		return decodeLookupSwitch(code, pos)

	case opcodes.GETSTATIC, opcodes.PUTSTATIC, opcodes.GETFIELD, opcodes.PUTFIELD:
		return need(code, pos, 3, func() (rawInstr, error) {
			ref, err := pool.GetFieldRef(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, owner: ref.Owner, name: ref.Name, descriptor: ref.Descriptor}, nil
		})

	case opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC:
		return need(code, pos, 3, func() (rawInstr, error) {
			ref, err := pool.GetMethodRefOrInterfaceMethodRef(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, owner: ref.Owner, name: ref.Name, descriptor: ref.Descriptor, isInterface: ref.IsInterface}, nil
		})

	case opcodes.INVOKEINTERFACE:
		return need(code, pos, 5, func() (rawInstr, error) {
			ref, err := pool.GetMethodRefOrInterfaceMethodRef(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, owner: ref.Owner, name: ref.Name, descriptor: ref.Descriptor, isInterface: true}, nil
		})

	case opcodes.INVOKEDYNAMIC:
		return need(code, pos, 5, func() (rawInstr, error) {
			name, desc, bsmIndex, err := pool.GetDynamic(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			bsms := pool.BootstrapMethods()
			if bsmIndex >= len(bsms) {
				return rawInstr{}, wrapErr(KindMissingBootstrap, ErrStructuralParse, "invokedynamic", "bootstrap method index %d out of range", bsmIndex)
			}
			bsm := bsms[bsmIndex]
			args := make([]Loadable, len(bsm.Arguments))
			for i, argIdx := range bsm.Arguments {
				l, err := pool.GetLoadable(int(argIdx))
				if err != nil {
					return rawInstr{}, err
				}
				args[i] = l
			}
			return rawInstr{op: op, name: name, descriptor: desc, bootstrapHandle: bsm.Handle, bootstrapArgs: args}, nil
		})

	case opcodes.NEW, opcodes.ANEWARRAY, opcodes.CHECKCAST, opcodes.INSTANCEOF:
		return need(code, pos, 3, func() (rawInstr, error) {
			name, err := pool.GetClass(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, typeName: name}, nil
		})

	case opcodes.MULTIANEWARRAY:
		return need(code, pos, 4, func() (rawInstr, error) {
			name, err := pool.GetClass(int(be16(code, pos+1)))
			if err != nil {
				return rawInstr{}, err
			}
			return rawInstr{op: op, typeName: name, dimensions: int(code[pos+3])}, nil
		})

	default:
		if op < 0 || op > opcodes.JSR_W {
			return rawInstr{}, 0, wrapErr(KindBadOpcode, ErrStructuralParse, "Code", "unknown opcode %d at offset %d", op, pos)
		}
		return rawInstr{op: op}, 1, nil
	}
}

func need(code []byte, pos, length int, build func() (rawInstr, error)) (rawInstr, int, error) {
	if pos+length > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "instruction at offset %d truncated", pos)
	}
	ri, err := build()
	return ri, length, err
}

func decodeWide(code []byte, pos int) (rawInstr, int, error) {
	if pos+2 > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated wide prefix")
	}
	inner := int(code[pos+1])
	switch inner {
	case opcodes.IINC:
		if pos+6 > len(code) {
			return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated wide iinc")
		}
		varIdx := int(be16(code, pos+2))
		amount := int(int16(be16(code, pos+4)))
		return rawInstr{op: opcodes.IINC, varIdx: varIdx, incAmount: amount}, 6, nil
	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE, opcodes.RET:
		if pos+4 > len(code) {
			return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "Code", "truncated wide instruction")
		}
		return rawInstr{op: inner, varIdx: int(be16(code, pos+2))}, 4, nil
	default:
		return rawInstr{}, 0, wrapErr(KindUnknownWideOpcode, ErrStructuralParse, "Code", "opcode %d cannot be widened", inner)
	}
}

func decodeTableSwitch(code []byte, pos int) (rawInstr, int, error) {
	padStart := pos + 1
	pad := (4 - padStart%4) % 4
	off := padStart + pad
	if off+12 > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "tableswitch", "truncated header")
	}
	def := int32(binary.BigEndian.Uint32(code[off:]))
	low := int32(binary.BigEndian.Uint32(code[off+4:]))
	high := int32(binary.BigEndian.Uint32(code[off+8:]))
	off += 12
	if low > high {
		return rawInstr{}, 0, wrapErr(KindSwitchBoundsInverted, ErrStructuralParse, "tableswitch", "low %d > high %d", low, high)
	}
	n := int(high - low + 1)
	if off+4*n > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "tableswitch", "truncated jump table")
	}
	targets := make([]int, n)
	for i := 0; i < n; i++ {
		targets[i] = pos + int(int32(binary.BigEndian.Uint32(code[off+4*i:])))
	}
	off += 4 * n
	return rawInstr{
		op: opcodes.TABLESWITCH, low: low, high: high,
		switchTargets: targets, hasDefault: true, defaultTarget: pos + int(def),
	}, off - pos, nil
}

func decodeLookupSwitch(code []byte, pos int) (rawInstr, int, error) {
	padStart := pos + 1
	pad := (4 - padStart%4) % 4
	off := padStart + pad
	if off+8 > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "lookupswitch", "truncated header")
	}
	def := int32(binary.BigEndian.Uint32(code[off:]))
	n := int(binary.BigEndian.Uint32(code[off+4:]))
	off += 8
	if off+8*n > len(code) {
		return rawInstr{}, 0, wrapErr(KindMalformedPool, ErrStructuralParse, "lookupswitch", "truncated match table")
	}
	keys := make([]int32, n)
	targets := make([]int, n)
	for i := 0; i < n; i++ {
		keys[i] = int32(binary.BigEndian.Uint32(code[off+8*i:]))
		targets[i] = pos + int(int32(binary.BigEndian.Uint32(code[off+8*i+4:])))
	}
	off += 8 * n
	return rawInstr{
		op: opcodes.LOOKUPSWITCH, lookupKeys: keys, lookupTargets: targets,
		hasDefault: true, defaultTarget: pos + int(def),
	}, off - pos, nil
}
