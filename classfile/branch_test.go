package classfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile/opcodes"
)

func TestLayoutCodeSimpleBranch(t *testing.T) {
	target := NewLabel()
	instructions := []Instruction{
		{Op: opcodes.ICONST_0},
		{Op: opcodes.IFEQ, Target: target},
		{Op: opcodes.ICONST_1},
		{Label: target},
		{Op: opcodes.RETURN},
	}
	layout, err := layoutCode(instructions)
	require.NoError(t, err)
	require.Equal(t, 6, layout.length) // iconst_0(1) + ifeq(3) + iconst_1(1) + return(1)
	require.Empty(t, layout.wide)
}

func TestLayoutCodePromotesGotoWhenOutOfRange(t *testing.T) {
	target := NewLabel()
	instructions := make([]Instruction, 0, 40000)
	instructions = append(instructions, Instruction{Op: opcodes.GOTO, Target: target})
	for i := 0; i < 1<<15; i++ {
		instructions = append(instructions, Instruction{Op: opcodes.NOP})
	}
	instructions = append(instructions, Instruction{Label: target})
	instructions = append(instructions, Instruction{Op: opcodes.RETURN})

	layout, err := layoutCode(instructions)
	require.NoError(t, err)
	require.True(t, layout.wide[0], "goto crossing the 16-bit range must be promoted to goto_w")
	require.Equal(t, 5, instructionSize(instructions[0], 0, layout.wide, 0))
}

func TestLayoutCodeRejectsOutOfRangeConditionalBranch(t *testing.T) {
	target := NewLabel()
	instructions := make([]Instruction, 0, 40000)
	instructions = append(instructions, Instruction{Op: opcodes.IFEQ, Target: target})
	for i := 0; i < 1<<15; i++ {
		instructions = append(instructions, Instruction{Op: opcodes.NOP})
	}
	instructions = append(instructions, Instruction{Label: target})

	_, err := layoutCode(instructions)
	require.Error(t, err)
}

func TestLayoutCodeTableswitchPadding(t *testing.T) {
	def := NewLabel()
	case0 := NewLabel()
	instructions := []Instruction{
		{Op: opcodes.NOP}, // offset 0, pushes tableswitch to offset 1
		{Op: opcodes.TABLESWITCH, Low: 0, High: 0, Default: def, SwitchTargets: []*Label{case0}},
		{Label: case0},
		{Op: opcodes.RETURN},
		{Label: def},
		{Op: opcodes.RETURN},
	}
	layout, err := layoutCode(instructions)
	require.NoError(t, err)
	// tableswitch at offset 1: pad to next multiple of 4 after the opcode byte,
	// so padding = (4 - (1+1)%4)%4 = 2, then 12 header bytes + 4 per entry (1 entry).
	require.Equal(t, 1+2+12+4, instructionSize(instructions[1], 0, nil, 1))
	require.Equal(t, 1+1+2+12+4+1+1, layout.length)
}

func TestInstructionSizeWideVarSlot(t *testing.T) {
	insn := Instruction{Op: opcodes.ILOAD, Var: 300}
	require.Equal(t, 4, instructionSize(insn, 0, map[int]bool{}, 0))
}

func TestInstructionSizeWideIinc(t *testing.T) {
	insn := Instruction{Op: opcodes.IINC, Var: 1, IncAmount: 200}
	require.Equal(t, 6, instructionSize(insn, 0, map[int]bool{}, 0))
}
