package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
)

func TestWriteClassEmptyRoundTrips(t *testing.T) {
	c := classfile.NewClassNode()
	err := c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Empty", "", "java/lang/Object", nil)
	require.NoError(t, err)

	out, err := classfile.WriteClass(c)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	reader, err := classfile.NewClassReader(out)
	require.NoError(t, err)

	back := classfile.NewClassNode()
	require.NoError(t, reader.Accept(back))

	require.Equal(t, "com/example/Empty", back.Name)
	require.Equal(t, "java/lang/Object", back.SuperName)
	require.Equal(t, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, back.Access)
	require.Empty(t, back.Interfaces)
	require.Empty(t, back.Fields)
	require.Empty(t, back.Methods)
}

func TestWriteClassFieldWithConstantValueRoundTrips(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Constants", "", "java/lang/Object", nil))
	_, err := c.VisitField(opcodes.ACC_PUBLIC|opcodes.ACC_STATIC|opcodes.ACC_FINAL, "ANSWER", "I", "", int32(42))
	require.NoError(t, err)

	out, err := classfile.WriteClass(c)
	require.NoError(t, err)

	reader, err := classfile.NewClassReader(out)
	require.NoError(t, err)
	back := classfile.NewClassNode()
	require.NoError(t, reader.Accept(back))

	require.Len(t, back.Fields, 1)
	require.Equal(t, "ANSWER", back.Fields[0].Name)
	require.Equal(t, "I", back.Fields[0].Descriptor)
	require.Equal(t, int32(42), back.Fields[0].Value)
}

func TestWriteClassSimpleMethodRoundTrips(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Adder", "", "java/lang/Object", nil))

	mv, err := c.VisitMethod(opcodes.ACC_PUBLIC|opcodes.ACC_STATIC, "add", "(II)I", "", nil)
	require.NoError(t, err)

	require.NoError(t, mv.VisitCode())
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ILOAD, Var: 0}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ILOAD, Var: 1}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IADD}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IRETURN}))
	require.NoError(t, mv.VisitMaxs(2, 2))
	require.NoError(t, mv.VisitEnd())

	out, err := classfile.WriteClass(c)
	require.NoError(t, err)

	reader, err := classfile.NewClassReader(out)
	require.NoError(t, err)
	back := classfile.NewClassNode()
	require.NoError(t, reader.Accept(back))

	require.Len(t, back.Methods, 1)
	m := back.Methods[0]
	require.Equal(t, "add", m.Name)
	require.Equal(t, "(II)I", m.Descriptor)
	require.NotNil(t, m.Code)
	require.Equal(t, 2, m.Code.MaxStack)
	require.Equal(t, 2, m.Code.MaxLocals)
	require.Len(t, m.Code.Instructions, 4)
	require.Equal(t, opcodes.IRETURN, m.Code.Instructions[3].Op)
}

func TestWriteClassBranchRoundTrips(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Cond", "", "java/lang/Object", nil))

	mv, err := c.VisitMethod(opcodes.ACC_PUBLIC|opcodes.ACC_STATIC, "sign", "(I)I", "", nil)
	require.NoError(t, err)
	require.NoError(t, mv.VisitCode())

	positive := classfile.NewLabel()
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ILOAD, Var: 0}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IFGT, Target: positive}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ICONST_0}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IRETURN}))
	require.NoError(t, mv.VisitLabel(positive))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ICONST_1}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IRETURN}))
	require.NoError(t, mv.VisitMaxs(1, 1))
	require.NoError(t, mv.VisitEnd())

	out, err := classfile.WriteClass(c)
	require.NoError(t, err)

	reader, err := classfile.NewClassReader(out)
	require.NoError(t, err)
	back := classfile.NewClassNode()
	require.NoError(t, reader.Accept(back))

	require.Len(t, back.Methods, 1)
	insns := back.Methods[0].Code.Instructions
	var sawJump bool
	for _, insn := range insns {
		if insn.Op == opcodes.IFGT {
			sawJump = true
			require.NotNil(t, insn.Target)
		}
	}
	require.True(t, sawJump, "expected IFGT to survive the round trip")
}

func TestWriteClassRejectsOversizedLdcIndex(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/TooManyConstants", "", "java/lang/Object", nil))

	mv, err := c.VisitMethod(opcodes.ACC_PUBLIC|opcodes.ACC_STATIC, "first", "()Ljava/lang/String;", "", nil)
	require.NoError(t, err)
	require.NoError(t, mv.VisitCode())

	// Force the pool past 255 entries so plain LDC (1-byte index) cannot
	// address the string literal, while the tree still asks for it.
	for i := 0; i < 300; i++ {
		loadable := classfile.Loadable{Sort: classfile.LoadableString, String: padded(i)}
		require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.LDC, Loadable: &loadable}))
		require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.POP}))
	}
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ACONST_NULL}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ARETURN}))
	require.NoError(t, mv.VisitMaxs(1, 0))
	require.NoError(t, mv.VisitEnd())

	_, err = classfile.WriteClass(c)
	require.Error(t, err)
}

func padded(i int) string {
	b := []byte{'k'}
	for i > 0 {
		b = append(b, byte('a'+i%26))
		i /= 26
	}
	return string(b)
}
