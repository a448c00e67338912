package classfile_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
)

// TestStackMapTableRoundTripsOnBranchingMethod pins the spec §9 Open
// Question decision that a method needing a stack-map gets exactly one
// StackMapTable attribute on write, and that the reader accepts it back
// (the writer always emits the uncompressed full_frame form, spec
// §3.3's StackMapFrame doc comment).
func TestStackMapTableRoundTripsOnBranchingMethod(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Branchy", "", "java/lang/Object", nil))

	mv, err := c.VisitMethod(opcodes.ACC_PUBLIC|opcodes.ACC_STATIC, "sign", "(I)I", "", nil)
	require.NoError(t, err)
	require.NoError(t, mv.VisitCode())

	positive := classfile.NewLabel()
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ILOAD, Var: 0}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IFGT, Target: positive}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.ICONST_0}))
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.IRETURN}))
	require.NoError(t, mv.VisitLabel(positive))
	require.NoError(t, mv.VisitFrame(classfile.StackMapFrame{
		Locals: []classfile.VerificationType{{Tag: opcodes.ITEM_INTEGER}},
	}))
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
	var sawFrame bool
	for _, insn := range back.Methods[0].Code.Instructions {
		if insn.Frame != nil {
			sawFrame = true
		}
	}
	require.True(t, sawFrame, "expected the frame at the branch target to survive the round trip")
}

// TestDuplicateStackMapAttributeIsRejected pins the other half of the
// spec §9 Open Question: StackMapTable and the legacy pre-classfile-v50
// StackMap name are interchangeable, but a *second* occurrence of
// either name on the same Code attribute is a hard DuplicateAttribute
// error, not a silent overwrite.
func TestDuplicateStackMapAttributeIsRejected(t *testing.T) {
	class := buildClassWithDuplicateStackMap(t)

	reader, err := classfile.NewClassReader(class)
	require.NoError(t, err)

	err = reader.Accept(classfile.NewClassNode())
	require.Error(t, err)

	var perr *classfile.PositionedError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, classfile.KindDuplicateAttribute, perr.Kind)
}

// buildClassWithDuplicateStackMap hand-assembles a minimal class file
// (one method, one Code attribute carrying two zero-entry StackMapTable
// sub-attributes) to exercise the reader's duplicate check directly,
// since no classfile.ClassNode API allows attaching two stack maps to
// one method.
func buildClassWithDuplicateStackMap(t *testing.T) []byte {
	t.Helper()

	var pool bytes.Buffer
	var count uint16
	utf8 := func(s string) uint16 {
		pool.WriteByte(1) // CONSTANT_Utf8
		binary.Write(&pool, binary.BigEndian, uint16(len(s)))
		pool.WriteString(s)
		count++
		return count
	}
	class := func(nameIdx uint16) uint16 {
		pool.WriteByte(7) // CONSTANT_Class
		binary.Write(&pool, binary.BigEndian, nameIdx)
		count++
		return count
	}

	thisNameIdx := utf8("T")
	thisIdx := class(thisNameIdx)
	superNameIdx := utf8("java/lang/Object")
	superIdx := class(superNameIdx)
	methodNameIdx := utf8("m")
	methodDescIdx := utf8("()V")
	codeAttrNameIdx := utf8("Code")
	stackMapAttrNameIdx := utf8("StackMapTable")

	var codeBody bytes.Buffer
	binary.Write(&codeBody, binary.BigEndian, uint16(1)) // max_stack
	binary.Write(&codeBody, binary.BigEndian, uint16(1)) // max_locals
	code := []byte{0xB1}                                 // return
	binary.Write(&codeBody, binary.BigEndian, uint32(len(code)))
	codeBody.Write(code)
	binary.Write(&codeBody, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&codeBody, binary.BigEndian, uint16(2)) // code attributes_count: two StackMapTables
	for i := 0; i < 2; i++ {
		binary.Write(&codeBody, binary.BigEndian, stackMapAttrNameIdx)
		binary.Write(&codeBody, binary.BigEndian, uint32(2)) // attribute_length
		binary.Write(&codeBody, binary.BigEndian, uint16(0)) // number_of_entries
	}

	var method bytes.Buffer
	binary.Write(&method, binary.BigEndian, uint16(opcodes.ACC_PUBLIC))
	binary.Write(&method, binary.BigEndian, methodNameIdx)
	binary.Write(&method, binary.BigEndian, methodDescIdx)
	binary.Write(&method, binary.BigEndian, uint16(1)) // attributes_count: one Code attribute
	binary.Write(&method, binary.BigEndian, codeAttrNameIdx)
	binary.Write(&method, binary.BigEndian, uint32(codeBody.Len()))
	method.Write(codeBody.Bytes())

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(52)) // major (V8)
	binary.Write(&out, binary.BigEndian, uint16(count+1))
	out.Write(pool.Bytes())
	binary.Write(&out, binary.BigEndian, uint16(opcodes.ACC_PUBLIC|opcodes.ACC_SUPER))
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count
	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	out.Write(method.Bytes())
	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count

	return out.Bytes()
}
