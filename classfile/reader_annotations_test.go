package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
)

// TestParameterAnnotationsRoundTrip pins the Open Question decision that
// RuntimeVisibleParameterAnnotations/RuntimeInvisibleParameterAnnotations
// are parsed into MethodNode.ParameterAnnotations rather than kept
// opaque (spec §3.2's ParameterAnnotations type), including a parameter
// with no annotations of its own sitting between two that do have one.
func TestParameterAnnotationsRoundTrip(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "com/example/Params", "", "java/lang/Object", nil))

	mv, err := c.VisitMethod(opcodes.ACC_PUBLIC, "call", "(ILjava/lang/String;I)V", "", nil)
	require.NoError(t, err)

	av0, err := mv.VisitParameterAnnotation(0, "Lcom/example/Visible;", true)
	require.NoError(t, err)
	require.NotNil(t, av0)
	require.NoError(t, av0.VisitEnd())

	av2, err := mv.VisitParameterAnnotation(2, "Lcom/example/Invisible;", false)
	require.NoError(t, err)
	require.NotNil(t, av2)
	require.NoError(t, av2.VisitEnd())

	require.NoError(t, mv.VisitCode())
	require.NoError(t, mv.VisitInsn(classfile.Instruction{Op: opcodes.RETURN}))
	require.NoError(t, mv.VisitMaxs(0, 4))
	require.NoError(t, mv.VisitEnd())

	out, err := classfile.WriteClass(c)
	require.NoError(t, err)

	reader, err := classfile.NewClassReader(out)
	require.NoError(t, err)
	back := classfile.NewClassNode()
	require.NoError(t, reader.Accept(back))

	require.Len(t, back.Methods, 1)
	pas := back.Methods[0].ParameterAnnotations
	require.Len(t, pas, 3)

	require.Len(t, pas[0].Visible, 1)
	require.Equal(t, "Lcom/example/Visible;", pas[0].Visible[0].Descriptor)
	require.Empty(t, pas[0].Invisible)

	require.Empty(t, pas[1].Visible)
	require.Empty(t, pas[1].Invisible)

	require.Len(t, pas[2].Invisible, 1)
	require.Equal(t, "Lcom/example/Invisible;", pas[2].Invisible[0].Descriptor)
	require.Empty(t, pas[2].Visible)
}
