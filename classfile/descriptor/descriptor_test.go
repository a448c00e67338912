package descriptor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile/descriptor"
)

func TestParseFieldPrimitive(t *testing.T) {
	ft, err := descriptor.ParseField("I")
	require.NoError(t, err)
	require.Equal(t, descriptor.Int, ft.Sort)
	require.Equal(t, "I", ft.Write())
}

func TestParseFieldObject(t *testing.T) {
	ft, err := descriptor.ParseField("Ljava/lang/String;")
	require.NoError(t, err)
	require.Equal(t, descriptor.Object, ft.Sort)
	require.Equal(t, descriptor.ClassName("java/lang/String"), ft.ClassName)
	require.Equal(t, "Ljava/lang/String;", ft.Write())
}

func TestParseFieldArray(t *testing.T) {
	ft, err := descriptor.ParseField("[[Ljava/lang/String;")
	require.NoError(t, err)
	require.Equal(t, descriptor.Array, ft.Sort)
	require.Equal(t, 2, ft.Dimension)
	require.Equal(t, "[[Ljava/lang/String;", ft.Write())
}

func TestParseFieldMalformed(t *testing.T) {
	_, err := descriptor.ParseField("Ljava/lang/String")
	require.Error(t, err)

	_, err = descriptor.ParseField("Q")
	require.Error(t, err)

	_, err = descriptor.ParseField("Ltrailing;extra")
	require.Error(t, err)
}

func TestParametersRoundTrip(t *testing.T) {
	d := descriptor.MethodDescriptor("(ILjava/lang/String;[D)Ljava/lang/Object;")
	params, ret, err := descriptor.Parameters(d)
	require.NoError(t, err)
	require.Len(t, params, 3)
	require.Equal(t, d, descriptor.WriteMethod(params, ret))
}

func TestParametersMalformed(t *testing.T) {
	_, _, err := descriptor.Parameters("ILjava/lang/String;)V")
	require.Error(t, err)
}

func TestClassNamesIn(t *testing.T) {
	names := descriptor.ClassNamesIn("(Ljava/lang/String;[Ljava/util/List;)Lfoo/Bar;")
	require.Equal(t, []descriptor.ClassName{"java/lang/String", "java/util/List", "foo/Bar"}, names)
}

func TestClassNameValid(t *testing.T) {
	require.True(t, descriptor.ClassName("java/lang/Object").Valid())
	require.False(t, descriptor.ClassName("").Valid())
	require.False(t, descriptor.ClassName("/java/lang").Valid())
	require.False(t, descriptor.ClassName("java//lang").Valid())
}
