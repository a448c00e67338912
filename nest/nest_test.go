package nest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/nest"
)

func TestLoadDescriptorsDecodesYAML(t *testing.T) {
	doc := strings.NewReader(`
- target: a/C_1
  enclosing: a/Outer
  enclosingMethodName: run
  enclosingMethodDescriptor: "()V"
  innerName: "1Helper"
  access: 0
  kind: local
- target: a/Outer$Inner
  enclosing: a/Outer
  innerName: Inner
  access: 1
  kind: inner
`)
	descriptors, err := nest.LoadDescriptors(doc)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	require.Equal(t, nest.Local, descriptors[0].Kind)
	require.Equal(t, "a/Outer", descriptors[0].Enclosing)
	require.Equal(t, nest.Inner, descriptors[1].Kind)
}

func TestApplySetsEnclosingMethodAndInnerClasses(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/C_1", "", "java/lang/Object", nil))

	d := nest.Descriptor{
		Target:              "a/C_1",
		Enclosing:           "a/Outer",
		EnclosingMethodName: "run",
		EnclosingMethodDesc: "()V",
		InnerName:           "1Helper",
		Access:              0,
		Kind:                nest.Local,
	}
	require.NoError(t, nest.Apply(c, d))

	require.True(t, c.OuterClass.Present)
	require.Equal(t, "a/Outer", c.OuterClass.Owner)
	require.Equal(t, "run", c.OuterClass.Name)
	require.Equal(t, "()V", c.OuterClass.Descriptor)

	require.Len(t, c.InnerClasses, 1)
	entry := c.InnerClasses[0]
	require.Equal(t, "a/C_1", entry.Name)
	require.Equal(t, "Helper", entry.InnerName, "the leading javac digit prefix is stripped")
	require.Empty(t, entry.OuterName, "a local class's InnerClasses entry carries no outer_class_info_index")
}

func TestApplyRejectsDescriptorForWrongClass(t *testing.T) {
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Other", "", "java/lang/Object", nil))

	d := nest.Descriptor{Target: "a/C_1", Enclosing: "a/Outer", Kind: nest.Anonymous}
	require.Error(t, nest.Apply(c, d))
}

func TestApplyEnclosingAppendsSameEntryToOuterClass(t *testing.T) {
	outer := classfile.NewClassNode()
	require.NoError(t, outer.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Outer", "", "java/lang/Object", nil))

	d := nest.Descriptor{Target: "a/Outer$Inner", Enclosing: "a/Outer", InnerName: "Inner", Access: 1, Kind: nest.Inner}
	require.NoError(t, nest.ApplyEnclosing(outer, d))

	require.Len(t, outer.InnerClasses, 1)
	require.Equal(t, "a/Outer$Inner", outer.InnerClasses[0].Name)
	require.Equal(t, "a/Outer", outer.InnerClasses[0].OuterName)
	require.Equal(t, "Inner", outer.InnerClasses[0].InnerName)
}

func TestClassNameMapAndRemapClassNames(t *testing.T) {
	descriptors := []nest.Descriptor{
		{Target: "a/C_1", Enclosing: "a/Outer", InnerName: "1Helper", Kind: nest.Local},
		{Target: "a/Outer$Inner", Enclosing: "a/Outer", InnerName: "Inner", Kind: nest.Inner},
		{Target: "a/C_2", Enclosing: "a/Outer", Kind: nest.Anonymous}, // anonymous: no inner name, excluded
	}

	table := nest.ClassNameMap(descriptors)
	require.Equal(t, "a/Outer$Helper", table["a/C_1"])
	require.Equal(t, "a/Outer$Inner", table["a/Outer$Inner"])
	require.NotContains(t, table, "a/C_2")

	remapper := nest.RemapClassNames(descriptors)
	require.Equal(t, "a/Outer$Helper", remapper.MapClass("a/C_1"))
	require.Equal(t, "a/C_2", remapper.MapClass("a/C_2"), "names outside the table pass through unchanged")
}
