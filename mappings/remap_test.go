package mappings_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/mappings"
)

func TestARemapperMapsClassesInDescriptorsAndSignatures(t *testing.T) {
	r := mappings.NewARemapper(map[string]string{
		"a/Widget": "com/example/Widget",
		"a/Gadget": "com/example/Gadget",
	})

	require.Equal(t, "com/example/Widget", r.MapClass("a/Widget"))
	require.Equal(t, "a/Unknown", r.MapClass("a/Unknown"), "names outside the table pass through unchanged")

	fieldDesc, err := r.MapFieldDesc("[La/Widget;")
	require.NoError(t, err)
	require.Equal(t, "[Lcom/example/Widget;", fieldDesc)

	methodDesc, err := r.MapMethodDesc("(La/Widget;I)La/Gadget;")
	require.NoError(t, err)
	require.Equal(t, "(Lcom/example/Widget;I)Lcom/example/Gadget;", methodDesc)

	returnDesc, err := r.MapReturnDesc("(La/Widget;)La/Gadget;")
	require.NoError(t, err)
	require.Equal(t, "Lcom/example/Gadget;", returnDesc)

	sig := r.MapSignature("<T:La/Widget;>La/Gadget;")
	require.Equal(t, "<T:Lcom/example/Widget;>Lcom/example/Gadget;", sig)
}

// TestARemapperInverseRoundTrips pins spec §8 invariant 5: applying a
// remapper then its inverse returns the original name.
func TestARemapperInverseRoundTrips(t *testing.T) {
	r := mappings.NewARemapper(map[string]string{"a/Widget": "com/example/Widget"})
	inv := r.Inverse()

	mapped := r.MapClass("a/Widget")
	require.Equal(t, "a/Widget", inv.MapClass(mapped))
}

func TestMapDescDispatchesOnParenPrefix(t *testing.T) {
	r := mappings.NewARemapper(map[string]string{"a/Widget": "com/example/Widget"})

	field, err := r.MapDesc("La/Widget;")
	require.NoError(t, err)
	require.Equal(t, "Lcom/example/Widget;", field)

	method, err := r.MapDesc("()La/Widget;")
	require.NoError(t, err)
	require.Equal(t, "()Lcom/example/Widget;", method)
}

// TestBRemapperChasesSuperclassForInheritedMember pins the B-remapper's
// central behavior (spec §4.8): a reference whose static owner is a
// subclass that merely inherits the member still resolves, by walking
// a SuperclassProvider up to the class that actually declares it.
func TestBRemapperChasesSuperclassForInheritedMember(t *testing.T) {
	super := mappings.SuperclassProviderFunc(func(class string) []string {
		switch class {
		case "a/Sub":
			return []string{"a/Base"}
		default:
			return nil
		}
	})
	b := mappings.NewBRemapper(nil, super)
	b.AddMethod("a/Base", "doIt", "()V", "renamed", "()V")

	require.Equal(t, "renamed", b.MapMethodName("a/Sub", "doIt", "()V"))
	require.Equal(t, "doIt", b.MapMethodName("a/Other", "doIt", "()V"), "unrelated classes are untouched")
}

func TestFromMappingsBuildsRemapperBetweenTwoNamespaces(t *testing.T) {
	m, err := mappings.New([]string{"official", "intermediary", "named"})
	require.NoError(t, err)

	base, err := m.AddClass(mappings.Names{Values: []string{"a/Base", "net/minecraft/class_1", "net/minecraft/Base"}})
	require.NoError(t, err)
	_, err = base.AddMethod("()V", mappings.Names{Values: []string{"a", "method_1", "doStuff"}})
	require.NoError(t, err)

	super := mappings.SuperclassProviderFunc(func(class string) []string {
		if class == "net/minecraft/class_2" {
			return []string{"net/minecraft/class_1"}
		}
		return nil
	})

	b, err := mappings.FromMappings(m, "intermediary", "named", super)
	require.NoError(t, err)
	require.Equal(t, "net/minecraft/Base", b.MapClass("net/minecraft/class_1"))
	require.Equal(t, "doStuff", b.MapMethodName("net/minecraft/class_1", "method_1", "()V"))
	require.Equal(t, "doStuff", b.MapMethodName("net/minecraft/class_2", "method_1", "()V"), "inherited reference resolves via the superclass provider")
}

func TestNamespaceIndexReportsUnknownNamespace(t *testing.T) {
	m, err := mappings.New([]string{"official", "named"})
	require.NoError(t, err)

	idx, ok := m.NamespaceIndex("named")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = m.NamespaceIndex("missing")
	require.False(t, ok)
}
