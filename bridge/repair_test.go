package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/bridge"
	"github.com/ludoforge/classkit/mappings"
)

func TestRepairMappingsCopiesBridgeNameOntoSpecialized(t *testing.T) {
	m, err := mappings.New([]string{"official", "named"})
	require.NoError(t, err)

	owner, err := m.AddClass(mappings.Names{Values: []string{"a/Sub", "a/Sub"}})
	require.NoError(t, err)
	_, err = owner.AddMethod("()Ljava/lang/Object;", mappings.Names{Values: []string{"get", "getValue"}})
	require.NoError(t, err)

	pairing := &bridge.Pairing{
		BridgeToSpecialized: map[bridge.MethodRef]bridge.MethodRef{
			{Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/Object;"}: {Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/String;"},
		},
		SpecializedToBridge: map[bridge.MethodRef]bridge.MethodRef{
			{Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/String;"}: {Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/Object;"},
		},
	}

	require.NoError(t, bridge.RepairMappings(m, "named", pairing))

	class, ok := m.Classes.Get("a/Sub")
	require.True(t, ok)
	specialized, ok := class.Methods.Get(mappings.MethodKey{Descriptor: "()Ljava/lang/String;", Name: "get"})
	require.True(t, ok)
	name, ok := specialized.Names.Name(1)
	require.True(t, ok)
	require.Equal(t, "getValue", name)
}

func TestRepairMappingsIsNoOpWhenBridgeHasNoTargetName(t *testing.T) {
	m, err := mappings.New([]string{"official", "named"})
	require.NoError(t, err)
	_, err = m.AddClass(mappings.Names{Values: []string{"a/Sub", "a/Sub"}})
	require.NoError(t, err)

	pairing := &bridge.Pairing{
		BridgeToSpecialized: map[bridge.MethodRef]bridge.MethodRef{
			{Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/Object;"}: {Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/String;"},
		},
		SpecializedToBridge: map[bridge.MethodRef]bridge.MethodRef{},
	}

	require.NoError(t, bridge.RepairMappings(m, "named", pairing))

	class, ok := m.Classes.Get("a/Sub")
	require.True(t, ok)
	_, ok = class.Methods.Get(mappings.MethodKey{Descriptor: "()Ljava/lang/String;", Name: "get"})
	require.False(t, ok, "no mapping should be synthesized when the bridge itself carries no name in the target namespace")
}

func TestPairingRemapRewritesOwnerAndDescriptorThroughARemapper(t *testing.T) {
	a := mappings.NewARemapper(map[string]string{"a/Sub": "com/example/Sub", "a/Base": "com/example/Base"})

	pairing := &bridge.Pairing{
		BridgeToSpecialized: map[bridge.MethodRef]bridge.MethodRef{
			{Owner: "a/Sub", Name: "get", Descriptor: "()La/Base;"}: {Owner: "a/Sub", Name: "get", Descriptor: "()La/Sub;"},
		},
		SpecializedToBridge: map[bridge.MethodRef]bridge.MethodRef{},
	}

	remapped, err := pairing.Remap(a)
	require.NoError(t, err)

	got, ok := remapped.BridgeToSpecialized[bridge.MethodRef{Owner: "com/example/Sub", Name: "get", Descriptor: "()Lcom/example/Base;"}]
	require.True(t, ok)
	require.Equal(t, bridge.MethodRef{Owner: "com/example/Sub", Name: "get", Descriptor: "()Lcom/example/Sub;"}, got)
}
