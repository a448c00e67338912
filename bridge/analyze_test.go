package bridge_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/bridge"
	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/jarfile"
)

// buildBridgeJar writes a two-class jar modeling a classic covariant-return
// bridge: Base.get()Ljava/lang/Object; is overridden in Sub by a
// specialized get()Ljava/lang/String;, and the compiler emits a
// synthetic bridge get()Ljava/lang/Object; on Sub that forwards to it.
func buildBridgeJar(t *testing.T) *jarfile.Jar {
	t.Helper()

	base := classfile.NewClassNode()
	require.NoError(t, base.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Base", "", "java/lang/Object", nil))
	bm, err := base.VisitMethod(opcodes.ACC_PUBLIC, "get", "()Ljava/lang/Object;", "", nil)
	require.NoError(t, err)
	require.NoError(t, bm.VisitCode())
	require.NoError(t, bm.VisitInsn(classfile.Instruction{Op: opcodes.ACONST_NULL}))
	require.NoError(t, bm.VisitInsn(classfile.Instruction{Op: opcodes.ARETURN}))
	require.NoError(t, bm.VisitMaxs(1, 1))
	require.NoError(t, bm.VisitEnd())
	require.NoError(t, base.VisitEnd())
	baseData, err := classfile.WriteClass(base)
	require.NoError(t, err)

	sub := classfile.NewClassNode()
	require.NoError(t, sub.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Sub", "", "a/Base", nil))

	specialized, err := sub.VisitMethod(opcodes.ACC_PUBLIC, "get", "()Ljava/lang/String;", "", nil)
	require.NoError(t, err)
	require.NoError(t, specialized.VisitCode())
	require.NoError(t, specialized.VisitInsn(classfile.Instruction{Op: opcodes.ACONST_NULL}))
	require.NoError(t, specialized.VisitInsn(classfile.Instruction{Op: opcodes.ARETURN}))
	require.NoError(t, specialized.VisitMaxs(1, 1))
	require.NoError(t, specialized.VisitEnd())

	syn, err := sub.VisitMethod(opcodes.ACC_PUBLIC|opcodes.ACC_SYNTHETIC|opcodes.ACC_BRIDGE, "get", "()Ljava/lang/Object;", "", nil)
	require.NoError(t, err)
	require.NoError(t, syn.VisitCode())
	require.NoError(t, syn.VisitInsn(classfile.Instruction{Op: opcodes.ALOAD, Var: 0}))
	require.NoError(t, syn.VisitInsn(classfile.Instruction{
		Op: opcodes.INVOKEVIRTUAL, Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/String;",
	}))
	require.NoError(t, syn.VisitInsn(classfile.Instruction{Op: opcodes.ARETURN}))
	require.NoError(t, syn.VisitMaxs(1, 1))
	require.NoError(t, syn.VisitEnd())
	require.NoError(t, sub.VisitEnd())
	subData, err := classfile.WriteClass(sub)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range map[string][]byte{"a/Base.class": baseData, "a/Sub.class": subData} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	jr, err := jarfile.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { jr.Close() })
	return jr
}

func TestAnalyzePairsBridgeWithSpecialized(t *testing.T) {
	jr := buildBridgeJar(t)
	idx, err := bridge.BuildIndex(context.Background(), jr)
	require.NoError(t, err)

	require.True(t, idx.Inheritance.IsAncestor("a/Base", "a/Sub"))

	pairing := bridge.Analyze(idx)

	synthetic := bridge.MethodRef{Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/Object;"}
	specialized := bridge.MethodRef{Owner: "a/Sub", Name: "get", Descriptor: "()Ljava/lang/String;"}

	got, ok := pairing.BridgeToSpecialized[synthetic]
	require.True(t, ok)
	require.Equal(t, specialized, got)

	back, ok := pairing.SpecializedToBridge[specialized]
	require.True(t, ok)
	require.Equal(t, synthetic, back)
}

func TestIsAncestorRejectsSelfAndUnrelatedClasses(t *testing.T) {
	jr := buildBridgeJar(t)
	idx, err := bridge.BuildIndex(context.Background(), jr)
	require.NoError(t, err)

	require.False(t, idx.Inheritance.IsAncestor("a/Sub", "a/Sub"))
	require.False(t, idx.Inheritance.IsAncestor("a/Sub", "a/Base"))
}
