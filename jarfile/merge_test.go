package jarfile_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/jarfile"
)

func buildClassWithField(t *testing.T, internalName string, fieldName string) []byte {
	t.Helper()
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, internalName, "", "java/lang/Object", nil))
	fv, err := c.VisitField(opcodes.ACC_PUBLIC, fieldName, "I", "", nil)
	require.NoError(t, err)
	require.NoError(t, fv.VisitEnd())
	require.NoError(t, c.VisitEnd())
	data, err := classfile.WriteClass(c)
	require.NoError(t, err)
	return data
}

func openZip(t *testing.T, entries map[string][]byte) *jarfile.Jar {
	t.Helper()
	path := buildZip(t, entries)
	j, err := jarfile.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func readBack(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		buf := new(bytes.Buffer)
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		rc.Close()
		out[zf.Name] = buf.Bytes()
	}
	return out
}

// TestMergeClassOnlyOnOneSideGetsEnvironmentAnnotation pins spec §4.9:
// a class present only in the client jar is copied through to the
// merged output annotated @Environment(CLIENT).
func TestMergeClassOnlyOnOneSideGetsEnvironmentAnnotation(t *testing.T) {
	client := openZip(t, map[string][]byte{
		"net/minecraft/ClientOnly.class": buildClassWithField(t, "net/minecraft/ClientOnly", "x"),
	})
	server := openZip(t, map[string][]byte{})

	var out bytes.Buffer
	require.NoError(t, jarfile.Merge(context.Background(), client, server, &out))

	entries := readBack(t, out.Bytes())
	data, ok := entries["net/minecraft/ClientOnly.class"]
	require.True(t, ok)

	r, err := classfile.NewClassReader(data)
	require.NoError(t, err)
	node := classfile.NewClassNode()
	require.NoError(t, r.Accept(node))
	require.Len(t, node.VisibleAnnotations, 1)
	require.Equal(t, "Lnet/fabricmc/api/Environment;", node.VisibleAnnotations[0].Descriptor)
}

// TestMergeIdenticalEntryPassesThroughRaw pins the HighwayHash-fingerprint
// fast path: byte-identical entries on both sides are written once,
// verbatim, without being reparsed as a class.
func TestMergeIdenticalEntryPassesThroughRaw(t *testing.T) {
	shared := buildClassWithField(t, "a/Shared", "x")
	client := openZip(t, map[string][]byte{"a/Shared.class": shared})
	server := openZip(t, map[string][]byte{"a/Shared.class": shared})

	var out bytes.Buffer
	require.NoError(t, jarfile.Merge(context.Background(), client, server, &out))

	entries := readBack(t, out.Bytes())
	require.True(t, bytes.Equal(shared, entries["a/Shared.class"]))
}

// TestMergeDiffersFieldsMergedWithEnvironmentAnnotations pins spec §4.9's
// field union: a field unique to one side is kept and annotated, a
// shared field passes through untouched.
func TestMergeDiffersFieldsMergedWithEnvironmentAnnotations(t *testing.T) {
	clientClass := func() []byte {
		c := classfile.NewClassNode()
		require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Thing", "", "java/lang/Object", nil))
		shared, err := c.VisitField(opcodes.ACC_PUBLIC, "shared", "I", "", nil)
		require.NoError(t, err)
		require.NoError(t, shared.VisitEnd())
		onlyClient, err := c.VisitField(opcodes.ACC_PUBLIC, "onlyClient", "I", "", nil)
		require.NoError(t, err)
		require.NoError(t, onlyClient.VisitEnd())
		require.NoError(t, c.VisitEnd())
		data, err := classfile.WriteClass(c)
		require.NoError(t, err)
		return data
	}()
	serverClass := func() []byte {
		c := classfile.NewClassNode()
		require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, "a/Thing", "", "java/lang/Object", nil))
		shared, err := c.VisitField(opcodes.ACC_PUBLIC, "shared", "I", "", nil)
		require.NoError(t, err)
		require.NoError(t, shared.VisitEnd())
		onlyServer, err := c.VisitField(opcodes.ACC_PUBLIC, "onlyServer", "I", "", nil)
		require.NoError(t, err)
		require.NoError(t, onlyServer.VisitEnd())
		require.NoError(t, c.VisitEnd())
		data, err := classfile.WriteClass(c)
		require.NoError(t, err)
		return data
	}()

	client := openZip(t, map[string][]byte{"a/Thing.class": clientClass})
	server := openZip(t, map[string][]byte{"a/Thing.class": serverClass})

	var out bytes.Buffer
	require.NoError(t, jarfile.Merge(context.Background(), client, server, &out))

	entries := readBack(t, out.Bytes())
	data := entries["a/Thing.class"]
	r, err := classfile.NewClassReader(data)
	require.NoError(t, err)
	node := classfile.NewClassNode()
	require.NoError(t, r.Accept(node))

	byName := make(map[string]*classfile.FieldNode, len(node.Fields))
	for _, f := range node.Fields {
		byName[f.Name] = f
	}
	require.Contains(t, byName, "shared")
	require.Empty(t, byName["shared"].VisibleAnnotations)

	require.Contains(t, byName, "onlyClient")
	require.Len(t, byName["onlyClient"].VisibleAnnotations, 1)

	require.Contains(t, byName, "onlyServer")
	require.Len(t, byName["onlyServer"].VisibleAnnotations, 1)
}

// TestMergeManifestIsReplacedWithMinimal pins the manifest special case
// (spec §4.9): neither side's manifest bytes survive.
func TestMergeManifestIsReplacedWithMinimal(t *testing.T) {
	client := openZip(t, map[string][]byte{"META-INF/MANIFEST.MF": []byte("Client-Only: true\r\n\r\n")})
	server := openZip(t, map[string][]byte{"META-INF/MANIFEST.MF": []byte("Server-Only: true\r\n\r\n")})

	var out bytes.Buffer
	require.NoError(t, jarfile.Merge(context.Background(), client, server, &out))

	entries := readBack(t, out.Bytes())
	manifest := string(entries["META-INF/MANIFEST.MF"])
	require.NotContains(t, manifest, "Client-Only")
	require.NotContains(t, manifest, "Server-Only")
	require.Contains(t, manifest, "Manifest-Version")
}

// TestMergeDropsSignatureFiles pins spec §4.9's "drop META-INF/*.{SF,RSA}".
func TestMergeDropsSignatureFiles(t *testing.T) {
	client := openZip(t, map[string][]byte{"META-INF/CLIENT.SF": []byte("not a real signature")})
	server := openZip(t, map[string][]byte{"META-INF/CLIENT.SF": []byte("different bytes but still dropped")})

	var out bytes.Buffer
	require.NoError(t, jarfile.Merge(context.Background(), client, server, &out))

	entries := readBack(t, out.Bytes())
	_, ok := entries["META-INF/CLIENT.SF"]
	require.False(t, ok)
}
