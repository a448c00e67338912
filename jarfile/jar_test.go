package jarfile_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/opcodes"
	"github.com/ludoforge/classkit/jarfile"
)

func buildClass(t *testing.T, internalName, superName string) []byte {
	t.Helper()
	c := classfile.NewClassNode()
	require.NoError(t, c.Visit(opcodes.V17, opcodes.ACC_PUBLIC|opcodes.ACC_SUPER, internalName, "", superName, nil))
	require.NoError(t, c.VisitEnd())
	data, err := classfile.WriteClass(c)
	require.NoError(t, err)
	return data
}

func buildZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestOpenFileIndexesEntriesAndParsesClasses(t *testing.T) {
	classData := buildClass(t, "a/Widget", "java/lang/Object")
	path := buildZip(t, map[string][]byte{
		"a/Widget.class":        classData,
		"META-INF/MANIFEST.MF":  []byte("Manifest-Version: 1.0\r\n\r\n"),
		"a/":                    nil,
	})

	j, err := jarfile.OpenFile(path)
	require.NoError(t, err)
	defer j.Close()

	require.Contains(t, j.Names(), "a/Widget.class")

	entry, ok := j.Entry("a/Widget.class")
	require.True(t, ok)
	require.Equal(t, jarfile.EntryClass, entry.Kind)

	dirEntry, ok := j.Entry("a/")
	require.True(t, ok)
	require.Equal(t, jarfile.EntryDirectory, dirEntry.Kind)

	node, err := j.ClassNode("a/Widget.class")
	require.NoError(t, err)
	require.Equal(t, "a/Widget", node.Name)
	require.Equal(t, "java/lang/Object", node.SuperName)

	require.Equal(t, jarfile.ClassEntryName("a/Widget"), "a/Widget.class")
}

func TestEachClassVisitsOnlyClassEntries(t *testing.T) {
	path := buildZip(t, map[string][]byte{
		"a/Widget.class": buildClass(t, "a/Widget", "java/lang/Object"),
		"a/Gadget.class": buildClass(t, "a/Gadget", "java/lang/Object"),
		"README.txt":     []byte("hello"),
	})

	j, err := jarfile.OpenFile(path)
	require.NoError(t, err)
	defer j.Close()

	var seen []string
	require.NoError(t, j.EachClass(func(name string, node *classfile.ClassNode) error {
		seen = append(seen, name)
		return nil
	}))
	require.ElementsMatch(t, []string{"a/Widget.class", "a/Gadget.class"}, seen)
}

func TestBytesReturnsRawEntryContent(t *testing.T) {
	path := buildZip(t, map[string][]byte{"README.txt": []byte("hello world")})
	j, err := jarfile.OpenFile(path)
	require.NoError(t, err)
	defer j.Close()

	data, err := j.Bytes("README.txt")
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("hello world"), data))

	_, err = j.Bytes("missing.txt")
	require.Error(t, err)
}
