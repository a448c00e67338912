package mappings_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/mappings"
)

func buildSample(t *testing.T) *mappings.Mappings {
	t.Helper()
	m, err := mappings.New([]string{"official", "named"})
	require.NoError(t, err)

	// Insert classes/fields out of alphabetical order; the encoder must
	// still emit them sorted (spec §4.7, §8 scenario 6).
	zed, err := m.AddClass(mappings.Names{Values: []string{"b/Zed", "com/example/Zed"}})
	require.NoError(t, err)
	zed.Javadoc = "the Zed class"

	_, err = zed.AddField("I", mappings.Names{Values: []string{"g", "count"}})
	require.NoError(t, err)
	fa, err := zed.AddField("I", mappings.Names{Values: []string{"f", "alpha"}})
	require.NoError(t, err)
	fa.Javadoc = "alpha field"

	mm, err := zed.AddMethod("()V", mappings.Names{Values: []string{"m", "run"}})
	require.NoError(t, err)
	mm.AddParameter(1, mappings.Names{Values: []string{"p0", "self"}})

	abc, err := m.AddClass(mappings.Names{Values: []string{"a/Abc", "com/example/Abc"}})
	require.NoError(t, err)
	_, err = abc.AddMethod("()I", mappings.Names{Values: []string{"m", "value"}})
	require.NoError(t, err)

	return m
}

func TestEncodeSortsChildrenCanonically(t *testing.T) {
	m := buildSample(t)
	text, err := mappings.Encode(m)
	require.NoError(t, err)

	// a/Abc sorts before b/Zed; within b/Zed, field "alpha" before
	// "count" and the method after both fields.
	abcLine := strings.Index(text, "c\ta/Abc\tcom/example/Abc\n")
	zedLine := strings.Index(text, "c\tb/Zed\tcom/example/Zed\n")
	require.GreaterOrEqual(t, abcLine, 0)
	require.GreaterOrEqual(t, zedLine, 0)
	require.Less(t, abcLine, zedLine)

	alphaLine := strings.Index(text, "\tf\tI\tf\talpha\n")
	countLine := strings.Index(text, "\tf\tI\tg\tcount\n")
	require.GreaterOrEqual(t, alphaLine, 0)
	require.GreaterOrEqual(t, countLine, 0)
	require.Less(t, alphaLine, countLine)

	require.True(t, strings.HasPrefix(text, "tiny\t2\t0\tofficial\tnamed\n"))
}

// TestCodecRoundTrip pins spec §8 invariant 2 and concrete scenario 6:
// write(M) then read, re-encoded, equals the first encoding (a
// canonical fixed point), surviving out-of-order insertion, javadocs,
// and parameters.
func TestCodecRoundTrip(t *testing.T) {
	m := buildSample(t)
	text, err := mappings.Encode(m)
	require.NoError(t, err)

	decoded, err := mappings.Decode(strings.NewReader(text))
	require.NoError(t, err)

	reEncoded, err := mappings.Encode(decoded)
	require.NoError(t, err)
	require.Equal(t, text, reEncoded)
}

func TestDecodeRejectsIndentationSkip(t *testing.T) {
	input := "tiny\t2\t0\tofficial\tnamed\n" +
		"c\ta/Foo\tcom/example/Foo\n" +
		"\t\tf\tI\tf\talpha\n" // depth 2 directly under a depth-0 class: skips depth 1
	_, err := mappings.Decode(strings.NewReader(input))
	require.Error(t, err)
}

func TestDecodeRejectsDuplicateJavadoc(t *testing.T) {
	input := "tiny\t2\t0\tofficial\tnamed\n" +
		"c\ta/Foo\tcom/example/Foo\n" +
		"\tc\tfirst\n" +
		"\tc\tsecond\n"
	_, err := mappings.Decode(strings.NewReader(input))
	require.Error(t, err)
}

func TestDecodeRejectsSingleNamespace(t *testing.T) {
	input := "tiny\t2\t0\tofficial\n"
	_, err := mappings.Decode(strings.NewReader(input))
	require.Error(t, err)
}
