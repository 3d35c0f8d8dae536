package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Environment{
		"PATH":    "/usr/bin:/bin",
		"EMPTY":   "",
		"NEWLINE": "line one\nline two\n",
		"NUL":     "a\x00b",
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, env))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestEncodeIsSortedAndDeterministic(t *testing.T) {
	env := Environment{"ZETA": "1", "ALPHA": "2", "MID": "3"}

	var first, second bytes.Buffer
	require.NoError(t, Encode(&first, env))
	require.NoError(t, Encode(&second, env))

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestDecodeEmptyInputYieldsEmptyEnvironment(t *testing.T) {
	env, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestDecodeTruncatedFrameErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("4\x00PATH"))
	assert.Error(t, err)
}

func TestDecodeMissingValueErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("4\x00PATH"))
	assert.ErrorContains(t, err, "reading")
}
