package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fastenv/fastenv/internal/fastenverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateFindsEnvrcInStartDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".envrc"), []byte("export FOO=bar\n"), 0o644))

	got, err := Locate(root)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestLocateWalksUpToAncestor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".envrc"), []byte("export FOO=bar\n"), 0o644))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := Locate(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestLocateReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := Locate(root)
	assert.ErrorIs(t, err, fastenverrors.ErrNotFound)
}
