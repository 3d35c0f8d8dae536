package cache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastenv/fastenv/internal/wire"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "/cache")

	entry := Entry{
		Meta: Meta{
			ContentHash: "abc123",
			Reachable:   []string{"node", "npm"},
			CapturedAt:  time.Unix(1700000000, 0).UTC(),
		},
		Env: wire.Environment{
			"PATH":  "/usr/bin:/bin",
			"MULTI": "line one\nline two\n",
		},
	}

	require.NoError(t, c.Store("/projects/foo", entry))

	got, err := c.Load("/projects/foo")
	require.NoError(t, err)
	assert.Equal(t, entry.Meta, got.Meta)
	assert.Equal(t, entry.Env, got.Env)
}

func TestValidDetectsStaleHash(t *testing.T) {
	entry := Entry{Meta: Meta{ContentHash: "old"}}
	assert.True(t, entry.Valid("old"))
	assert.False(t, entry.Valid("new"))
}

func TestLoadMissingEntryErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "/cache")

	_, err := c.Load("/projects/nonexistent")
	assert.Error(t, err)
}

func TestHashEnvrcIsStableAndChangesWithContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/.envrc", []byte("export A=1\n"), 0o644))

	h1, err := HashEnvrc(fs, "/proj/.envrc")
	require.NoError(t, err)
	h2, err := HashEnvrc(fs, "/proj/.envrc")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, afero.WriteFile(fs, "/proj/.envrc", []byte("export A=2\n"), 0o644))
	h3, err := HashEnvrc(fs, "/proj/.envrc")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestStoreOverwritesPreviousEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "/cache")

	require.NoError(t, c.Store("/projects/foo", Entry{Meta: Meta{ContentHash: "v1"}, Env: wire.Environment{"A": "1"}}))
	require.NoError(t, c.Store("/projects/foo", Entry{Meta: Meta{ContentHash: "v2"}, Env: wire.Environment{"A": "2"}}))

	got, err := c.Load("/projects/foo")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Meta.ContentHash)
	assert.Equal(t, "2", got.Env["A"])
}
