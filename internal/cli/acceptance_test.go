package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/envrc"
	"github.com/fastenv/fastenv/internal/logger"
	"github.com/fastenv/fastenv/internal/rootconfig"
	"github.com/fastenv/fastenv/internal/scanner"
	"github.com/fastenv/fastenv/internal/shim"
	"github.com/fastenv/fastenv/internal/testutil"
)

// fakeFastenvBinary substitutes for a compiled fastenv binary's dump-env
// mode, the same stub technique internal/envrc's own tests use, so these
// acceptance tests don't require the Go toolchain to produce a real binary.
func fakeFastenvBinary(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available for dump-env stub")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fastenv")
	script := `#!/bin/bash
set -e
fd="$2"
python3 - "$fd" <<'PYEOF'
import os, sys
fd = int(sys.argv[1])
with os.fdopen(fd, "wb") as f:
    for k, v in sorted(os.environ.items()):
        if k == "QUICKENV_PRELUDE":
            continue
        kb = k.encode()
        vb = v.encode()
        f.write(str(len(kb)).encode() + b"\x00" + kb)
        f.write(str(len(vb)).encode() + b"\x00" + vb)
PYEOF
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// acceptanceApp builds an *app wired against real temp directories and a
// fake dump-env stub standing in for the compiled binary. Its logger writes
// to logBuf (at LevelWarn, matching the default QUICKENV_LOG threshold) so
// tests can assert on warnings without redirecting os.Stderr.
func acceptanceApp(t *testing.T) (a *app, logBuf *bytes.Buffer) {
	t.Helper()
	bashPath, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}

	home := t.TempDir()
	binary := fakeFastenvBinary(t)
	cfg := rootconfig.Config{Root: home, ShimDirName: "bin"}
	fs := afero.NewOsFs()

	store := shim.NewStore(cfg.ShimDir(), binary)
	store.PathEnv = filepath.Join(home, "empty-path-for-tests")

	logBuf = &bytes.Buffer{}
	return &app{
		cfg:     cfg,
		fs:      fs,
		log:     logger.New(logBuf, logger.LevelWarn),
		cache:   cache.New(fs, cfg.CacheDir()),
		scanner: scanner.New(fs, cfg.ScansDir()),
		store:   store,
		runner:  &envrc.Runner{BashPath: bashPath, FastenvBinary: binary, ShimDir: cfg.ShimDir()},
	}, logBuf
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// whatever it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = orig

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// TestBasicScenario covers spec scenario 1: a project whose .envrc prepends
// a directory with one new executable. The first reload reports it as new;
// after shimming, unshimming, and reloading again, it's reported again but
// no longer as new, since the scanner remembers it was already surfaced
// once.
func TestBasicScenario(t *testing.T) {
	a, logBuf := acceptanceApp(t)
	root := t.TempDir()

	bogusDir := filepath.Join(root, "bogus")
	require.NoError(t, os.MkdirAll(bogusDir, 0o755))
	testutil.CreateTempBinary(t, bogusDir, "hello")
	testutil.CreateEnvrc(t, root, "export PATH=bogus:$PATH\n")

	// The real CLI resolves PATH entries such as the relative "bogus"
	// above relative to the caller's own working directory, which in
	// normal use is the project root the user has cd'd into; match that
	// here instead of leaving the test process's cwd wherever go test
	// started it.
	origWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { os.Chdir(origWD) })

	// reload's own stdout carries only .envrc's output, never fastenv's
	// diagnostics; the unshimmed-command warning goes to the logger.
	out := captureStdout(t, func() {
		require.NoError(t, runReload(context.Background(), a, root))
	})
	assert.Empty(t, out)
	assert.Equal(t, "[WARN fastenv] 1 unshimmed commands (1 new). Use 'fastenv shim' to make them available.\n"+
		"Set QUICKENV_NO_SHIM_WARNINGS=1 to silence this message.\n", logBuf.String())

	require.NoError(t, createOne(a, "hello"))
	assert.True(t, a.store.IsShimmed("hello"))

	require.NoError(t, runUnshim(a, []string{"hello"}))
	assert.False(t, a.store.IsShimmed("hello"))

	logBuf.Reset()
	out = captureStdout(t, func() {
		require.NoError(t, runReload(context.Background(), a, root))
	})
	assert.Empty(t, out)
	assert.Equal(t, "[WARN fastenv] 1 unshimmed commands. Use 'fastenv shim' to make them available.\n"+
		"Set QUICKENV_NO_SHIM_WARNINGS=1 to silence this message.\n", logBuf.String())
}

// TestBasicScenarioHonorsNoShimWarningsEnv covers spec §6:
// QUICKENV_NO_SHIM_WARNINGS=1 suppresses the unshimmed-command warning
// entirely.
func TestBasicScenarioHonorsNoShimWarningsEnv(t *testing.T) {
	a, logBuf := acceptanceApp(t)
	root := t.TempDir()

	bogusDir := filepath.Join(root, "bogus")
	require.NoError(t, os.MkdirAll(bogusDir, 0o755))
	testutil.CreateTempBinary(t, bogusDir, "hello")
	testutil.CreateEnvrc(t, root, "export PATH=bogus:$PATH\n")

	origWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { os.Chdir(origWD) })

	t.Setenv("QUICKENV_NO_SHIM_WARNINGS", "1")

	out := captureStdout(t, func() {
		require.NoError(t, runReload(context.Background(), a, root))
	})
	assert.Empty(t, out)
	assert.Empty(t, logBuf.String())
}

// TestShadowedScenario covers spec scenario 2: a PATH that already has
// "bogus" ahead of the shim directory means a shim for "hello" would
// never actually run, so creating it must fail with a Shadowed error
// instead of silently installing a dead shim.
func TestShadowedScenario(t *testing.T) {
	a, _ := acceptanceApp(t)

	bogusDir := filepath.Join(t.TempDir(), "bogus")
	require.NoError(t, os.MkdirAll(bogusDir, 0o755))
	bogusHello := filepath.Join(bogusDir, "hello")
	require.NoError(t, os.WriteFile(bogusHello, []byte("#!/bin/sh\necho wrong hello\n"), 0o755))

	a.store.PathEnv = bogusDir + string(os.PathListSeparator) + a.cfg.ShimDir()

	err := createOne(a, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), bogusHello)
	assert.False(t, a.store.IsShimmed("hello"))
}

// TestSelfShimIsANoOp covers spec scenario 3: shimming or unshimming the
// fastenv binary's own name prints a message and makes no filesystem change.
func TestSelfShimIsANoOp(t *testing.T) {
	a, _ := acceptanceApp(t)

	out := captureStdout(t, func() {
		require.NoError(t, createOne(a, "fastenv"))
	})
	assert.Equal(t, "not shimming own binary\n", out)
	assert.False(t, a.store.IsShimmed("fastenv"))

	out = captureStdout(t, func() {
		require.NoError(t, removeOne(a, "fastenv"))
	})
	assert.Equal(t, "not unshimming own binary\n", out)
}

// TestStaleValuesDuringReload covers spec scenario 6: each reload's child
// shell starts from the ambient environment, not from whatever a previous
// reload captured, so repeatedly appending to a variable inside .envrc
// never accumulates across reloads.
func TestStaleValuesDuringReload(t *testing.T) {
	a, _ := acceptanceApp(t)
	root := t.TempDir()
	testutil.CreateEnvrc(t, root, "export MYVALUE=\"${MYVALUE:-unset}-canary\"\n")

	captureStdout(t, func() {
		require.NoError(t, runReload(context.Background(), a, root))
	})
	first, err := a.cache.Load(root)
	require.NoError(t, err)
	assert.Equal(t, "unset-canary", first.Env["MYVALUE"])

	captureStdout(t, func() {
		require.NoError(t, runReload(context.Background(), a, root))
	})
	second, err := a.cache.Load(root)
	require.NoError(t, err)
	assert.Equal(t, "unset-canary", second.Env["MYVALUE"])
}
