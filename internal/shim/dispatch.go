package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/fastenv/fastenv/internal/cache"
	"github.com/fastenv/fastenv/internal/fastenverrors"
	"github.com/fastenv/fastenv/internal/locator"
	"github.com/fastenv/fastenv/internal/logger"
)

// Dispatcher resolves a shim invocation to the real binary on a
// project-activated PATH, and replaces the current process image with it.
//
// Dispatch never runs .envrc itself: a missing or stale cache is a
// warning, not a trigger to reload. Reloading is the CLI's job (`fastenv
// reload`) so that a shim invocation stays fast and side-effect free.
type Dispatcher struct {
	Store   *Store
	Cache   *cache.Cache
	FS      afero.Fs
	OwnDir  string
	ShimDir string
	Log     *logger.Logger
}

// Dispatch runs the full shim algorithm for an invocation of name (the
// shim's own basename, i.e. the real command being shimmed) with the
// given arguments, starting the project search from cwd.
//
// On success this function does not return: it replaces the process image
// via syscall.Exec. On failure it returns an error classified via the
// fastenverrors sentinels; a missing project is not a failure (the
// invocation falls through to the ambient environment) unless the target
// binary still cannot be found.
func (d *Dispatcher) Dispatch(name string, args []string, cwd string) error {
	env := copyEnv(os.Environ())

	if projectRoot, err := locator.Locate(cwd); err == nil {
		if overlay, ok := d.loadOverlay(projectRoot); ok {
			for k, v := range overlay {
				env[k] = v
			}
		}
	}

	kept := d.scrubPath(env["PATH"])
	scrubbedPath := strings.Join(kept, string(os.PathListSeparator))
	env["PATH"] = scrubbedPath

	binary, err := lookPath(name, scrubbedPath)
	if err != nil {
		return fmt.Errorf("cannot find binary path for %s: %w", name, fastenverrors.ErrNotFound)
	}

	d.Log.Debug("dispatching %s -> %s", name, binary)
	argv := append([]string{binary}, args...)
	return syscall.Exec(binary, argv, toEnvSlice(env))
}

// loadOverlay returns the cached environment for projectRoot, or ok=false
// if nothing usable is cached (logging a warning either way the user
// should run `fastenv reload`).
func (d *Dispatcher) loadOverlay(projectRoot string) (map[string]string, bool) {
	envrcPath := filepath.Join(projectRoot, ".envrc")
	currentHash, err := cache.HashEnvrc(d.FS, envrcPath)
	if err != nil {
		d.Log.Warn("cannot hash %s: %v", envrcPath, err)
		return nil, false
	}

	entry, err := d.Cache.Load(projectRoot)
	if err != nil {
		d.Log.Warn("no cached environment for %s; run `fastenv reload`", projectRoot)
		return nil, false
	}
	if !entry.Valid(currentHash) {
		d.Log.Warn("cached environment for %s is stale; run `fastenv reload`", projectRoot)
		return nil, false
	}

	return entry.Env, true
}

// scrubPath removes every occurrence of OwnDir and ShimDir from path,
// not just the first match, logging each removal at debug level. A naive
// single-removal scrub is the "eating own tail" bug: if either directory
// appears more than once (e.g. because the calling shell's own PATH
// construction duplicated it), a shim invoked from within it would keep
// finding itself instead of the real binary.
func (d *Dispatcher) scrubPath(path string) []string {
	var kept []string
	for _, dir := range filepath.SplitList(path) {
		if dir == d.OwnDir || dir == d.ShimDir {
			d.Log.Debug("removing own entry from PATH: %s", dir)
			continue
		}
		kept = append(kept, dir)
	}
	return kept
}

func lookPath(name, path string) (string, error) {
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", os.ErrNotExist
}

func toEnvSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func copyEnv(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}
