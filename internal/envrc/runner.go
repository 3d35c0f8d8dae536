// Package envrc executes a project's .envrc and captures the resulting
// environment.
//
// The script runs under bash (following direnv's own choice of shell, see
// the "why bash" note in the project's design notes) in a prelude that:
//
//  1. cds into the project root,
//  2. scrubs fastenv's shim directory from PATH and exports
//     QUICKENV_PRELUDE=1, so that a re-entrant `fastenv`/shim invocation
//     from within .envrc itself does not recurse,
//  3. sources .envrc,
//  4. execs back into the fastenv binary's hidden dump-env mode, which
//     serializes the resulting environment across a pipe using the wire
//     package's framing rather than printing it to stdout, so that values
//     containing newlines or other awkward bytes round-trip exactly.
package envrc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fastenv/fastenv/internal/fastenverrors"
	"github.com/fastenv/fastenv/internal/wire"
)

// DumpEnvMode is the hidden subcommand name the prelude execs into. main.go
// dispatches to RunDumpEnv when os.Args[1] equals this value.
const DumpEnvMode = "__dump-env__"

// PreludeSentinelVar marks a shell as already running inside a fastenv
// prelude, so recursive sourcing can be detected defensively in addition
// to the PATH scrub.
const PreludeSentinelVar = "QUICKENV_PRELUDE"

// Runner executes a project's .envrc and captures its environment.
type Runner struct {
	// BashPath is the path to the bash executable used to run .envrc.
	// Resolved via exec.LookPath("bash") if empty.
	BashPath string

	// FastenvBinary is the absolute path to the currently running fastenv
	// binary, used so the prelude can exec back into dump-env mode.
	FastenvBinary string

	// ShimDir is scrubbed from PATH before sourcing .envrc.
	ShimDir string
}

// NewRunner builds a Runner resolving bash on PATH and the current
// executable's path.
func NewRunner(shimDir string) (*Runner, error) {
	bashPath, err := exec.LookPath("bash")
	if err != nil {
		return nil, fmt.Errorf("%w: bash not found on PATH: %w", fastenverrors.ErrScriptFailed, err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("envrc: resolving own executable path: %w", err)
	}

	return &Runner{BashPath: bashPath, FastenvBinary: self, ShimDir: shimDir}, nil
}

// Run sources .envrc in projectRoot and returns the resulting environment.
func (r *Runner) Run(ctx context.Context, projectRoot string) (wire.Environment, error) {
	envrcPath := filepath.Join(projectRoot, ".envrc")
	if _, err := os.Stat(envrcPath); err != nil {
		return nil, &fastenverrors.IOError{Path: envrcPath, Op: "stat", Err: err}
	}

	bashPath := r.BashPath
	if bashPath == "" {
		var err error
		if bashPath, err = exec.LookPath("bash"); err != nil {
			return nil, fmt.Errorf("%w: bash not found on PATH: %w", fastenverrors.ErrScriptFailed, err)
		}
	}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("envrc: creating dump pipe: %w", err)
	}
	defer readEnd.Close()

	cmd := exec.CommandContext(ctx, bashPath, "-c", r.preludeScript())
	cmd.Dir = projectRoot
	cmd.Env = os.Environ()
	cmd.ExtraFiles = []*os.File{writeEnd}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	if err := cmd.Start(); err != nil {
		writeEnd.Close()
		return nil, fmt.Errorf("envrc: starting bash: %w", err)
	}
	writeEnd.Close()

	type decodeResult struct {
		env wire.Environment
		err error
	}
	decoded := make(chan decodeResult, 1)
	go func() {
		env, err := wire.Decode(readEnd)
		decoded <- decodeResult{env, err}
	}()

	waitErr := cmd.Wait()
	result := <-decoded

	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, &fastenverrors.ScriptError{
			ProjectRoot: projectRoot,
			ExitCode:    exitCode,
			Stderr:      stderr.String(),
		}
	}

	if result.err != nil {
		return nil, fmt.Errorf("%w: decoding captured environment: %w", fastenverrors.ErrScriptFailed, result.err)
	}

	return result.env, nil
}

// preludeScript builds the bash -c script the prelude runs. fd 3 is the
// write end of the dump pipe, made available via cmd.ExtraFiles.
func (r *Runner) preludeScript() string {
	return fmt.Sprintf(
		`set -e
__fastenv_scrubbed=""
IFS=':' read -ra __fastenv_path_parts <<< "$PATH"
for __fastenv_p in "${__fastenv_path_parts[@]}"; do
  if [ "$__fastenv_p" != %q ]; then
    __fastenv_scrubbed="${__fastenv_scrubbed:+$__fastenv_scrubbed:}$__fastenv_p"
  fi
done
export PATH="$__fastenv_scrubbed"
export %s=1
source .envrc
exec %q %s 3
`,
		r.ShimDir, PreludeSentinelVar, r.FastenvBinary, DumpEnvMode)
}

// RunDumpEnv implements the hidden dump-env mode: it serializes the
// process environment to file descriptor fd using the wire package's
// framing. Invoked as `fastenv __dump-env__ <fd>` from inside the prelude.
func RunDumpEnv(fd int) error {
	f := os.NewFile(uintptr(fd), "dump-env-pipe")
	if f == nil {
		return fmt.Errorf("envrc: invalid dump fd %d", fd)
	}
	defer f.Close()

	env := make(wire.Environment)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	delete(env, PreludeSentinelVar)

	return wire.Encode(f, env)
}
