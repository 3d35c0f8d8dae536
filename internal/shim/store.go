// Package shim manages the directory of shim executables fastenv installs
// on PATH, and dispatches invocations that arrive through one of them.
//
// Unlike a tool that symlinks over a system binary in place, fastenv's
// shims are copies (or hardlinks) of its own binary placed in a directory
// the user has prepended to PATH. Creating or removing one never touches
// anything outside that directory, so what remains is locking the shim
// directory itself against concurrent installs and checking that a file
// being removed is actually one of fastenv's own shims.
package shim

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fastenv/fastenv/internal/fastenverrors"
	"github.com/fastenv/fastenv/internal/security"
)

// Store manages shim creation and removal in a single ShimDirectory.
type Store struct {
	// Dir is the shim directory, e.g. ~/.fastenv/bin.
	Dir string

	// FastenvBinary is the absolute path to the canonical fastenv binary
	// that shims are copies or hardlinks of.
	FastenvBinary string

	// LockTimeout bounds how long mutating operations wait for the
	// directory lock before giving up.
	LockTimeout time.Duration

	// PathEnv is the PATH searched for shadowing executables at Create
	// time. Empty means "read the process's own PATH lazily," which is
	// what production callers want; tests set it explicitly so the
	// shadow check doesn't depend on whatever happens to be installed
	// on the host running the test.
	PathEnv string
}

// NewStore returns a Store with a sensible default lock timeout.
func NewStore(dir, fastenvBinary string) *Store {
	return &Store{Dir: dir, FastenvBinary: fastenvBinary, LockTimeout: 10 * time.Second}
}

// Entry describes one installed shim.
type Entry struct {
	Name string
	Path string
}

// ShimPath returns the path a shim for name would occupy.
func (s *Store) ShimPath(name string) string {
	return filepath.Join(s.Dir, name)
}

// Create installs a shim named name, pointing (via hardlink, falling back
// to a copy across filesystems) at FastenvBinary.
//
// Returns fastenverrors.ErrOwnBinary if name matches the fastenv binary's
// own basename, a *fastenverrors.ShadowedError if another executable of
// the same name already precedes the shim directory on PATH (such a shim
// would never be invoked), and fastenverrors.ErrAlreadyShimmed if a shim
// already exists for name.
func (s *Store) Create(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if name == filepath.Base(s.FastenvBinary) {
		return fastenverrors.ErrOwnBinary
	}

	searchPath := s.PathEnv
	if searchPath == "" {
		searchPath = os.Getenv("PATH")
	}
	if resolverPath, err := s.Shadowed(name, searchPath); err != nil {
		return &fastenverrors.IOError{Path: name, Op: "checking shadow", Err: err}
	} else if resolverPath != "" {
		return &fastenverrors.ShadowedError{Name: name, ResolverPath: resolverPath}
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &fastenverrors.IOError{Path: s.Dir, Op: "mkdir", Err: err}
	}

	return security.WithLock(s.Dir, s.LockTimeout, func() error {
		target := s.ShimPath(name)
		if _, err := os.Lstat(target); err == nil {
			return fastenverrors.ErrAlreadyShimmed
		} else if !os.IsNotExist(err) {
			return &fastenverrors.IOError{Path: target, Op: "stat", Err: err}
		}

		if err := os.Link(s.FastenvBinary, target); err == nil {
			return nil
		}

		// Cross-filesystem or unsupported: fall back to a real copy.
		if err := copyExecutable(s.FastenvBinary, target); err != nil {
			return &fastenverrors.IOError{Path: target, Op: "install shim", Err: err}
		}
		return nil
	})
}

// Remove uninstalls the shim named name.
func (s *Store) Remove(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if name == filepath.Base(s.FastenvBinary) {
		return fastenverrors.ErrOwnBinary
	}

	return security.WithLock(s.Dir, s.LockTimeout, func() error {
		target := s.ShimPath(name)
		if _, err := os.Lstat(target); os.IsNotExist(err) {
			return fastenverrors.ErrNotShimmed
		} else if err != nil {
			return &fastenverrors.IOError{Path: target, Op: "stat", Err: err}
		}

		isShim, err := s.IsOwnBinary(target)
		if err != nil {
			return err
		}
		if !isShim {
			return fastenverrors.ErrNotShimmed
		}

		if err := os.Remove(target); err != nil {
			return &fastenverrors.IOError{Path: target, Op: "remove shim", Err: err}
		}
		return nil
	})
}

// List returns every shim currently installed, sorted by name.
func (s *Store) List() ([]Entry, error) {
	infos, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &fastenverrors.IOError{Path: s.Dir, Op: "readdir", Err: err}
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: info.Name(), Path: filepath.Join(s.Dir, info.Name())})
	}
	return entries, nil
}

// IsShimmed reports whether name currently has a shim installed.
func (s *Store) IsShimmed(name string) bool {
	_, err := os.Lstat(s.ShimPath(name))
	return err == nil
}

// IsOwnBinary reports whether path is a fastenv shim: either the same
// inode as FastenvBinary (the common case, a hardlink) or, when Create
// fell back to a cross-filesystem copy, byte-identical content to it.
func (s *Store) IsOwnBinary(path string) (bool, error) {
	selfInfo, err := os.Lstat(s.FastenvBinary)
	if err != nil {
		return false, &fastenverrors.IOError{Path: s.FastenvBinary, Op: "stat", Err: err}
	}
	otherInfo, err := os.Lstat(path)
	if err != nil {
		return false, &fastenverrors.IOError{Path: path, Op: "stat", Err: err}
	}
	if os.SameFile(selfInfo, otherInfo) {
		return true, nil
	}
	if selfInfo.Size() != otherInfo.Size() {
		return false, nil
	}

	same, err := sameContent(s.FastenvBinary, path)
	if err != nil {
		return false, &fastenverrors.IOError{Path: path, Op: "compare", Err: err}
	}
	return same, nil
}

// sameContent reports whether a and b hold byte-identical content. Used by
// IsOwnBinary as the fallback for shims Create installed via copy rather
// than hardlink, which never share an inode with FastenvBinary.
func sameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := fa.Read(bufA)
		nb, errB := fb.Read(bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF && errB == io.EOF {
			return true, nil
		}
		if errA != nil && errA != io.EOF {
			return false, errA
		}
		if errB != nil && errB != io.EOF {
			return false, errB
		}
	}
}

// Shadowed searches the directories of PATH that precede the shim
// directory for another executable named name. A directory resolver would
// reach before ever reaching the shim means a shim installed there would
// never actually run, so only entries ahead of s.Dir count: an executable
// of the same name sitting behind the shim directory is harmless, since
// the shim is what the resolver would find first. It returns the path to
// the shadowing executable, or "" if the shim is not shadowed.
func (s *Store) Shadowed(name, path string) (string, error) {
	dirs := filepath.SplitList(path)

	ahead := dirs
	for i, dir := range dirs {
		if dir == s.Dir {
			ahead = dirs[:i]
			break
		}
	}

	for _, dir := range ahead {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("shim: invalid command name %q", name)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("shim: command name %q must not contain a path separator", name)
	}
	return nil
}

// copyExecutable copies src to dst, writing to a temp file alongside dst
// first and swapping it into place with security.AtomicReplace so a
// process that dies mid-copy never leaves a truncated shim where a
// working one (or nothing) used to be.
func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Chmod(info.Mode()); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return security.AtomicReplace(tmp, dst)
}
