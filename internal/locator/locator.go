// Package locator finds the project a directory belongs to: the nearest
// ancestor directory (inclusive) containing a .envrc file.
package locator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fastenv/fastenv/internal/fastenverrors"
)

// EnvrcFileName is the name of the script a project root is identified by.
const EnvrcFileName = ".envrc"

// Locate walks upward from startDir, inclusive, looking for a directory
// containing .envrc. It returns the absolute path of the first directory
// found, or an error wrapping fastenverrors.ErrNotFound if the walk reaches
// the filesystem root without finding one.
func Locate(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", &fastenverrors.IOError{Path: startDir, Op: "resolve", Err: err}
	}

	for {
		candidate := filepath.Join(dir, EnvrcFileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no project found: no %s in %s or any parent: %w", EnvrcFileName, startDir, fastenverrors.ErrNotFound)
		}
		dir = parent
	}
}
