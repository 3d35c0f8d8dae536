// Package scanner tracks which commands a project's .envrc newly exposes
// on PATH, so the CLI can report tools the user hasn't seen offered
// before.
package scanner

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Scanner persists, per project root, the set of command names already
// reported to the user, so repeated activations don't re-announce the
// same commands.
type Scanner struct {
	fs  afero.Fs
	dir string
}

// New returns a Scanner persisting its seen-state under dir.
func New(fs afero.Fs, dir string) *Scanner {
	return &Scanner{fs: fs, dir: dir}
}

type state struct {
	Reported []string `json:"reported"`
}

func (s *Scanner) statePath(projectRoot string) string {
	return filepath.Join(s.dir, keyFor(projectRoot)+".seen.json")
}

// ScanNew returns the subset of reachable that has not previously been
// reported for projectRoot, then persists the full set so subsequent
// scans only report genuinely new commands.
func (s *Scanner) ScanNew(projectRoot string, reachable []string) ([]string, error) {
	prior, err := s.load(projectRoot)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(prior))
	for _, name := range prior {
		seen[name] = true
	}

	var fresh []string
	merged := append([]string{}, prior...)
	for _, name := range reachable {
		if !seen[name] {
			fresh = append(fresh, name)
			merged = append(merged, name)
			seen[name] = true
		}
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	sort.Strings(merged)
	if err := s.save(projectRoot, merged); err != nil {
		return nil, err
	}
	return fresh, nil
}

// ReachableNames returns the sorted set of executable names found on
// cachedPath that are not already reachable on ambientPath — the
// commands a project's .envrc made newly available.
func ReachableNames(cachedPath, ambientPath string) []string {
	ambient := executableNamesOn(ambientPath)

	seen := make(map[string]bool)
	var names []string
	for _, dir := range filepath.SplitList(cachedPath) {
		for _, name := range listExecutables(dir) {
			if ambient[name] || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

func executableNamesOn(path string) map[string]bool {
	names := make(map[string]bool)
	for _, dir := range filepath.SplitList(path) {
		for _, name := range listExecutables(dir) {
			names[name] = true
		}
	}
	return names
}

func listExecutables(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}

// Reset clears the seen-state for projectRoot, so the next scan reports
// every reachable command as new again.
func (s *Scanner) Reset(projectRoot string) error {
	err := s.fs.Remove(s.statePath(projectRoot))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Scanner) load(projectRoot string) ([]string, error) {
	data, err := afero.ReadFile(s.fs, s.statePath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return st.Reported, nil
}

func (s *Scanner) save(projectRoot string, reported []string) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state{Reported: reported}, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.statePath(projectRoot), data, 0o644)
}

// keyFor derives a filesystem-safe state-file key from a project root
// path. Collisions are harmless: the worst outcome is two projects
// sharing a seen-state file, so a command already reported for one
// project is not counted as new for the other.
func keyFor(projectRoot string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectRoot))
	return fmt.Sprintf("%08x", h.Sum32())
}
