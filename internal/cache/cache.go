// Package cache persists a project's captured environment to disk, keyed
// by a hash of the project root path and validated against a hash of its
// .envrc, so that repeated shell activations in the same project skip
// re-sourcing .envrc entirely.
//
// The on-disk format is:
//
//	4 bytes   magic "FNV1"
//	4 bytes   format version, big-endian uint32
//	4 bytes   metadata length, big-endian uint32
//	N bytes   JSON-encoded Meta
//	remainder wire-framed Environment (see internal/wire)
//
// Metadata is JSON because its fields are known-good UTF-8 (a hex hash, a
// timestamp, a list of command names). The environment payload reuses the
// raw wire framing rather than JSON because env var values may contain
// arbitrary non-UTF-8 bytes that JSON string escaping cannot safely
// round-trip.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/fastenv/fastenv/internal/wire"
)

var magic = [4]byte{'F', 'N', 'V', '1'}

const formatVersion = 1

// Meta describes the circumstances under which an environment was
// captured, used to decide whether a cached entry is still valid.
type Meta struct {
	// ContentHash is a hex-encoded hash of .envrc's contents at capture
	// time. A mismatch means .envrc changed and the cache is stale.
	ContentHash string `json:"content_hash"`

	// Reachable lists the executable names newly present on PATH after
	// .envrc ran, relative to the ambient PATH. Used by the command
	// scanner to report or auto-shim newly available tools.
	Reachable []string `json:"reachable"`

	// CapturedAt is when the environment was captured.
	CapturedAt time.Time `json:"captured_at"`
}

// Entry is a cached environment together with the metadata describing it.
type Entry struct {
	Meta Meta
	Env  wire.Environment
}

// Cache stores and retrieves cached environments for project roots.
type Cache struct {
	fs  afero.Fs
	dir string
}

// New returns a Cache persisting entries under dir using fs.
func New(fs afero.Fs, dir string) *Cache {
	return &Cache{fs: fs, dir: dir}
}

// pathFor returns the cache file path for a project root, keyed by a
// 32-bit hash of the root path (see keyFor for what a collision means).
func (c *Cache) pathFor(projectRoot string) string {
	return filepath.Join(c.dir, keyFor(projectRoot)+".cache")
}

// Store writes entry as the cached environment for projectRoot, replacing
// any existing entry atomically.
func (c *Cache) Store(projectRoot string, entry Entry) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating cache dir: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, entry); err != nil {
		return fmt.Errorf("cache: encoding entry: %w", err)
	}

	finalPath := c.pathFor(projectRoot)
	tmpPath := finalPath + ".tmp"

	if err := afero.WriteFile(c.fs, tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cache: writing temp file: %w", err)
	}

	if err := c.fs.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("cache: renaming into place: %w", err)
	}
	return nil
}

// Load reads the cached entry for projectRoot. Returns os.ErrNotExist
// (wrapped) if nothing has been cached yet.
func (c *Cache) Load(projectRoot string) (Entry, error) {
	data, err := afero.ReadFile(c.fs, c.pathFor(projectRoot))
	if err != nil {
		return Entry{}, err
	}
	return decode(bytes.NewReader(data))
}

// Valid reports whether a loaded entry's content hash still matches the
// current .envrc contents.
func (e Entry) Valid(currentHash string) bool {
	return e.Meta.ContentHash == currentHash
}

// HashEnvrc computes the content hash recorded in Meta.ContentHash for the
// .envrc file at path.
func HashEnvrc(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func encode(w io.Writer, entry Entry) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(formatVersion)); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(metaJSON))); err != nil {
		return err
	}
	if _, err := w.Write(metaJSON); err != nil {
		return err
	}

	return wire.Encode(w, entry.Env)
}

func decode(r io.Reader) (Entry, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return Entry{}, fmt.Errorf("cache: reading magic: %w", err)
	}
	if gotMagic != magic {
		return Entry{}, fmt.Errorf("cache: bad magic %q", gotMagic)
	}

	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return Entry{}, fmt.Errorf("cache: reading version: %w", err)
	}
	if version != formatVersion {
		return Entry{}, fmt.Errorf("cache: unsupported format version %d", version)
	}

	var metaLen uint32
	if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
		return Entry{}, fmt.Errorf("cache: reading metadata length: %w", err)
	}

	metaJSON := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaJSON); err != nil {
		return Entry{}, fmt.Errorf("cache: reading metadata: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return Entry{}, fmt.Errorf("cache: parsing metadata: %w", err)
	}

	env, err := wire.Decode(r)
	if err != nil {
		return Entry{}, fmt.Errorf("cache: decoding environment: %w", err)
	}

	return Entry{Meta: meta, Env: env}, nil
}

// keyFor derives a filesystem-safe cache key from a project root path.
// Collisions are harmless since Meta.ContentHash still disambiguates on
// load.
func keyFor(projectRoot string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectRoot))
	return fmt.Sprintf("%08x", h.Sum32())
}
