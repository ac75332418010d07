package rewrite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Artifact is a loaded script, possibly rewritten. It is valid for reuse only
// while its fingerprint and transformer version match the source on disk.
type Artifact struct {
	Path        string      `json:"path"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Version     int         `json:"version"`
	Source      string      `json:"source"`
	Rewritten   bool        `json:"rewritten"`
}

const memCacheSize = 128

// Cache persists transformed artifacts on disk, keyed by script path with a
// fingerprint + version check on every read. Persistence is best-effort: any
// read or write problem degrades to a cache miss and a fresh transform.
// Writes go through a temp file and rename so a concurrent reader in another
// process never observes a partially written entry as valid.
type Cache struct {
	dir   string
	mem   *lru.Cache[string, *Artifact]
	trace *zap.SugaredLogger
}

// NewCache creates the cache rooted at dir. If the directory cannot be
// created the cache still works, memory-only.
func NewCache(dir string, trace *zap.SugaredLogger) *Cache {
	c := &Cache{trace: trace}
	c.mem, _ = lru.New[string, *Artifact](memCacheSize)
	if dir == "" {
		return c
	}
	versioned := filepath.Join(dir, fmt.Sprintf("v%d", Version))
	if err := os.MkdirAll(versioned, 0o755); err != nil {
		if trace != nil {
			trace.Warnw("artifact cache disabled", "dir", versioned, "error", err)
		}
		return c
	}
	c.dir = versioned
	return c
}

// Get returns the cached artifact for path if its fingerprint and transformer
// version match exactly, or nil on any miss, mismatch, or read failure.
func (c *Cache) Get(path string, fp Fingerprint) *Artifact {
	if art, ok := c.mem.Get(path); ok {
		if art.Fingerprint.Equal(fp) && art.Version == Version {
			return art
		}
		c.mem.Remove(path)
	}
	if c.dir == "" {
		return nil
	}

	data, err := os.ReadFile(c.entryPath(path))
	if err != nil {
		return nil
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		// Corrupted or partially written entry: treat as a miss.
		if c.trace != nil {
			c.trace.Debugw("discarding corrupt cache entry", "script", path, "error", err)
		}
		return nil
	}
	if !art.Fingerprint.Equal(fp) || art.Version != Version {
		return nil
	}
	c.mem.Add(path, &art)
	return &art
}

// Put stores an artifact. A failure to persist is reported but must never
// abort the caller's load.
func (c *Cache) Put(art *Artifact) error {
	c.mem.Add(art.Path, art)
	if c.dir == "" {
		return nil
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	target := c.entryPath(art.Path)
	tmp := fmt.Sprintf("%s.tmp%d", target, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// entryPath names the on-disk entry for a script. The path hash keeps
// same-named scripts from different directories apart; a changed source
// overwrites its own entry rather than accumulating stale ones.
func (c *Cache) entryPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(path), ".go")
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.json", base, hex.EncodeToString(sum[:6])))
}
