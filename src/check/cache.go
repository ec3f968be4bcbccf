package check

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const cacheVersion = "1"

// Cache stores per-file checker findings keyed by content hash.
type Cache struct {
	Dir     string
	Enabled bool
}

type cacheEntry struct {
	Findings []Finding `json:"findings"`
}

// Key computes a cache key from file content, checker name and settings.
func (c *Cache) Key(content []byte, checker, settings string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(checker))
	h.Write([]byte{0})
	h.Write([]byte(settings))
	h.Write([]byte(cacheVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves cached findings. Returns nil, false on a miss.
// Cached findings carry the file path they were recorded under, so the
// caller rewrites File for the current path.
func (c *Cache) Get(key string) ([]Finding, bool) {
	if c == nil || !c.Enabled {
		return nil, false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return entry.Findings, true
}

// Put stores findings, including an empty clean result.
func (c *Cache) Put(key string, findings []Finding) error {
	if c == nil || !c.Enabled {
		return nil
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := json.Marshal(cacheEntry{Findings: findings})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Clear removes the cache directory.
func (c *Cache) Clear() error {
	return os.RemoveAll(c.Dir)
}

// path shards entries by the first two hex characters.
func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, key[:2], key+".json")
}
