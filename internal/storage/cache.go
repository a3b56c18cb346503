package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Well-known cache keys. Profiles are cached per user; the session pointer and
// the staged registration slot are singletons.
const (
	SessionKey      = "session:current"
	RegistrationKey = "registration:pending"
)

func ProfileKey(uid string) string {
	return "profile:" + uid
}

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// Cache is a thread-safe JSON file-backed key/value store: one file per key,
// written atomically. It is the durable local mirror of the remote document
// store and survives process restarts.
type Cache struct {
	mu            sync.RWMutex
	dir           string
	schemaVersion int
	broadcaster   *Broadcaster
}

// NewCache creates a cache rooted at dir. broadcaster may be nil when no one
// needs change notifications.
func NewCache(dir string, schemaVersion int, broadcaster *Broadcaster) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{
		dir:           dir,
		schemaVersion: schemaVersion,
		broadcaster:   broadcaster,
	}, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, encodeKey(key)+".json")
}

// encodeKey maps a key to a portable file name. Every byte outside a small
// safe set is hex-escaped, '_' included, so distinct keys can never share a
// file even when uids contain separators.
func encodeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '.':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "_%02x", ch)
		}
	}
	return b.String()
}

// Get reads the value for key into out. It returns false when the key is
// absent or was written by a newer schema than this build understands.
func (c *Cache) Get(key string, out interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, err
	}
	if env.SchemaVersion > c.schemaVersion {
		return false, fmt.Errorf("cache entry %s has schema version %d, newer than supported %d",
			key, env.SchemaVersion, c.schemaVersion)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Put writes the value for key, replacing any previous value whole.
func (c *Cache) Put(key string, value interface{}) error {
	c.mu.Lock()
	err := c.put(key, value)
	c.mu.Unlock()

	if err == nil && c.broadcaster != nil {
		c.broadcaster.Publish(Event{Key: key})
	}
	return err
}

func (c *Cache) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(envelope{SchemaVersion: c.schemaVersion, Data: data}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first, then rename (atomic operation)
	path := c.path(key)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return err
	}
	return nil
}

// Delete removes the entry for key. Missing entries are not an error.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	err := os.Remove(c.path(key))
	c.mu.Unlock()

	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if c.broadcaster != nil {
		c.broadcaster.Publish(Event{Key: key, Removed: true})
	}
	return nil
}

// Exists checks whether an entry for key is present.
func (c *Cache) Exists(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := os.Stat(c.path(key))
	return err == nil
}
