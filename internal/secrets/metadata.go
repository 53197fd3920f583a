package secrets

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/benaskins/strongbox/internal/manifest"
)

// SecretMetadata tracks write and rotation times for an item.
type SecretMetadata struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	LastRotated time.Time `json:"last_rotated,omitempty"`
	RotateEvery string    `json:"rotate_every,omitempty"`
}

// due reports whether the item's rotation interval has elapsed at now.
func (m *SecretMetadata) due(now time.Time) bool {
	if m.RotateEvery == "" {
		return false
	}
	every, err := manifest.ParseDuration(m.RotateEvery)
	if err != nil || every <= 0 {
		return false
	}
	last := m.LastRotated
	if last.IsZero() {
		last = m.CreatedAt
	}
	return now.Sub(last) >= every
}

// MetadataStore persists item metadata to a JSON file, keyed by
// "service/account".
type MetadataStore struct {
	mu       sync.RWMutex
	path     string
	metadata map[string]*SecretMetadata
}

// NewMetadataStore loads or creates a metadata file.
func NewMetadataStore(path string) (*MetadataStore, error) {
	ms := &MetadataStore{
		path:     path,
		metadata: make(map[string]*SecretMetadata),
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if jsonErr := json.Unmarshal(data, &ms.metadata); jsonErr != nil {
			slog.Warn("corrupt metadata file, starting fresh", "path", path, "error", jsonErr)
		}
	}

	return ms, nil
}

// Get returns a copy of the metadata for a key, or nil if not tracked.
func (ms *MetadataStore) Get(key string) *SecretMetadata {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	m, ok := ms.metadata[key]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Set records metadata for a key and persists to disk.
func (ms *MetadataStore) Set(key string, meta *SecretMetadata) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.metadata[key] = meta
	return ms.save()
}

// Delete removes metadata for a key.
func (ms *MetadataStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.metadata[key]; !ok {
		return nil
	}
	delete(ms.metadata, key)
	return ms.save()
}

// All returns copies of all metadata entries.
func (ms *MetadataStore) All() map[string]*SecretMetadata {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	result := make(map[string]*SecretMetadata, len(ms.metadata))
	for k, v := range ms.metadata {
		cp := *v
		result[k] = &cp
	}
	return result
}

// Stale returns the keys whose rotation interval has elapsed at now, sorted.
func (ms *MetadataStore) Stale(now time.Time) []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var stale []string
	for k, m := range ms.metadata {
		if m.due(now) {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	return stale
}

func (ms *MetadataStore) save() error {
	data, err := json.MarshalIndent(ms.metadata, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := ms.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, ms.path)
}
