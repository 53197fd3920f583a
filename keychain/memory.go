package keychain

import (
	"bytes"
	"sync"
)

type memoryKey struct {
	accessGroup string
	service     string
	account     string
}

type memoryItem struct {
	class      Class
	accessible Accessibility
	data       []byte
}

// MemoryNative is an in-memory Native for tests and hosts without a secure
// store. Items do not survive the process.
type MemoryNative struct {
	mu    sync.RWMutex
	items map[memoryKey]memoryItem
}

// NewMemoryNative creates an empty in-memory store.
func NewMemoryNative() *MemoryNative {
	return &MemoryNative{items: make(map[memoryKey]memoryItem)}
}

func memoryKeyOf(req Request) memoryKey {
	return memoryKey{accessGroup: req.AccessGroup, service: req.Service, account: req.Account}
}

func (m *MemoryNative) Add(req Request) Status {
	if req.Class == 0 {
		return StatusParam
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKeyOf(req)
	if _, ok := m.items[k]; ok {
		return StatusDuplicateItem
	}
	m.items[k] = memoryItem{
		class:      req.Class,
		accessible: req.Accessible,
		data:       bytes.Clone(req.Data),
	}
	return StatusSuccess
}

func (m *MemoryNative) Update(match, attrs Request) Status {
	if attrs.Class != 0 {
		return StatusParam
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKeyOf(match)
	item, ok := m.items[k]
	if !ok || (match.Class != 0 && item.class != match.Class) {
		return StatusItemNotFound
	}
	if attrs.Accessible != 0 {
		item.accessible = attrs.Accessible
	}
	if attrs.Data != nil {
		item.data = bytes.Clone(attrs.Data)
	}
	m.items[k] = item
	return StatusSuccess
}

func (m *MemoryNative) CopyMatching(req Request) (any, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[memoryKeyOf(req)]
	if !ok || (req.Class != 0 && item.class != req.Class) {
		return nil, StatusItemNotFound
	}
	if !req.ReturnData {
		return nil, StatusSuccess
	}
	return bytes.Clone(item.data), StatusSuccess
}

func (m *MemoryNative) Delete(req Request) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKeyOf(req)
	item, ok := m.items[k]
	if !ok || (req.Class != 0 && item.class != req.Class) {
		return StatusItemNotFound
	}
	delete(m.items, k)
	return StatusSuccess
}

// Len returns the number of stored items across all access groups.
func (m *MemoryNative) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
