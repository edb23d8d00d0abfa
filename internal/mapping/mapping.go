// Package mapping creates the standalone records that replace block
// instances and records which record replaced which block.
package mapping

import (
	"maps"
	"sync"
)

// Mapping is an append-only map from block instance id to the id of the
// record created for it. It is safe for concurrent use.
type Mapping struct {
	mu      sync.RWMutex
	entries map[string]string
}

func New() *Mapping {
	return &Mapping{entries: map[string]string{}}
}

// FromEntries restores a mapping, for instance from a checkpoint.
func FromEntries(entries map[string]string) *Mapping {
	m := New()
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

func (m *Mapping) Lookup(instanceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.entries[instanceID]
	return id, ok
}

// Set records instanceID → recordID unless instanceID is already mapped.
// It reports whether the entry was added.
func (m *Mapping) Set(instanceID, recordID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[instanceID]; ok {
		return false
	}
	m.entries[instanceID] = recordID
	return true
}

func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a snapshot of the mapping.
func (m *Mapping) Entries() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}

// RecordCount returns the number of distinct records in the mapping.
func (m *Mapping) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	for _, id := range m.entries {
		seen[id] = true
	}
	return len(seen)
}
