// Package ledger remembers the content hash last synced for each note,
// so unchanged files can be skipped.
package ledger

import (
	"context"
	"sync"
)

// Ledger maps note ids to the hash of the content last written to the graph
type Ledger interface {
	Get(ctx context.Context, noteID string) (string, bool, error)
	Put(ctx context.Context, noteID, hash string) error
	Delete(ctx context.Context, noteID string) error
	Clear(ctx context.Context) error
	Close() error
}

// Memory is an in-process Ledger
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]string
}

var _ Ledger = (*Memory)(nil)

// NewMemory returns an empty in-process ledger
func NewMemory() *Memory {
	return &Memory{hashes: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, noteID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[noteID]
	return h, ok, nil
}

func (m *Memory) Put(ctx context.Context, noteID, hash string) error {
	m.mu.Lock()
	m.hashes[noteID] = hash
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, noteID string) error {
	m.mu.Lock()
	delete(m.hashes, noteID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.hashes = make(map[string]string)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of tracked notes
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hashes)
}
