// Package store provides named-slot byte storage for document drafts.
// Slots are overwritten whole; there is no partial update and no history.
package store

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for slot storage.
var (
	ErrEmptySlotName = errors.New("store: slot name cannot be empty")
	ErrClosed        = errors.New("store: closed")
)

// Slots is a key/value store of opaque payloads keyed by slot name.
// Get returns (nil, false, nil) for a missing slot.
type Slots interface {
	Put(ctx context.Context, slot string, data []byte) error
	Get(ctx context.Context, slot string) ([]byte, bool, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

// Compile-time interface checks.
var (
	_ Slots = (*Memory)(nil)
	_ Slots = (*SQLite)(nil)
)

// Memory keeps slots in a map. Useful for tests and sessions without a draft file.
type Memory struct {
	mu     sync.Mutex
	slots  map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

// Put stores a copy of data under slot.
func (m *Memory) Put(ctx context.Context, slot string, data []byte) error {
	if slot == "" {
		return ErrEmptySlotName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.slots[slot] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the payload stored under slot.
func (m *Memory) Get(ctx context.Context, slot string) ([]byte, bool, error) {
	if slot == "" {
		return nil, false, ErrEmptySlotName
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	data, ok := m.slots[slot]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Delete removes slot. Deleting a missing slot is not an error.
func (m *Memory) Delete(ctx context.Context, slot string) error {
	if slot == "" {
		return ErrEmptySlotName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.slots, slot)
	return nil
}

// Close marks the store unusable.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
