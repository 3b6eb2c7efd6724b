// Package kv defines the string key-value storage the history and preference
// stores are built on, with in-memory and file-backed implementations.
package kv

import (
	"errors"
	"sync"
)

// ErrNoChange may be returned by an Update function to leave the key as it
// is. Update then returns nil.
var ErrNoChange = errors.New("kv: no change")

// Backend is a local string key-value store.
//
// Update is a read-modify-write: fn receives the current value (ok is false
// when the key is absent) and returns the value to commit. If fn returns an
// error nothing is written and Update returns that error. Every
// implementation commits atomically, so a failed write leaves the previous
// value readable.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Update(key string, fn func(old string, ok bool) (string, error)) error
}

// Memory is an in-process Backend.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Update(key string, fn func(string, bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[key]
	v, err := fn(old, ok)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	m.data[key] = v
	return nil
}
