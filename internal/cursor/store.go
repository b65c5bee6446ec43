// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cursor persists the gateway's last message id so a restarted bot
// can resume the event stream where it left off.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

var (
	// ErrUnknownBackend is returned by Open for unsupported backend names.
	ErrUnknownBackend = errors.New("cursor: unknown backend")
	// ErrPathRequired is returned when a persistent backend has no path.
	ErrPathRequired = errors.New("cursor: path required for persistent backend")
)

// Store loads and saves the resume cursor. Load returns "" when nothing has
// been saved yet.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
	Close() error
}

// Open creates the store for backend. An empty backend selects memory.
func Open(ctx context.Context, backend, path string) (Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" || backend == BackendMemory {
		return NewMemoryStore(), nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: %s", ErrPathRequired, backend)
	}
	switch backend {
	case BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenSQLiteStore(ctx, path)
	case BackendBadger:
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

// MemoryStore keeps the cursor for the life of the process.
type MemoryStore struct {
	mu sync.RWMutex
	id string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

func (s *MemoryStore) Save(_ context.Context, id string) error {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
