// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cursor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	id, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, id)

	require.NoError(t, s.Save(ctx, "abc"))
	id, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	require.NoError(t, s.Save(ctx, "def"))
	id, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "def", id)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.txt")
	s := NewFileStore(path)
	exerciseStore(t, s)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "def\n", string(data))

	reopened := NewFileStore(path)
	id, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "def", id)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cursor.sqlite")

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	id, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "def", id)
}

func TestBadgerStore(t *testing.T) {
	s, err := openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, "", "")
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "FILE", filepath.Join(dir, "c.txt"))
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, "badger", filepath.Join(dir, "badger"))
	require.NoError(t, err)
	require.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "sqlite", "")
	require.ErrorIs(t, err, ErrPathRequired)

	_, err = Open(ctx, "etcd", "/tmp/x")
	require.ErrorIs(t, err, ErrUnknownBackend)
}
