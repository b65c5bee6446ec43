// SPDX-License-Identifier: MIT

package cursor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/ManuGH/seitokai/internal/log"
	"github.com/google/renameio/v2"
)

// FileStore keeps the cursor in a single text file. Writes are atomic and
// durable: the file is either the old id or the new one, never a torn write.
type FileStore struct {
	path string
	mu   sync.Mutex
	last string
}

// NewFileStore returns a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cursor: read %s: %w", s.path, err)
	}
	s.last = strings.TrimSpace(string(data))
	return s.last, nil
}

func (s *FileStore) Save(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.last {
		return nil
	}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("cursor: create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("cleanup pending cursor file")
		}
	}()

	if _, err := pendingFile.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("cursor: write: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("cursor: atomically replace %s: %w", s.path, err)
	}
	s.last = id
	return nil
}

func (s *FileStore) Close() error { return nil }
