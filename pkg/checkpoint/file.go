package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const filePermission = 0o644

// snapshot is the CBOR document written per source type.
type snapshot struct {
	SourceTypeID string            `cbor:"1,keyasint"`
	Entries      map[string]string `cbor:"2,keyasint"`
	SavedAt      time.Time         `cbor:"3,keyasint"`
}

// FileStore keeps one CBOR snapshot per source type in a directory.
// Snapshots are replaced atomically.
type FileStore struct {
	dir string
	mu  sync.Mutex
	enc cbor.EncMode
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, enc: enc, now: time.Now}, nil
}

func (s *FileStore) path(sourceTypeID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sourceTypeID)
	return filepath.Join(s.dir, name+".cbor")
}

func (s *FileStore) Load(_ context.Context, sourceTypeID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read(sourceTypeID)
	if err != nil {
		return nil, err
	}
	return snap.Entries, nil
}

func (s *FileStore) read(sourceTypeID string) (snapshot, error) {
	data, err := os.ReadFile(s.path(sourceTypeID))
	if errors.Is(err, os.ErrNotExist) {
		return snapshot{SourceTypeID: sourceTypeID, Entries: map[string]string{}}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("failed to decode checkpoint %s: %w", s.path(sourceTypeID), err)
	}
	if snap.SourceTypeID != sourceTypeID {
		return snapshot{}, fmt.Errorf("checkpoint %s belongs to %q", s.path(sourceTypeID), snap.SourceTypeID)
	}
	if snap.Entries == nil {
		snap.Entries = map[string]string{}
	}
	return snap, nil
}

func (s *FileStore) Save(ctx context.Context, sourceTypeID string, entries map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(sourceTypeID)
	if err != nil {
		return err
	}
	if merge(snap.Entries, entries) == 0 && len(snap.Entries) > 0 {
		return nil
	}
	snap.SavedAt = s.now().UTC()
	data, err := s.enc.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Chmod(tmp.Name(), filePermission); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(sourceTypeID))
}

func (s *FileStore) Clear(_ context.Context, sourceTypeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(sourceTypeID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
