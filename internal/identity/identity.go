package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrStorageUnavailable is returned by stores that cannot persist anything
var ErrStorageUnavailable = errors.New("identity storage unavailable")

// Store persists the device identifier. Load returns "" with a nil error when
// nothing has been stored yet.
type Store interface {
	Load() (string, error)
	Save(id string) error
}

// Provider hands out the stable per-device participant id
type Provider struct {
	store Store
	newID func() string
}

// NewProvider creates a provider over store. A nil store means every call
// yields a fresh ephemeral id.
func NewProvider(store Store) *Provider {
	return &Provider{
		store: store,
		newID: newID,
	}
}

// GetOrCreateLocalID returns the stored id, creating and persisting one on
// first use. When storage fails the id is ephemeral and the next call will
// produce a different one.
func (p *Provider) GetOrCreateLocalID() string {
	if p.store == nil {
		return p.newID()
	}

	id, err := p.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("identity storage unreadable, using ephemeral id")
		return p.newID()
	}
	if id != "" {
		return id
	}

	id = p.newID()
	if err := p.store.Save(id); err != nil {
		log.Warn().Err(err).Msg("identity storage unwritable, using ephemeral id")
	}
	return id
}

// newID combines random entropy with a millisecond timestamp (UUIDv7)
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// FileStore keeps the id in a small file on the local device
type FileStore struct {
	path string
}

// NewFileStore creates a store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the per-user location of the id file
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "goat-poker", "participant_id"), nil
}

// Path returns the file backing the store
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (string, error) {
	if s.path == "" {
		return "", ErrStorageUnavailable
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read id file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Save(id string) error {
	if s.path == "" {
		return ErrStorageUnavailable
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create id dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write id file: %w", err)
	}
	return nil
}

// MemoryStore keeps the id for the lifetime of the process
type MemoryStore struct {
	mu sync.Mutex
	id string
}

func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryStore) Save(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
