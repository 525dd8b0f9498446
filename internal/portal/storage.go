// Package portal is the dashboard client: it mirrors the backend session,
// guards routes by role, and applies the geographic scope to the lists it
// renders.
package portal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrNotStored is returned by Storage.Load for a missing key
var ErrNotStored = errors.New("key not stored")

// Storage is a small key/value store for client state
type Storage interface {
	Load(key string) ([]byte, error)
	Store(key string, value []byte) error
	Remove(key string) error
}

// MemoryStorage keeps values for the life of the process
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotStored
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Store(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage keeps one JSON file per key in a directory. A lock file
// serializes access from several processes sharing the directory.
type FileStorage struct {
	mu   sync.Mutex
	dir  string
	lock *flock.Flock
}

// NewFileStorage creates dir if needed
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

func (f *FileStorage) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key[0] == '.' {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileStorage) Load(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock storage: %w", err)
	}
	defer f.lock.Unlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotStored
	}
	return data, err
}

func (f *FileStorage) Store(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	defer f.lock.Unlock()

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *FileStorage) Remove(key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	defer f.lock.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
