package core

import (
	"errors"
	"sync"

	"fyne.io/fyne/v2"
)

// Persisted keys.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrKeyNotFound is returned by Storage.Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// Storage is the local key-value store the session is persisted to.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// PreferenceStorage stores values in the fyne application preferences, the
// desktop counterpart of a browser's localStorage. fyne does not distinguish
// an empty value from a missing one, so "" reads as absent.
type PreferenceStorage struct {
	prefs fyne.Preferences
}

func NewPreferenceStorage(prefs fyne.Preferences) *PreferenceStorage {
	return &PreferenceStorage{prefs: prefs}
}

func (p *PreferenceStorage) Get(key string) (string, error) {
	v := p.prefs.String(key)
	if v == "" {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (p *PreferenceStorage) Set(key, value string) error {
	p.prefs.SetString(key, value)
	return nil
}

func (p *PreferenceStorage) Remove(key string) error {
	p.prefs.RemoveValue(key)
	return nil
}

// StorageTokenSource reads the bearer token straight from storage, so every
// request sees the latest persisted credentials.
type StorageTokenSource struct {
	Storage Storage
}

func (s StorageTokenSource) Token() string {
	token, err := s.Storage.Get(TokenKey)
	if err != nil {
		return ""
	}
	return token
}
