package contentstore

import (
	"context"
	"fmt"
	"sync"

	"blockforge/internal/filekey"
)

// MemoryStore is the in-process content store, used standalone and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[filekey.Key]string
	reg    *filekey.Registry
	custom []filekey.Key
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		fields: make(map[filekey.Key]string),
		reg:    filekey.NewRegistry(),
	}
	for _, k := range filekey.CoreKeys() {
		s.fields[k] = ""
	}
	return s
}

func (s *MemoryStore) ReadField(_ context.Context, key filekey.Key) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[key], nil
}

func (s *MemoryStore) WriteField(_ context.Context, key filekey.Key, text string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, tracked := s.fields[key]; !tracked && !key.IsCore() {
		// Accept direct writes to unseen keys; they become tracked customs.
		s.custom = append(s.custom, key)
	}
	s.fields[key] = text
	return nil
}

func (s *MemoryStore) RegisterNewFile(_ context.Context, filename string) (filekey.Key, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.reg.Allocate(filename)
	if err != nil {
		return "", err
	}
	if _, tracked := s.fields[key]; !tracked {
		s.fields[key] = ""
		if !key.IsCore() {
			s.custom = append(s.custom, key)
		}
	}
	return key, nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]filekey.Key, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]filekey.Key(nil), filekey.CoreKeys()...)
	out = append(out, s.custom...)
	return out, nil
}
