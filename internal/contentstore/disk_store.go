package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"blockforge/internal/filekey"
)

// DiskStore persists fields as files under one subject directory, with a
// small JSON manifest tracking registered custom files. Writes go through a
// temp file and rename so a crash never leaves a torn field.
type DiskStore struct {
	dir string

	mu     sync.Mutex
	custom []filekey.Key
	reg    *filekey.Registry
	loaded bool
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir, reg: filekey.NewRegistry()}
}

type diskManifest struct {
	Custom []struct {
		Filename string `json:"filename"`
		Key      string `json:"key"`
	} `json:"custom"`
}

func (s *DiskStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, "manifest.json"))
	if err == nil {
		var m diskManifest
		if err := json.Unmarshal(raw, &m); err == nil {
			for _, c := range m.Custom {
				if k, err := s.reg.Allocate(c.Filename); err == nil {
					s.custom = append(s.custom, k)
				}
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	s.loaded = true
	return nil
}

func (s *DiskStore) saveManifest() error {
	var m diskManifest
	for _, k := range s.custom {
		m.Custom = append(m.Custom, struct {
			Filename string `json:"filename"`
			Key      string `json:"key"`
		}{Filename: k.Filename(), Key: string(k)})
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(s.dir, "manifest.json"), raw)
}

func (s *DiskStore) ReadField(_ context.Context, key filekey.Key) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(s.fieldPath(key))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *DiskStore) WriteField(_ context.Context, key filekey.Key, text string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if !key.IsCore() && !s.tracked(key) {
		s.custom = append(s.custom, key)
		if err := s.saveManifest(); err != nil {
			return err
		}
	}
	return atomicWrite(s.fieldPath(key), []byte(text))
}

func (s *DiskStore) RegisterNewFile(_ context.Context, filename string) (filekey.Key, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	key, err := s.reg.Allocate(filename)
	if err != nil {
		return "", err
	}
	if !key.IsCore() && !s.tracked(key) {
		s.custom = append(s.custom, key)
		if err := s.saveManifest(); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (s *DiskStore) Keys(_ context.Context) ([]filekey.Key, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := append([]filekey.Key(nil), filekey.CoreKeys()...)
	out = append(out, s.custom...)
	return out, nil
}

func (s *DiskStore) tracked(key filekey.Key) bool {
	for _, k := range s.custom {
		if k == key {
			return true
		}
	}
	return false
}

func (s *DiskStore) fieldPath(key filekey.Key) string {
	return filepath.Join(s.dir, string(key))
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".field-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
