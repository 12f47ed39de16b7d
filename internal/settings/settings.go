// Package settings persists user-facing prompt settings in a YAML file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keys written by the dispatcher.
const (
	KeyChatDisclaimer = "amazonQChatDisclaimer"
)

// Store is a YAML-file backed map of boolean prompt settings.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]bool
}

// document is the on-disk layout.
type document struct {
	Prompts map[string]bool `yaml:"prompts"`
}

// Open loads the settings file at path. A missing file is treated as empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings yaml: %w", err)
	}
	for k, v := range doc.Prompts {
		s.values[k] = v
	}
	return s, nil
}

// Get returns the value for key and whether it is set.
func (s *Store) Get(key string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Update sets key and rewrites the file.
func (s *Store) Update(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// save writes to a temp file and renames it over the original. Must be
// called with mu held.
func (s *Store) save() error {
	data, err := yaml.Marshal(document{Prompts: s.values})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
