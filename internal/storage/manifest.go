package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// manifest maps encoded group names to a presence marker. It is persisted
// as a JSON object, e.g. {"L2hvbWU": true}.
type manifest map[string]bool

// Keys returns the listed group names in sorted order.
func (m manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for k, present := range m {
		if present {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// manifestStore reads and writes the manifest file.
type manifestStore struct {
	path string
}

// Exists returns true if the manifest file exists.
func (s *manifestStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the manifest. A missing file is an empty manifest.
func (s *manifestStore) Load() (manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	m := manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return m, nil
}

// Save overwrites the manifest.
func (s *manifestStore) Save(m manifest) error {
	if m == nil {
		m = manifest{}
	}
	if err := writeJSONAtomic(s.path, m); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// Add lists key in the manifest. No write happens if it is already listed.
func (s *manifestStore) Add(key string) error {
	m, err := s.Load()
	if err != nil {
		return err
	}
	if m[key] {
		return nil
	}
	m[key] = true
	return s.Save(m)
}

// Remove drops key from the manifest. No write happens if it is absent.
func (s *manifestStore) Remove(key string) error {
	m, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.Save(m)
}
