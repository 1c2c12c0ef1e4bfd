package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"comfynodes/fileio"
)

// ErrNotFound is returned for keys that are not in the store.
var ErrNotFound = errors.New("store: key not found")

// Store is the process-wide key/value table behind the Global Var nodes. It
// is created once and handed to every node through its environment. It does
// no locking: a host that runs nodes concurrently must serialise access.
type Store struct {
	values map[string]any
}

func New() *Store {
	return &Store{values: make(map[string]any)}
}

func (s *Store) Set(key string, value any) {
	s.values[key] = value
}

// SetIfNotExists stores value only when key is absent and reports whether it did.
func (s *Store) SetIfNotExists(key string, value any) bool {
	if _, ok := s.values[key]; ok {
		return false
	}
	s.values[key] = value
	return true
}

func (s *Store) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Remove deletes key and returns the value it held, or nil.
func (s *Store) Remove(key string) any {
	v := s.values[key]
	delete(s.values, key)
	return v
}

func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	return len(s.values)
}

// SaveJSON writes the value under key to a relative path as indented JSON.
// A missing key is an error unless allowMissing is set, in which case null is
// written.
func (s *Store) SaveJSON(key, path string, allowMissing bool) error {
	if err := fileio.CheckRelative(path); err != nil {
		return err
	}
	value, ok := s.values[key]
	if !ok && !allowMissing {
		return fmt.Errorf("%w: %q (allow missing to save null)", ErrNotFound, key)
	}

	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %q as JSON: %w", key, err)
	}
	return fileio.WriteFileLocked(path, data)
}

// LoadJSON reads a relative JSON file into key and returns the decoded value.
// A missing file is an error unless allowMissing is set, in which case key is
// set to nil.
func (s *Store) LoadJSON(key, path string, allowMissing bool) (any, error) {
	if err := fileio.CheckRelative(path); err != nil {
		return nil, err
	}
	data, err := fileio.ReadFileLocked(path)
	if errors.Is(err, os.ErrNotExist) {
		if !allowMissing {
			return nil, fmt.Errorf("file %s does not exist", path)
		}
		s.values[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	s.values[key] = value
	return value, nil
}
