package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type kvData struct {
	Entries   map[string]string `json:"entries"`
	UpdatedAt int64             `json:"updatedAt"`
}

// Store is a KV persisted as a single JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
	data kvData
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &Store{path: filepath.Join(baseDir, "kv.json")}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = kvData{Entries: map[string]string{}}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open kv file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode kv file: %w", err)
	}

	if s.data.Entries == nil {
		s.data.Entries = map[string]string{}
	}
	return nil
}

func (s *Store) Get(_ context.Context, key Key) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data.Entries[key.String()]
	return val, ok, nil
}

func (s *Store) Set(_ context.Context, key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	prev, had := s.data.Entries[k]
	s.data.Entries[k] = value
	s.data.UpdatedAt = time.Now().Unix()

	if err := s.saveLocked(); err != nil {
		if had {
			s.data.Entries[k] = prev
		} else {
			delete(s.data.Entries, k)
		}
		return err
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Entries)
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "kv-*.json")
	if err != nil {
		return fmt.Errorf("create temp kv: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode kv: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp kv: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace kv file: %w", err)
	}

	return nil
}
