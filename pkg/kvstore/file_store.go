package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileStoreName = "kvstore.json"

// FileStore implements Store using a single JSON file in dataDir.
// Every mutation rewrites the file through a temp file and an atomic rename.
type FileStore struct {
	dataDir string
	data    map[string]string
	mutex   sync.RWMutex
}

// NewFileStore creates a file-based store, loading any existing data
func NewFileStore(dataDir string) (*FileStore, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileStore{
		dataDir: dataDir,
		data:    make(map[string]string),
	}

	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return store, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.data[key]
	s.data[key] = value

	if err := s.save(); err != nil {
		// Rollback
		if existed {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)

	if err := s.save(); err != nil {
		s.data[key] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// load reads the store from disk
func (s *FileStore) load() error {
	filePath := filepath.Join(s.dataDir, fileStoreName)

	// If file doesn't exist, start with empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	loaded := make(map[string]string)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	s.data = loaded

	return nil
}

// save writes the store to disk atomically
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(s.dataDir, fileStoreName+".tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(s.dataDir, fileStoreName)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
