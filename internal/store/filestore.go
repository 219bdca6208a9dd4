// internal/store/filestore.go - Flat-file JSON record store
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one JSON file per record at
// <baseDir>/<collection>/<id>.json. There is no in-memory cache: every
// operation is a fresh read or write. Mutual exclusion against concurrent
// writers to the same record relies on the open flags used below
// (O_EXCL on create, a single truncate-then-write handle on update).
// Two in-flight read-modify-write sequences against the same record are
// last-writer-wins; that race is a known limitation of the design.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	for _, collection := range []string{CollectionUsers, CollectionTokens, CollectionChecks} {
		if err := os.MkdirAll(filepath.Join(baseDir, collection), 0755); err != nil {
			return nil, fmt.Errorf("failed to create collection directory: %w", err)
		}
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(collection, id string) string {
	return filepath.Join(s.baseDir, collection, id+".json")
}

// Create writes a new record, failing with ErrAlreadyExists if a file for
// the id is already present.
func (s *FileStore) Create(collection, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	f, err := os.OpenFile(s.path(collection, id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to open record file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	return f.Close()
}

// Read deserializes the stored record into v, failing with ErrNotFound if
// no file exists for the id.
func (s *FileStore) Read(collection, id string, v interface{}) error {
	data, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read record file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update atomically replaces the stored bytes with the reserialized record.
// The file is opened, truncated, written and closed under one handle so a
// concurrent reader never observes a partially written record growing past
// the truncation point.
func (s *FileStore) Update(collection, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	f, err := os.OpenFile(s.path(collection, id), os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to open record file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	return f.Close()
}

// Delete removes the record file, failing with ErrNotFound if absent.
func (s *FileStore) Delete(collection, id string) error {
	if err := os.Remove(s.path(collection, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete record file: %w", err)
	}
	return nil
}

// List returns every record id currently present in the collection. Order
// is unspecified.
func (s *FileStore) List(collection string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, collection))
	if err != nil {
		return nil, fmt.Errorf("failed to read collection directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
