// Package storage persists flushed batches as JSON files on local disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mevzuat/internal/config"
	"mevzuat/internal/models"
)

// ErrEmptyBatch is returned when asked to write a batch without records.
var ErrEmptyBatch = errors.New("batch has no records")

// FileStore writes each batch to its own timestamped file.
type FileStore struct {
	cfg *config.Config
}

// NewFileStore creates a FileStore rooted at cfg.Output.Dir.
func NewFileStore(cfg *config.Config) *FileStore {
	return &FileStore{cfg: cfg}
}

// Path returns where batch would be written.
func (s *FileStore) Path(batch models.Batch) string {
	return s.cfg.GetOutputPath(batch.DocumentType.String(), batch.CreatedAt, batch.Sequence)
}

// WriteBatch serializes the batch records as a JSON array and returns the file path.
func (s *FileStore) WriteBatch(batch models.Batch) (string, error) {
	if batch.Len() == 0 {
		return "", ErrEmptyBatch
	}

	path := s.Path(batch)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var (
		data []byte
		err  error
	)

	if s.cfg.Output.Pretty {
		data, err = json.MarshalIndent(batch.Records, "", "  ")
	} else {
		data, err = json.Marshal(batch.Records)
	}

	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// ReadBatchFile loads a JSON array of records written by WriteBatch.
func ReadBatchFile(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}

	return records, nil
}
