package storage

import (
	"context"
	"fmt"
	"path"
	"time"
)

// Metadata describes an archived upload
type Metadata struct {
	ContentType  string    `json:"contentType,omitempty"`
	OriginalName string    `json:"originalName,omitempty"`
	Entity       string    `json:"entity,omitempty"`
	RunID        string    `json:"runId,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt,omitempty"`
}

// FileInfo contains information about a stored file
type FileInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"contentType,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Storage archives uploaded files
type Storage interface {
	// Put stores content at the given key with optional metadata
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error

	// Get retrieves content from the given key
	Get(ctx context.Context, key string) ([]byte, error)

	// GetInfo retrieves file information without content
	GetInfo(ctx context.Context, key string) (*FileInfo, error)

	// Delete removes a file at the given key
	Delete(ctx context.Context, key string) error

	// List returns all keys matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)

// UploadPrefix is the key prefix of every file archived for a run
func UploadPrefix(runID string) string {
	return fmt.Sprintf("uploads/%s/", runID)
}

// UploadKey builds the storage key of an archived upload
func UploadKey(runID, filename string) string {
	return UploadPrefix(runID) + path.Base(filename)
}

// DeletePrefix removes every file under prefix and returns how many were removed
func DeletePrefix(ctx context.Context, s Storage, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
