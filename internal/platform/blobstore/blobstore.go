// Package blobstore stores binary payloads for attachment answers. It defines
// the Store interface, an in-memory implementation suitable for testing and
// development, and an S3-compatible implementation for deployments.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
)

// Object describes a stored blob. Key is the retrievable reference recorded
// on attachment answers.
type Object struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store accepts a binary payload and returns a retrievable reference.
type Store interface {
	Put(ctx context.Context, obj Object, r io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (*Object, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	data    map[string][]byte
	maxSize int64
}

// NewMemoryStore creates a MemoryStore that rejects payloads larger than
// maxSize bytes. A zero maxSize disables the limit.
func NewMemoryStore(maxSize int64) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
		data:    make(map[string][]byte),
		maxSize: maxSize,
	}
}

func (s *MemoryStore) Put(_ context.Context, obj Object, r io.Reader) (*Object, error) {
	if obj.FileName == "" {
		return nil, ErrMissingFileName
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	obj.Key = uuid.New().String()
	obj.Size = int64(len(data))
	obj.CreatedAt = time.Now().UTC()
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := obj
	s.objects[obj.Key] = &stored
	s.data[obj.Key] = data

	return &stored, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	return obj, io.NopCloser(bytes.NewReader(s.data[key])), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.objects, key)
	delete(s.data, key)
	return nil
}
