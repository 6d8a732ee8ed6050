package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"autoparc/internal/app/policies"
)

var ErrObjectNotFound = errors.New("memory: object not found")

type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore keeps uploaded objects in memory and serves them under BaseURL.
type ObjectStore struct {
	BaseURL string
	// MaxBytes rejects larger uploads with policies.ErrStorageRejected when set.
	MaxBytes int64

	mu      sync.RWMutex
	objects map[string]Object
}

func NewObjectStore(baseURL string) *ObjectStore {
	return &ObjectStore{BaseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (s *ObjectStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("memory: object key required")
	}
	src := reader
	if s.MaxBytes > 0 {
		src = io.LimitReader(reader, s.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return "", policies.ErrStorageRejected
	}
	s.mu.Lock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return s.BaseURL + "/" + key, nil
}

func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, strings.TrimLeft(key, "/"))
	return nil
}

func (s *ObjectStore) Get(key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[strings.TrimLeft(key, "/")]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return obj, nil
}

var _ policies.ObjectStore = (*ObjectStore)(nil)
