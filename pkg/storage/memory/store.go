// Package memory is an in-process Store for tests and local tooling.
package memory

import (
	"context"
	"io"
	"sync"

	"github.com/vecinal/certdesk/pkg/storage"
)

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
	puts    int
}

func New(baseURL string) *Store {
	return &Store{objects: make(map[string]object), baseURL: baseURL}
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, contentType string) (storage.Info, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return storage.Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Info{}, err
	}
	s.mu.Lock()
	s.objects[k] = object{data: data, contentType: contentType}
	s.puts++
	s.mu.Unlock()
	return storage.Info{Key: k, Size: int64(len(data)), ContentType: contentType, URL: s.URL(k)}, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *Store) URL(key string) string {
	return storage.JoinURL(s.baseURL, key)
}

// Bytes returns a copy of the stored object.
func (s *Store) Bytes(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// Puts counts successful writes, overwrites included.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
