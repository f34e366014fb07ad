// Package fs stores artifacts on the local filesystem under a root
// directory, served by Controller at the public uploads path.
package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vecinal/certdesk/pkg/storage"
)

type Store struct {
	root    string
	baseURL string
}

// New returns a store rooted at root, creating it if needed. baseURL is
// the public prefix under which keys are served.
func New(root, baseURL string) (*Store, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, baseURL: baseURL}, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) pathFor(key string) (string, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put streams r into a temp file next to the target and renames it into
// place, so readers never observe a partial artifact.
func (s *Store) Put(_ context.Context, key string, r io.Reader, contentType string) (storage.Info, error) {
	dst, err := s.pathFor(key)
	if err != nil {
		return storage.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return storage.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return storage.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return storage.Info{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return storage.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return storage.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return storage.Info{}, err
	}

	if contentType == "" {
		if mt, err := mimetype.DetectFile(dst); err == nil {
			contentType = mt.String()
		}
	}
	return storage.Info{Key: key, Size: size, ContentType: contentType, URL: s.URL(key)}, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) URL(key string) string {
	return storage.JoinURL(s.baseURL, key)
}
