// Package storage persists generated certificates and uploaded proofs.
// Every driver overwrites on Put so a key always holds the latest artifact.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("storage: object not found")

type Info struct {
	Key         string
	Size        int64
	ContentType string
	URL         string
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// CleanKey rejects empty, absolute and traversing keys and normalizes
// separators.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return path.Clean(key), nil
}

// JoinURL appends key to base with exactly one slash between them.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
