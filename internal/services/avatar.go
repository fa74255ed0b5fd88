package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/storage"
)

const avatarPathPrefix = "/avatars/"

var avatarExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// AvatarStore is the object storage holding the selectable avatars.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// AvatarService lists and serves the fixed set of avatar images.
type AvatarService struct {
	store AvatarStore
}

func NewAvatarService(store AvatarStore) *AvatarService {
	return &AvatarService{store: store}
}

// List returns the public paths of all avatars, e.g. "/avatars/avatar1.png".
func (s *AvatarService) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		if isAvatarFile(key) {
			paths = append(paths, avatarPathPrefix+key)
		}
	}
	return paths, nil
}

// Open returns the avatar image and its content type.
func (s *AvatarService) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if !isAvatarFile(name) || name != filepath.Base(name) {
		return nil, "", apperr.NotFound("Avatar not found")
	}
	rc, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", apperr.NotFound("Avatar not found")
		}
		return nil, "", err
	}
	return rc, contentTypeOf(name), nil
}

// Import uploads every avatar image found in dir and returns how many were copied.
func (s *AvatarService) Import(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !isAvatarFile(entry.Name()) {
			continue
		}
		if err := s.importFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			return copied, fmt.Errorf("upload %s: %w", entry.Name(), err)
		}
		copied++
	}
	return copied, nil
}

func (s *AvatarService) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	return s.store.Put(ctx, name, f, info.Size(), contentTypeOf(name))
}

// Prune removes stored avatars that have no file of the same name in dir
// and returns how many were removed.
func (s *AvatarService) Prune(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			keep[entry.Name()] = true
		}
	}

	keys, err := s.store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if keep[key] || !isAvatarFile(key) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

func isAvatarFile(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return avatarExtensions[strings.ToLower(filepath.Ext(name))]
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
