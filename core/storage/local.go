package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// localStore keeps blobs on disk. Content types ride along in a small
// sidecar file so Open can replay them.
type localStore struct {
	dir string
}

func NewLocalStore(dir string) (BlobStore, error) {
	if dir == "" {
		dir = "data/evidence"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	if contentType != "" {
		if err := os.WriteFile(path+".type", []byte(contentType), 0o600); err != nil {
			os.Remove(path)
			return err
		}
	}
	return nil
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !ValidKey(key) {
		return nil, "", ErrNotFound
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(path + ".type"); err == nil && len(raw) > 0 {
		contentType = string(raw)
	}
	return f, contentType, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	os.Remove(path + ".type")
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
