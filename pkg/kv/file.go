package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage stores each key as a separate file on disk.
//
// Layout:
//
//	data_dir/
//	  edu_resource_db_v4.kv   # the portal document
//	  edu_lib_user.kv         # the persisted principal
type FileStorage struct {
	mu    sync.RWMutex
	dir   string
	quota int64
}

// NewFileStorage creates dir if needed. quota caps a single value in bytes; zero means unlimited.
func NewFileStorage(dir string, quota int64) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("kv file storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}
	return &FileStorage{dir: dir, quota: quota}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".kv")
}

func (s *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	if s.quota > 0 {
		if err := checkQuota(key, value, s.quota); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *FileStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
