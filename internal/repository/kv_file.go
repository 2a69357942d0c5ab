package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

const fileStoreSuffix = ".json"

// FileStore keeps one file per key under a directory, the on-disk equivalent of browser local storage.
type FileStore struct {
	mu    sync.Mutex
	files *storage.LocalStorage
}

// NewFileStore wraps a LocalStorage directory.
func NewFileStore(files *storage.LocalStorage) *FileStore {
	return &FileStore{files: files}
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := f.files.Read(fileName(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, appErrors.ErrStoreMiss
		}
		return nil, err
	}
	return data, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.files.Save(fileName(key), value); err != nil {
		return fmt.Errorf("file store set %s: %w", key, err)
	}
	return nil
}

// SetMany stages every entry before renaming any, so a write failure leaves all keys untouched.
func (f *FileStore) SetMany(_ context.Context, entries map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := sortedKeys(entries)
	staged := make([]string, 0, len(keys))
	for _, key := range keys {
		path, err := f.files.Stage(fileName(key), entries[key])
		if err != nil {
			for _, p := range staged {
				f.files.Discard(p)
			}
			return fmt.Errorf("file store stage %s: %w", key, err)
		}
		staged = append(staged, path)
	}
	for i, key := range keys {
		if err := f.files.Commit(staged[i], fileName(key)); err != nil {
			for _, p := range staged[i+1:] {
				f.files.Discard(p)
			}
			return fmt.Errorf("file store commit %s: %w", key, err)
		}
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files.Delete(fileName(key))
}

func (f *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	names, err := f.files.List(fileStoreSuffix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileStoreSuffix))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func fileName(key string) string {
	return url.PathEscape(key) + fileStoreSuffix
}
