// Package memory serves snapshots from process memory or a local directory.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"costboard/internal/snapshot"
)

// Store keeps snapshot bodies in memory. When dir is set, keys missing from
// memory are read from files under dir.
type Store struct {
	mu    sync.RWMutex
	dir   string
	items map[string][]byte
}

func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

// NewFromDir returns a Store backed by the files in base.
func NewFromDir(base string) *Store {
	s := New()
	s.dir = base
	return s
}

// Put stores body under key, replacing any previous value.
func (s *Store) Put(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), body...)
}

// Delete removes key from memory. Files on disk are never touched.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Fetch returns the body stored under key.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, snapshot.Wrap(key, err)
	}
	s.mu.RLock()
	body, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return append([]byte(nil), body...), nil
	}
	if s.dir == "" {
		return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	body, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	}
	if err != nil {
		return nil, snapshot.Wrap(key, err)
	}
	return body, nil
}

// Keys lists the keys held in memory and on disk, sorted and de-duplicated.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list %s: %w", s.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				keys = append(keys, e.Name())
			}
		}
	}
	return dedupeSorted(keys), nil
}

// path keeps lookups inside dir.
func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	}
	return filepath.Join(s.dir, clean), nil
}

func dedupeSorted(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
