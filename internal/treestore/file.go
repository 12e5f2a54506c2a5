package treestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// File implements Store as a single JSON document on an afero filesystem.
// It mirrors the SQLite backend's semantics and exists for tests (memory
// filesystem) and deployments without CGO.
type File struct {
	fs   afero.Fs
	path string

	mu    sync.RWMutex
	nodes map[string]json.RawMessage
	listeners
}

// NewFile creates a file-backed store persisted at path on the given
// filesystem. The file is created on first write.
func NewFile(filesystem afero.Fs, path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("treestore: file path is required")
	}

	store := &File{
		fs:    filesystem,
		path:  path,
		nodes: make(map[string]json.RawMessage),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (f *File) load() error {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tree file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &f.nodes); err != nil {
		return fmt.Errorf("decode tree file: %w", err)
	}
	return nil
}

// saveLocked writes the node map atomically: temp file, then rename.
func (f *File) saveLocked() error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tree dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(f.nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tree temp file: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("replace tree file: %w", err)
	}
	return nil
}

// Get unmarshals the value stored at path into dest.
func (f *File) Get(ctx context.Context, path string, dest any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	f.mu.RLock()
	raw, ok := f.nodes[path]
	f.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Set stores value at path, replacing the entire subtree below it.
func (f *File) Set(ctx context.Context, path string, value any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	f.mu.Lock()
	for existing := range f.nodes {
		if pathHasPrefix(existing, path) {
			delete(f.nodes, existing)
		}
	}
	f.nodes[path] = raw
	err = f.saveLocked()
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.notify(path)
	return nil
}

// Delete removes the subtree rooted at path.
func (f *File) Delete(ctx context.Context, path string) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	removed := false
	for existing := range f.nodes {
		if pathHasPrefix(existing, path) {
			delete(f.nodes, existing)
			removed = true
		}
	}
	if removed {
		err = f.saveLocked()
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if removed {
		f.notify(path)
	}
	return nil
}

// Children lists the direct child segments below path, sorted.
func (f *File) Children(ctx context.Context, path string) ([]string, error) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := make(map[string]struct{})
	for existing := range f.nodes {
		if !strings.HasPrefix(existing, path+"/") {
			continue
		}
		rest := strings.TrimPrefix(existing, path+"/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			rest = rest[:idx]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}

	children := make([]string, 0, len(seen))
	for child := range seen {
		children = append(children, child)
	}
	sort.Strings(children)
	return children, nil
}

// Subscribe registers a change listener for paths under prefix.
func (f *File) Subscribe(prefix string, fn ListenerFunc) func() {
	return f.subscribe(prefix, fn)
}

// Close is a no-op for the file backend.
func (f *File) Close() error {
	return nil
}
