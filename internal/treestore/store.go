// Package treestore provides the persistence gateway: a hierarchical
// key-value store addressed by slash-separated paths. A Set replaces the
// whole subtree rooted at its path, which makes every watch-state write an
// atomic replace of one consistent snapshot.
package treestore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when no value is stored at the path.
var ErrNotFound = errors.New("treestore: path not found")

// ErrPathRequired is returned when an empty path is supplied.
var ErrPathRequired = errors.New("treestore: path is required")

// Store is a path-addressed tree of JSON documents.
type Store interface {
	// Get unmarshals the value stored at path into dest. Returns ErrNotFound
	// when nothing is stored there.
	Get(ctx context.Context, path string, dest any) error
	// Set stores value at path, replacing the entire subtree below it.
	Set(ctx context.Context, path string, value any) error
	// Delete removes the subtree rooted at path. Deleting a missing path is
	// not an error.
	Delete(ctx context.Context, path string) error
	// Children lists the direct child segments below path, sorted.
	Children(ctx context.Context, path string) ([]string, error)
	// Subscribe registers a change listener for paths under prefix. The
	// returned function cancels the subscription.
	Subscribe(prefix string, fn ListenerFunc) (cancel func())
	// Close releases underlying resources.
	Close() error
}

// ListenerFunc receives the path of a changed subtree.
type ListenerFunc func(path string)

// listeners is the shared subscription registry used by both backends.
// Notification is asynchronous so a listener can issue store calls without
// deadlocking the writer.
type listeners struct {
	mu   sync.Mutex
	next int
	subs map[int]subscription
}

type subscription struct {
	prefix string
	fn     ListenerFunc
}

func (l *listeners) subscribe(prefix string, fn ListenerFunc) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs == nil {
		l.subs = make(map[int]subscription)
	}
	id := l.next
	l.next++
	l.subs[id] = subscription{prefix: prefix, fn: fn}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

func (l *listeners) notify(path string) {
	l.mu.Lock()
	matched := make([]ListenerFunc, 0, len(l.subs))
	for _, sub := range l.subs {
		if pathHasPrefix(path, sub.prefix) || pathHasPrefix(sub.prefix, path) {
			matched = append(matched, sub.fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range matched {
		go fn(path)
	}
}

// pathHasPrefix reports whether path equals prefix or lies beneath it.
func pathHasPrefix(path, prefix string) bool {
	if prefix == "" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func normalizePath(path string) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", ErrPathRequired
	}
	return path, nil
}
