package treestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func newTestStore(t *testing.T) *File {
	t.Helper()
	store, err := NewFile(afero.NewMemMapFs(), "data/tree.json")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	return store
}

func TestSetAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	in := doc{Name: "pilot", Count: 2}
	if err := store.Set(ctx, "users/u1/series/42/seasons", in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var out doc
	if err := store.Get(ctx, "users/u1/series/42/seasons", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissingPathReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	var out map[string]any
	err := store.Get(context.Background(), "users/u1/nothing", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSetReplacesSubtree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "users/u1/series/42/seasons", "old"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "users/u1/series/42", "replacement"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var leaf string
	err := store.Get(ctx, "users/u1/series/42/seasons", &leaf)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("descendant should be gone after parent replace, got err = %v", err)
	}

	var parent string
	if err := store.Get(ctx, "users/u1/series/42", &parent); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if parent != "replacement" {
		t.Fatalf("parent value = %q, want %q", parent, "replacement")
	}
}

func TestChildrenListsDirectSegments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{
		"users/u1/completedSeriesData/a",
		"users/u1/completedSeriesData/b",
		"users/u1/completedSeriesData/b/nested",
		"users/u2/completedSeriesData/c",
	} {
		if err := store.Set(ctx, path, true); err != nil {
			t.Fatalf("Set(%s) error = %v", path, err)
		}
	}

	children, err := store.Children(ctx, "users/u1/completedSeriesData")
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, children); diff != "" {
		t.Fatalf("children mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "users/u1/series/42/seasons", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, "users/u1/series/42"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var out int
	if err := store.Get(ctx, "users/u1/series/42/seasons", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting a missing path is not an error.
	if err := store.Delete(ctx, "users/u1/series/42"); err != nil {
		t.Fatalf("Delete() on missing path error = %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	store, err := NewFile(fs, "data/tree.json")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := store.Set(ctx, "users/u1/watchlistOrder", []string{"3", "1"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened, err := NewFile(fs, "data/tree.json")
	if err != nil {
		t.Fatalf("NewFile() reopen error = %v", err)
	}

	var order []string
	if err := reopened.Get(ctx, "users/u1/watchlistOrder", &order); err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if diff := cmp.Diff([]string{"3", "1"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribeNotifiesOnWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen []string
	)
	wg.Add(1)
	cancel := store.Subscribe("users/u1/series", func(path string) {
		mu.Lock()
		seen = append(seen, path)
		mu.Unlock()
		wg.Done()
	})
	defer cancel()

	if err := store.Set(ctx, "users/u1/series/42/seasons", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "users/u1/series/42/seasons" {
		t.Fatalf("listener saw %v, want the written path", seen)
	}

	// Writes outside the prefix are not delivered.
	if err := store.Set(ctx, "users/u2/series/1/seasons", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}
