package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"trackr/internal/treestore"
	"trackr/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := treestore.NewFile(afero.NewMemMapFs(), "catalog.json")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store)
}

func sampleSeries(nmr, title string) models.Series {
	return models.Series{
		ID:        "tmdb-" + nmr,
		Nmr:       nmr,
		Title:     title,
		Status:    "Returning Series",
		Watchlist: true,
		Seasons: []models.Season{
			{SeasonNumber: 1, Episodes: []models.Episode{
				{ID: "s1e1", Name: "Pilot", AirDate: "2020-01-01"},
				{ID: "s1e2", Name: "Two", AirDate: "2020-01-08"},
			}},
		},
	}
}

func TestAddAndGetRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	want := sampleSeries("breaking-bad", "Breaking Bad")
	want.Rewatch = &models.Rewatch{Active: true, Round: 2}

	if err := svc.Add(ctx, "alice", want); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := svc.Get(ctx, "alice", "breaking-bad")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUnknownSeries(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Get(context.Background(), "alice", "missing"); !errors.Is(err, ErrSeriesNotFound) {
		t.Fatalf("Get() error = %v, want ErrSeriesNotFound", err)
	}
}

func TestValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Add(ctx, " ", sampleSeries("x", "X")); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("Add() error = %v, want ErrUserIDRequired", err)
	}
	if err := svc.Add(ctx, "alice", models.Series{Title: "No Key"}); !errors.Is(err, ErrSeriesRequired) {
		t.Fatalf("Add() error = %v, want ErrSeriesRequired", err)
	}
	if _, err := svc.Get(ctx, "alice", ""); !errors.Is(err, ErrSeriesRequired) {
		t.Fatalf("Get() error = %v, want ErrSeriesRequired", err)
	}
}

func TestListHonoursWatchlistOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, nmr := range []string{"alpha", "bravo", "charlie"} {
		if err := svc.Add(ctx, "alice", sampleSeries(nmr, nmr)); err != nil {
			t.Fatalf("Add(%s) error = %v", nmr, err)
		}
	}
	if err := svc.SetWatchlistOrder(ctx, "alice", []string{"charlie", "alpha", "gone"}); err != nil {
		t.Fatalf("SetWatchlistOrder() error = %v", err)
	}

	list, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var got []string
	for _, s := range list {
		got = append(got, s.Nmr)
	}
	// Ordered keys first, unknown keys skipped, the rest sorted.
	want := []string{"charlie", "alpha", "bravo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveDeletesSubtree(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	series := sampleSeries("alpha", "Alpha")
	series.Rewatch = &models.Rewatch{Active: true}
	if err := svc.Add(ctx, "alice", series); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := svc.Remove(ctx, "alice", "alpha"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := svc.Get(ctx, "alice", "alpha"); !errors.Is(err, ErrSeriesNotFound) {
		t.Fatalf("Get() after Remove error = %v, want ErrSeriesNotFound", err)
	}
	list, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List() = %d series after Remove, want 0", len(list))
	}
}

func TestSetWatchlistAndStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Add(ctx, "alice", sampleSeries("alpha", "Alpha")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := svc.SetWatchlist(ctx, "alice", "alpha", false); err != nil {
		t.Fatalf("SetWatchlist() error = %v", err)
	}
	if err := svc.SetStatus(ctx, "alice", "alpha", "Ended"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, err := svc.Get(ctx, "alice", "alpha")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Watchlist {
		t.Fatal("Watchlist = true, want false")
	}
	if got.Status != "Ended" {
		t.Fatalf("Status = %q, want Ended", got.Status)
	}
	// Info updates must not disturb the seasons subtree.
	if len(got.Seasons) != 1 || len(got.Seasons[0].Episodes) != 2 {
		t.Fatalf("seasons changed by info update: %+v", got.Seasons)
	}

	if err := svc.SetWatchlist(ctx, "alice", "missing", true); !errors.Is(err, ErrSeriesNotFound) {
		t.Fatalf("SetWatchlist() error = %v, want ErrSeriesNotFound", err)
	}
}

func TestRewatchLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Add(ctx, "alice", sampleSeries("alpha", "Alpha")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rw, err := svc.StartRewatch(ctx, "alice", "alpha")
	if err != nil {
		t.Fatalf("StartRewatch() error = %v", err)
	}
	if !rw.Active || rw.Round != 0 {
		t.Fatalf("rewatch after start = %+v, want active round 0", rw)
	}

	rw, err = svc.StopRewatch(ctx, "alice", "alpha", true)
	if err != nil {
		t.Fatalf("StopRewatch() error = %v", err)
	}
	if rw.Active || rw.Round != 1 {
		t.Fatalf("rewatch after completed stop = %+v, want inactive round 1", rw)
	}

	// Starting again keeps the advanced round.
	rw, err = svc.StartRewatch(ctx, "alice", "alpha")
	if err != nil {
		t.Fatalf("StartRewatch() error = %v", err)
	}
	if !rw.Active || rw.Round != 1 {
		t.Fatalf("rewatch after restart = %+v, want active round 1", rw)
	}

	// Abandoning does not advance the round.
	rw, err = svc.StopRewatch(ctx, "alice", "alpha", false)
	if err != nil {
		t.Fatalf("StopRewatch() error = %v", err)
	}
	if rw.Active || rw.Round != 1 {
		t.Fatalf("rewatch after abandoned stop = %+v, want inactive round 1", rw)
	}

	got, err := svc.Get(ctx, "alice", "alpha")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Rewatch == nil || got.Rewatch.Round != 1 {
		t.Fatalf("persisted rewatch = %+v, want round 1", got.Rewatch)
	}
}

func TestWatchlistOrderEmptyByDefault(t *testing.T) {
	svc := newTestService(t)

	order, err := svc.WatchlistOrder(context.Background(), "alice")
	if err != nil {
		t.Fatalf("WatchlistOrder() error = %v", err)
	}
	if order != nil {
		t.Fatalf("order = %v, want nil", order)
	}
}
