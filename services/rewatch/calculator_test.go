package rewatch

import (
	"fmt"
	"testing"
	"time"

	"trackr/models"
)

func watchedEpisode(id string, count int) models.Episode {
	first := time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	return models.Episode{
		ID:    id,
		Watch: &models.WatchState{Count: count, FirstWatchedAt: first},
	}
}

func seriesWithCounts(counts ...int) models.Series {
	episodes := make([]models.Episode, 0, len(counts))
	for i, count := range counts {
		id := fmt.Sprintf("ep-%d", i+1)
		if count == 0 {
			episodes = append(episodes, models.Episode{ID: id})
			continue
		}
		episodes = append(episodes, watchedEpisode(id, count))
	}
	return models.Series{
		ID:      "series-1",
		Nmr:     "1",
		Title:   "Example Show",
		Seasons: []models.Season{{SeasonNumber: 1, Episodes: episodes}},
	}
}

func TestTargetWatchCountNeverBelowTwo(t *testing.T) {
	for round := 0; round <= 5; round++ {
		s := seriesWithCounts(1, 1)
		s.Rewatch = &models.Rewatch{Active: true, Round: round}

		got := TargetWatchCount(s)
		want := round + 1
		if want < 2 {
			want = 2
		}
		if got != want {
			t.Fatalf("round %d: TargetWatchCount = %d, want %d", round, got, want)
		}
		if got < 2 {
			t.Fatalf("round %d: target %d below 2 with active rewatch", round, got)
		}
	}
}

func TestTargetWatchCountWithoutRewatchFlag(t *testing.T) {
	s := seriesWithCounts(1, 1)
	if got := TargetWatchCount(s); got != 2 {
		t.Fatalf("TargetWatchCount = %d, want 2", got)
	}
}

func TestNextEpisodeReturnsFirstBehindTarget(t *testing.T) {
	s := seriesWithCounts(1, 1)
	s.Rewatch = &models.Rewatch{Active: true, Round: 0}

	next := NextEpisode(s)
	if next == nil {
		t.Fatal("expected a next rewatch episode")
	}
	if next.ID != "ep-1" {
		t.Fatalf("next episode = %s, want ep-1", next.ID)
	}
}

func TestNextEpisodeSkipsCaughtUpAndUnwatched(t *testing.T) {
	s := seriesWithCounts(2, 0, 1)
	s.Rewatch = &models.Rewatch{Active: true, Round: 0}

	next := NextEpisode(s)
	if next == nil {
		t.Fatal("expected a next rewatch episode")
	}
	if next.ID != "ep-3" {
		t.Fatalf("next episode = %s, want ep-3 (ep-1 caught up, ep-2 never watched)", next.ID)
	}
}

func TestNextEpisodeNilWithoutActiveRewatch(t *testing.T) {
	s := seriesWithCounts(1, 1)
	if next := NextEpisode(s); next != nil {
		t.Fatalf("expected nil next episode, got %s", next.ID)
	}
}

func TestRewatchProgressCurrentNeverExceedsTotal(t *testing.T) {
	cases := [][]int{
		{},
		{0, 0},
		{1, 1, 1},
		{2, 1, 0},
		{3, 3, 3},
	}
	for _, counts := range cases {
		s := seriesWithCounts(counts...)
		s.Rewatch = &models.Rewatch{Active: true, Round: 1}

		p := RewatchProgress(s)
		if p.Current > p.Total {
			t.Fatalf("counts %v: current %d exceeds total %d", counts, p.Current, p.Total)
		}
	}
}

func TestRewatchProgressZeroEpisodes(t *testing.T) {
	s := models.Series{ID: "empty"}
	p := RewatchProgress(s)
	if p.Current != 0 || p.Total != 0 {
		t.Fatalf("progress = %d/%d, want 0/0", p.Current, p.Total)
	}
}

func TestIsCompleteOnlyWithActiveRewatch(t *testing.T) {
	s := seriesWithCounts(2, 2)
	if IsComplete(s) {
		t.Fatal("IsComplete should be false without an active rewatch")
	}

	s.Rewatch = &models.Rewatch{Active: true, Round: 0}
	if !IsComplete(s) {
		t.Fatal("expected rewatch complete with all counts at target")
	}

	s.Seasons[0].Episodes[1] = watchedEpisode("ep-2", 1)
	if IsComplete(s) {
		t.Fatal("rewatch should be incomplete while an episode is behind target")
	}
}

func TestIsSeriesFullyWatched(t *testing.T) {
	s := seriesWithCounts(1, 1)
	if !IsSeriesFullyWatched(s) {
		t.Fatal("uniformly watched series should be fully watched")
	}

	if IsSeriesFullyWatched(models.Series{ID: "empty"}) {
		t.Fatal("series with zero episodes must not count as fully watched")
	}

	if IsSeriesFullyWatched(seriesWithCounts(1, 0)) {
		t.Fatal("series with an unwatched episode is not fully watched")
	}

	if IsSeriesFullyWatched(seriesWithCounts(2, 1)) {
		t.Fatal("divergent watch counts mean a rewatch is mid-flight, not fully watched")
	}
}

func TestImplicitRound(t *testing.T) {
	if got := ImplicitRound(seriesWithCounts(3, 1)); got != 2 {
		t.Fatalf("ImplicitRound = %d, want 2 (max 3 minus 1)", got)
	}

	if got := ImplicitRound(seriesWithCounts(1, 1)); got != 0 {
		t.Fatalf("uniform counts: ImplicitRound = %d, want 0", got)
	}

	// The explicit flag always wins over inference.
	s := seriesWithCounts(3, 1)
	s.Rewatch = &models.Rewatch{Active: true, Round: 1}
	if got := ImplicitRound(s); got != 0 {
		t.Fatalf("active rewatch: ImplicitRound = %d, want 0", got)
	}

	// Counts diverging only between 0 and 1 (some unwatched) infer nothing.
	if got := ImplicitRound(seriesWithCounts(1, 0)); got != 0 {
		t.Fatalf("counts [1,unwatched]: ImplicitRound = %d, want 0", got)
	}
}

func TestMaxWatchCount(t *testing.T) {
	if got := MaxWatchCount(seriesWithCounts(1, 3, 2)); got != 3 {
		t.Fatalf("MaxWatchCount = %d, want 3", got)
	}
	if got := MaxWatchCount(seriesWithCounts(0, 0)); got != 0 {
		t.Fatalf("MaxWatchCount = %d, want 0 for unwatched series", got)
	}
}

func TestCurrentStatus(t *testing.T) {
	s := seriesWithCounts(1, 1)
	if st := CurrentStatus(s); st.State != StateNone {
		t.Fatalf("status = %v, want none", st)
	}

	s.Rewatch = &models.Rewatch{Active: true, Round: 2}
	st := CurrentStatus(s)
	if st.State != StateExplicit || st.Round != 2 {
		t.Fatalf("status = %+v, want explicit round 2", st)
	}

	inferred := seriesWithCounts(3, 1)
	st = CurrentStatus(inferred)
	if st.State != StateInferred || st.Round != 2 {
		t.Fatalf("status = %+v, want inferred round 2", st)
	}
}

// Mirrors the documented walkthrough: two watched episodes at count 1 are a
// fully watched series; flipping on a round-zero rewatch makes episode one
// the next candidate at target 2.
func TestFullyWatchedThenRewatchWalkthrough(t *testing.T) {
	s := seriesWithCounts(1, 1)
	if !IsSeriesFullyWatched(s) {
		t.Fatal("expected fully watched series")
	}

	s.Rewatch = &models.Rewatch{Active: true, Round: 0}
	if got := TargetWatchCount(s); got != 2 {
		t.Fatalf("TargetWatchCount = %d, want 2", got)
	}
	next := NextEpisode(s)
	if next == nil || next.ID != "ep-1" {
		t.Fatalf("next = %v, want ep-1", next)
	}
}
