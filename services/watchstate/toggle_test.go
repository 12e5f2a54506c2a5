package watchstate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"trackr/models"
)

var testNow = time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)

func episode(id string, count int) models.Episode {
	ep := models.Episode{ID: id}
	if count > 0 {
		first := testNow.Add(-30 * 24 * time.Hour)
		last := testNow.Add(-24 * time.Hour)
		ep.Watch = &models.WatchState{Count: count, FirstWatchedAt: first, LastWatchedAt: &last}
	}
	return ep
}

func season(number int, episodes ...models.Episode) models.Season {
	return models.Season{SeasonNumber: number, Episodes: episodes}
}

func counts(seasons []models.Season, seasonNumber int) []int {
	for _, s := range seasons {
		if s.SeasonNumber != seasonNumber {
			continue
		}
		out := make([]int, len(s.Episodes))
		for i, ep := range s.Episodes {
			out[i] = ep.WatchCount()
		}
		return out
	}
	return nil
}

func TestNormalToggleRoundTripResetsCount(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 3))}

	// watched -> unwatched strips the watch state entirely
	unwatched := ToggleEpisode(seasons, 1, "e1", ModeNormal, testNow)
	if unwatched[0].Episodes[0].Watch != nil {
		t.Fatal("normal unwatch must remove the watch state, not zero it")
	}

	// unwatched -> watched starts over at count 1 with a fresh timestamp
	later := testNow.Add(time.Hour)
	rewatched := ToggleEpisode(unwatched, 1, "e1", ModeNormal, later)
	got := rewatched[0].Episodes[0]
	if got.WatchCount() != 1 {
		t.Fatalf("watch count after round trip = %d, want 1", got.WatchCount())
	}
	if !got.Watch.FirstWatchedAt.Equal(later) {
		t.Fatalf("firstWatchedAt = %v, want fresh %v", got.Watch.FirstWatchedAt, later)
	}
}

func TestForceUnwatchDecrementsToExactlyOneLess(t *testing.T) {
	for _, start := range []int{2, 3, 5} {
		seasons := []models.Season{season(1, episode("e1", start))}

		updated := ToggleEpisode(seasons, 1, "e1", ModeForceUnwatch, testNow)
		ep := updated[0].Episodes[0]
		if ep.WatchCount() != start-1 {
			t.Fatalf("start %d: count = %d, want %d", start, ep.WatchCount(), start-1)
		}
		if !ep.Watched() {
			t.Fatalf("start %d: episode must stay watched", start)
		}
	}
}

func TestRepeatedForceUnwatchEndsFullyUnwatched(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 4))}

	for i := 0; i < 4; i++ {
		seasons = ToggleEpisode(seasons, 1, "e1", ModeForceUnwatch, testNow)
	}
	if seasons[0].Episodes[0].Watch != nil {
		t.Fatal("expected fully unwatched episode with watch fields removed")
	}

	// One more force-unwatch is a no-op, never negative.
	seasons = ToggleEpisode(seasons, 1, "e1", ModeForceUnwatch, testNow)
	if seasons[0].Episodes[0].Watch != nil {
		t.Fatal("force-unwatch on unwatched episode must stay unwatched")
	}
}

func TestForceUnwatchAtCountTwoKeepsFirstViewing(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 2))}
	before := seasons[0].Episodes[0].Watch.FirstWatchedAt

	updated := ToggleEpisode(seasons, 1, "e1", ModeForceUnwatch, testNow)
	ep := updated[0].Episodes[0]
	if ep.WatchCount() != 1 || !ep.Watched() {
		t.Fatalf("count = %d watched = %v, want the un-rewatched first viewing", ep.WatchCount(), ep.Watched())
	}
	if !ep.Watch.FirstWatchedAt.Equal(before) {
		t.Fatal("firstWatchedAt must survive a decrement")
	}
}

func TestRewatchIncrement(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 2), episode("e2", 0))}
	firstBefore := seasons[0].Episodes[0].Watch.FirstWatchedAt

	updated := ToggleEpisode(seasons, 1, "e1", ModeRewatch, testNow)
	ep := updated[0].Episodes[0]
	if ep.WatchCount() != 3 {
		t.Fatalf("count = %d, want 3", ep.WatchCount())
	}
	if !ep.Watch.FirstWatchedAt.Equal(firstBefore) {
		t.Fatal("firstWatchedAt must be preserved by a rewatch increment")
	}
	if ep.Watch.LastWatchedAt == nil || !ep.Watch.LastWatchedAt.Equal(testNow) {
		t.Fatal("lastWatchedAt must be refreshed by a rewatch increment")
	}

	// Rewatch-increment on a never-watched episode counts the implicit first
	// viewing, landing at 2 with a fresh firstWatchedAt.
	updated = ToggleEpisode(updated, 1, "e2", ModeRewatch, testNow)
	ep = updated[0].Episodes[1]
	if ep.WatchCount() != 2 {
		t.Fatalf("count = %d, want 2", ep.WatchCount())
	}
	if !ep.Watch.FirstWatchedAt.Equal(testNow) {
		t.Fatal("firstWatchedAt must be stamped when absent")
	}
}

func TestForceWatchPreservesExistingCount(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 3), episode("e2", 0))}

	updated := ToggleEpisode(seasons, 1, "e1", ModeForceWatch, testNow)
	if got := updated[0].Episodes[0].WatchCount(); got != 3 {
		t.Fatalf("force-watch on watched episode changed count to %d, want 3 untouched", got)
	}

	updated = ToggleEpisode(updated, 1, "e2", ModeForceWatch, testNow)
	ep := updated[0].Episodes[1]
	if ep.WatchCount() != 1 {
		t.Fatalf("force-watch on unwatched episode count = %d, want 1", ep.WatchCount())
	}
	if !ep.Watch.FirstWatchedAt.Equal(testNow) {
		t.Fatal("force-watch must stamp firstWatchedAt when absent")
	}
}

// Season-level force-unwatch over counts [3,2,1,unwatched] lands on
// [2,1,unwatched,unwatched].
func TestSeasonForceUnwatch(t *testing.T) {
	seasons := []models.Season{season(1,
		episode("e1", 3), episode("e2", 2), episode("e3", 1), episode("e4", 0),
	)}

	updated := ToggleEpisode(seasons, 1, AllEpisodes, ModeForceUnwatch, testNow)
	if diff := cmp.Diff([]int{2, 1, 0, 0}, counts(updated, 1)); diff != "" {
		t.Fatalf("season force-unwatch mismatch (-want +got):\n%s", diff)
	}
}

func TestSeasonRewatchUniformCountsAdvanceTogether(t *testing.T) {
	seasons := []models.Season{season(1,
		episode("e1", 2), episode("e2", 2), episode("e3", 0),
	)}

	updated := ToggleEpisode(seasons, 1, AllEpisodes, ModeRewatch, testNow)
	if diff := cmp.Diff([]int{3, 3, 0}, counts(updated, 1)); diff != "" {
		t.Fatalf("uniform season rewatch mismatch (-want +got):\n%s", diff)
	}
}

func TestSeasonRewatchDivergentCountsConvergeOnMax(t *testing.T) {
	seasons := []models.Season{season(1,
		episode("e1", 3), episode("e2", 1), episode("e3", 2),
	)}

	updated := ToggleEpisode(seasons, 1, AllEpisodes, ModeRewatch, testNow)
	if diff := cmp.Diff([]int{3, 3, 3}, counts(updated, 1)); diff != "" {
		t.Fatalf("divergent season rewatch mismatch (-want +got):\n%s", diff)
	}
}

func TestSeasonForceWatch(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 2), episode("e2", 0))}

	updated := ToggleEpisode(seasons, 1, AllEpisodes, ModeForceWatch, testNow)
	if diff := cmp.Diff([]int{2, 1}, counts(updated, 1)); diff != "" {
		t.Fatalf("season force-watch mismatch (-want +got):\n%s", diff)
	}
}

func TestSeasonNormalToggleAllOrNothing(t *testing.T) {
	// Mixed season: only the unwatched episodes become watched.
	mixed := []models.Season{season(1, episode("e1", 2), episode("e2", 0))}
	updated := ToggleEpisode(mixed, 1, AllEpisodes, ModeNormal, testNow)
	if diff := cmp.Diff([]int{2, 1}, counts(updated, 1)); diff != "" {
		t.Fatalf("mixed season toggle mismatch (-want +got):\n%s", diff)
	}

	// Fully watched season: everything resets to unwatched.
	updated = ToggleEpisode(updated, 1, AllEpisodes, ModeNormal, testNow)
	if diff := cmp.Diff([]int{0, 0}, counts(updated, 1)); diff != "" {
		t.Fatalf("fully watched season toggle mismatch (-want +got):\n%s", diff)
	}
	for _, ep := range updated[0].Episodes {
		if ep.Watch != nil {
			t.Fatal("season unwatch-all must strip watch state")
		}
	}
}

func TestToggleByIDsCrossesSeasonBoundaries(t *testing.T) {
	seasons := []models.Season{
		season(1, episode("s1e1", 0), episode("s1e2", 0)),
		season(2, episode("s2e1", 0)),
	}

	updated := ToggleByIDs(seasons, []string{"s1e2", "s2e1"}, true, testNow)
	if diff := cmp.Diff([]int{0, 1}, counts(updated, 1)); diff != "" {
		t.Fatalf("season 1 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, counts(updated, 2)); diff != "" {
		t.Fatalf("season 2 mismatch (-want +got):\n%s", diff)
	}

	cleared := ToggleByIDs(updated, []string{"s1e2"}, false, testNow)
	if cleared[0].Episodes[1].Watch != nil {
		t.Fatal("batch unwatch must strip watch state")
	}
}

func TestMarkThroughSeason(t *testing.T) {
	seasons := []models.Season{
		season(1, episode("s1e1", 2)),
		season(2, episode("s2e1", 0)),
		season(3, episode("s3e1", 0)),
	}

	updated := MarkThroughSeason(seasons, 2, testNow)
	if got := updated[0].Episodes[0].WatchCount(); got != 2 {
		t.Fatalf("season 1 count = %d, want 2 untouched", got)
	}
	if got := updated[1].Episodes[0].WatchCount(); got != 1 {
		t.Fatalf("season 2 count = %d, want 1", got)
	}
	if updated[2].Episodes[0].Watch != nil {
		t.Fatal("season 3 is past the cutoff and must stay unwatched")
	}

	// Idempotent: a second pass never overwrites firstWatchedAt.
	first := updated[1].Episodes[0].Watch.FirstWatchedAt
	again := MarkThroughSeason(updated, 2, testNow.Add(time.Hour))
	if !again[1].Episodes[0].Watch.FirstWatchedAt.Equal(first) {
		t.Fatal("repeated mark-through must preserve firstWatchedAt")
	}
}

func TestTransformsDoNotMutateInput(t *testing.T) {
	seasons := []models.Season{season(1, episode("e1", 2), episode("e2", 0))}
	snapshot := []models.Season{season(1, episode("e1", 2), episode("e2", 0))}

	ToggleEpisode(seasons, 1, "e1", ModeForceUnwatch, testNow)
	ToggleEpisode(seasons, 1, AllEpisodes, ModeRewatch, testNow)
	ToggleByIDs(seasons, []string{"e2"}, true, testNow)
	MarkThroughSeason(seasons, 1, testNow)

	if diff := cmp.Diff(snapshot, seasons); diff != "" {
		t.Fatalf("input seasons were mutated (-want +got):\n%s", diff)
	}
}

func TestMalformedInputIsANoOp(t *testing.T) {
	if got := ToggleEpisode(nil, 1, "e1", ModeNormal, testNow); got != nil {
		t.Fatalf("nil seasons should stay nil, got %v", got)
	}

	seasons := []models.Season{season(1, episode("e1", 1))}
	unknownSeason := ToggleEpisode(seasons, 9, "e1", ModeNormal, testNow)
	if diff := cmp.Diff(seasons, unknownSeason); diff != "" {
		t.Fatalf("unknown season must be a no-op (-want +got):\n%s", diff)
	}

	unknownEpisode := ToggleEpisode(seasons, 1, "missing", ModeNormal, testNow)
	if diff := cmp.Diff(seasons, unknownEpisode); diff != "" {
		t.Fatalf("unknown episode must be a no-op (-want +got):\n%s", diff)
	}

	empty := ToggleEpisode([]models.Season{{SeasonNumber: 1}}, 1, AllEpisodes, ModeRewatch, testNow)
	if len(empty[0].Episodes) != 0 {
		t.Fatal("season without episodes must stay empty")
	}
}
