// Package watchstate implements the watch-toggle state machine: the rules
// that govern how an episode's watched status, watch count, and timestamps
// evolve under single, batch, season, and rewatch toggles. The transforms
// are pure and return fresh season slices; Service persists the result.
package watchstate

import (
	"time"

	"trackr/models"
)

// Mode selects the toggle behaviour. Modes are mutually exclusive per call.
type Mode int

const (
	// ModeNormal flips the watched flag. Flipping to watched starts the
	// count at 1; flipping to unwatched strips the watch state entirely.
	ModeNormal Mode = iota
	// ModeForceWatch marks episodes watched without touching episodes that
	// are already watched (their counts and timestamps are preserved).
	ModeForceWatch
	// ModeForceUnwatch decrements the watch count by one, only fully
	// unwatching an episode when the count drops below 1.
	ModeForceUnwatch
	// ModeRewatch increments the watch count.
	ModeRewatch
)

// AllEpisodes is the episode ID sentinel meaning "every episode in the season".
const AllEpisodes = "*"

// ParseMode maps a wire-level mode string to a Mode. An empty string means
// the normal flip.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "normal":
		return ModeNormal, true
	case "force_watch":
		return ModeForceWatch, true
	case "force_unwatch":
		return ModeForceUnwatch, true
	case "rewatch":
		return ModeRewatch, true
	default:
		return ModeNormal, false
	}
}

// ToggleEpisode applies the given mode to one episode of the season with the
// given number, or to the whole season when episodeID is AllEpisodes. The
// input is never mutated; an unknown season or episode yields the input
// seasons unchanged.
func ToggleEpisode(seasons []models.Season, seasonNumber int, episodeID string, mode Mode, now time.Time) []models.Season {
	updated := cloneSeasons(seasons)
	for si := range updated {
		if updated[si].SeasonNumber != seasonNumber {
			continue
		}
		if episodeID == AllEpisodes {
			updated[si].Episodes = toggleSeason(updated[si].Episodes, mode, now)
			return updated
		}
		for ei := range updated[si].Episodes {
			if updated[si].Episodes[ei].ID == episodeID {
				updated[si].Episodes[ei] = toggleOne(updated[si].Episodes[ei], mode, now)
				return updated
			}
		}
		return updated
	}
	return updated
}

// ToggleByIDs applies the normal watch or unwatch transform to every episode
// whose ID appears in ids, across all seasons. Used for cross-season bulk
// selection ("mark selected as watched").
func ToggleByIDs(seasons []models.Season, ids []string, watched bool, now time.Time) []models.Season {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	updated := cloneSeasons(seasons)
	for si := range updated {
		for ei := range updated[si].Episodes {
			if _, ok := idSet[updated[si].Episodes[ei].ID]; !ok {
				continue
			}
			if watched {
				updated[si].Episodes[ei] = markWatched(updated[si].Episodes[ei], now)
			} else {
				updated[si].Episodes[ei] = markUnwatched(updated[si].Episodes[ei])
			}
		}
	}
	return updated
}

// MarkThroughSeason marks every episode of every season up to and including
// maxSeason as watched. Already-watched episodes are untouched, so repeated
// calls are idempotent and never overwrite a first-watched timestamp.
func MarkThroughSeason(seasons []models.Season, maxSeason int, now time.Time) []models.Season {
	updated := cloneSeasons(seasons)
	for si := range updated {
		if updated[si].SeasonNumber > maxSeason {
			continue
		}
		for ei := range updated[si].Episodes {
			if !updated[si].Episodes[ei].Watched() {
				updated[si].Episodes[ei] = markWatched(updated[si].Episodes[ei], now)
			}
		}
	}
	return updated
}

func toggleOne(ep models.Episode, mode Mode, now time.Time) models.Episode {
	switch mode {
	case ModeForceUnwatch:
		return decrementWatch(ep)
	case ModeRewatch:
		return incrementWatch(ep, now)
	case ModeForceWatch:
		if ep.Watched() {
			return ep
		}
		return markWatched(ep, now)
	default:
		if ep.Watched() {
			return markUnwatched(ep)
		}
		return markWatched(ep, now)
	}
}

func toggleSeason(episodes []models.Episode, mode Mode, now time.Time) []models.Episode {
	switch mode {
	case ModeForceUnwatch:
		for i := range episodes {
			if episodes[i].Watched() {
				episodes[i] = decrementWatch(episodes[i])
			}
		}
	case ModeRewatch:
		episodes = rewatchSeason(episodes, now)
	case ModeForceWatch:
		for i := range episodes {
			if !episodes[i].Watched() {
				episodes[i] = markWatched(episodes[i], now)
			}
		}
	default:
		allWatched := true
		for i := range episodes {
			if !episodes[i].Watched() {
				allWatched = false
				break
			}
		}
		for i := range episodes {
			if allWatched {
				episodes[i] = markUnwatched(episodes[i])
			} else if !episodes[i].Watched() {
				episodes[i] = markWatched(episodes[i], now)
			}
		}
	}
	return episodes
}

// rewatchSeason brings a season forward one rewatch step. When all watched
// episodes share one count they advance together; when counts already
// diverge everyone converges on the maximum observed, since a season-level
// rewatch means "bring every episode up to the furthest point".
func rewatchSeason(episodes []models.Episode, now time.Time) []models.Episode {
	minCount, maxCount := 0, 0
	watched := 0
	for _, ep := range episodes {
		if !ep.Watched() {
			continue
		}
		count := ep.WatchCount()
		if watched == 0 {
			minCount, maxCount = count, count
		} else {
			if count < minCount {
				minCount = count
			}
			if count > maxCount {
				maxCount = count
			}
		}
		watched++
	}
	if watched == 0 {
		return episodes
	}

	target := maxCount
	if minCount == maxCount {
		target = maxCount + 1
	}
	for i := range episodes {
		if !episodes[i].Watched() {
			continue
		}
		episodes[i] = setWatchCount(episodes[i], target, now)
	}
	return episodes
}

// markWatched is the normal to-watched transition: the count restarts at 1
// and the first-watched timestamp is kept when one already exists.
func markWatched(ep models.Episode, now time.Time) models.Episode {
	first := now
	if ep.Watch != nil && !ep.Watch.FirstWatchedAt.IsZero() {
		first = ep.Watch.FirstWatchedAt
	}
	last := now
	ep.Watch = &models.WatchState{Count: 1, FirstWatchedAt: first, LastWatchedAt: &last}
	return ep
}

// markUnwatched is the normal to-unwatched transition: a full reset, the
// watch state is removed rather than zeroed.
func markUnwatched(ep models.Episode) models.Episode {
	ep.Watch = nil
	return ep
}

// decrementWatch peels off one viewing. A count above 1 steps down and the
// episode stays watched; at 1 (or a malformed missing count) the episode
// becomes fully unwatched with all watch fields removed.
func decrementWatch(ep models.Episode) models.Episode {
	if ep.Watch == nil {
		return ep
	}
	count := ep.Watch.Count
	if count < 1 {
		count = 1
	}
	if count <= 1 {
		ep.Watch = nil
		return ep
	}
	state := *ep.Watch
	state.Count = count - 1
	ep.Watch = &state
	return ep
}

// incrementWatch adds one viewing. An unwatched episode counts as one prior
// viewing, so the result starts at 2.
func incrementWatch(ep models.Episode, now time.Time) models.Episode {
	count := 1
	first := now
	if ep.Watch != nil {
		if ep.Watch.Count > 0 {
			count = ep.Watch.Count
		}
		if !ep.Watch.FirstWatchedAt.IsZero() {
			first = ep.Watch.FirstWatchedAt
		}
	}
	last := now
	ep.Watch = &models.WatchState{Count: count + 1, FirstWatchedAt: first, LastWatchedAt: &last}
	return ep
}

// setWatchCount pins a watched episode to an exact count, refreshing the
// last-watched timestamp only when the count actually changes.
func setWatchCount(ep models.Episode, count int, now time.Time) models.Episode {
	if ep.Watch == nil {
		return ep
	}
	if ep.Watch.Count == count {
		return ep
	}
	state := *ep.Watch
	state.Count = count
	last := now
	state.LastWatchedAt = &last
	ep.Watch = &state
	return ep
}

func cloneSeasons(seasons []models.Season) []models.Season {
	if seasons == nil {
		return nil
	}
	out := make([]models.Season, len(seasons))
	for i, season := range seasons {
		out[i] = season
		out[i].Episodes = make([]models.Episode, len(season.Episodes))
		for j, ep := range season.Episodes {
			out[i].Episodes[j] = ep
			if ep.Watch != nil {
				state := *ep.Watch
				out[i].Episodes[j].Watch = &state
			}
		}
	}
	return out
}
