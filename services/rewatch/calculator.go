// Package rewatch derives rewatch activity, targets, and progress from a
// series' raw episode data. Everything here is pure: the only stored rewatch
// state is the series' rewatch flag, the rest is recomputed on demand.
package rewatch

import "trackr/models"

// State classifies how a rewatch came to be.
type State int

const (
	// StateNone means no rewatch is in progress, explicit or otherwise.
	StateNone State = iota
	// StateExplicit means the user started a rewatch via the rewatch flag.
	StateExplicit
	// StateInferred means divergent watch counts imply an ad-hoc rewatch the
	// user never formally started.
	StateInferred
)

// Status combines the rewatch state with its round.
type Status struct {
	State State
	Round int
}

// Progress reports how far a rewatch has come. Current counts watched
// episodes that already meet the target count, Total counts all watched
// episodes. Callers rendering a percentage must guard Total == 0.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// HasActiveRewatch reports whether the user explicitly started a rewatch.
func HasActiveRewatch(series models.Series) bool {
	return series.Rewatch != nil && series.Rewatch.Active
}

// TargetWatchCount returns the watch count every episode must reach for the
// current rewatch round. Never below 2: an active rewatch always means
// "watch again", even on round zero.
func TargetWatchCount(series models.Series) int {
	round := 0
	if series.Rewatch != nil {
		round = series.Rewatch.Round
	}
	if round+1 < 2 {
		return 2
	}
	return round + 1
}

// NextEpisode returns the first watched episode, scanning seasons and
// episodes in order, that has not yet reached the target watch count. It
// returns nil when no rewatch is active or every candidate is caught up.
// Episodes without an air date are regular candidates: a rewatch only
// concerns episodes that were already watched.
func NextEpisode(series models.Series) *models.Episode {
	if !HasActiveRewatch(series) {
		return nil
	}
	target := TargetWatchCount(series)
	for si := range series.Seasons {
		episodes := series.Seasons[si].Episodes
		for ei := range episodes {
			if episodes[ei].Watched() && episodes[ei].WatchCount() < target {
				ep := episodes[ei]
				return &ep
			}
		}
	}
	return nil
}

// RewatchProgress measures how many watched episodes meet the current target.
func RewatchProgress(series models.Series) Progress {
	target := TargetWatchCount(series)
	var p Progress
	for _, season := range series.Seasons {
		for _, ep := range season.Episodes {
			if !ep.Watched() {
				continue
			}
			p.Total++
			if ep.WatchCount() >= target {
				p.Current++
			}
		}
	}
	return p
}

// IsComplete reports whether an active rewatch has brought every watched
// episode up to the target count.
func IsComplete(series models.Series) bool {
	if !HasActiveRewatch(series) {
		return false
	}
	p := RewatchProgress(series)
	return p.Current == p.Total
}

// IsSeriesFullyWatched reports whether every episode of every season is
// watched and all of them share the same watch count, i.e. no rewatch pass
// is partway through. A series with zero episodes is not fully watched.
func IsSeriesFullyWatched(series models.Series) bool {
	total := 0
	firstCount := 0
	for _, season := range series.Seasons {
		for _, ep := range season.Episodes {
			if !ep.Watched() {
				return false
			}
			if total == 0 {
				firstCount = ep.WatchCount()
			} else if ep.WatchCount() != firstCount {
				return false
			}
			total++
		}
	}
	return total > 0
}

// ImplicitRound infers a rewatch round the user never explicitly started.
// Divergent watch counts with no rewatch flag only happen when the user
// rewatched ad hoc; the round is read off the highest count observed. The
// explicit flag always takes precedence, and uniform counts infer nothing.
func ImplicitRound(series models.Series) int {
	if HasActiveRewatch(series) {
		return 0
	}
	minCount, maxCount := 0, 0
	seen := false
	for _, season := range series.Seasons {
		for _, ep := range season.Episodes {
			if !ep.Watched() {
				continue
			}
			count := ep.WatchCount()
			if !seen {
				minCount, maxCount = count, count
				seen = true
				continue
			}
			if count < minCount {
				minCount = count
			}
			if count > maxCount {
				maxCount = count
			}
		}
	}
	if seen && minCount != maxCount && maxCount > 1 {
		return maxCount - 1
	}
	return 0
}

// MaxWatchCount returns the highest watch count among watched episodes,
// 0 when nothing is watched.
func MaxWatchCount(series models.Series) int {
	max := 0
	for _, season := range series.Seasons {
		for _, ep := range season.Episodes {
			if ep.WatchCount() > max {
				max = ep.WatchCount()
			}
		}
	}
	return max
}

// CurrentStatus resolves the three-way rewatch state: an explicit rewatch
// when the flag is set, an inferred one when counts diverge, none otherwise.
func CurrentStatus(series models.Series) Status {
	if HasActiveRewatch(series) {
		return Status{State: StateExplicit, Round: series.Rewatch.Round}
	}
	if round := ImplicitRound(series); round > 0 {
		return Status{State: StateInferred, Round: round}
	}
	return Status{State: StateNone}
}
