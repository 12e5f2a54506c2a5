package models

import "time"

// AirDateLayout is the wire format for episode air dates (date only, no zone).
const AirDateLayout = "2006-01-02"

// WatchState records how often and when an episode has been watched. An
// episode that has never been watched carries no WatchState at all; presence
// of the struct is the "ever watched" marker, so a zero count cannot exist.
type WatchState struct {
	Count          int        `json:"count"`
	FirstWatchedAt time.Time  `json:"firstWatchedAt"`
	LastWatchedAt  *time.Time `json:"lastWatchedAt,omitempty"`
}

// Episode is one episode of a season with its watch state.
type Episode struct {
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	AirDate string      `json:"airDate,omitempty"` // YYYY-MM-DD, empty when unannounced
	Watch   *WatchState `json:"watch,omitempty"`
}

// Watched reports whether the episode has been watched at least once.
func (e Episode) Watched() bool {
	return e.Watch != nil
}

// WatchCount returns the number of times the episode was watched, 0 if never.
func (e Episode) WatchCount() int {
	if e.Watch == nil {
		return 0
	}
	return e.Watch.Count
}

// Aired reports whether the episode's air date is on or before the given
// time. Episodes without an announced air date are never considered aired.
func (e Episode) Aired(now time.Time) bool {
	if e.AirDate == "" {
		return false
	}
	aired, err := time.Parse(AirDateLayout, e.AirDate)
	if err != nil {
		return false
	}
	return !aired.After(now)
}

// Season groups the ordered episodes of one season. SeasonNumber is the
// logical identity used for lookups; callers must not rely on slice index
// because other layers filter and reorder seasons.
type Season struct {
	SeasonNumber int       `json:"seasonNumber"`
	Episodes     []Episode `json:"episodes"`
}

// Rewatch marks an explicitly started rewatch. Round counts completed full
// passes, so the current pass targets watch count max(2, Round+1).
type Rewatch struct {
	Active bool `json:"active"`
	Round  int  `json:"round"`
}

// Series is a catalogued show with its full per-user watch tree.
type Series struct {
	ID        string   `json:"id"`
	Nmr       string   `json:"nmr"` // local catalogue key
	Title     string   `json:"title"`
	Status    string   `json:"status,omitempty"` // e.g. "Returning Series", "Ended"
	Watchlist bool     `json:"watchlist"`
	Seasons   []Season `json:"seasons,omitempty"`
	Rewatch   *Rewatch `json:"rewatch,omitempty"`
}

// SeasonByNumber returns the season with the given number, or nil.
func (s *Series) SeasonByNumber(number int) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].SeasonNumber == number {
			return &s.Seasons[i]
		}
	}
	return nil
}

// SeriesInfo is the seasons-free series document stored alongside the season
// tree. The two are persisted at separate paths so a watch-state write only
// replaces the seasons subtree.
type SeriesInfo struct {
	ID        string `json:"id"`
	Nmr       string `json:"nmr"`
	Title     string `json:"title"`
	Status    string `json:"status,omitempty"`
	Watchlist bool   `json:"watchlist"`
}

// Info extracts the seasons-free document from a full series.
func (s Series) Info() SeriesInfo {
	return SeriesInfo{
		ID:        s.ID,
		Nmr:       s.Nmr,
		Title:     s.Title,
		Status:    s.Status,
		Watchlist: s.Watchlist,
	}
}
