package models

import "time"

// CompletedSeriesRecord tracks the completion-notification state machine for
// one series: Unknown -> Tracking{allWatched:false} -> Tracking{allWatched:true}
// -> Notified, with a reset back to Tracking when new unwatched episodes air.
type CompletedSeriesRecord struct {
	AllEpisodesWatched bool      `json:"allEpisodesWatched"`
	SeriesStatus       string    `json:"seriesStatus,omitempty"`
	LastChecked        time.Time `json:"lastChecked"`
	Notified           bool      `json:"notified"`
}

// NotificationDismissal records that the user dismissed a completed-series
// notification; the timestamp drives the re-notify cooldown.
type NotificationDismissal struct {
	Dismissed bool      `json:"dismissed"`
	Timestamp time.Time `json:"timestamp"`
}
