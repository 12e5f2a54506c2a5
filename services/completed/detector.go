// Package completed flags series that are fully watched and no longer
// running, exactly once per cooldown window. Each series runs a small state
// machine persisted in its CompletedSeriesRecord: tracking, pending
// notification, notified, with a reset back to tracking when a new unwatched
// episode airs.
package completed

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"trackr/internal/events"
	"trackr/internal/treestore"
	"trackr/models"
	"trackr/services/rewatch"
)

var (
	ErrUserIDRequired   = errors.New("user id is required")
	ErrSeriesIDRequired = errors.New("series id is required")
)

// MetadataService resolves the current airing status of a series.
type MetadataService interface {
	SeriesStatus(ctx context.Context, seriesID string) (string, error)
}

const (
	// statusRefreshCooldown gates how often a stored series status is
	// refreshed from metadata. The completion check itself runs every pass.
	statusRefreshCooldown = 7 * 24 * time.Hour
	// dismissalCooldown suppresses re-notification after a user dismissal.
	dismissalCooldown = 7 * 24 * time.Hour
	// maxStatusFetches bounds parallel metadata lookups per scan.
	maxStatusFetches = 4
)

// Service scans a user's catalogue for newly completed series.
type Service struct {
	store    treestore.Store
	metadata MetadataService
	bus      *events.Bus
	now      func() time.Time
}

// NewService creates a detector over the persistence gateway. metadata and
// bus may be nil; without metadata the locally cached series status is used.
func NewService(store treestore.Store, metadata MetadataService, bus *events.Bus) *Service {
	return &Service{store: store, metadata: metadata, bus: bus, now: time.Now}
}

// DetectCompletedSeries returns the series that are newly complete for the
// user: every aired episode watched, the series ended or cancelled, no
// pending or recently dismissed notification, and no rewatch in progress.
// A returned series stays pending until MarkNotified is called or an aired
// episode turns unwatched again.
func (s *Service) DetectCompletedSeries(ctx context.Context, userID string, seriesList []models.Series) ([]models.Series, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	now := s.now().UTC()

	s.pruneRecords(ctx, userID, seriesList)

	records := make([]models.CompletedSeriesRecord, len(seriesList))
	needRefresh := make([]bool, len(seriesList))
	for i, series := range seriesList {
		records[i] = s.loadRecord(ctx, userID, series.ID)
		elapsed := now.Sub(records[i].LastChecked)
		needRefresh[i] = records[i].LastChecked.IsZero() || elapsed >= statusRefreshCooldown
	}

	s.refreshStatuses(ctx, userID, seriesList, records, needRefresh, now)

	var completed []models.Series
	for i, series := range seriesList {
		if !series.Watchlist || strings.TrimSpace(series.ID) == "" {
			continue
		}
		// A series being rewatched is not newly completed.
		if rewatch.HasActiveRewatch(series) {
			continue
		}

		record := records[i]
		allWatched := allAiredWatched(series, now)

		// New unwatched episodes reopen the state machine.
		if !allWatched && (record.Notified || record.AllEpisodesWatched) {
			record.Notified = false
			record.AllEpisodesWatched = false
			s.saveRecord(ctx, userID, series.ID, record)
			continue
		}
		if !allWatched {
			continue
		}

		status := record.SeriesStatus
		if status == "" {
			status = series.Status
		}
		if !isEnded(status) || record.Notified {
			continue
		}
		if s.recentlyDismissed(ctx, userID, series.ID, now) {
			continue
		}

		completed = append(completed, series)
		if s.bus != nil {
			s.bus.PublishCompleted(events.SeriesCompleted{UserID: userID, Series: series})
		}
	}

	return completed, nil
}

// MarkNotified records that the user has been shown the completion
// notification for the series; the only exit from the pending state besides
// the data reverting to not-all-watched.
func (s *Service) MarkNotified(ctx context.Context, userID, seriesID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return ErrSeriesIDRequired
	}

	record := s.loadRecord(ctx, userID, seriesID)
	record.Notified = true
	record.AllEpisodesWatched = true
	record.LastChecked = s.now().UTC()
	return s.store.Set(ctx, treestore.CompletedRecordPath(userID, seriesID), record)
}

// Dismiss stores a dismissal, suppressing re-notification for the cooldown.
func (s *Service) Dismiss(ctx context.Context, userID, seriesID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return ErrSeriesIDRequired
	}

	dismissal := models.NotificationDismissal{Dismissed: true, Timestamp: s.now().UTC()}
	return s.store.Set(ctx, treestore.DismissalPath(userID, seriesID), dismissal)
}

// pruneRecords drops completion records for series that left the watchlist.
func (s *Service) pruneRecords(ctx context.Context, userID string, seriesList []models.Series) {
	keep := make(map[string]struct{}, len(seriesList))
	for _, series := range seriesList {
		if series.Watchlist {
			keep[series.ID] = struct{}{}
		}
	}

	ids, err := s.store.Children(ctx, treestore.CompletedRecordsRoot(userID))
	if err != nil {
		log.Printf("[completed] list records for user %s: %v", userID, err)
		return
	}
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.store.Delete(ctx, treestore.CompletedRecordPath(userID, id)); err != nil {
			log.Printf("[completed] prune record %s: %v", id, err)
		}
	}
}

// refreshStatuses updates stored series statuses whose cooldown has elapsed,
// fetching from metadata with bounded parallelism. Fetch failures keep the
// previously stored status.
func (s *Service) refreshStatuses(ctx context.Context, userID string, seriesList []models.Series, records []models.CompletedSeriesRecord, needRefresh []bool, now time.Time) {
	statuses := make([]string, len(seriesList))

	if s.metadata != nil {
		p := pool.New().WithMaxGoroutines(maxStatusFetches)
		for i := range seriesList {
			if !needRefresh[i] || !seriesList[i].Watchlist {
				continue
			}
			i := i
			p.Go(func() {
				status, err := s.metadata.SeriesStatus(ctx, seriesList[i].ID)
				if err != nil {
					log.Printf("[completed] status lookup for %s failed: %v", seriesList[i].ID, err)
					return
				}
				statuses[i] = status
			})
		}
		p.Wait()
	}

	for i := range seriesList {
		if !needRefresh[i] || !seriesList[i].Watchlist {
			continue
		}
		if statuses[i] != "" {
			records[i].SeriesStatus = statuses[i]
		} else if records[i].SeriesStatus == "" {
			records[i].SeriesStatus = seriesList[i].Status
		}
		records[i].AllEpisodesWatched = allAiredWatched(seriesList[i], now)
		records[i].LastChecked = now
		s.saveRecord(ctx, userID, seriesList[i].ID, records[i])
	}
}

// loadRecord degrades read failures to "no stored data" so one bad record
// cannot error the whole scan.
func (s *Service) loadRecord(ctx context.Context, userID, seriesID string) models.CompletedSeriesRecord {
	var record models.CompletedSeriesRecord
	err := s.store.Get(ctx, treestore.CompletedRecordPath(userID, seriesID), &record)
	if err != nil && !errors.Is(err, treestore.ErrNotFound) {
		log.Printf("[completed] read record %s: %v", seriesID, err)
		return models.CompletedSeriesRecord{}
	}
	return record
}

func (s *Service) saveRecord(ctx context.Context, userID, seriesID string, record models.CompletedSeriesRecord) {
	if strings.TrimSpace(seriesID) == "" {
		return
	}
	if err := s.store.Set(ctx, treestore.CompletedRecordPath(userID, seriesID), record); err != nil {
		log.Printf("[completed] save record %s: %v", seriesID, err)
	}
}

func (s *Service) recentlyDismissed(ctx context.Context, userID, seriesID string, now time.Time) bool {
	var dismissal models.NotificationDismissal
	err := s.store.Get(ctx, treestore.DismissalPath(userID, seriesID), &dismissal)
	if err != nil {
		if !errors.Is(err, treestore.ErrNotFound) {
			log.Printf("[completed] read dismissal %s: %v", seriesID, err)
		}
		return false
	}
	return dismissal.Dismissed && now.Sub(dismissal.Timestamp) < dismissalCooldown
}

// allAiredWatched reports whether every aired episode is watched. A series
// with no aired episodes is never considered complete.
func allAiredWatched(series models.Series, now time.Time) bool {
	aired := 0
	for _, season := range series.Seasons {
		for _, ep := range season.Episodes {
			if !ep.Aired(now) {
				continue
			}
			if !ep.Watched() {
				return false
			}
			aired++
		}
	}
	return aired > 0
}

// isEnded matches the terminal airing statuses, case-insensitively.
func isEnded(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ended", "canceled", "cancelled":
		return true
	}
	return false
}
