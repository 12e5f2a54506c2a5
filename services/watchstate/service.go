package watchstate

import (
	"context"
	"errors"
	"strings"
	"time"

	"trackr/internal/events"
	"trackr/internal/treestore"
	"trackr/models"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrSeriesRequired = errors.New("series catalogue key is required")
)

// ActivityLogger receives watch events after a successful persistence write.
// Implementations must be fire-and-forget: failures are swallowed and never
// block or roll back the watch-state write.
type ActivityLogger interface {
	LogWatch(userID string, isRewatch bool, airDate string)
}

// Service applies toggle transforms to a user's season tree and persists the
// result through the gateway. The transform is computed from one snapshot
// and written as a single subtree replace; on write failure the caller's
// view stays at the last successfully persisted tree.
type Service struct {
	store    treestore.Store
	bus      *events.Bus
	activity ActivityLogger
	now      func() time.Time
}

// NewService creates a watch-state service on top of the persistence
// gateway. bus and activity may be nil.
func NewService(store treestore.Store, bus *events.Bus, activity ActivityLogger) *Service {
	return &Service{store: store, bus: bus, activity: activity, now: time.Now}
}

// ToggleEpisode applies mode to one episode (or the whole season via the
// AllEpisodes sentinel) and persists the updated season tree.
func (s *Service) ToggleEpisode(ctx context.Context, userID, nmr string, seasonNumber int, episodeID string, mode Mode) ([]models.Season, error) {
	seasons, err := s.loadSeasons(ctx, userID, nmr)
	if err != nil {
		return nil, err
	}
	if seasons == nil {
		return nil, nil
	}

	now := s.now().UTC()
	updated := ToggleEpisode(seasons, seasonNumber, episodeID, mode, now)
	if err := s.persist(ctx, userID, nmr, updated); err != nil {
		return nil, err
	}

	s.logActivity(userID, mode, seasons, updated, seasonNumber, episodeID)
	return updated, nil
}

// ToggleSeason applies mode to every episode of the season.
func (s *Service) ToggleSeason(ctx context.Context, userID, nmr string, seasonNumber int, mode Mode) ([]models.Season, error) {
	return s.ToggleEpisode(ctx, userID, nmr, seasonNumber, AllEpisodes, mode)
}

// ToggleSelection marks the selected episode IDs watched or unwatched across
// all seasons, using the normal-toggle transform.
func (s *Service) ToggleSelection(ctx context.Context, userID, nmr string, episodeIDs []string, watched bool) ([]models.Season, error) {
	seasons, err := s.loadSeasons(ctx, userID, nmr)
	if err != nil {
		return nil, err
	}
	if seasons == nil {
		return nil, nil
	}

	updated := ToggleByIDs(seasons, episodeIDs, watched, s.now().UTC())
	if err := s.persist(ctx, userID, nmr, updated); err != nil {
		return nil, err
	}

	if watched {
		s.logActivity(userID, ModeNormal, seasons, updated, 0, "")
	}
	return updated, nil
}

// MarkThroughSeason marks every episode up to and including maxSeason
// watched, leaving already-watched episodes untouched.
func (s *Service) MarkThroughSeason(ctx context.Context, userID, nmr string, maxSeason int) ([]models.Season, error) {
	seasons, err := s.loadSeasons(ctx, userID, nmr)
	if err != nil {
		return nil, err
	}
	if seasons == nil {
		return nil, nil
	}

	updated := MarkThroughSeason(seasons, maxSeason, s.now().UTC())
	if err := s.persist(ctx, userID, nmr, updated); err != nil {
		return nil, err
	}

	s.logActivity(userID, ModeNormal, seasons, updated, 0, "")
	return updated, nil
}

// Seasons returns the persisted season tree for a series, nil when none.
func (s *Service) Seasons(ctx context.Context, userID, nmr string) ([]models.Season, error) {
	return s.loadSeasons(ctx, userID, nmr)
}

func (s *Service) loadSeasons(ctx context.Context, userID, nmr string) ([]models.Season, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if strings.TrimSpace(nmr) == "" {
		return nil, ErrSeriesRequired
	}

	var seasons []models.Season
	err := s.store.Get(ctx, treestore.SeasonsPath(userID, nmr), &seasons)
	if errors.Is(err, treestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seasons, nil
}

func (s *Service) persist(ctx context.Context, userID, nmr string, seasons []models.Season) error {
	if err := s.store.Set(ctx, treestore.SeasonsPath(userID, nmr), seasons); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.PublishWatchState(events.WatchStateChanged{UserID: userID, Nmr: nmr, Seasons: seasons})
	}
	return nil
}

// logActivity fires the side-effect logger after a successful write.
// Only transitions that added viewings are reported; the air date is only
// meaningful for single-episode toggles.
func (s *Service) logActivity(userID string, mode Mode, before, after []models.Season, seasonNumber int, episodeID string) {
	if s.activity == nil || totalWatchCount(after) <= totalWatchCount(before) {
		return
	}

	airDate := ""
	if episodeID != "" && episodeID != AllEpisodes {
		for _, season := range before {
			if season.SeasonNumber != seasonNumber {
				continue
			}
			for _, ep := range season.Episodes {
				if ep.ID == episodeID {
					airDate = ep.AirDate
				}
			}
		}
	}

	go s.activity.LogWatch(userID, mode == ModeRewatch, airDate)
}

func totalWatchCount(seasons []models.Season) int {
	total := 0
	for _, season := range seasons {
		for _, ep := range season.Episodes {
			total += ep.WatchCount()
		}
	}
	return total
}
