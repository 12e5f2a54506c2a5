// Package catalog manages the per-user series catalogue on top of the
// persistence gateway. The series document, its season tree, and its rewatch
// flag live at separate paths so a watch-state write only ever replaces the
// seasons subtree.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"trackr/internal/treestore"
	"trackr/models"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrSeriesRequired = errors.New("series catalogue key is required")
	ErrSeriesNotFound = errors.New("series not found")
)

// Service persists and retrieves catalogued series per user.
type Service struct {
	store treestore.Store
}

// NewService creates a catalogue service over the gateway.
func NewService(store treestore.Store) *Service {
	return &Service{store: store}
}

// Add stores a series under its catalogue key, splitting the document into
// info, seasons, and rewatch subtrees.
func (s *Service) Add(ctx context.Context, userID string, series models.Series) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	nmr := strings.TrimSpace(series.Nmr)
	if nmr == "" {
		return ErrSeriesRequired
	}

	if err := s.store.Set(ctx, treestore.SeriesInfoPath(userID, nmr), series.Info()); err != nil {
		return fmt.Errorf("store series info: %w", err)
	}
	if err := s.store.Set(ctx, treestore.SeasonsPath(userID, nmr), series.Seasons); err != nil {
		return fmt.Errorf("store seasons: %w", err)
	}
	if series.Rewatch != nil {
		if err := s.store.Set(ctx, treestore.RewatchPath(userID, nmr), series.Rewatch); err != nil {
			return fmt.Errorf("store rewatch: %w", err)
		}
	}
	return nil
}

// Get assembles the full series from its subtrees.
func (s *Service) Get(ctx context.Context, userID, nmr string) (*models.Series, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	nmr = strings.TrimSpace(nmr)
	if nmr == "" {
		return nil, ErrSeriesRequired
	}

	var info models.SeriesInfo
	err := s.store.Get(ctx, treestore.SeriesInfoPath(userID, nmr), &info)
	if errors.Is(err, treestore.ErrNotFound) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, err
	}

	series := &models.Series{
		ID:        info.ID,
		Nmr:       info.Nmr,
		Title:     info.Title,
		Status:    info.Status,
		Watchlist: info.Watchlist,
	}

	if err := s.store.Get(ctx, treestore.SeasonsPath(userID, nmr), &series.Seasons); err != nil && !errors.Is(err, treestore.ErrNotFound) {
		return nil, err
	}

	var rw models.Rewatch
	err = s.store.Get(ctx, treestore.RewatchPath(userID, nmr), &rw)
	if err == nil {
		series.Rewatch = &rw
	} else if !errors.Is(err, treestore.ErrNotFound) {
		return nil, err
	}

	return series, nil
}

// List returns the user's catalogued series, honouring the stored watchlist
// order for known keys and appending the rest sorted by key.
func (s *Service) List(ctx context.Context, userID string) ([]models.Series, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	keys, err := s.store.Children(ctx, treestore.UserSeriesRoot(userID))
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]models.Series, len(keys))
	for _, nmr := range keys {
		series, err := s.Get(ctx, userID, nmr)
		if errors.Is(err, ErrSeriesNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		byKey[nmr] = *series
	}

	order, err := s.WatchlistOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Series, 0, len(byKey))
	for _, nmr := range order {
		if series, ok := byKey[nmr]; ok {
			out = append(out, series)
			delete(byKey, nmr)
		}
	}

	rest := make([]string, 0, len(byKey))
	for nmr := range byKey {
		rest = append(rest, nmr)
	}
	sort.Strings(rest)
	for _, nmr := range rest {
		out = append(out, byKey[nmr])
	}

	return out, nil
}

// Remove deletes the series subtree. Completion records are left to the
// detector's pruning pass.
func (s *Service) Remove(ctx context.Context, userID, nmr string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	nmr = strings.TrimSpace(nmr)
	if nmr == "" {
		return ErrSeriesRequired
	}
	return s.store.Delete(ctx, treestore.SeriesPath(userID, nmr))
}

// SetWatchlist flips the series' watchlist membership.
func (s *Service) SetWatchlist(ctx context.Context, userID, nmr string, watchlist bool) error {
	return s.updateInfo(ctx, userID, nmr, func(info *models.SeriesInfo) {
		info.Watchlist = watchlist
	})
}

// SetStatus updates the locally cached airing status.
func (s *Service) SetStatus(ctx context.Context, userID, nmr, status string) error {
	return s.updateInfo(ctx, userID, nmr, func(info *models.SeriesInfo) {
		info.Status = status
	})
}

// StartRewatch flags an explicit rewatch, keeping any previous round count.
func (s *Service) StartRewatch(ctx context.Context, userID, nmr string) (*models.Rewatch, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	nmr = strings.TrimSpace(nmr)
	if nmr == "" {
		return nil, ErrSeriesRequired
	}

	var rw models.Rewatch
	err := s.store.Get(ctx, treestore.RewatchPath(userID, nmr), &rw)
	if err != nil && !errors.Is(err, treestore.ErrNotFound) {
		return nil, err
	}
	rw.Active = true

	if err := s.store.Set(ctx, treestore.RewatchPath(userID, nmr), rw); err != nil {
		return nil, err
	}
	return &rw, nil
}

// StopRewatch ends the active rewatch. When the pass finished, the round
// counter advances so the next rewatch targets one more viewing.
func (s *Service) StopRewatch(ctx context.Context, userID, nmr string, completed bool) (*models.Rewatch, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	nmr = strings.TrimSpace(nmr)
	if nmr == "" {
		return nil, ErrSeriesRequired
	}

	var rw models.Rewatch
	err := s.store.Get(ctx, treestore.RewatchPath(userID, nmr), &rw)
	if err != nil && !errors.Is(err, treestore.ErrNotFound) {
		return nil, err
	}
	rw.Active = false
	if completed {
		rw.Round++
	}

	if err := s.store.Set(ctx, treestore.RewatchPath(userID, nmr), rw); err != nil {
		return nil, err
	}
	return &rw, nil
}

// WatchlistOrder returns the stored ordering, empty when none was saved.
// The ordering is opaque to the engine; it is persisted for the UI layer.
func (s *Service) WatchlistOrder(ctx context.Context, userID string) ([]string, error) {
	var order []string
	err := s.store.Get(ctx, treestore.WatchlistOrderPath(userID), &order)
	if errors.Is(err, treestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetWatchlistOrder persists the ordering.
func (s *Service) SetWatchlistOrder(ctx context.Context, userID string, order []string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return s.store.Set(ctx, treestore.WatchlistOrderPath(userID), order)
}

func (s *Service) updateInfo(ctx context.Context, userID, nmr string, apply func(*models.SeriesInfo)) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	nmr = strings.TrimSpace(nmr)
	if nmr == "" {
		return ErrSeriesRequired
	}

	var info models.SeriesInfo
	err := s.store.Get(ctx, treestore.SeriesInfoPath(userID, nmr), &info)
	if errors.Is(err, treestore.ErrNotFound) {
		return ErrSeriesNotFound
	}
	if err != nil {
		return err
	}

	apply(&info)
	return s.store.Set(ctx, treestore.SeriesInfoPath(userID, nmr), info)
}
