package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"trackr/models"
	"trackr/services/watchstate"

	"github.com/gorilla/mux"
)

type watchStateService interface {
	ToggleEpisode(ctx context.Context, userID, nmr string, seasonNumber int, episodeID string, mode watchstate.Mode) ([]models.Season, error)
	ToggleSeason(ctx context.Context, userID, nmr string, seasonNumber int, mode watchstate.Mode) ([]models.Season, error)
	ToggleSelection(ctx context.Context, userID, nmr string, episodeIDs []string, watched bool) ([]models.Season, error)
	MarkThroughSeason(ctx context.Context, userID, nmr string, maxSeason int) ([]models.Season, error)
	Seasons(ctx context.Context, userID, nmr string) ([]models.Season, error)
}

var _ watchStateService = (*watchstate.Service)(nil)

type WatchStateHandler struct {
	Service watchStateService
}

func NewWatchStateHandler(service watchStateService) *WatchStateHandler {
	return &WatchStateHandler{Service: service}
}

func watchStateStatus(err error) int {
	switch {
	case errors.Is(err, watchstate.ErrUserIDRequired), errors.Is(err, watchstate.ErrSeriesRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeSeasons(w http.ResponseWriter, seasons []models.Season) {
	if seasons == nil {
		seasons = []models.Season{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(seasons)
}

// Seasons returns the stored season tree for one series.
func (h *WatchStateHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	seasons, err := h.Service.Seasons(r.Context(), vars["userID"], vars["nmr"])
	if err != nil {
		http.Error(w, err.Error(), watchStateStatus(err))
		return
	}

	writeSeasons(w, seasons)
}

// ToggleEpisode applies a toggle mode to one episode, or to a whole season
// when the episode ID is the all-episodes sentinel.
func (h *WatchStateHandler) ToggleEpisode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		SeasonNumber int    `json:"seasonNumber"`
		EpisodeID    string `json:"episodeId"`
		Mode         string `json:"mode"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode, ok := watchstate.ParseMode(body.Mode)
	if !ok {
		http.Error(w, "unknown toggle mode "+body.Mode, http.StatusBadRequest)
		return
	}
	if body.EpisodeID == "" {
		http.Error(w, "episode id is required", http.StatusBadRequest)
		return
	}

	seasons, err := h.Service.ToggleEpisode(r.Context(), vars["userID"], vars["nmr"], body.SeasonNumber, body.EpisodeID, mode)
	if err != nil {
		http.Error(w, err.Error(), watchStateStatus(err))
		return
	}

	writeSeasons(w, seasons)
}

// ToggleSeason applies a toggle mode to every episode of a season.
func (h *WatchStateHandler) ToggleSeason(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		SeasonNumber int    `json:"seasonNumber"`
		Mode         string `json:"mode"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode, ok := watchstate.ParseMode(body.Mode)
	if !ok {
		http.Error(w, "unknown toggle mode "+body.Mode, http.StatusBadRequest)
		return
	}

	seasons, err := h.Service.ToggleSeason(r.Context(), vars["userID"], vars["nmr"], body.SeasonNumber, mode)
	if err != nil {
		http.Error(w, err.Error(), watchStateStatus(err))
		return
	}

	writeSeasons(w, seasons)
}

// ToggleSelection marks an arbitrary cross-season episode selection watched
// or unwatched.
func (h *WatchStateHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		EpisodeIDs []string `json:"episodeIds"`
		Watched    bool     `json:"watched"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.EpisodeIDs) == 0 {
		http.Error(w, "episode ids are required", http.StatusBadRequest)
		return
	}

	seasons, err := h.Service.ToggleSelection(r.Context(), vars["userID"], vars["nmr"], body.EpisodeIDs, body.Watched)
	if err != nil {
		http.Error(w, err.Error(), watchStateStatus(err))
		return
	}

	writeSeasons(w, seasons)
}

// MarkThroughSeason marks every episode watched up to and including the
// given season.
func (h *WatchStateHandler) MarkThroughSeason(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		MaxSeason int `json:"maxSeason"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seasons, err := h.Service.MarkThroughSeason(r.Context(), vars["userID"], vars["nmr"], body.MaxSeason)
	if err != nil {
		http.Error(w, err.Error(), watchStateStatus(err))
		return
	}

	writeSeasons(w, seasons)
}
