package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"trackr/models"
	"trackr/services/catalog"
	"trackr/services/rewatch"

	"github.com/gorilla/mux"
)

type catalogService interface {
	Add(ctx context.Context, userID string, series models.Series) error
	Get(ctx context.Context, userID, nmr string) (*models.Series, error)
	List(ctx context.Context, userID string) ([]models.Series, error)
	Remove(ctx context.Context, userID, nmr string) error
	SetWatchlist(ctx context.Context, userID, nmr string, watchlist bool) error
	StartRewatch(ctx context.Context, userID, nmr string) (*models.Rewatch, error)
	StopRewatch(ctx context.Context, userID, nmr string, completed bool) (*models.Rewatch, error)
	WatchlistOrder(ctx context.Context, userID string) ([]string, error)
	SetWatchlistOrder(ctx context.Context, userID string, order []string) error
}

var _ catalogService = (*catalog.Service)(nil)

type SeriesHandler struct {
	Service catalogService
}

func NewSeriesHandler(service catalogService) *SeriesHandler {
	return &SeriesHandler{Service: service}
}

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrSeriesNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUserIDRequired), errors.Is(err, catalog.ErrSeriesRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *SeriesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	list, err := h.Service.List(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}
	if list == nil {
		list = []models.Series{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	series, err := h.Service.Get(r.Context(), vars["userID"], vars["nmr"])
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(series)
}

func (h *SeriesHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var series models.Series
	if err := json.NewDecoder(r.Body).Decode(&series); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.Add(r.Context(), userID, series); err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *SeriesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.Service.Remove(r.Context(), vars["userID"], vars["nmr"]); err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SeriesHandler) SetWatchlist(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Watchlist bool `json:"watchlist"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetWatchlist(r.Context(), vars["userID"], vars["nmr"], body.Watchlist); err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SeriesHandler) WatchlistOrder(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	order, err := h.Service.WatchlistOrder(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}
	if order == nil {
		order = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

func (h *SeriesHandler) SetWatchlistOrder(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var body struct {
		Order []string `json:"order"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetWatchlistOrder(r.Context(), userID, body.Order); err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SeriesHandler) StartRewatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rw, err := h.Service.StartRewatch(r.Context(), vars["userID"], vars["nmr"])
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rw)
}

func (h *SeriesHandler) StopRewatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Completed bool `json:"completed"`
	}
	// Body is optional; an absent body means an abandoned rewatch.
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rw, err := h.Service.StopRewatch(r.Context(), vars["userID"], vars["nmr"], body.Completed)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rw)
}

// RewatchProgress reports the derived rewatch status for one series: state,
// round, target count, progress, and the next episode to watch.
func (h *SeriesHandler) RewatchProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	series, err := h.Service.Get(r.Context(), vars["userID"], vars["nmr"])
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	status := rewatch.CurrentStatus(*series)
	payload := struct {
		State       string           `json:"state"`
		Round       int              `json:"round"`
		Target      int              `json:"target"`
		Progress    rewatch.Progress `json:"progress"`
		Complete    bool             `json:"complete"`
		NextEpisode *models.Episode  `json:"nextEpisode,omitempty"`
	}{
		State:    rewatchStateString(status.State),
		Round:    status.Round,
		Target:   rewatch.TargetWatchCount(*series),
		Progress: rewatch.RewatchProgress(*series),
		Complete: rewatch.IsComplete(*series),
	}
	if rewatch.HasActiveRewatch(*series) {
		payload.NextEpisode = rewatch.NextEpisode(*series)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func rewatchStateString(state rewatch.State) string {
	switch state {
	case rewatch.StateExplicit:
		return "explicit"
	case rewatch.StateInferred:
		return "inferred"
	default:
		return "none"
	}
}
