package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"trackr/models"
	"trackr/services/completed"

	"github.com/gorilla/mux"
)

type completedService interface {
	DetectCompletedSeries(ctx context.Context, userID string, seriesList []models.Series) ([]models.Series, error)
	MarkNotified(ctx context.Context, userID, seriesID string) error
	Dismiss(ctx context.Context, userID, seriesID string) error
}

var _ completedService = (*completed.Service)(nil)

type seriesLister interface {
	List(ctx context.Context, userID string) ([]models.Series, error)
}

// CompletedHandler surfaces completed-series notifications.
type CompletedHandler struct {
	Detector completedService
	Catalog  seriesLister
}

func NewCompletedHandler(detector completedService, catalog seriesLister) *CompletedHandler {
	return &CompletedHandler{Detector: detector, Catalog: catalog}
}

// Detect runs the completion scan for one user and returns the series that
// currently warrant a notification.
func (h *CompletedHandler) Detect(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	seriesList, err := h.Catalog.List(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	completions, err := h.Detector.DetectCompletedSeries(r.Context(), userID, seriesList)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if completions == nil {
		completions = []models.Series{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(completions)
}

// MarkNotified records that the user has seen the completion notification;
// the series will not be reported again unless its data changes.
func (h *CompletedHandler) MarkNotified(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.Detector.MarkNotified(r.Context(), vars["userID"], vars["seriesID"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Dismiss snoozes the completion notification for the dismissal window.
func (h *CompletedHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.Detector.Dismiss(r.Context(), vars["userID"], vars["seriesID"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
