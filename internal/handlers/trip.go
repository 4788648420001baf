package handlers

import (
	"net/http"

	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// TripHandler handles trips and their timelines
type TripHandler struct {
	tripService     *services.TripService
	timelineService *services.TimelineService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService *services.TripService, timelineService *services.TimelineService) *TripHandler {
	return &TripHandler{
		tripService:     tripService,
		timelineService: timelineService,
	}
}

// ListTrips handles GET /api/v1/trips
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load trips")
		return
	}
	respondJSON(w, http.StatusOK, trips)
}

// CreateTrip handles POST /api/v1/trips
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var in services.TripInput
	if !decodeJSON(w, r, &in) {
		return
	}

	trip, notice, err := h.tripService.Create(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create trip")
		return
	}
	respondNotice(w, http.StatusCreated, notice, trip)
}

// GetTrip handles GET /api/v1/trips/{trip_id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	form, err := h.tripService.Form(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load trip")
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// UpdateTrip handles PUT /api/v1/trips/{trip_id}
func (h *TripHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	var in services.TripInput
	if !decodeJSON(w, r, &in) {
		return
	}

	trip, notice, err := h.tripService.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"), in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update trip")
		return
	}
	respondNotice(w, http.StatusOK, notice, trip)
}

// DeleteTrip handles DELETE /api/v1/trips/{trip_id}
func (h *TripHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	notice, err := h.tripService.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete trip")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

// TripDay handles GET /api/v1/trips/{trip_id}/days?date=
func (h *TripHandler) TripDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.tripService.Day(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"), r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load trip day")
		return
	}
	respondJSON(w, http.StatusOK, day)
}

// ListTimeline handles GET /api/v1/trips/{trip_id}/timeline?date=
func (h *TripHandler) ListTimeline(w http.ResponseWriter, r *http.Request) {
	items, err := h.timelineService.List(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"), r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load timeline")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// CreateTimelineItem handles POST /api/v1/trips/{trip_id}/timeline
func (h *TripHandler) CreateTimelineItem(w http.ResponseWriter, r *http.Request) {
	var in services.TimelineInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, notice, err := h.timelineService.Create(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"), in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to add timeline item")
		return
	}
	respondNotice(w, http.StatusCreated, notice, item)
}

// GetTimelineItem handles GET /api/v1/trips/{trip_id}/timeline/{item_id}
func (h *TripHandler) GetTimelineItem(w http.ResponseWriter, r *http.Request) {
	form, err := h.timelineService.Form(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"), chi.URLParam(r, "item_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load timeline item")
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// UpdateTimelineItem handles PUT /api/v1/trips/{trip_id}/timeline/{item_id}
func (h *TripHandler) UpdateTimelineItem(w http.ResponseWriter, r *http.Request) {
	var in services.TimelineInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, notice, err := h.timelineService.Update(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "trip_id"), chi.URLParam(r, "item_id"), in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update timeline item")
		return
	}
	respondNotice(w, http.StatusOK, notice, item)
}

// DeleteTimelineItem handles DELETE /api/v1/trips/{trip_id}/timeline/{item_id}
func (h *TripHandler) DeleteTimelineItem(w http.ResponseWriter, r *http.Request) {
	notice, err := h.timelineService.Delete(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "trip_id"), chi.URLParam(r, "item_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete timeline item")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}
