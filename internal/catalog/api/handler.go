package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/catalog"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
	"boxoffice/internal/reservation"
	"boxoffice/internal/utils"
)

type Handler struct {
	Catalog      *catalog.Service
	Reservations *reservation.Service
	Logger       *logger.Logger
}

func NewHandler(catalogService *catalog.Service, reservations *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{Catalog: catalogService, Reservations: reservations, Logger: log}
}

type showingView struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	EventName  string `json:"event_name,omitempty"`
	Date       string `json:"date"`
	NumTickets int    `json:"num_tickets"`
}

func showingViews(showings []models.Showing) []showingView {
	views := make([]showingView, 0, len(showings))
	for _, s := range showings {
		v := showingView{
			ID:         s.ID,
			EventID:    s.EventID,
			Date:       s.Date.Format(time.RFC3339),
			NumTickets: s.NumTickets,
		}
		if s.Event != nil {
			v.EventName = s.Event.Name
		}
		views = append(views, v)
	}
	return views
}

// Index handles GET /: all showings, soonest first.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	showings, err := h.Catalog.ListShowings(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Index: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load showings", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Showings", map[string]interface{}{
		"showings": showingViews(showings),
	}))
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Catalog.ListEvents(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load events", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events", map[string]interface{}{"events": events}))
}

// GetEvent handles GET /event/{id}: the event and its showings.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, showings, err := h.Catalog.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Event not found", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetEvent: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load event", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event", map[string]interface{}{
		"event":    event,
		"showings": showingViews(showings),
	}))
}

// GetShowing handles GET /showing/{id}: the showing, its ticket types and
// live availability.
func (h *Handler) GetShowing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	showing, types, err := h.Catalog.GetShowing(r.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Showing not found", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetShowing: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load showing", err.Error()))
		return
	}

	available, err := h.Reservations.Availability(r.Context(), id)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetShowing: availability: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not compute availability", err.Error()))
		return
	}

	typeViews := make([]map[string]interface{}, 0, len(types))
	for _, tt := range types {
		typeViews = append(typeViews, map[string]interface{}{
			"id":    tt.ID,
			"name":  tt.Name,
			"price": tt.Price,
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Showing", map[string]interface{}{
		"showing":           showingViews([]models.Showing{*showing})[0],
		"ticket_types":      typeViews,
		"tickets_available": available,
	}))
}
