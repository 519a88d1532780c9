package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boxoffice/internal/cart"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/reservation"
	"boxoffice/internal/utils"
)

type Handler struct {
	Reservations *reservation.Service
	Carts        *cart.Store
	Logger       *logger.Logger
}

func NewHandler(reservations *reservation.Service, carts *cart.Store, log *logger.Logger) *Handler {
	return &Handler{Reservations: reservations, Carts: carts, Logger: log}
}

type reserveRequest struct {
	Tickets []struct {
		TicketTypeID string `json:"ticket_type_id"`
		Quantity     int    `json:"quantity"`
	} `json:"tickets"`
}

// Reserve handles POST /showing/{id}/reserve. On success the new ticket
// ids are appended to the visitor's cart and returned to the client.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	showingID := chi.URLParam(r, "id")

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	quantities := make(map[string]int, len(req.Tickets))
	total := 0
	for _, line := range req.Tickets {
		if line.Quantity < 0 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Quantities must not be negative", errs.ErrValidation.Error()))
			return
		}
		quantities[line.TicketTypeID] += line.Quantity
		total += line.Quantity
	}
	if total == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("You have selected no tickets", errs.ErrValidation.Error()))
		return
	}

	ticketIDs, err := h.Reservations.Reserve(r.Context(), showingID, quantities)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrCapacity):
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("You have selected more tickets than are currently available", err.Error()))
		case errors.Is(err, errs.ErrNotFound):
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Showing not found", err.Error()))
		case errors.Is(err, errs.ErrValidation):
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket selection", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("Reserve: %v", err))
			utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not reserve tickets", err.Error()))
		}
		return
	}

	visitorID := cart.VisitorID(r.Context())
	if err := h.Carts.Append(r.Context(), visitorID, ticketIDs); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reserve: failed to append to cart %s: %v", visitorID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not update cart", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(
		"Tickets added, please complete your booking to confirm tickets",
		map[string]interface{}{"ticket_ids": ticketIDs},
	))
}

// Release handles DELETE /cart/ticket/{id}: drop one reserved ticket from
// the visitor's cart ahead of its expiry.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	visitorID := cart.VisitorID(r.Context())

	c, err := h.Carts.Get(r.Context(), visitorID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load cart", err.Error()))
		return
	}

	if err := h.Reservations.Release(r.Context(), c, ticketID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Ticket not in your cart", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Release: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not remove ticket", err.Error()))
		return
	}

	if err := h.Carts.Remove(r.Context(), visitorID, []string{ticketID}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Release: failed to update cart %s: %v", visitorID, err))
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("The selected ticket has been removed from your cart", nil))
}
