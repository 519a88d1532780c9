package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"boxoffice/internal/auth"
	"boxoffice/internal/booking"
	"boxoffice/internal/cart"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
	"boxoffice/internal/reservation"
	"boxoffice/internal/utils"
)

type Handler struct {
	Bookings     *booking.Service
	Reservations *reservation.Service
	Carts        *cart.Store
	Logger       *logger.Logger
	validate     *validator.Validate
}

func NewHandler(bookings *booking.Service, reservations *reservation.Service, carts *cart.Store, log *logger.Logger) *Handler {
	return &Handler{
		Bookings:     bookings,
		Reservations: reservations,
		Carts:        carts,
		Logger:       log,
		validate:     validator.New(),
	}
}

type bookingRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Email       string `json:"email" validate:"required,email,max=64"`
	EmailRepeat string `json:"email_repeat" validate:"required,eqfield=Email"`
}

type ticketView struct {
	ID         string  `json:"id"`
	Showing    string  `json:"showing_id"`
	TicketType string  `json:"ticket_type"`
	Price      float64 `json:"price"`
	Expiry     string  `json:"expiry"`
}

func ticketViews(tickets []models.Ticket) []ticketView {
	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		v := ticketView{ID: t.ID, Showing: t.ShowingID, Expiry: t.Expiry.Format("2006-01-02T15:04:05Z07:00")}
		if t.TicketType != nil {
			v.TicketType = t.TicketType.Name
			v.Price = t.TicketType.Price
		}
		views = append(views, v)
	}
	return views
}

// ViewCart handles GET /booking: the current cart contents, already swept
// by the middleware.
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	visitorID := cart.VisitorID(r.Context())
	c, err := h.Carts.Get(r.Context(), visitorID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load cart", err.Error()))
		return
	}
	tickets, err := h.Reservations.CartTickets(r.Context(), c)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ViewCart: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load cart tickets", err.Error()))
		return
	}

	data := map[string]interface{}{
		"tickets": ticketViews(tickets),
	}
	// Logged-in visitors get their address prefilled on the booking form.
	if email := auth.UserEmail(r.Context()); email != "" {
		data["contact_email"] = email
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Cart", data))
}

// SubmitBooking handles POST /booking: validated contact info plus the
// visitor's cart become a persisted booking.
func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ValidationResponse("Please correct the highlighted fields", fieldErrors(err)))
		return
	}

	visitorID := cart.VisitorID(r.Context())
	c, err := h.Carts.Get(r.Context(), visitorID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load cart", err.Error()))
		return
	}
	if c.Empty() {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("You have selected no tickets", errs.ErrValidation.Error()))
		return
	}

	var userID *string
	if uid := auth.UserID(r.Context()); uid != "" {
		userID = &uid
	}

	created, err := h.Bookings.Finalize(r.Context(), booking.Contact{Name: req.Name, Email: req.Email}, c, userID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrStaleCart):
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Tickets in your cart have expired. Please check your cart.", err.Error()))
		case errors.Is(err, errs.ErrValidation):
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("You have selected no tickets", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("SubmitBooking: %v", err))
			utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not complete booking", err.Error()))
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(
		"Booking complete, you have been emailed your booking details",
		map[string]interface{}{
			"booking_id":  created.ID,
			"booking_ref": created.BookingRef,
			"num_tickets": len(created.Tickets),
			"total_cost":  created.TotalCost(),
		},
	))
}

// Confirmation handles GET /booking/confirmation. Clearing the cart here is
// idempotent: calling it twice leaves the same empty cart.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	visitorID := cart.VisitorID(r.Context())
	if err := h.Carts.Clear(r.Context(), visitorID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Confirmation: failed to clear cart %s: %v", visitorID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not clear cart", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking confirmed", nil))
}

type bookingView struct {
	ID          string       `json:"id"`
	BookingRef  string       `json:"booking_ref"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	DateCreated string       `json:"date_created"`
	TotalCost   float64      `json:"total_cost"`
	Tickets     []ticketView `json:"tickets"`
}

// MyBookings handles GET /my-bookings (login required).
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	bookings, err := h.Bookings.MyBookings(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyBookings: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load bookings", err.Error()))
		return
	}

	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, bookingView{
			ID:          b.ID,
			BookingRef:  b.BookingRef,
			Name:        b.Name,
			Email:       b.Email,
			DateCreated: b.DateCreated.Format("2006-01-02T15:04:05Z07:00"),
			TotalCost:   b.TotalCost(),
			Tickets:     ticketViews(b.Tickets),
		})
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", map[string]interface{}{"bookings": views}))
}

// CancelTicket handles DELETE /ticket/{id} (login + ownership required).
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	userID := auth.UserID(r.Context())

	if err := h.Bookings.CancelTicket(r.Context(), ticketID, userID); err != nil {
		switch {
		case errors.Is(err, errs.ErrPermission):
			utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Access denied", errs.ErrPermission.Error()))
		case errors.Is(err, errs.ErrNotFound):
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Ticket not found", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("CancelTicket: %v", err))
			utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not cancel ticket", err.Error()))
		}
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("The selected ticket has been deleted", nil))
}

func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				fields[fe.Field()] = "This field is required."
			case "email":
				fields[fe.Field()] = "Invalid email address."
			case "eqfield":
				fields[fe.Field()] = "Emails do not match."
			case "max":
				fields[fe.Field()] = "Field must be 64 characters or fewer."
			default:
				fields[fe.Field()] = "Invalid value."
			}
		}
	}
	return fields
}
