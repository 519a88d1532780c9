package api

import (
	"fmt"
	"net/http"

	"boxoffice/internal/cart"
	"boxoffice/internal/logger"
	"boxoffice/internal/reservation"
	"boxoffice/internal/utils"
)

// SweepMiddleware reaps expired reservations from the visitor's cart before
// any cart-dependent handler runs. When the sweep removed anything the
// request is aborted with 409 so the client re-renders the cart.
func SweepMiddleware(reservations *reservation.Service, carts *cart.Store, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := cart.VisitorID(r.Context())
			c, err := carts.Get(r.Context(), visitorID)
			if err != nil {
				log.Error("SWEEP", fmt.Sprintf("failed to load cart %s: %v", visitorID, err))
				utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load cart", err.Error()))
				return
			}

			swept, err := reservations.Sweep(r.Context(), c)
			if err != nil {
				log.Error("SWEEP", fmt.Sprintf("failed to sweep cart %s: %v", visitorID, err))
				utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not check cart", err.Error()))
				return
			}
			if len(swept) > 0 {
				if err := carts.Remove(r.Context(), visitorID, swept); err != nil {
					log.Error("SWEEP", fmt.Sprintf("failed to update cart %s: %v", visitorID, err))
				}
				utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse(
					"Tickets in your cart have expired. Please check your cart.",
					"cart changed",
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
