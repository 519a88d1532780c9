package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxoffice/internal/auth"
	"boxoffice/internal/booking"
	"boxoffice/internal/booking/api"
	"boxoffice/internal/cart"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
	"boxoffice/internal/reservation"
	"boxoffice/internal/utils"
)

type reservationDBStub struct {
	tickets []models.Ticket
}

func (s *reservationDBStub) Availability(context.Context, string) (int, error) {
	return 0, nil
}

func (s *reservationDBStub) ReserveTickets(context.Context, string, map[string]int, time.Time) ([]string, error) {
	return nil, nil
}

func (s *reservationDBStub) ExpiredCartTickets(context.Context, []string, time.Time) ([]string, error) {
	return nil, nil
}

func (s *reservationDBStub) DeleteTickets(context.Context, []string) error {
	return nil
}

func (s *reservationDBStub) CartTickets(context.Context, []string) ([]models.Ticket, error) {
	return s.tickets, nil
}

type stubLocker struct{}

func (stubLocker) LockShowing(context.Context, string) (string, error) { return "token", nil }
func (stubLocker) UnlockShowing(context.Context, string, string) error { return nil }

func setupCartRouter(t *testing.T, tokens *auth.TokenManager) *chi.Mux {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewLogger()
	carts := cart.NewStore(client, time.Hour)
	reservations := reservation.NewService(&reservationDBStub{}, stubLocker{}, log, 15*time.Minute)
	bookings := booking.NewService(nil, nil, nil, nil, log)
	handler := api.NewHandler(bookings, reservations, carts, log)

	r := chi.NewRouter()
	r.Use(cart.SessionMiddleware())
	r.Use(auth.CurrentUser(tokens))
	r.Get("/booking", handler.ViewCart)
	return r
}

func viewCart(t *testing.T, router *chi.Mux, bearer string) utils.APIResponse {
	req := httptest.NewRequest(http.MethodGet, "/booking", nil)
	req.AddCookie(&http.Cookie{Name: "bo_visitor", Value: "visitor-1"})
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestViewCart_PrefillsContactForLoggedInVisitor(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour, time.Hour)
	router := setupCartRouter(t, tokens)

	token, err := tokens.GenerateSessionToken("user-1", "alice@example.com")
	require.NoError(t, err)

	resp := viewCart(t, router, token)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "alice@example.com", data["contact_email"])
}

func TestViewCart_NoPrefillForAnonymousVisitor(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour, time.Hour)
	router := setupCartRouter(t, tokens)

	resp := viewCart(t, router, "")
	data := resp.Data.(map[string]interface{})
	_, present := data["contact_email"]
	assert.False(t, present)
}
