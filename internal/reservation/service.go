package reservation

import (
	"context"
	"fmt"
	"time"

	"boxoffice/internal/cart"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
)

type DBLayer interface {
	Availability(ctx context.Context, showingID string) (int, error)
	ReserveTickets(ctx context.Context, showingID string, quantities map[string]int, expiry time.Time) ([]string, error)
	ExpiredCartTickets(ctx context.Context, ticketIDs []string, now time.Time) ([]string, error)
	DeleteTickets(ctx context.Context, ticketIDs []string) error
	CartTickets(ctx context.Context, ticketIDs []string) ([]models.Ticket, error)
}

type ShowingLocker interface {
	LockShowing(ctx context.Context, showingID string) (string, error)
	UnlockShowing(ctx context.Context, showingID, token string) error
}

// Service is the reservation engine plus the expiry sweeper. A reservation
// holds its seats for HoldDuration; expiry is enforced lazily by Sweep on
// the next request that touches the cart.
type Service struct {
	DB           DBLayer
	Lock         ShowingLocker
	Logger       *logger.Logger
	HoldDuration time.Duration
}

func NewService(db DBLayer, lock ShowingLocker, log *logger.Logger, hold time.Duration) *Service {
	return &Service{DB: db, Lock: lock, Logger: log, HoldDuration: hold}
}

// Reserve converts a ticket-type quantity breakdown into individual ticket
// rows, all stamped with the same expiry. The per-showing lock plus the
// transactional recount in the db layer keep two concurrent reservations
// from both taking the last seat.
func (s *Service) Reserve(ctx context.Context, showingID string, quantities map[string]int) ([]string, error) {
	token, err := s.Lock.LockShowing(ctx, showingID)
	if err != nil {
		return nil, fmt.Errorf("lock showing %s: %w", showingID, err)
	}
	defer func() {
		if err := s.Lock.UnlockShowing(ctx, showingID, token); err != nil {
			s.Logger.Error("RESERVE", fmt.Sprintf("failed to unlock showing %s: %v", showingID, err))
		}
	}()

	expiry := time.Now().Add(s.HoldDuration)
	ids, err := s.DB.ReserveTickets(ctx, showingID, quantities, expiry)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("RESERVE", fmt.Sprintf("reserved %d tickets for showing %s until %s", len(ids), showingID, expiry.Format(time.RFC3339)))
	return ids, nil
}

// Availability is the live seat count for a showing.
func (s *Service) Availability(ctx context.Context, showingID string) (int, error) {
	return s.DB.Availability(ctx, showingID)
}

// Sweep deletes the cart's expired unbooked tickets from the store and
// returns their ids so the caller can drop them from the cart. An empty
// result means the cart is clean and the request may proceed.
func (s *Service) Sweep(ctx context.Context, c cart.Cart) ([]string, error) {
	if c.Empty() {
		return nil, nil
	}
	expired, err := s.DB.ExpiredCartTickets(ctx, c.TicketIDs, time.Now())
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	if err := s.DB.DeleteTickets(ctx, expired); err != nil {
		return nil, err
	}
	s.Logger.Info("SWEEP", fmt.Sprintf("reaped %d expired tickets from cart %s", len(expired), c.VisitorID))
	return expired, nil
}

// Release drops one of the cart's own reservations before it expires,
// freeing the seat immediately. Tickets outside the cart are untouchable
// here; booked tickets never sit in a cart.
func (s *Service) Release(ctx context.Context, c cart.Cart, ticketID string) error {
	if !c.Contains(ticketID) {
		return fmt.Errorf("ticket %s not in cart: %w", ticketID, errs.ErrNotFound)
	}
	if err := s.DB.DeleteTickets(ctx, []string{ticketID}); err != nil {
		return err
	}
	s.Logger.Info("RESERVE", fmt.Sprintf("released ticket %s from cart %s", ticketID, c.VisitorID))
	return nil
}

// CartTickets loads the cart's tickets in cart order for the booking form.
func (s *Service) CartTickets(ctx context.Context, c cart.Cart) ([]models.Ticket, error) {
	tickets, err := s.DB.CartTickets(ctx, c.TicketIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
	}
	ordered := make([]models.Ticket, 0, len(tickets))
	for _, id := range c.TicketIDs {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}
