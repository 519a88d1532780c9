package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"boxoffice/internal/cart"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
)

type DBLayer interface {
	CreateBookingWithTickets(ctx context.Context, booking models.Booking, ticketIDs []string) error
	GetBookingWithTickets(ctx context.Context, bookingID string) (*models.Booking, error)
	BookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	TicketWithBooking(ctx context.Context, ticketID string) (*models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	UpdateTicketQR(ctx context.Context, ticketID string, qr []byte) error
}

// NotificationSink is the fire-and-forget delivery surface. Failures are
// logged by the sink, never propagated to the booking outcome.
type NotificationSink interface {
	Send(toEmail, subject, templateKey string, data map[string]interface{})
}

type EventPublisher interface {
	PublishBookingConfirmed(booking models.Booking) error
	PublishTicketCancelled(ticket models.Ticket) error
}

// TokenSigner issues the signed, time-boxed tokens embedded in ticket QR
// codes.
type TokenSigner interface {
	GenerateActionToken(action, targetID string) (string, error)
}

type Contact struct {
	Name  string
	Email string
}

type Service struct {
	DB     DBLayer
	Sink   NotificationSink
	Events EventPublisher
	Tokens TokenSigner
	Logger *logger.Logger
}

func NewService(db DBLayer, sink NotificationSink, events EventPublisher, tokens TokenSigner, log *logger.Logger) *Service {
	return &Service{DB: db, Sink: sink, Events: events, Tokens: tokens, Logger: log}
}

// Finalize converts a cart of live reservations into a persisted booking.
// The booking reference is generated fresh here, per booking. A stale cart
// (any ticket expired or gone) rolls the whole booking back and surfaces
// as ErrStaleCart so the caller re-renders instead of booking a partial set.
func (s *Service) Finalize(ctx context.Context, contact Contact, c cart.Cart, userID *string) (*models.Booking, error) {
	if c.Empty() {
		return nil, fmt.Errorf("no tickets selected: %w", errs.ErrValidation)
	}

	booking := models.Booking{
		ID:          uuid.NewString(),
		Name:        contact.Name,
		Email:       contact.Email,
		DateCreated: time.Now(),
		BookingRef:  uuid.NewString(),
		UserID:      userID,
	}

	if err := s.DB.CreateBookingWithTickets(ctx, booking, c.TicketIDs); err != nil {
		return nil, err
	}

	created, err := s.DB.GetBookingWithTickets(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	s.attachQRCodes(ctx, created)
	s.Logger.LogBooking("FINALIZE", created.ID, fmt.Sprintf("booked %d tickets, ref %s", len(created.Tickets), created.BookingRef))

	s.Sink.Send(created.Email, "Booking Confirmation", "booking_confirmation", map[string]interface{}{
		"name":        created.Name,
		"booking_ref": created.BookingRef,
		"num_tickets": len(created.Tickets),
		"total_cost":  created.TotalCost(),
	})
	if err := s.Events.PublishBookingConfirmed(*created); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("failed to publish booking.confirmed for %s: %v", created.ID, err))
	}

	return created, nil
}

// attachQRCodes renders a QR image per ticket encoding its signed token.
// Best effort: a booked ticket without a QR is still a valid ticket.
func (s *Service) attachQRCodes(ctx context.Context, booking *models.Booking) {
	for i := range booking.Tickets {
		ticket := &booking.Tickets[i]
		token, err := s.Tokens.GenerateActionToken("ticket", ticket.ID)
		if err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("failed to sign ticket token for %s: %v", ticket.ID, err))
			continue
		}
		png, err := qrcode.Encode(token, qrcode.Medium, 256)
		if err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("failed to render QR for ticket %s: %v", ticket.ID, err))
			continue
		}
		if err := s.DB.UpdateTicketQR(ctx, ticket.ID, png); err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("failed to store QR for ticket %s: %v", ticket.ID, err))
			continue
		}
		ticket.QRCode = png
	}
}

// MyBookings lists the bookings owned by a user, newest first.
func (s *Service) MyBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.DB.BookingsByUser(ctx, userID)
}

// GetBooking loads one booking with its tickets.
func (s *Service) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.DB.GetBookingWithTickets(ctx, bookingID)
}

// CancelTicket deletes a booked ticket after verifying the requester owns
// the booking it belongs to. Any other identity gets a bare permission
// failure with no state change and nothing about the true owner.
func (s *Service) CancelTicket(ctx context.Context, ticketID, userID string) error {
	ticket, err := s.DB.TicketWithBooking(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.BookingID == nil || ticket.Booking == nil {
		return fmt.Errorf("ticket %s is not booked: %w", ticketID, errs.ErrPermission)
	}
	if ticket.Booking.UserID == nil || *ticket.Booking.UserID != userID {
		return errs.ErrPermission
	}

	if err := s.DB.DeleteTicket(ctx, ticketID); err != nil {
		return fmt.Errorf("failed to cancel ticket %s: %w", ticketID, err)
	}
	s.Logger.LogBooking("CANCEL", *ticket.BookingID, fmt.Sprintf("ticket %s cancelled by user %s", ticketID, userID))

	if err := s.Events.PublishTicketCancelled(*ticket); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("failed to publish ticket.cancelled for %s: %v", ticketID, err))
	}
	return nil
}
