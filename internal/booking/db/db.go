package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"boxoffice/internal/errs"
	"boxoffice/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateBookingWithTickets inserts the booking and attaches the cart's
// tickets in one transaction. The attach is conditional: a ticket only
// takes the booking id while it is still unbooked and unexpired, so a
// concurrent sweep (or double submit) surfaces as a row-count mismatch and
// rolls the whole booking back instead of committing a partial set.
func (d *DB) CreateBookingWithTickets(ctx context.Context, booking models.Booking, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return fmt.Errorf("no tickets to attach: %w", errs.ErrValidation)
	}
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&booking).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("booking_id = ?", booking.ID).
			Where("id IN (?)", bun.In(ticketIDs)).
			Where("booking_id IS NULL").
			Where("expiry > ?", time.Now()).
			Exec(ctx)
		if err != nil {
			return err
		}
		attached, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if attached != int64(len(ticketIDs)) {
			return fmt.Errorf("attached %d of %d tickets: %w", attached, len(ticketIDs), errs.ErrStaleCart)
		}
		return nil
	})
}

func (d *DB) GetBookingWithTickets(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking := new(models.Booking)
	err := d.Bun.NewSelect().
		Model(booking).
		Relation("Tickets").
		Relation("Tickets.TicketType").
		Relation("Tickets.Showing").
		Where("booking.id = ?", bookingID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", bookingID, errs.ErrNotFound)
		}
		return nil, err
	}
	return booking, nil
}

// BookingsByUser lists a user's bookings newest first, tickets included.
func (d *DB) BookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Tickets").
		Relation("Tickets.TicketType").
		Relation("Tickets.Showing").
		Where("booking.user_id = ?", userID).
		Order("booking.date_created DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// TicketWithBooking loads a ticket together with its booking for the
// ownership check on cancellation.
func (d *DB) TicketWithBooking(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := d.Bun.NewSelect().
		Model(ticket).
		Relation("Booking").
		Where("ticket.id = ?", ticketID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, errs.ErrNotFound)
		}
		return nil, err
	}
	return ticket, nil
}

func (d *DB) DeleteTicket(ctx context.Context, ticketID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", ticketID).
		Exec(ctx)
	return err
}

// UpdateTicketQR stores the rendered QR image for a booked ticket.
func (d *DB) UpdateTicketQR(ctx context.Context, ticketID string, qr []byte) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("qr_code = ?", qr).
		Where("id = ?", ticketID).
		Exec(ctx)
	return err
}
