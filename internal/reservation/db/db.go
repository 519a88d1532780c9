package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"boxoffice/internal/errs"
	"boxoffice/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Availability computes, inside one transaction snapshot,
// num_tickets - booked - active holds for the showing.
func (d *DB) Availability(ctx context.Context, showingID string) (int, error) {
	var available int
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		a, err := availabilityTx(ctx, tx, showingID, time.Now())
		if err != nil {
			return err
		}
		available = a
		return nil
	})
	return available, err
}

func availabilityTx(ctx context.Context, tx bun.IDB, showingID string, now time.Time) (int, error) {
	showing := new(models.Showing)
	err := tx.NewSelect().
		Model(showing).
		Where("id = ?", showingID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("showing %s: %w", showingID, errs.ErrNotFound)
		}
		return 0, err
	}

	booked, err := tx.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("showing_id = ?", showingID).
		Where("booking_id IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, err
	}

	held, err := tx.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("showing_id = ?", showingID).
		Where("booking_id IS NULL").
		Where("expiry > ?", now).
		Count(ctx)
	if err != nil {
		return 0, err
	}

	return showing.NumTickets - booked - held, nil
}

// ReserveTickets re-checks availability and inserts one ticket row per
// requested unit within a single transaction, so a capacity shortfall
// creates nothing. Callers serialize concurrent reservations for the same
// showing with the per-showing lock; the transactional recount here is the
// backstop that keeps the capacity invariant even if they do not.
func (d *DB) ReserveTickets(ctx context.Context, showingID string, quantities map[string]int, expiry time.Time) ([]string, error) {
	total := 0
	typeIDs := make([]string, 0, len(quantities))
	for typeID, qty := range quantities {
		if qty < 0 {
			return nil, fmt.Errorf("negative quantity for ticket type %s: %w", typeID, errs.ErrValidation)
		}
		typeIDs = append(typeIDs, typeID)
		total += qty
	}
	if total < 1 {
		return nil, fmt.Errorf("no tickets requested: %w", errs.ErrValidation)
	}

	var ids []string
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Resolves the showing first, so a nonexistent id is a not-found
		// rather than a ticket-type mismatch.
		available, err := availabilityTx(ctx, tx, showingID, time.Now())
		if err != nil {
			return err
		}

		matching, err := tx.NewSelect().
			Model((*models.TicketType)(nil)).
			Where("id IN (?)", bun.In(typeIDs)).
			Where("showing_id = ?", showingID).
			Count(ctx)
		if err != nil {
			return err
		}
		if matching != len(typeIDs) {
			return fmt.Errorf("ticket type does not belong to showing %s: %w", showingID, errs.ErrValidation)
		}

		if total > available {
			return fmt.Errorf("requested %d tickets, %d available: %w", total, available, errs.ErrCapacity)
		}

		tickets := make([]models.Ticket, 0, total)
		for typeID, qty := range quantities {
			for i := 0; i < qty; i++ {
				tickets = append(tickets, models.Ticket{
					ID:           uuid.NewString(),
					ShowingID:    showingID,
					TicketTypeID: typeID,
					Expiry:       expiry,
					Paid:         false,
					BookingID:    nil,
				})
			}
		}
		if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
			return err
		}

		ids = make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ExpiredCartTickets returns the subset of the given ticket ids that are
// unbooked and past their expiry.
func (d *DB) ExpiredCartTickets(ctx context.Context, ticketIDs []string, now time.Time) ([]string, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("id").
		Where("id IN (?)", bun.In(ticketIDs)).
		Where("booking_id IS NULL").
		Where("expiry <= ?", now).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteTickets removes the given rows. Used by the sweeper once a
// reservation has lapsed.
func (d *DB) DeleteTickets(ctx context.Context, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id IN (?)", bun.In(ticketIDs)).
		Exec(ctx)
	return err
}

// CartTickets loads the tickets referenced by a cart with their type and
// showing, for the booking form.
func (d *DB) CartTickets(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return []models.Ticket{}, nil
	}
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("TicketType").
		Relation("Showing").
		Where("ticket.id IN (?)", bun.In(ticketIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
