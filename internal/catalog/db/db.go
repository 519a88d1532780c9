package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"boxoffice/internal/errs"
	"boxoffice/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().Model(&events).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event := new(models.Event)
	err := d.Bun.NewSelect().Model(event).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return event, nil
}

// ListShowings returns all showings soonest first, with their events.
func (d *DB) ListShowings(ctx context.Context) ([]models.Showing, error) {
	var showings []models.Showing
	err := d.Bun.NewSelect().
		Model(&showings).
		Relation("Event").
		Order("showing.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return showings, nil
}

func (d *DB) ShowingsByEvent(ctx context.Context, eventID string) ([]models.Showing, error) {
	var showings []models.Showing
	err := d.Bun.NewSelect().
		Model(&showings).
		Where("event_id = ?", eventID).
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return showings, nil
}

func (d *DB) GetShowing(ctx context.Context, id string) (*models.Showing, error) {
	showing := new(models.Showing)
	err := d.Bun.NewSelect().
		Model(showing).
		Relation("Event").
		Where("showing.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("showing %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return showing, nil
}

func (d *DB) TicketTypesByShowing(ctx context.Context, showingID string) ([]models.TicketType, error) {
	var types []models.TicketType
	err := d.Bun.NewSelect().
		Model(&types).
		Where("showing_id = ?", showingID).
		Order("price ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}
