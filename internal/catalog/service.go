package catalog

import (
	"context"

	"boxoffice/internal/models"
)

type DBLayer interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListShowings(ctx context.Context) ([]models.Showing, error)
	ShowingsByEvent(ctx context.Context, eventID string) ([]models.Showing, error)
	GetShowing(ctx context.Context, id string) (*models.Showing, error)
	TicketTypesByShowing(ctx context.Context, showingID string) ([]models.TicketType, error)
}

// Service is the read-only browse surface: events, showings and their
// ticket types. Events and showings are immutable after creation, so no
// write paths exist here.
type Service struct {
	DB DBLayer
}

func NewService(db DBLayer) *Service {
	return &Service{DB: db}
}

func (s *Service) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

// GetEvent returns an event together with its showings, soonest first.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, []models.Showing, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	showings, err := s.DB.ShowingsByEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return event, showings, nil
}

func (s *Service) ListShowings(ctx context.Context) ([]models.Showing, error) {
	return s.DB.ListShowings(ctx)
}

// GetShowing returns a showing with its ticket types.
func (s *Service) GetShowing(ctx context.Context, id string) (*models.Showing, []models.TicketType, error) {
	showing, err := s.DB.GetShowing(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	types, err := s.DB.TicketTypesByShowing(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return showing, types, nil
}
