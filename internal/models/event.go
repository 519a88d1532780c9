package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:event"`

	ID          string `bun:"id,pk"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description"`
}

// Showing is a scheduled instance of an Event with a fixed seat capacity.
// Capacity never changes after creation; availability is always derived
// from the live ticket counts, never stored.
type Showing struct {
	bun.BaseModel `bun:"table:showings,alias:showing"`

	ID         string    `bun:"id,pk"`
	EventID    string    `bun:"event_id,notnull"`
	Date       time.Time `bun:"date,notnull"`
	NumTickets int       `bun:"num_tickets,notnull"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types,alias:ticket_type"`

	ID        string  `bun:"id,pk"`
	ShowingID string  `bun:"showing_id,notnull"`
	Name      string  `bun:"name,notnull"`
	Price     float64 `bun:"price,notnull"`

	Showing *Showing `bun:"rel:belongs-to,join:showing_id=id"`
}
