package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket lifecycle: created with a nil BookingID and a 15 minute expiry
// (a reservation holding one seat), then either attached to a booking and
// kept forever, or deleted once the expiry passes. An unbooked ticket whose
// expiry has passed no longer counts against showing capacity.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:ticket"`

	ID           string    `bun:"id,pk"`
	ShowingID    string    `bun:"showing_id,notnull"`
	TicketTypeID string    `bun:"ticket_type_id,notnull"`
	Expiry       time.Time `bun:"expiry,notnull"`
	Paid         bool      `bun:"paid"`
	BookingID    *string   `bun:"booking_id"`
	QRCode       []byte    `bun:"qr_code"`

	Showing    *Showing    `bun:"rel:belongs-to,join:showing_id=id"`
	TicketType *TicketType `bun:"rel:belongs-to,join:ticket_type_id=id"`
	Booking    *Booking    `bun:"rel:belongs-to,join:booking_id=id"`
}

// Reserved reports whether the ticket still holds capacity without being
// part of a booking.
func (t *Ticket) Reserved(now time.Time) bool {
	return t.BookingID == nil && t.Expiry.After(now)
}

// Expired reports whether the ticket is a dead reservation the sweeper
// should delete on next observation.
func (t *Ticket) Expired(now time.Time) bool {
	return t.BookingID == nil && !t.Expiry.After(now)
}
