package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking owns the tickets attached to it. UserID is nil for guest
// checkouts. BookingRef is generated fresh per booking at creation time.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:booking"`

	ID          string    `bun:"id,pk"`
	Email       string    `bun:"email,notnull"`
	Name        string    `bun:"name,notnull"`
	DateCreated time.Time `bun:"date_created,notnull"`
	BookingRef  string    `bun:"booking_ref,unique,notnull"`
	UserID      *string   `bun:"user_id"`

	User    *User    `bun:"rel:belongs-to,join:user_id=id"`
	Tickets []Ticket `bun:"rel:has-many,join:id=booking_id"`
}

// TotalCost sums the unit price of every attached ticket. The tickets must
// have been loaded with their TicketType relation.
func (b *Booking) TotalCost() float64 {
	var total float64
	for _, t := range b.Tickets {
		if t.TicketType != nil {
			total += t.TicketType.Price
		}
	}
	return total
}
