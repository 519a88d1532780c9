package cart

// Cart is the visitor-scoped, ordered list of reserved ticket ids. It is a
// plain value passed explicitly to the reservation and booking services,
// never ambient session state.
type Cart struct {
	VisitorID string
	TicketIDs []string
}

func New(visitorID string, ticketIDs []string) Cart {
	return Cart{VisitorID: visitorID, TicketIDs: ticketIDs}
}

func (c Cart) Empty() bool {
	return len(c.TicketIDs) == 0
}

func (c Cart) Contains(ticketID string) bool {
	for _, id := range c.TicketIDs {
		if id == ticketID {
			return true
		}
	}
	return false
}

// Without returns a copy of the cart with the given ticket ids removed,
// preserving order.
func (c Cart) Without(ticketIDs []string) Cart {
	drop := make(map[string]bool, len(ticketIDs))
	for _, id := range ticketIDs {
		drop[id] = true
	}
	kept := make([]string, 0, len(c.TicketIDs))
	for _, id := range c.TicketIDs {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return Cart{VisitorID: c.VisitorID, TicketIDs: kept}
}
