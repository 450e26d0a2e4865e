package domain

import "time"

// Event is a bookable occasion with finite ticket capacity. It is a transient
// view of the ledger row, never a cache: every read re-queries storage.
type Event struct {
	ID          string
	Title       string
	Description string
	Poster      string
	StartsAt    time.Time
	MaxTickets  int
	SoldTickets int
}

// AvailableTickets is the remaining capacity at read time.
func (e Event) AvailableTickets() int {
	return e.MaxTickets - e.SoldTickets
}
