package domain

import "time"

// Ticket is proof of one reserved unit of an event's capacity, bound to a
// participant. A ticket is created exactly once per successful booking and is
// never mutated or deleted.
type Ticket struct {
	ID            string
	EventID       string
	ParticipantID string
	CreatedAt     time.Time
}
