package app

import (
	"context"
	"sync"
	"time"

	"github.com/raffaeleflorio/ticket-service/internal/domain"
)

// fakeLedger keeps events and tickets in memory with the same admission
// semantics as the real ledger: the conditional reserve mutates the counter
// only while capacity remains and the event has not started, and WithTx holds
// one lock for the whole transaction so concurrent bookings serialize the way
// row locking serializes them. A failed transaction restores the counters.
type fakeLedger struct {
	mu      sync.Mutex
	events  map[string]*ledgerEvent
	order   []string
	tickets []domain.Ticket

	insertEventErr  error
	insertTicketErr error
	getEventErr     map[string]error
	listErr         error
}

type ledgerEvent struct {
	event      domain.Event
	externalID string
	origin     string
}

func newFakeLedger(events ...domain.Event) *fakeLedger {
	f := &fakeLedger{
		events:      make(map[string]*ledgerEvent),
		getEventErr: make(map[string]error),
	}
	for _, e := range events {
		f.addEvent(e, "", "")
	}
	return f
}

func (f *fakeLedger) addEvent(e domain.Event, externalID, origin string) {
	f.events[e.ID] = &ledgerEvent{event: e, externalID: externalID, origin: origin}
	f.order = append(f.order, e.ID)
}

func (f *fakeLedger) WithTx(_ context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	soldBefore := make(map[string]int, len(f.events))
	for id, ev := range f.events {
		soldBefore[id] = ev.event.SoldTickets
	}
	ticketsBefore := len(f.tickets)

	if err := fn(context.Background()); err != nil {
		for id, sold := range soldBefore {
			f.events[id].event.SoldTickets = sold
		}
		f.tickets = f.tickets[:ticketsBefore]
		return err
	}
	return nil
}

func (f *fakeLedger) ReserveTicket(_ context.Context, eventID string, now time.Time) error {
	ev, ok := f.events[eventID]
	if !ok {
		return domain.ErrSoldOutOrExpired
	}
	if ev.event.SoldTickets >= ev.event.MaxTickets || ev.event.StartsAt.Before(now) {
		return domain.ErrSoldOutOrExpired
	}
	ev.event.SoldTickets++
	return nil
}

func (f *fakeLedger) InsertTicket(_ context.Context, t domain.Ticket) error {
	if f.insertTicketErr != nil {
		return f.insertTicketErr
	}
	f.tickets = append(f.tickets, t)
	return nil
}

func (f *fakeLedger) InsertEvent(_ context.Context, event domain.Event, externalID, origin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertEventErr != nil {
		return f.insertEventErr
	}
	for _, ev := range f.events {
		if ev.origin == origin && ev.externalID == externalID {
			return domain.ErrDuplicateEvent
		}
	}
	f.addEvent(event, externalID, origin)
	return nil
}

func (f *fakeLedger) GetEvent(_ context.Context, id string) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getEventErr[id]; err != nil {
		return domain.Event{}, err
	}
	ev, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev.event, nil
}

func (f *fakeLedger) ListEventIDs(_ context.Context, onlyUpcoming bool, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.order))
	for _, id := range f.order {
		if onlyUpcoming && f.events[id].event.StartsAt.Before(now) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLedger) soldTickets(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].event.SoldTickets
}

func (f *fakeLedger) ticketCount(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.tickets {
		if t.EventID == eventID {
			count++
		}
	}
	return count
}

type fakeNotifier struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	err     error
	called  chan struct{}
}

func newFakeNotifier(err error) *fakeNotifier {
	return &fakeNotifier{
		err:    err,
		called: make(chan struct{}, 64),
	}
}

func (f *fakeNotifier) TicketIssued(_ context.Context, t domain.Ticket) error {
	f.mu.Lock()
	f.tickets = append(f.tickets, t)
	f.mu.Unlock()
	f.called <- struct{}{}
	return f.err
}

func (f *fakeNotifier) notified() []domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Ticket{}, f.tickets...)
}
