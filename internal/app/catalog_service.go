package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raffaeleflorio/ticket-service/internal/clock"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// CatalogLedger is the minimal ledger surface the catalog needs.
type CatalogLedger interface {
	InsertEvent(ctx context.Context, event domain.Event, externalID, origin string) error
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	ListEventIDs(ctx context.Context, onlyUpcoming bool, now time.Time) ([]string, error)
}

// Catalog presents the ledger's events as first-class handles. The zero scope
// covers every event; Available narrows it to events that have not started.
type Catalog struct {
	ledger       CatalogLedger
	clock        clock.Clock
	upcomingOnly bool
}

func NewCatalog(ledger CatalogLedger, clk clock.Clock) *Catalog {
	return &Catalog{
		ledger: ledger,
		clock:  clk,
	}
}

// Available returns a view of the catalog scoped to bookable events only,
// evaluated against the clock at query time. The view composes: lookups and
// aggregates on it see only in-scope events.
func (c *Catalog) Available() *Catalog {
	return &Catalog{
		ledger:       c.ledger,
		clock:        c.clock,
		upcomingOnly: true,
	}
}

// RegisterEventInput is the upstream description of a new event, as delivered
// by the content-management origin.
type RegisterEventInput struct {
	ExternalID  string
	Origin      string
	Title       string
	Description string
	Poster      string
	Date        string
	MaxTickets  int
}

func (in RegisterEventInput) validate() (time.Time, error) {
	switch {
	case in.ExternalID == "":
		return time.Time{}, domain.ErrExternalIDRequired
	case in.Origin == "":
		return time.Time{}, domain.ErrOriginRequired
	case in.Title == "":
		return time.Time{}, domain.ErrTitleRequired
	case in.Description == "":
		return time.Time{}, domain.ErrDescriptionRequired
	case in.Poster == "":
		return time.Time{}, domain.ErrPosterRequired
	case in.MaxTickets < 0:
		return time.Time{}, domain.ErrInvalidMaxTickets
	}

	startsAt, err := time.Parse(time.RFC3339, in.Date)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return startsAt, nil
}

// Register validates the description and persists a new event with a
// server-generated identifier.
func (c *Catalog) Register(ctx context.Context, in RegisterEventInput) (domain.Event, error) {
	startsAt, err := in.validate()
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Poster:      in.Poster,
		StartsAt:    startsAt,
		MaxTickets:  in.MaxTickets,
	}

	if err := c.ledger.InsertEvent(ctx, event, in.ExternalID, in.Origin); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// EventByID looks up one event. An absent event, or one outside the view's
// scope, is reported as (zero, false, nil): not found is not an error.
func (c *Catalog) EventByID(ctx context.Context, id string) (domain.Event, bool, error) {
	event, err := c.ledger.GetEvent(ctx, id)
	if errors.Is(err, domain.ErrEventNotFound) {
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, err
	}
	if c.upcomingOnly && event.StartsAt.Before(c.clock.Now()) {
		return domain.Event{}, false, nil
	}
	return event, true, nil
}

// EventProjection is the public shape of an event served to catalog consumers.
type EventProjection struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Poster           string    `json:"poster"`
	Date             time.Time `json:"date"`
	AvailableTickets int       `json:"availableTickets"`
}

// EventsDocument is the materialized aggregate of every in-scope projection.
type EventsDocument struct {
	Events []EventProjection `json:"events"`
}

// Aggregate fetches each in-scope event's projection concurrently, preserving
// the listing order. The aggregate never partially succeeds: any single fetch
// failure fails the whole document.
func (c *Catalog) Aggregate(ctx context.Context) (EventsDocument, error) {
	now := c.clock.Now()
	ids, err := c.ledger.ListEventIDs(ctx, c.upcomingOnly, now)
	if err != nil {
		return EventsDocument{}, err
	}

	projections := make([]EventProjection, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			event, err := c.ledger.GetEvent(gctx, id)
			if err != nil {
				return err
			}
			projections[i] = projectionOf(event)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EventsDocument{}, err
	}

	return EventsDocument{Events: projections}, nil
}

func projectionOf(e domain.Event) EventProjection {
	return EventProjection{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Poster:           e.Poster,
		Date:             e.StartsAt,
		AvailableTickets: e.AvailableTickets(),
	}
}
