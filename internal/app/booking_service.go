package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raffaeleflorio/ticket-service/internal/clock"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
	"github.com/raffaeleflorio/ticket-service/internal/monitoring"
	"github.com/sirupsen/logrus"
)

// BookingLedger is the minimal ledger surface the booking transaction needs.
type BookingLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ReserveTicket(ctx context.Context, eventID string, now time.Time) error
	InsertTicket(ctx context.Context, t domain.Ticket) error
}

// Notifier mirrors an issued ticket into an external system. Implementations
// report transport failures through the returned error; a missing external id
// is nothing to do, not a failure.
type Notifier interface {
	TicketIssued(ctx context.Context, t domain.Ticket) error
}

// BookingService reserves one unit of event capacity and mints a ticket,
// indivisibly.
type BookingService struct {
	ledger   BookingLedger
	notifier Notifier
	clock    clock.Clock
	logger   *logrus.Entry
}

func NewBookingService(ledger BookingLedger, notifier Notifier, clk clock.Clock, logger *logrus.Entry) *BookingService {
	return &BookingService{
		ledger:   ledger,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// Book runs the booking transaction: increment the event's sold counter only
// while capacity remains and the event has not started, then insert the ticket
// row, all in one database transaction. Either both persist or neither does.
// The conditional update is the sole admission gate; no read-then-decide step
// is trusted under concurrency.
func (s *BookingService) Book(ctx context.Context, eventID, participantID string) (domain.Ticket, error) {
	start := time.Now()
	now := s.clock.Now()

	ticket := domain.Ticket{
		ID:            uuid.NewString(),
		EventID:       eventID,
		ParticipantID: participantID,
		CreatedAt:     now,
	}

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.ReserveTicket(txCtx, eventID, now); err != nil {
			return err
		}
		return s.ledger.InsertTicket(txCtx, ticket)
	})
	if err != nil {
		outcome := monitoring.OutcomeFailed
		if errors.Is(err, domain.ErrSoldOutOrExpired) || errors.Is(err, domain.ErrEventNotFound) {
			outcome = monitoring.OutcomeRejected
		}
		monitoring.ObserveBooking(outcome, time.Since(start))
		return domain.Ticket{}, err
	}
	monitoring.ObserveBooking(monitoring.OutcomeCommitted, time.Since(start))

	s.logger.WithFields(logrus.Fields{
		"ticket_id":      ticket.ID,
		"event_id":       eventID,
		"participant_id": participantID,
	}).Info("ticket issued")

	// The ledger is authoritative from here on: the mirror call runs outside
	// the transaction, survives request cancellation, and its failure never
	// undoes the committed booking.
	go s.dispatchNotification(context.WithoutCancel(ctx), ticket)

	return ticket, nil
}

func (s *BookingService) dispatchNotification(ctx context.Context, t domain.Ticket) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TicketIssued(ctx, t); err != nil {
		s.logger.WithFields(logrus.Fields{
			"ticket_id": t.ID,
			"event_id":  t.EventID,
		}).WithError(err).Warn("ticket notification failed")
	}
}
