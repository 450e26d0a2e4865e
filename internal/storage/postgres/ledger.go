package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
)

// Ledger is the durable record of events and issued tickets, and the sole
// arbiter of the no-oversell invariant.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// WithTx runs fn inside a single database transaction. Nested calls reuse the
// transaction already carried by ctx.
func (l *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, l.pool, fn)
}

// InsertEvent persists a new event together with its external identifier
// under the origin it came from.
func (l *Ledger) InsertEvent(ctx context.Context, event domain.Event, externalID, origin string) error {
	const stmt = `
INSERT INTO events (id, external_id, origin, title, description, poster, event_timestamp, max_tickets, sold_tickets)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`

	_, err := l.exec(ctx, stmt,
		event.ID,
		externalID,
		origin,
		event.Title,
		event.Description,
		event.Poster,
		event.StartsAt,
		event.MaxTickets,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (l *Ledger) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	const query = `
SELECT id, title, description, poster, event_timestamp, max_tickets, sold_tickets
FROM events
WHERE id = $1`

	var e domain.Event
	err := l.queryRow(ctx, query, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.Poster, &e.StartsAt, &e.MaxTickets, &e.SoldTickets)
	if err != nil {
		if err == pgx.ErrNoRows || isInvalidUUID(err) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEventIDs returns the ids of all events, or only of events whose
// timestamp has not passed when onlyUpcoming is set. Ordering is unspecified
// but stable within one query.
func (l *Ledger) ListEventIDs(ctx context.Context, onlyUpcoming bool, now time.Time) ([]string, error) {
	query := `SELECT id FROM events`
	args := []any{}
	if onlyUpcoming {
		query += ` WHERE event_timestamp >= $1`
		args = append(args, now)
	}

	rows, err := l.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list event ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event ids: %w", err)
	}
	return ids, nil
}

// ReserveTicket increments sold_tickets by one, but only while capacity
// remains and the event has not started. The statement is the sole admission
// gate: concurrent callers targeting the same event serialize on its row lock,
// so no application-level check-then-act is ever trusted.
func (l *Ledger) ReserveTicket(ctx context.Context, eventID string, now time.Time) error {
	const stmt = `
UPDATE events
SET sold_tickets = sold_tickets + 1
WHERE id = $1 AND sold_tickets < max_tickets AND event_timestamp >= $2`

	tag, err := l.exec(ctx, stmt, eventID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrEventNotFound
		}
		return fmt.Errorf("reserve ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSoldOutOrExpired
	}
	return nil
}

func (l *Ledger) InsertTicket(ctx context.Context, t domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, event_id, participant_id, created_at)
VALUES ($1, $2, $3, $4)`

	_, err := l.exec(ctx, stmt, t.ID, t.EventID, t.ParticipantID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// ExternalID resolves the event's identifier in the external system named by
// origin. Absence is reported as domain.ErrExternalIDNotFound, not as a
// storage failure.
func (l *Ledger) ExternalID(ctx context.Context, eventID, origin string) (string, error) {
	const query = `SELECT external_id FROM events WHERE id = $1 AND origin = $2`

	var externalID string
	err := l.queryRow(ctx, query, eventID, origin).Scan(&externalID)
	if err != nil {
		if err == pgx.ErrNoRows || isInvalidUUID(err) {
			return "", domain.ErrExternalIDNotFound
		}
		return "", fmt.Errorf("external id: %w", err)
	}
	return externalID, nil
}

func (l *Ledger) CountTickets(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE event_id = $1`

	var count int
	if err := l.queryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (l *Ledger) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return l.pool.Exec(ctx, sql, args...)
}

func (l *Ledger) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return l.pool.Query(ctx, sql, args...)
}

func (l *Ledger) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return l.pool.QueryRow(ctx, sql, args...)
}
