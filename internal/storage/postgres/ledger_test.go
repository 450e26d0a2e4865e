package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
	"github.com/raffaeleflorio/ticket-service/internal/testutil"
)

func TestLedger(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ledger := NewLedger(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	upcoming := now.Add(24 * time.Hour)

	t.Run("InsertEvent persists and rejects duplicates", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		event := domain.Event{
			ID:          uuid.NewString(),
			Title:       "Concert",
			Description: "Loud music",
			Poster:      "poster.png",
			StartsAt:    upcoming,
			MaxTickets:  10,
		}
		if err := ledger.InsertEvent(ctx, event, "slug-1", "CMS"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := ledger.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Title != "Concert" || got.MaxTickets != 10 || got.SoldTickets != 0 {
			t.Fatalf("unexpected event: %+v", got)
		}
		if !got.StartsAt.Equal(upcoming) {
			t.Fatalf("expected timestamp %v, got %v", upcoming, got.StartsAt)
		}

		dup := event
		dup.ID = uuid.NewString()
		if err := ledger.InsertEvent(ctx, dup, "slug-1", "CMS"); err != domain.ErrDuplicateEvent {
			t.Fatalf("expected ErrDuplicateEvent, got %v", err)
		}

		other := event
		other.ID = uuid.NewString()
		if err := ledger.InsertEvent(ctx, other, "slug-1", "other-cms"); err != nil {
			t.Fatalf("expected same external id under another origin to pass, got %v", err)
		}
	})

	t.Run("GetEvent reports missing and malformed ids as not found", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		_, err := ledger.GetEvent(ctx, uuid.NewString())
		if err != domain.ErrEventNotFound {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}

		_, err = ledger.GetEvent(ctx, "not-a-uuid")
		if err != domain.ErrEventNotFound {
			t.Fatalf("expected ErrEventNotFound for malformed id, got %v", err)
		}
	})

	t.Run("ListEventIDs scopes to upcoming events", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		upcomingID := testutil.InsertEvent(t, ctx, pool, "Upcoming", upcoming, 5)
		testutil.InsertEvent(t, ctx, pool, "Past", now.Add(-time.Hour), 5)

		all, err := ledger.ListEventIDs(ctx, false, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 ids, got %d", len(all))
		}

		scoped, err := ledger.ListEventIDs(ctx, true, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(scoped) != 1 || scoped[0] != upcomingID {
			t.Fatalf("expected only %s, got %v", upcomingID, scoped)
		}
	})

	t.Run("ReserveTicket stops at capacity", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", upcoming, 2)

		for i := 0; i < 2; i++ {
			if err := ledger.ReserveTicket(ctx, eventID, now); err != nil {
				t.Fatalf("reservation %d: expected no error, got %v", i, err)
			}
		}
		if err := ledger.ReserveTicket(ctx, eventID, now); err != domain.ErrSoldOutOrExpired {
			t.Fatalf("expected ErrSoldOutOrExpired, got %v", err)
		}

		event, err := ledger.GetEvent(ctx, eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.SoldTickets != 2 || event.AvailableTickets() != 0 {
			t.Fatalf("unexpected counters: %+v", event)
		}
	})

	t.Run("ReserveTicket rejects started events with spare capacity", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", now.Add(-time.Minute), 10)

		if err := ledger.ReserveTicket(ctx, eventID, now); err != domain.ErrSoldOutOrExpired {
			t.Fatalf("expected ErrSoldOutOrExpired, got %v", err)
		}
	})

	t.Run("ReserveTicket reports malformed ids as not found", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if err := ledger.ReserveTicket(ctx, "not-a-uuid", now); err != domain.ErrEventNotFound {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("reservation and ticket insert roll back together", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", upcoming, 5)
		boom := errors.New("boom")

		err := ledger.WithTx(ctx, func(txCtx context.Context) error {
			if err := ledger.ReserveTicket(txCtx, eventID, now); err != nil {
				return err
			}
			if err := ledger.InsertTicket(txCtx, domain.Ticket{
				ID:            uuid.NewString(),
				EventID:       eventID,
				ParticipantID: uuid.NewString(),
				CreatedAt:     now,
			}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected injected error, got %v", err)
		}

		event, err := ledger.GetEvent(ctx, eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.SoldTickets != 0 {
			t.Fatalf("expected rollback to restore counter, got %d", event.SoldTickets)
		}
		count, err := ledger.CountTickets(ctx, eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 0 {
			t.Fatalf("expected no tickets after rollback, got %d", count)
		}
	})

	t.Run("concurrent reservations never exceed capacity", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		const capacity = 3
		const attempts = 12
		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", upcoming, capacity)

		var wg sync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- ledger.WithTx(ctx, func(txCtx context.Context) error {
					if err := ledger.ReserveTicket(txCtx, eventID, now); err != nil {
						return err
					}
					return ledger.InsertTicket(txCtx, domain.Ticket{
						ID:            uuid.NewString(),
						EventID:       eventID,
						ParticipantID: uuid.NewString(),
						CreatedAt:     now,
					})
				})
			}()
		}
		wg.Wait()
		close(results)

		success, rejected := 0, 0
		for err := range results {
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrSoldOutOrExpired):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if success != capacity || rejected != attempts-capacity {
			t.Fatalf("expected %d successes and %d rejections, got %d and %d",
				capacity, attempts-capacity, success, rejected)
		}

		event, err := ledger.GetEvent(ctx, eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		count, err := ledger.CountTickets(ctx, eventID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.SoldTickets != capacity || count != capacity {
			t.Fatalf("expected counter and tickets at %d, got %d and %d",
				capacity, event.SoldTickets, count)
		}
	})

	t.Run("ExternalID resolves per origin", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		event := domain.Event{
			ID:          uuid.NewString(),
			Title:       "Concert",
			Description: "Loud music",
			Poster:      "poster.png",
			StartsAt:    upcoming,
			MaxTickets:  10,
		}
		if err := ledger.InsertEvent(ctx, event, "slug-9", "CMS"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		externalID, err := ledger.ExternalID(ctx, event.ID, "CMS")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if externalID != "slug-9" {
			t.Fatalf("expected slug-9, got %q", externalID)
		}

		if _, err := ledger.ExternalID(ctx, event.ID, "other-cms"); err != domain.ErrExternalIDNotFound {
			t.Fatalf("expected ErrExternalIDNotFound, got %v", err)
		}
		if _, err := ledger.ExternalID(ctx, uuid.NewString(), "CMS"); err != domain.ErrExternalIDNotFound {
			t.Fatalf("expected ErrExternalIDNotFound, got %v", err)
		}
	})
}
