package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raffaeleflorio/ticket-service/internal/domain"
	"github.com/raffaeleflorio/ticket-service/internal/monitoring"
	"github.com/sirupsen/logrus"
)

// ExternalIDResolver maps an event to its identifier in an external system.
type ExternalIDResolver interface {
	ExternalID(ctx context.Context, eventID, origin string) (string, error)
}

// CMS mirrors issued tickets into the content-management system's ticket
// collection. It is strictly downstream of a committed booking: it never
// retries and never touches the capacity reservation.
type CMS struct {
	client   *http.Client
	baseURL  string
	token    string
	origin   string
	resolver ExternalIDResolver
	logger   *logrus.Entry
}

func NewCMS(baseURL, token, origin string, resolver ExternalIDResolver, logger *logrus.Entry) *CMS {
	if baseURL == "" || token == "" {
		logger.Warn("cms base url or token is empty, ticket mirroring disabled")
	}
	return &CMS{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  baseURL,
		token:    token,
		origin:   origin,
		resolver: resolver,
		logger:   logger,
	}
}

type ticketFields struct {
	ID          string `json:"id"`
	Participant string `json:"participant"`
	Event       string `json:"event"`
}

type collectionItem struct {
	Key    string         `json:"key"`
	Status string         `json:"status"`
	Fields []ticketFields `json:"fields"`
}

// TicketIssued publishes the ticket under the event's external identifier for
// the configured origin. An event without an external id is nothing to do;
// transport failures are reported to the caller, which decides whether they
// matter.
func (c *CMS) TicketIssued(ctx context.Context, t domain.Ticket) error {
	if c.baseURL == "" || c.token == "" {
		c.logger.WithField("ticket_id", t.ID).Debug("notification skipped (mirroring disabled)")
		monitoring.ObserveNotification(monitoring.OutcomeSkipped)
		return nil
	}

	externalID, err := c.resolver.ExternalID(ctx, t.EventID, c.origin)
	if errors.Is(err, domain.ErrExternalIDNotFound) {
		c.logger.WithFields(logrus.Fields{
			"ticket_id": t.ID,
			"event_id":  t.EventID,
			"origin":    c.origin,
		}).Debug("notification skipped (no external id for origin)")
		monitoring.ObserveNotification(monitoring.OutcomeSkipped)
		return nil
	}
	if err != nil {
		monitoring.ObserveNotification(monitoring.OutcomeFailed)
		return fmt.Errorf("resolve external id: %w", err)
	}

	if err := c.createCollectionItem(ctx, t, externalID); err != nil {
		monitoring.ObserveNotification(monitoring.OutcomeFailed)
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"ticket_id": t.ID,
		"event_id":  t.EventID,
	}).Info("ticket mirrored to cms")
	monitoring.ObserveNotification(monitoring.OutcomeDelivered)
	return nil
}

func (c *CMS) createCollectionItem(ctx context.Context, t domain.Ticket, externalID string) error {
	payload, err := json.Marshal(collectionItem{
		Key:    "ticket",
		Status: "published",
		Fields: []ticketFields{{
			ID:          t.ID,
			Participant: t.ParticipantID,
			Event:       externalID,
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal collection item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/content", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build cms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cms request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cms responded with status %d", resp.StatusCode)
	}
	return nil
}
