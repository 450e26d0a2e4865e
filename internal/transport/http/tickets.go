package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
)

const participantHeader = "participant"

// EventFinder is the minimal interface needed to look up a bookable event.
type EventFinder interface {
	EventByID(ctx context.Context, id string) (domain.Event, bool, error)
}

// TicketBooker is the minimal interface needed to book a ticket.
type TicketBooker interface {
	Book(ctx context.Context, eventID, participantID string) (domain.Ticket, error)
}

// HandleBookTicket returns an HTTP handler for booking one ticket on an
// available event. The lookup narrows to bookable events for 404 purposes;
// the booking transaction re-validates capacity and timing regardless.
func HandleBookTicket(finder EventFinder, booker TicketBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		eventID, ok := parseBookTicketPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		participant := r.Header.Get(participantHeader)
		if participant == "" {
			writeError(w, http.StatusBadRequest, codeParticipantRequired, domain.ErrParticipantRequired.Error())
			return
		}
		if _, err := uuid.Parse(participant); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidParticipant, "participant must be a uuid")
			return
		}

		event, found, err := finder.EventByID(r.Context(), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, codeEventNotFound, domain.ErrEventNotFound.Error())
			return
		}

		ticket, err := booker.Book(r.Context(), event.ID, participant)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSoldOutOrExpired):
				writeError(w, http.StatusConflict, codeSoldOutOrExpired, err.Error())
			case errors.Is(err, domain.ErrEventNotFound):
				writeError(w, http.StatusNotFound, codeEventNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(bookTicketResponse{ID: ticket.ID})
	}
}

func parseBookTicketPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "events" || parts[2] != "tickets" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type bookTicketResponse struct {
	ID string `json:"id"`
}
