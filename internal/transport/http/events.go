package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/raffaeleflorio/ticket-service/internal/app"
	"github.com/raffaeleflorio/ticket-service/internal/domain"
)

// EventRegistrar is the minimal interface needed to register events from the
// content-management origin's webhook.
type EventRegistrar interface {
	Register(ctx context.Context, in app.RegisterEventInput) (domain.Event, error)
}

// EventLister is the minimal interface needed to serve the public listing.
type EventLister interface {
	Aggregate(ctx context.Context) (app.EventsDocument, error)
}

// HandleEvents serves the events collection: GET lists the available events'
// public projections, POST registers a new event from an upstream description.
func HandleEvents(registrar EventRegistrar, lister EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			doc, err := lister.Aggregate(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(doc)
			return
		case http.MethodPost:
			var req registerEventRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			maxTickets := -1
			if req.MaxTickets != nil {
				maxTickets = *req.MaxTickets
			}

			event, err := registrar.Register(r.Context(), app.RegisterEventInput{
				ExternalID:  req.ExternalID,
				Origin:      req.Origin,
				Title:       req.Title,
				Description: req.Description,
				Poster:      req.Poster,
				Date:        req.Date,
				MaxTickets:  maxTickets,
			})
			if err != nil {
				writeRegisterError(w, err)
				return
			}

			resp := registerEventResponse{
				ID:               event.ID,
				Title:            event.Title,
				Description:      event.Description,
				Poster:           event.Poster,
				Date:             event.StartsAt,
				AvailableTickets: event.AvailableTickets(),
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(resp)
			return
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
	}
}

func writeRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrExternalIDRequired):
		writeError(w, http.StatusBadRequest, codeExternalIDRequired, err.Error())
	case errors.Is(err, domain.ErrOriginRequired):
		writeError(w, http.StatusBadRequest, codeOriginRequired, err.Error())
	case errors.Is(err, domain.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, codeTitleRequired, err.Error())
	case errors.Is(err, domain.ErrDescriptionRequired):
		writeError(w, http.StatusBadRequest, codeDescriptionRequired, err.Error())
	case errors.Is(err, domain.ErrPosterRequired):
		writeError(w, http.StatusBadRequest, codePosterRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, codeInvalidDate, err.Error())
	case errors.Is(err, domain.ErrInvalidMaxTickets):
		writeError(w, http.StatusBadRequest, codeInvalidMaxTickets, err.Error())
	case errors.Is(err, domain.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, codeDuplicateEvent, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type registerEventRequest struct {
	ExternalID  string `json:"externalId"`
	Origin      string `json:"origin"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Poster      string `json:"poster"`
	Date        string `json:"date"`
	MaxTickets  *int   `json:"maxTickets"`
}

type registerEventResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Poster           string    `json:"poster"`
	Date             time.Time `json:"date"`
	AvailableTickets int       `json:"availableTickets"`
}
