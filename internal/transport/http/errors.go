package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeExternalIDRequired  = "external_id_required"
	codeOriginRequired      = "origin_required"
	codeTitleRequired       = "title_required"
	codeDescriptionRequired = "description_required"
	codePosterRequired      = "poster_required"
	codeInvalidDate         = "invalid_date"
	codeInvalidMaxTickets   = "invalid_max_tickets"
	codeDuplicateEvent      = "duplicate_event"
	codeParticipantRequired = "participant_required"
	codeInvalidParticipant  = "invalid_participant"
	codeSoldOutOrExpired    = "sold_out_or_expired"
	codeEventNotFound       = "event_not_found"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}
