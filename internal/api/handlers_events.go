// Package api is the HTTP transport. Handlers stay thin: decode, delegate
// to the domain services, map errors onto status codes.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rosterkeep/rosterkeep/internal/api/respond"
	"github.com/rosterkeep/rosterkeep/internal/ingest"
)

// EventHandler accepts membership events and hands them to the dispatcher.
type EventHandler struct {
	dispatcher *ingest.Dispatcher
}

func NewEventHandler(d *ingest.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

// SubmitEvent POST /v0/events
//
// Returns 202 once the event is validated and queued; the write itself
// happens on the pair's worker goroutine.
func (h *EventHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var ev ingest.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if err := h.dispatcher.Submit(r.Context(), ev); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
