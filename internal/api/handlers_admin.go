package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rosterkeep/rosterkeep/internal/api/respond"
	"github.com/rosterkeep/rosterkeep/internal/reindex"
	"github.com/rosterkeep/rosterkeep/internal/search"
)

// AdminHandler exposes the operator surface: manual reindex of a single
// pair and a one-shot staleness scan.
type AdminHandler struct {
	engine *search.Engine
	worker *reindex.Worker
}

func NewAdminHandler(e *search.Engine, w *reindex.Worker) *AdminHandler {
	return &AdminHandler{engine: e, worker: w}
}

// ReindexMember POST /v0/guilds/{guildId}/members/{memberId}/reindex
func (h *AdminHandler) ReindexMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.engine.Reindex(r.Context(), vars["guildId"], vars["memberId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexScan POST /v0/admin/reindex
func (h *AdminHandler) ReindexScan(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.worker.RunOnce(r.Context())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
}
