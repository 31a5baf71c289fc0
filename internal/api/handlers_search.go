package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rosterkeep/rosterkeep/internal/api/respond"
	"github.com/rosterkeep/rosterkeep/internal/search"
)

// SearchHandler serves guild-scoped member name search.
type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(e *search.Engine) *SearchHandler {
	return &SearchHandler{engine: e}
}

// Search GET /v0/guilds/{guildId}/search?q=&limit=&offset=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	q := r.URL.Query().Get("q")

	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(w, r, "offset", 0)
	if !ok {
		return
	}

	hits, err := h.engine.Query(r.Context(), guildID, q, limit, offset)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}
