package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rosterkeep/rosterkeep/internal/api/respond"
	"github.com/rosterkeep/rosterkeep/internal/ledger"
)

// MemberHandler serves stint history and the guild-level roster views.
type MemberHandler struct {
	svc *ledger.Service
}

func NewMemberHandler(svc *ledger.Service) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// History GET /v0/guilds/{guildId}/members/{memberId}/stints
func (h *MemberHandler) History(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stints, err := h.svc.History(r.Context(), vars["guildId"], vars["memberId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stints": stints,
		"count":  len(stints),
	})
}

// CurrentStint GET /v0/guilds/{guildId}/members/{memberId}/stints/current
func (h *MemberHandler) CurrentStint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st, err := h.svc.CurrentStint(r.Context(), vars["guildId"], vars["memberId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}

// RecentMembers GET /v0/guilds/{guildId}/members?limit=&before=
func (h *MemberHandler) RecentMembers(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	var before *int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.WriteBadRequest(w, "before must be an integer")
			return
		}
		before = &v
	}
	members, err := h.svc.RecentMembers(r.Context(), guildID, limit, before)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// Rejoiners GET /v0/guilds/{guildId}/rejoiners?minStints=&limit=
func (h *MemberHandler) Rejoiners(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	minStints, ok := intQuery(w, r, "minStints", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	rows, err := h.svc.Rejoiners(r.Context(), guildID, minStints, limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rejoiners": rows,
		"count":     len(rows),
	})
}

// Exits GET /v0/guilds/{guildId}/exits?limit=
func (h *MemberHandler) Exits(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	exits, err := h.svc.Exits(r.Context(), guildID, limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"exits": exits,
		"count": len(exits),
	})
}

// GuildStats GET /v0/guilds/{guildId}/stats
func (h *MemberHandler) GuildStats(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	stats, err := h.svc.GuildStats(r.Context(), guildID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, stats)
}

// intQuery parses an optional non-negative integer query parameter. A zero
// value means "not provided" and lets the service apply its default.
func intQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respond.WriteBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
