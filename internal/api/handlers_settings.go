package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rosterkeep/rosterkeep/internal/api/respond"
	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/store"
)

// SettingsHandler serves the per-guild channel routing configuration.
type SettingsHandler struct {
	settings store.Settings
}

func NewSettingsHandler(s store.Settings) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

// GetSettings GET /v0/guilds/{guildId}/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	s, err := h.settings.Get(r.Context(), guildID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// PutSettings PUT /v0/guilds/{guildId}/settings
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	var s model.GuildSettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	s.GuildID = guildID
	if err := h.settings.Upsert(r.Context(), &s); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// PutChannel PUT /v0/guilds/{guildId}/settings/channels/{kind}
func (h *SettingsHandler) PutChannel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := model.ChannelKind(vars["kind"])
	switch kind {
	case model.ChannelJoin, model.ChannelLeave, model.ChannelModeration:
	default:
		respond.WriteBadRequest(w, "unknown channel kind")
		return
	}

	var req struct {
		ChannelID *string `json:"channelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if err := h.settings.SetChannel(r.Context(), vars["guildId"], kind, req.ChannelID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
