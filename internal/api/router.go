package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosterkeep/rosterkeep/internal/api/recovery"
	"github.com/rosterkeep/rosterkeep/internal/ingest"
	"github.com/rosterkeep/rosterkeep/internal/ledger"
	"github.com/rosterkeep/rosterkeep/internal/reindex"
	"github.com/rosterkeep/rosterkeep/internal/search"
	"github.com/rosterkeep/rosterkeep/internal/store"
)

// Deps carries the constructed services the router wires handlers to.
type Deps struct {
	Store      store.Store
	Ledger     *ledger.Service
	Engine     *search.Engine
	Dispatcher *ingest.Dispatcher
	Worker     *reindex.Worker
}

// NewRouter builds the full HTTP route table.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	events := NewEventHandler(d.Dispatcher)
	members := NewMemberHandler(d.Ledger)
	searchH := NewSearchHandler(d.Engine)
	settings := NewSettingsHandler(d.Store.Settings())
	admin := NewAdminHandler(d.Engine, d.Worker)
	health := NewHealthHandler(d.Store)

	// Ingest
	router.HandleFunc("/v0/events", events.SubmitEvent).Methods("POST")

	// Ledger reads
	router.HandleFunc("/v0/guilds/{guildId}/members", members.RecentMembers).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/members/{memberId}/stints", members.History).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/members/{memberId}/stints/current", members.CurrentStint).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/rejoiners", members.Rejoiners).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/exits", members.Exits).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/stats", members.GuildStats).Methods("GET")

	// Search
	router.HandleFunc("/v0/guilds/{guildId}/search", searchH.Search).Methods("GET")

	// Settings
	router.HandleFunc("/v0/guilds/{guildId}/settings", settings.GetSettings).Methods("GET")
	router.HandleFunc("/v0/guilds/{guildId}/settings", settings.PutSettings).Methods("PUT")
	router.HandleFunc("/v0/guilds/{guildId}/settings/channels/{kind}", settings.PutChannel).Methods("PUT")

	// Operator surface
	router.HandleFunc("/v0/guilds/{guildId}/members/{memberId}/reindex", admin.ReindexMember).Methods("POST")
	router.HandleFunc("/v0/admin/reindex", admin.ReindexScan).Methods("POST")

	// Liveness and metrics
	router.HandleFunc("/v0/health", health.CheckHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
