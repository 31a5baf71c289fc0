package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterkeep_ingest_events_total",
		Help: "Membership events applied to the ledger, by kind.",
	}, []string{"kind"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterkeep_ingest_events_dropped_total",
		Help: "Events dropped as stale or inconsistent, by kind and reason.",
	}, []string{"kind", "reason"})

	eventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterkeep_ingest_event_failures_total",
		Help: "Events that failed with a non-recoverable error, by kind.",
	}, []string{"kind"})
)
