// Package telemetry provides application-level observability for the portal.
//
// All metrics are registered against the default Prometheus registry and served
// on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<MBP_TELEMETRY_METRICS_PORT>/metrics
//
// The endpoint is not part of the Gin router so it stays off the public ingress
// and outside the rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/org/invites/:id)
// rather than the raw URL to keep label cardinality bounded.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Session-context metrics — recorded by the orgcontext store.
//
// ContextResolutionsTotal counts completed fetch/resolution rounds by outcome:
// "ready" (an org was activated), "no_org", "needs_selection" (ambiguous
// fallback declined), "unauthenticated", "error" (repository failure), and
// "discarded" (result dropped because a newer user action won the race).
//
// OrgSwitchesTotal counts explicit SetActiveOrg calls by result: "ok",
// "denied" (revalidation failed), "not_found" (id absent from the session's
// org list), "superseded" (overtaken by a newer action).
//
// Example PromQL queries:
//   - Denied switch rate:        rate(org_switches_total{result="denied"}[1h])
//   - Ambiguity incidence (%):   sum(rate(context_resolutions_total{outcome="needs_selection"}[1d])) / sum(rate(context_resolutions_total[1d])) * 100
var (
	ContextResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_resolutions_total",
			Help: "Total number of completed active-organization resolutions, by outcome.",
		},
		[]string{"outcome"},
	)

	OrgSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_switches_total",
			Help: "Total number of explicit active-organization switches, by result.",
		},
		[]string{"result"},
	)
)

// Invite metrics — recorded by the invite handlers.
//
// InviteEventsTotal has label {event} with values "created", "accepted",
// "revoked", "expired" (acceptance attempt on an expired token).
var InviteEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "invite_events_total",
		Help: "Total number of invite lifecycle events, by event type.",
	},
	[]string{"event"},
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. Sampled every 30 seconds by StartDBStatsCollector rather
// than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates DBOpenConnections.
// The goroutine exits when the database becomes unreachable, which happens
// naturally at shutdown once main defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
