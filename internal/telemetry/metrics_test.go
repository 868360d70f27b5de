package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetricsRegisteredOnDefaultRegistry(t *testing.T) {
	// Touch one child of each vector so the family shows up in a gather.
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/health").Observe(0.01)
	ContextResolutionsTotal.WithLabelValues("ready").Inc()
	OrgSwitchesTotal.WithLabelValues("ok").Inc()
	InviteEventsTotal.WithLabelValues("created").Inc()
	DBOpenConnections.Set(3)

	for _, name := range []string{
		"http_requests_total",
		"http_request_duration_seconds",
		"context_resolutions_total",
		"org_switches_total",
		"invite_events_total",
		"db_open_connections",
	} {
		mf := gatherFamily(t, name)
		require.NotNil(t, mf, "metric family %s not registered", name)
		assert.NotEmpty(t, mf.GetMetric(), "metric family %s has no samples", name)
	}
}

func TestContextResolutionLabels(t *testing.T) {
	ContextResolutionsTotal.WithLabelValues("needs_selection").Inc()

	mf := gatherFamily(t, "context_resolutions_total")
	require.NotNil(t, mf)

	var outcomes []string
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "outcome" {
				outcomes = append(outcomes, lp.GetValue())
			}
		}
	}
	assert.Contains(t, outcomes, "needs_selection")
}
