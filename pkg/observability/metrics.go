package observability

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Business metrics
	ContextResolutionsTotal   *prometheus.CounterVec
	InvitationsAcceptedTotal  prometheus.Counter
	InvitationConflictsTotal  prometheus.Counter
	PermissionChangesTotal    *prometheus.CounterVec
	NotificationsWrittenTotal prometheus.Counter
	RoutingDecisionsTotal     *prometheus.CounterVec
	RateLimitRejectionsTotal  prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_store_operations_total",
				Help: "Total number of entity store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_store_operation_duration_seconds",
				Help:    "Entity store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ContextResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_context_resolutions_total",
				Help: "Total number of authorization context resolutions",
			},
			[]string{"status"},
		),
		InvitationsAcceptedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_invitations_accepted_total",
				Help: "Total number of invitations converted into memberships",
			},
		),
		InvitationConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_invitation_conflicts_total",
				Help: "Total number of invitation acceptances rejected for role conflicts",
			},
		),
		PermissionChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_permission_changes_total",
				Help: "Total number of permission grants and revocations",
			},
			[]string{"access"},
		),
		NotificationsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_notifications_written_total",
				Help: "Total number of activity feed entries written",
			},
		),
		RoutingDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_routing_decisions_total",
				Help: "Total number of landing decisions by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_ratelimit_rejections_total",
				Help: "Total number of requests rejected by rate limiting",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.ContextResolutionsTotal,
		m.InvitationsAcceptedTotal,
		m.InvitationConflictsTotal,
		m.PermissionChangesTotal,
		m.NotificationsWrittenTotal,
		m.RoutingDecisionsTotal,
		m.RateLimitRejectionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CollectDBStats samples database pool statistics into the gauges until
// ctx-free stop is requested via the returned function
func (m *Metrics) CollectDBStats(db *sql.DB, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsActive.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))
			}
		}
	}()
	return func() { close(done) }
}
