package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("agency_id", "a1").WithError(assert.AnError).Info("resolved context")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolved context", entry["msg"])
	assert.Equal(t, "a1", entry["agency_id"])
	assert.NotEmpty(t, entry["error"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warnf("kept: %d", 1)
	assert.NotZero(t, buf.Len())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("anything"))
}

func TestMetricsRegistration(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.InvitationsAcceptedTotal.Inc()
	m.PermissionChangesTotal.WithLabelValues("granted").Inc()
	m.RoutingDecisionsTotal.WithLabelValues("REDIRECT_AGENCY_HOME").Inc()

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body := recorder.Body.String()
	assert.Contains(t, body, "backoffice_invitations_accepted_total 1")
	assert.Contains(t, body, `backoffice_permission_changes_total{access="granted"} 1`)
}

func TestHealthChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer redisClient.Close()

	checker := NewHealthChecker(db, redisClient)

	t.Run("healthy", func(t *testing.T) {
		mock.ExpectPing()
		status := checker.Check(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	})

	t.Run("redis outage only degrades", func(t *testing.T) {
		mock.ExpectPing()
		redisServer.SetError("forced failure")
		defer redisServer.SetError("")

		status := checker.Check(context.Background())
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})

	t.Run("database outage is unhealthy", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(assert.AnError)
		status := checker.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)

		recorder := httptest.NewRecorder()
		mock.ExpectPing().WillReturnError(assert.AnError)
		checker.Readiness(recorder, httptest.NewRequest("GET", "/readyz", nil))
		assert.Equal(t, 503, recorder.Code)
	})
}
