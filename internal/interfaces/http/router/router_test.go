package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	appnotification "github.com/Projeto12026/crmcontador-sub000/internal/application/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

type stubJobs struct {
	cloneErr error
	clones   int
}

func (s *stubJobs) CloneSync(context.Context) (appnotification.CloneResult, error) {
	s.clones++
	return appnotification.CloneResult{}, s.cloneErr
}

func (s *stubJobs) RunScheduledSends(context.Context, *gateway.Settings) (appnotification.SendsResult, error) {
	return appnotification.SendsResult{}, nil
}

func (s *stubJobs) RunDaily(context.Context, *gateway.Settings) (appnotification.DailyResult, error) {
	return appnotification.DailyResult{}, nil
}

func (s *stubJobs) ProcessBoletoComplete(context.Context, appnotification.BoletoRequest) (appnotification.BoletoResult, error) {
	return appnotification.BoletoResult{}, nil
}

func (s *stubJobs) SendReminder(context.Context, appnotification.ReminderRequest) (appnotification.ReminderResult, error) {
	return appnotification.ReminderResult{}, nil
}

type okPinger struct{}

func (okPinger) Ping() error { return nil }

func TestNewEngine_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(EngineConfig{Jobs: &stubJobs{}, DB: okPinger{}, Logger: zap.NewNop()})

	routes := map[string]bool{}
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /api/v1/jobs/sync-clone",
		"POST /api/v1/jobs/run-scheduled-sends",
		"POST /api/v1/jobs/run-daily",
		"POST /api/v1/jobs/process-boleto-complete",
		"POST /api/v1/jobs/send-reminder",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestNewEngine_SecretGuardsJobsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &stubJobs{}
	engine := NewEngine(EngineConfig{Jobs: jobs, DB: okPinger{}, CronSecret: "a-long-cron-secret"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sync-clone", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, jobs.clones)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sync-clone?secret=a-long-cron-secret", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, jobs.clones)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewEngine_RunInProgressIsConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(EngineConfig{Jobs: &stubJobs{cloneErr: notification.ErrRunInProgress}, DB: okPinger{}})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sync-clone", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_RUN_IN_PROGRESS")
}

func TestNewEngine_RecordsHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())
	engine := NewEngine(EngineConfig{Jobs: &stubJobs{}, DB: okPinger{}, MeterProvider: mp})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/run-daily", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			route, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrHTTPRoute)
			assert.Equal(t, "/api/v1/jobs/run-daily", route.AsString())
			found = true
		}
	}
	assert.True(t, found)
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestRouter_VersionAndGroupMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	var calls int
	NewRouter(engine,
		WithAPIVersion("v2"),
		WithGroupMiddleware(func(c *gin.Context) { calls++ }),
	).Register(pingRoutes{}).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
