package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/handler"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/middleware"
)

// defaultMaxBodyBytes bounds trigger request bodies
const defaultMaxBodyBytes = 1 << 20

// EngineConfig holds the collaborators of the HTTP engine
type EngineConfig struct {
	Jobs          handler.JobService
	DB            handler.Pinger
	CronSecret    string
	RunTimeout    time.Duration
	MaxBodyBytes  int64
	MeterProvider *telemetry.MeterProvider
	Tracing       bool
	ServiceName   string
	Logger        *zap.Logger
}

// NewEngine builds the gin engine with the health and trigger endpoints
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	engine := gin.New()
	engine.Use(
		logger.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.Tracing),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.HTTPMetrics(cfg.MeterProvider),
	)

	health := handler.NewHealthHandler(cfg.DB)
	engine.GET("/health", health.Health)

	r := NewRouter(engine, WithGroupMiddleware(
		middleware.CronSecret(cfg.CronSecret),
		middleware.BodyLimit(maxBody),
	))
	r.Register(handler.NewJobsHandler(cfg.Jobs, cfg.RunTimeout))
	r.Setup()

	return engine
}
