package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
)

// Pinger checks a backing store
type Pinger interface {
	Ping() error
}

// HealthHandler reports liveness and cache database health
type HealthHandler struct {
	BaseHandler
	db        Pinger
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, startTime: time.Now()}
}

// Health returns 200 when the cache database answers, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
	}
	h.Success(c, resp)
}
