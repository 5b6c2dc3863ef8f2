package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	appnotification "github.com/Projeto12026/crmcontador-sub000/internal/application/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
)

// JobService runs the dispatcher jobs
type JobService interface {
	CloneSync(ctx context.Context) (appnotification.CloneResult, error)
	RunScheduledSends(ctx context.Context, override *gateway.Settings) (appnotification.SendsResult, error)
	RunDaily(ctx context.Context, override *gateway.Settings) (appnotification.DailyResult, error)
	ProcessBoletoComplete(ctx context.Context, req appnotification.BoletoRequest) (appnotification.BoletoResult, error)
	SendReminder(ctx context.Context, req appnotification.ReminderRequest) (appnotification.ReminderResult, error)
}

// JobsHandler exposes the dispatcher jobs as trigger endpoints
type JobsHandler struct {
	BaseHandler
	jobs       JobService
	runTimeout time.Duration
}

// NewJobsHandler creates a new JobsHandler.
// runTimeout bounds each run; zero means no bound.
func NewJobsHandler(jobs JobService, runTimeout time.Duration) *JobsHandler {
	return &JobsHandler{jobs: jobs, runTimeout: runTimeout}
}

// runContext detaches a run from the caller's connection so that a
// disconnecting cron client does not abort a paced run halfway.
func (h *JobsHandler) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		return context.WithTimeout(ctx, h.runTimeout)
	}
	return context.WithCancel(ctx)
}

// SyncClone replaces the cache with a snapshot of the system of record
func (h *JobsHandler) SyncClone(c *gin.Context) {
	ctx, cancel := h.runContext(c)
	defer cancel()

	result, err := h.jobs.CloneSync(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RunScheduledSends syncs invoices and dispatches due reminders.
// The body is optional and may carry gateway settings for this run.
func (h *JobsHandler) RunScheduledSends(c *gin.Context) {
	var req dto.RunScheduledSendsRequest
	if !h.bindOptional(c, &req) {
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	result, err := h.jobs.RunScheduledSends(ctx, req.Settings())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RunDaily runs sync-clone then run-scheduled-sends
func (h *JobsHandler) RunDaily(c *gin.Context) {
	var req dto.RunScheduledSendsRequest
	if !h.bindOptional(c, &req) {
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	result, err := h.jobs.RunDaily(ctx, req.Settings())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ProcessBoletoComplete sends one company's invoice document and a message
func (h *JobsHandler) ProcessBoletoComplete(c *gin.Context) {
	var req dto.ProcessBoletoCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "companyId, month and year are required")
		return
	}
	period, err := notification.NewPeriod(req.Month, req.Year)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.jobs.ProcessBoletoComplete(c.Request.Context(), appnotification.BoletoRequest{
		CompanyID:         req.CompanyID,
		Period:            period,
		ProviderInvoiceID: req.ProviderInvoiceID,
		Message:           req.Message,
		Gateway:           req.Settings(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SendReminder sends a text message to one company
func (h *JobsHandler) SendReminder(c *gin.Context) {
	var req dto.SendReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "companyId is required")
		return
	}

	result, err := h.jobs.SendReminder(c.Request.Context(), appnotification.ReminderRequest{
		CompanyID: req.CompanyID,
		Message:   req.Message,
		Gateway:   req.Settings(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// bindOptional decodes a JSON body when one is present
func (h *JobsHandler) bindOptional(c *gin.Context, obj any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "request body must be a JSON object")
		return false
	}
	return true
}

// RegisterRoutes registers the job endpoints under /jobs
func (h *JobsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	jobs.POST("/"+appnotification.JobSyncClone, h.SyncClone)
	jobs.POST("/"+appnotification.JobRunScheduledSends, h.RunScheduledSends)
	jobs.POST("/"+appnotification.JobRunDaily, h.RunDaily)
	jobs.POST("/process-boleto-complete", h.ProcessBoletoComplete)
	jobs.POST("/send-reminder", h.SendReminder)
}
