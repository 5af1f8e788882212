package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/application/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
)

// RequestFinder looks up ledger rows by request id
type RequestFinder interface {
	FindByRequestID(ctx context.Context, requestID string) (*entity.RequestRecord, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   workflow.Engine
	requests RequestFinder
	history  service.HistoryService
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine workflow.Engine,
	requests RequestFinder,
	history service.HistoryService,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:   engine,
		requests: requests,
		history:  history,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitRequestBody is the JSON form of a submission
type SubmitRequestBody struct {
	UserID    string `json:"user_id" binding:"required"`
	Title     string `json:"title"`
	Amount    string `json:"amount"`
	UsageDate string `json:"usage_date"`
	Remarks   string `json:"remarks"`
}

// CompleteRequestBody identifies who completes a request
type CompleteRequestBody struct {
	UserID string `json:"user_id"`
}

// RequestResponse represents a ledger row in API responses
type RequestResponse struct {
	RequestID     string `json:"request_id"`
	ThreadID      string `json:"thread_id"`
	ApplicantID   string `json:"applicant_id"`
	ApplicantName string `json:"applicant_name"`
	Title         string `json:"title"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	UsageDate     string `json:"usage_date"`
	Remarks       string `json:"remarks,omitempty"`
	Status        string `json:"status"`
	FileName      string `json:"file_name,omitempty"`
	FileLink      string `json:"file_link,omitempty"`
	RowLink       string `json:"row_link,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// CompletionResponse carries the reply the chat caller would have seen
type CompletionResponse struct {
	RequestID string `json:"request_id"`
	Reply     string `json:"reply"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitRequest handles POST /api/v1/requests
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var body SubmitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	rec, err := h.engine.HandleSubmission(c.Request.Context(), event.Submission{
		UserID:    body.UserID,
		Title:     body.Title,
		Amount:    body.Amount,
		UsageDate: body.UsageDate,
		Remarks:   body.Remarks,
	})
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Data:    verr.Fields,
			Error:   "validation failed",
		})
		return
	case err != nil:
		h.logger.Error("Failed to submit request", "user_id", body.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to submit request",
		})
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toRequestResponse(rec),
	})
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id := workflow.ParseCompletionArgument(c.Param("id"))

	rec, err := h.requests.FindByRequestID(c.Request.Context(), id)
	if errors.Is(err, service.ErrRequestNotFound) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "request not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get request", "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve request",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toRequestResponse(rec),
	})
}

// CompleteRequest handles POST /api/v1/requests/:id/complete
func (h *Handlers) CompleteRequest(c *gin.Context) {
	var body CompleteRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}
	}

	id := workflow.ParseCompletionArgument(c.Param("id"))
	h.logger.Info("Completing request over HTTP", "request_id", id, "user_id", body.UserID)

	reply, err := h.engine.HandleCompletion(c.Request.Context(), event.CompletionRequest{
		UserID:   body.UserID,
		Argument: id,
	})
	if err != nil {
		h.logger.Error("Completion failed", "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Data:    CompletionResponse{RequestID: id, Reply: reply},
			Error:   "completion failed",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    CompletionResponse{RequestID: id, Reply: reply},
	})
}

// GetHistory handles GET /api/v1/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id := workflow.ParseCompletionArgument(c.Param("id"))

	entries, err := h.history.List(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list history", "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve history",
		})
		return
	}
	if entries == nil {
		entries = []*entity.StatusHistory{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// toRequestResponse converts a ledger record to its API form
func toRequestResponse(rec *entity.RequestRecord) RequestResponse {
	return RequestResponse{
		RequestID:     rec.RequestID,
		ThreadID:      rec.ThreadID,
		ApplicantID:   rec.ApplicantID,
		ApplicantName: rec.ApplicantName,
		Title:         rec.Title,
		Amount:        rec.Amount.String(),
		Currency:      rec.Currency,
		UsageDate:     rec.UsageDate,
		Remarks:       rec.Remarks,
		Status:        string(rec.Status),
		FileName:      rec.FileName,
		FileLink:      rec.FileLink,
		RowLink:       rec.RowLink,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}
