package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/middlewares"
	"github.com/onurcolak/sms-dispatch-service/internal/service"
	"github.com/onurcolak/sms-dispatch-service/pkg/response"
	"github.com/onurcolak/sms-dispatch-service/pkg/validator"
)

type dispatcher interface {
	SendOne(ctx context.Context, req service.SendRequest) (domain.SendResult, error)
	SendBulk(ctx context.Context, req service.BulkRequest) ([]domain.SendResult, error)
	GetLogs(ctx context.Context, status *domain.LogStatus, page, pageSize int) ([]domain.MessageLog, int64, error)
	GetStats(ctx context.Context) (sent, failed int64, err error)
	GetCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error)
	GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error)
	Carriers() []string
}

type MessageHandler struct {
	service dispatcher
}

func NewMessageHandler(service dispatcher) *MessageHandler {
	return &MessageHandler{service: service}
}

type SendMessageRequest struct {
	To         string            `json:"to" validate:"required,phone"`
	Message    string            `json:"message" validate:"required_without=TemplateID,max=1600"`
	Driver     string            `json:"driver,omitempty" validate:"omitempty,max=32"`
	From       string            `json:"from,omitempty" validate:"omitempty,max=32"`
	TemplateID *int64            `json:"templateId,omitempty" validate:"omitempty,min=1"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// BulkSendRequest leaves recipient validation to the dispatcher so an invalid
// number fails on its own instead of rejecting the whole request.
type BulkSendRequest struct {
	To         []string          `json:"to" validate:"required,min=1,max=10000"`
	Message    string            `json:"message" validate:"required_without=TemplateID,max=1600"`
	Driver     string            `json:"driver,omitempty" validate:"omitempty,max=32"`
	From       string            `json:"from,omitempty" validate:"omitempty,max=32"`
	TemplateID *int64            `json:"templateId,omitempty" validate:"omitempty,min=1"`
	Variables  map[string]string `json:"variables,omitempty"`
	BatchSize  int               `json:"batchSize,omitempty" validate:"omitempty,min=1,max=500"`
}

type BulkSendSummary struct {
	Total   int                 `json:"total"`
	Sent    int                 `json:"sent"`
	Failed  int                 `json:"failed"`
	Results []domain.SendResult `json:"results"`
}

// SendMessage godoc
// @Summary Send one SMS
// @Description Sends a message to one recipient with carrier failover
// @Tags messages
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param message body SendMessageRequest true "Message to send"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 502 {object} response.SuccessResponse
// @Router /api/v1/messages/send [post]
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	result, err := h.service.SendOne(c.Request().Context(), service.SendRequest{
		To:         req.To,
		Message:    req.Message,
		Driver:     req.Driver,
		From:       req.From,
		TemplateID: req.TemplateID,
		Variables:  req.Variables,
		Actor:      middlewares.Actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	if !result.Success {
		return response.BadGateway(c, "Message could not be delivered", result)
	}

	return response.OkWithMessage(c, "Message sent successfully", result)
}

// SendBulk godoc
// @Summary Send one SMS to many recipients
// @Description Sends in concurrent batches; every recipient gets its own result
// @Tags messages
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param message body BulkSendRequest true "Bulk send request"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/messages/bulk [post]
func (h *MessageHandler) SendBulk(c echo.Context) error {
	var req BulkSendRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	results, err := h.service.SendBulk(c.Request().Context(), service.BulkRequest{
		Recipients: req.To,
		Message:    req.Message,
		Driver:     req.Driver,
		From:       req.From,
		TemplateID: req.TemplateID,
		Variables:  req.Variables,
		Actor:      middlewares.Actor(c),
		BatchSize:  req.BatchSize,
	})
	if err != nil {
		return respondError(c, err)
	}

	summary := BulkSendSummary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	return response.Ok(c, summary)
}

// GetLogs godoc
// @Summary Get message logs
// @Description Retrieves a paginated list of send records with optional status filter
// @Tags messages
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Param status query string false "Filter by status (sent, failed)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/logs [get]
func (h *MessageHandler) GetLogs(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var status *domain.LogStatus
	switch s := domain.LogStatus(c.QueryParam("status")); s {
	case "":
	case domain.LogStatusSent, domain.LogStatusFailed:
		status = &s
	default:
		return response.BadRequest(c, fmt.Errorf("status must be one of sent, failed"))
	}

	logs, totalCount, err := h.service.GetLogs(c.Request().Context(), status, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, logs, page, pageSize, totalCount)
}

// GetStats godoc
// @Summary Get message statistics
// @Description Returns count of send records by status
// @Tags messages
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/stats [get]
func (h *MessageHandler) GetStats(c echo.Context) error {
	sent, failed, err := h.service.GetStats(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"sent":   sent,
		"failed": failed,
		"total":  sent + failed,
	})
}

// GetCachedMessages godoc
// @Summary Get cached messages from Redis
// @Description Returns successful sends cached in Redis over the last 24 hours
// @Tags messages
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/cached [get]
func (h *MessageHandler) GetCachedMessages(c echo.Context) error {
	cached, err := h.service.GetCachedMessages(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, cached)
}

// GetCachedMessage godoc
// @Summary Get one cached message
// @Description Looks up a successful send by provider message id
// @Tags messages
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path string true "Provider message id"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/cached/{id} [get]
func (h *MessageHandler) GetCachedMessage(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return response.BadRequestWithMessage(c, "message id is required")
	}

	cached, err := h.service.GetCachedMessage(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, cached)
}

// GetCarriers godoc
// @Summary List configured carriers
// @Tags messages
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/carriers [get]
func (h *MessageHandler) GetCarriers(c echo.Context) error {
	return response.Ok(c, h.service.Carriers())
}

func parsePaginationParams(c echo.Context) (int, int, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	pageStr := c.QueryParam("page")
	pageSizeStr := c.QueryParam("pageSize")

	// Page
	page := defaultPage
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = p
	}

	// Page size
	pageSize := defaultPageSize
	if pageSizeStr != "" {
		ps, err := strconv.Atoi(pageSizeStr)
		if err != nil || ps <= 0 || ps > maxPageSize {
			return 0, 0, fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
		}

		pageSize = ps
	}

	return page, pageSize, nil
}
