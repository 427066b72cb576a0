package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/response"
	"github.com/onurcolak/sms-dispatch-service/pkg/validator"
)

type autoresponderManager interface {
	Create(ctx context.Context, a *domain.Autoresponder) error
	List(ctx context.Context) ([]domain.Autoresponder, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Logs(ctx context.Context, id int64, limit int) ([]domain.AutomationLogEntry, error)
	HandleEvent(ctx context.Context, ev domain.InboundEvent) ([]domain.TriggerOutcome, error)
	ProcessInboundSMS(ctx context.Context, phoneNumber, text string) ([]domain.TriggerOutcome, error)
}

type AutoresponderHandler struct {
	service autoresponderManager
}

func NewAutoresponderHandler(service autoresponderManager) *AutoresponderHandler {
	return &AutoresponderHandler{service: service}
}

type ConditionRequest struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required,oneof== != > < >= <= contains starts_with ends_with"`
	Value    string `json:"value"`
}

type CreateAutoresponderRequest struct {
	Name                 string             `json:"name" validate:"required,max=255"`
	TriggerType          string             `json:"triggerType" validate:"required,oneof=keyword incoming_sms missed_call webhook"`
	TriggerValue         json.RawMessage    `json:"triggerValue,omitempty"`
	ResponseMessage      string             `json:"responseMessage,omitempty" validate:"required_without=TemplateID,max=1600"`
	TemplateID           *int64             `json:"templateId,omitempty" validate:"omitempty,min=1"`
	IsActive             *bool              `json:"isActive,omitempty"`
	DelayMinutes         int                `json:"delayMinutes" validate:"min=0,max=10080"`
	MaxTriggersPerNumber int                `json:"maxTriggersPerNumber" validate:"min=0"`
	Conditions           []ConditionRequest `json:"conditions,omitempty" validate:"omitempty,dive"`
}

type InboundEventRequest struct {
	PhoneNumber string         `json:"phoneNumber" validate:"required,phone"`
	TriggerType string         `json:"triggerType" validate:"required,oneof=keyword incoming_sms missed_call webhook"`
	Data        map[string]any `json:"data,omitempty"`
}

type InboundSMSRequest struct {
	From string `json:"from" validate:"required,phone"`
	Text string `json:"text" validate:"required,max=1600"`
}

// CreateAutoresponder godoc
// @Summary Create an autoresponder
// @Tags autoresponders
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param autoresponder body CreateAutoresponderRequest true "Autoresponder to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/autoresponders [post]
func (h *AutoresponderHandler) CreateAutoresponder(c echo.Context) error {
	var req CreateAutoresponderRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	ar := &domain.Autoresponder{
		Name:                 req.Name,
		TriggerType:          domain.TriggerType(req.TriggerType),
		TriggerValue:         req.TriggerValue,
		TemplateID:           req.TemplateID,
		IsActive:             req.IsActive == nil || *req.IsActive,
		DelayMinutes:         req.DelayMinutes,
		MaxTriggersPerNumber: req.MaxTriggersPerNumber,
	}
	if req.ResponseMessage != "" {
		ar.ResponseMessage = &req.ResponseMessage
	}
	for _, cond := range req.Conditions {
		ar.Conditions = append(ar.Conditions, domain.Condition{
			Field:    cond.Field,
			Operator: domain.Operator(cond.Operator),
			Value:    cond.Value,
		})
	}

	if err := h.service.Create(c.Request().Context(), ar); err != nil {
		return response.UnprocessableEntity(c, err)
	}

	return response.Created(c, "Autoresponder created successfully", ar)
}

// ListAutoresponders godoc
// @Summary List autoresponders
// @Tags autoresponders
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/autoresponders [get]
func (h *AutoresponderHandler) ListAutoresponders(c echo.Context) error {
	list, err := h.service.List(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, list)
}

// SetAutoresponderActive godoc
// @Summary Activate or deactivate an autoresponder
// @Tags autoresponders
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Autoresponder ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/autoresponders/{id}/active [put]
func (h *AutoresponderHandler) SetAutoresponderActive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	if err := h.service.SetActive(c.Request().Context(), id, *req.IsActive); err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, map[string]any{"id": id, "isActive": *req.IsActive})
}

// GetAutomationLogs godoc
// @Summary Get automation logs of an autoresponder
// @Tags autoresponders
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Autoresponder ID"
// @Param limit query int false "Max rows (default: 50, max: 500)"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/autoresponders/{id}/logs [get]
func (h *AutoresponderHandler) GetAutomationLogs(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			return response.BadRequest(c, fmt.Errorf("limit must be between 1 and 500"))
		}
	}

	logs, err := h.service.Logs(c.Request().Context(), id, limit)
	if err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, logs)
}

// HandleEvent godoc
// @Summary Offer an inbound event to the trigger engine
// @Description Evaluates every active autoresponder of the event's trigger type
// @Tags autoresponders
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param event body InboundEventRequest true "Inbound event"
// @Success 200 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/events [post]
func (h *AutoresponderHandler) HandleEvent(c echo.Context) error {
	var req InboundEventRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	outcomes, err := h.service.HandleEvent(c.Request().Context(), domain.InboundEvent{
		PhoneNumber: req.PhoneNumber,
		TriggerType: domain.TriggerType(req.TriggerType),
		Data:        req.Data,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, outcomes)
}

// InboundSMS godoc
// @Summary Receive an inbound SMS
// @Description Offers the text to keyword and incoming_sms autoresponders
// @Tags autoresponders
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param sms body InboundSMSRequest true "Inbound SMS"
// @Success 200 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/inbound/sms [post]
func (h *AutoresponderHandler) InboundSMS(c echo.Context) error {
	var req InboundSMSRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	outcomes, err := h.service.ProcessInboundSMS(c.Request().Context(), req.From, req.Text)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, outcomes)
}
