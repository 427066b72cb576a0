package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/service"
	"github.com/onurcolak/sms-dispatch-service/pkg/response"
	"github.com/onurcolak/sms-dispatch-service/pkg/validator"
)

type campaignManager interface {
	Create(ctx context.Context, in service.CreateCampaignInput) (*domain.Campaign, error)
	Get(ctx context.Context, id int64) (*domain.Campaign, error)
	List(ctx context.Context, status *domain.CampaignStatus, page, pageSize int) ([]domain.Campaign, int64, error)
	Schedule(ctx context.Context, id int64, at time.Time) (*domain.Campaign, error)
	Cancel(ctx context.Context, id int64) (*domain.Campaign, error)
	Execute(ctx context.Context, id int64, force bool) (*domain.CampaignRunResult, error)
}

type CampaignHandler struct {
	service campaignManager
}

func NewCampaignHandler(service campaignManager) *CampaignHandler {
	return &CampaignHandler{service: service}
}

type CampaignSettingsRequest struct {
	SendRate    float64 `json:"sendRate,omitempty" validate:"omitempty,min=0,max=1000"`
	RetryFailed bool    `json:"retryFailed,omitempty"`
}

type CreateCampaignRequest struct {
	Name        string                  `json:"name" validate:"required,max=255"`
	Message     string                  `json:"message,omitempty" validate:"required_without=TemplateID,max=1600"`
	TemplateID  *int64                  `json:"templateId,omitempty" validate:"omitempty,min=1"`
	Recipients  []string                `json:"recipients" validate:"required,min=1,max=100000"`
	ScheduledAt *time.Time              `json:"scheduledAt,omitempty"`
	Driver      *string                 `json:"driver,omitempty" validate:"omitempty,max=32"`
	FromNumber  *string                 `json:"fromNumber,omitempty" validate:"omitempty,max=32"`
	Settings    CampaignSettingsRequest `json:"settings"`
}

type ScheduleCampaignRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

// CreateCampaign godoc
// @Summary Create a campaign
// @Description Creates a draft campaign, or a scheduled one when scheduledAt is set
// @Tags campaigns
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param campaign body CreateCampaignRequest true "Campaign to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c echo.Context) error {
	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	var message *string
	if req.Message != "" {
		message = &req.Message
	}

	campaign, err := h.service.Create(c.Request().Context(), service.CreateCampaignInput{
		Name:        req.Name,
		Message:     message,
		TemplateID:  req.TemplateID,
		Recipients:  req.Recipients,
		ScheduledAt: req.ScheduledAt,
		Driver:      req.Driver,
		FromNumber:  req.FromNumber,
		Settings: domain.CampaignSettings{
			SendRate:    req.Settings.SendRate,
			RetryFailed: req.Settings.RetryFailed,
		},
	})
	if err != nil {
		return respondError(c, err)
	}

	return response.Created(c, "Campaign created successfully", campaign)
}

// GetCampaign godoc
// @Summary Get a campaign
// @Tags campaigns
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	campaign, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, campaign)
}

// ListCampaigns godoc
// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var status *domain.CampaignStatus
	if s := c.QueryParam("status"); s != "" {
		parsed := domain.CampaignStatus(s)
		status = &parsed
	}

	campaigns, totalCount, err := h.service.List(c.Request().Context(), status, page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, campaigns, page, pageSize, totalCount)
}

// ScheduleCampaign godoc
// @Summary Schedule a draft campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Campaign ID"
// @Param request body ScheduleCampaignRequest true "Schedule time"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/schedule [post]
func (h *CampaignHandler) ScheduleCampaign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req ScheduleCampaignRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	campaign, err := h.service.Schedule(c.Request().Context(), id, req.ScheduledAt)
	if err != nil {
		return respondError(c, err)
	}

	return response.OkWithMessage(c, "Campaign scheduled", campaign)
}

// CancelCampaign godoc
// @Summary Cancel a draft or scheduled campaign
// @Tags campaigns
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	campaign, err := h.service.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return response.OkWithMessage(c, "Campaign cancelled", campaign)
}

// RunCampaign godoc
// @Summary Execute a scheduled campaign now
// @Description Runs a due campaign; force=true runs it before its scheduled time
// @Tags campaigns
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Campaign ID"
// @Param force query bool false "Run before the scheduled time"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/run [post]
func (h *CampaignHandler) RunCampaign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	force := false
	if raw := c.QueryParam("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			return response.BadRequest(c, fmt.Errorf("force must be a boolean"))
		}
	}

	result, err := h.service.Execute(c.Request().Context(), id, force)
	if err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, result)
}
