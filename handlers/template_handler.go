package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/response"
	"github.com/onurcolak/sms-dispatch-service/pkg/validator"
)

type templateManager interface {
	Create(ctx context.Context, name, body string) (*domain.Template, error)
	List(ctx context.Context) ([]domain.Template, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Preview(ctx context.Context, id int64, vars map[string]string) (string, error)
}

type TemplateHandler struct {
	service templateManager
}

func NewTemplateHandler(service templateManager) *TemplateHandler {
	return &TemplateHandler{service: service}
}

type CreateTemplateRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Body string `json:"body" validate:"required,max=1600"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type PreviewTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

// CreateTemplate godoc
// @Summary Create a message template
// @Description Bodies may reference variables as {{name}} or {name}
// @Tags templates
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param template body CreateTemplateRequest true "Template to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/templates [post]
func (h *TemplateHandler) CreateTemplate(c echo.Context) error {
	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	tpl, err := h.service.Create(c.Request().Context(), req.Name, req.Body)
	if err != nil {
		return respondError(c, err)
	}

	return response.Created(c, "Template created successfully", tpl)
}

// ListTemplates godoc
// @Summary List message templates
// @Tags templates
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/templates [get]
func (h *TemplateHandler) ListTemplates(c echo.Context) error {
	templates, err := h.service.List(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, templates)
}

// SetTemplateActive godoc
// @Summary Activate or deactivate a template
// @Tags templates
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id}/active [put]
func (h *TemplateHandler) SetTemplateActive(c echo.Context) error {
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

// PreviewTemplate godoc
// @Summary Render a template without sending
// @Tags templates
// @Accept json
// @Produce json
// @Param x-api-key header string true "API key for messages"
// @Param id path int true "Template ID"
// @Param request body PreviewTemplateRequest false "Variables"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/templates/{id}/preview [post]
func (h *TemplateHandler) PreviewTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req PreviewTemplateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	body, err := h.service.Preview(c.Request().Context(), id, req.Variables)
	if err != nil {
		return respondError(c, err)
	}

	return response.Ok(c, map[string]string{"body": body})
}
