package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/service"
	"github.com/onurcolak/sms-dispatch-service/pkg/response"
)

// respondError maps service errors onto the response envelope.
func respondError(c echo.Context, err error) error {
	var (
		rateErr *domain.RateLimitedError
		tplErr  *domain.TemplateRenderError
	)

	switch {
	case errors.As(err, &rateErr):
		return response.TooManyRequests(c, rateErr.RetryAfterSeconds, err)
	case errors.As(err, &tplErr), errors.Is(err, domain.ErrNoMessageContent):
		return response.UnprocessableEntity(c, err)
	case errors.Is(err, domain.ErrCampaignNotFound),
		errors.Is(err, domain.ErrAutoresponderNotFound),
		errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrCachedMessageNotFound):
		return response.NotFound(c, err.Error())
	case service.IsConflict(err):
		return response.Conflict(c, err)
	default:
		return response.InternalServerError(c, err)
	}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
