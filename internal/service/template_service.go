package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/template"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

type templateStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Template, error)
	GetAll(ctx context.Context) ([]domain.Template, error)
	Create(ctx context.Context, name, body string) (*domain.Template, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type TemplateService struct {
	store templateStore
}

func NewTemplateService(store templateStore) *TemplateService {
	return &TemplateService{store: store}
}

func (s *TemplateService) Create(ctx context.Context, name, body string) (*domain.Template, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("template name and body are required")
	}

	tpl, err := s.store.Create(ctx, name, body)
	if err != nil {
		return nil, err
	}

	logger.Infof("Created template %d (%s)", tpl.ID, tpl.Name)
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context) ([]domain.Template, error) {
	return s.store.GetAll(ctx)
}

func (s *TemplateService) SetActive(ctx context.Context, id int64, active bool) error {
	return s.store.SetActive(ctx, id, active)
}

// Preview renders a template with vars without sending anything. Inactive
// templates can be previewed.
func (s *TemplateService) Preview(ctx context.Context, id int64, vars map[string]string) (string, error) {
	tpl, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to load template %d: %w", id, err)
	}
	if tpl == nil {
		return "", domain.ErrTemplateNotFound
	}

	return template.Render(tpl.Body, vars), nil
}
