package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	query := `
		SELECT id, name, body, is_active, created_at, updated_at
		FROM templates
		WHERE id = ?
	`

	var tpl domain.Template
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tpl, nil
}

func (r *TemplateRepository) GetAll(ctx context.Context) ([]domain.Template, error) {
	query := `
		SELECT id, name, body, is_active, created_at, updated_at
		FROM templates
		ORDER BY name ASC
	`

	templates := []domain.Template{}
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("failed to get templates: %w", err)
	}

	return templates, nil
}

func (r *TemplateRepository) Create(ctx context.Context, name, body string) (*domain.Template, error) {
	query := `
		INSERT INTO templates (name, body, is_active, created_at, updated_at)
		VALUES (?, ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query, name, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *TemplateRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE templates SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}
