package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const campaignColumns = `id, name, message, template_id, recipients, status, scheduled_at, started_at,
	completed_at, driver, from_number, total_recipients, sent_count, failed_count, settings,
	failure_reason, created_at, updated_at`

// campaignRow mirrors the campaigns table; recipients and settings are JSON
// columns.
type campaignRow struct {
	ID              int64      `db:"id"`
	Name            string     `db:"name"`
	Message         *string    `db:"message"`
	TemplateID      *int64     `db:"template_id"`
	Recipients      []byte     `db:"recipients"`
	Status          string     `db:"status"`
	ScheduledAt     *time.Time `db:"scheduled_at"`
	StartedAt       *time.Time `db:"started_at"`
	CompletedAt     *time.Time `db:"completed_at"`
	Driver          *string    `db:"driver"`
	FromNumber      *string    `db:"from_number"`
	TotalRecipients int        `db:"total_recipients"`
	SentCount       int        `db:"sent_count"`
	FailedCount     int        `db:"failed_count"`
	Settings        []byte     `db:"settings"`
	FailureReason   *string    `db:"failure_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (row campaignRow) toDomain() (*domain.Campaign, error) {
	c := &domain.Campaign{
		ID:              row.ID,
		Name:            row.Name,
		Message:         row.Message,
		TemplateID:      row.TemplateID,
		Status:          domain.CampaignStatus(row.Status),
		ScheduledAt:     row.ScheduledAt,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
		Driver:          row.Driver,
		FromNumber:      row.FromNumber,
		TotalRecipients: row.TotalRecipients,
		SentCount:       row.SentCount,
		FailedCount:     row.FailedCount,
		FailureReason:   row.FailureReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}

	if len(row.Recipients) > 0 {
		if err := json.Unmarshal(row.Recipients, &c.Recipients); err != nil {
			return nil, fmt.Errorf("campaign %d: invalid recipients: %w", row.ID, err)
		}
	}
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &c.Settings); err != nil {
			return nil, fmt.Errorf("campaign %d: invalid settings: %w", row.ID, err)
		}
	}

	return c, nil
}

func campaignRowFrom(c *domain.Campaign) (campaignRow, error) {
	recipients := c.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	recipientsJSON, err := json.Marshal(recipients)
	if err != nil {
		return campaignRow{}, fmt.Errorf("failed to encode recipients: %w", err)
	}
	settingsJSON, err := json.Marshal(c.Settings)
	if err != nil {
		return campaignRow{}, fmt.Errorf("failed to encode settings: %w", err)
	}

	return campaignRow{
		ID:              c.ID,
		Name:            c.Name,
		Message:         c.Message,
		TemplateID:      c.TemplateID,
		Recipients:      recipientsJSON,
		Status:          string(c.Status),
		ScheduledAt:     c.ScheduledAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		Driver:          c.Driver,
		FromNumber:      c.FromNumber,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		Settings:        settingsJSON,
		FailureReason:   c.FailureReason,
	}, nil
}

type CampaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	row, err := campaignRowFrom(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns
			(name, message, template_id, recipients, status, scheduled_at, driver, from_number,
			 total_recipients, sent_count, failed_count, settings, created_at, updated_at)
		VALUES
			(:name, :message, :template_id, :recipients, :status, :scheduled_at, :driver, :from_number,
			 :total_recipients, :sent_count, :failed_count, :settings, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`

	var row campaignRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return row.toDomain()
}

func (r *CampaignRepository) GetAll(
	ctx context.Context,
	status *domain.CampaignStatus,
	page, pageSize int,
) ([]domain.Campaign, int64, error) {
	offset := (page - 1) * pageSize

	where := ""
	var args []any
	if status != nil {
		where = "WHERE status = ?"
		args = append(args, string(*status))
	}

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM campaigns "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, query, append(args, pageSize, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to get campaigns: %w", err)
	}

	campaigns, err := toCampaigns(rows)
	if err != nil {
		return nil, 0, err
	}

	return campaigns, totalCount, nil
}

// Save writes the lifecycle fields and the exact counters.
func (r *CampaignRepository) Save(ctx context.Context, c *domain.Campaign) error {
	row, err := campaignRowFrom(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns
		SET status = :status,
		    scheduled_at = :scheduled_at,
		    started_at = :started_at,
		    completed_at = :completed_at,
		    sent_count = :sent_count,
		    failed_count = :failed_count,
		    failure_reason = :failure_reason,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		// MySQL reports 0 when nothing changed, so confirm the row exists.
		var exists bool
		if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = ?)", c.ID); err != nil {
			return fmt.Errorf("failed to check campaign: %w", err)
		}
		if !exists {
			return domain.ErrCampaignNotFound
		}
	}

	return nil
}

// GetDue returns scheduled campaigns whose time has passed, oldest first.
func (r *CampaignRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?`

	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to get due campaigns: %w", err)
	}

	return toCampaigns(rows)
}

// MarkRunning claims a scheduled campaign. Only one caller can win the claim;
// the others get domain.ErrInvalidTransition.
func (r *CampaignRepository) MarkRunning(ctx context.Context, id int64, startedAt time.Time) error {
	query := `
		UPDATE campaigns
		SET status = ?,
		    started_at = ?,
		    sent_count = 0,
		    failed_count = 0,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(domain.CampaignRunning), startedAt, id, string(domain.CampaignScheduled))
	if err != nil {
		return fmt.Errorf("failed to mark campaign running: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: campaign %d is no longer scheduled", domain.ErrInvalidTransition, id)
	}

	return nil
}

// IncrementCounters adds to the counters in one statement so concurrent
// updates never overwrite each other.
func (r *CampaignRepository) IncrementCounters(ctx context.Context, id int64, sent, failed int) error {
	query := `
		UPDATE campaigns
		SET sent_count = sent_count + ?,
		    failed_count = failed_count + ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, sent, failed, id); err != nil {
		return fmt.Errorf("failed to increment campaign counters: %w", err)
	}

	return nil
}

func toCampaigns(rows []campaignRow) ([]domain.Campaign, error) {
	campaigns := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, nil
}
