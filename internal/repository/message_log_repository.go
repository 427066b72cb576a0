package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const messageLogColumns = `id, phone_number, body, status, carrier, message_id, cost, error_kind,
	error_detail, COALESCE(attempts, '[]') AS attempts, campaign_id, template_id, created_at`

// MessageLogRepository stores one row per send attempt.
type MessageLogRepository struct {
	db *sqlx.DB
}

func NewMessageLogRepository(db *sqlx.DB) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

func (r *MessageLogRepository) SaveLog(ctx context.Context, log *domain.MessageLog) error {
	query := `
		INSERT INTO message_logs
			(phone_number, body, status, carrier, message_id, cost, error_kind, error_detail,
			 attempts, campaign_id, template_id, created_at)
		VALUES
			(:phone_number, :body, :status, :carrier, :message_id, :cost, :error_kind, :error_detail,
			 :attempts, :campaign_id, :template_id, :created_at)
	`

	if len(log.Attempts) == 0 {
		log.Attempts = nil
	}

	result, err := r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return fmt.Errorf("failed to save message log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id

	return nil
}

func (r *MessageLogRepository) GetByID(ctx context.Context, id int64) (*domain.MessageLog, error) {
	query := `SELECT ` + messageLogColumns + ` FROM message_logs WHERE id = ?`

	var log domain.MessageLog
	if err := r.db.GetContext(ctx, &log, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message log: %w", err)
	}

	return &log, nil
}

func (r *MessageLogRepository) GetAll(
	ctx context.Context,
	status *domain.LogStatus,
	page, pageSize int,
) ([]domain.MessageLog, int64, error) {
	offset := (page - 1) * pageSize

	where := ""
	var args []any
	if status != nil {
		where = "WHERE status = ?"
		args = append(args, *status)
	}

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM message_logs "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count message logs: %w", err)
	}

	query := `SELECT ` + messageLogColumns + ` FROM message_logs ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	logs := []domain.MessageLog{}
	if err := r.db.SelectContext(ctx, &logs, query, append(args, pageSize, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to get message logs: %w", err)
	}

	return logs, totalCount, nil
}

// GetStats returns sent and failed totals.
func (r *MessageLogRepository) GetStats(ctx context.Context) (sent, failed int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)   AS sent,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
		FROM message_logs
	`

	var stats struct {
		Sent   int64 `db:"sent"`
		Failed int64 `db:"failed"`
	}

	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return 0, 0, fmt.Errorf("failed to get stats: %w", err)
	}

	return stats.Sent, stats.Failed, nil
}
