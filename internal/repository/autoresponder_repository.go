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

const autoresponderColumns = `id, name, trigger_type, trigger_value, response_message, template_id,
	is_active, delay_minutes, max_triggers_per_number, conditions, created_at, updated_at`

type autoresponderRow struct {
	ID                   int64     `db:"id"`
	Name                 string    `db:"name"`
	TriggerType          string    `db:"trigger_type"`
	TriggerValue         []byte    `db:"trigger_value"`
	ResponseMessage      *string   `db:"response_message"`
	TemplateID           *int64    `db:"template_id"`
	IsActive             bool      `db:"is_active"`
	DelayMinutes         int       `db:"delay_minutes"`
	MaxTriggersPerNumber int       `db:"max_triggers_per_number"`
	Conditions           []byte    `db:"conditions"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (row autoresponderRow) toDomain() (domain.Autoresponder, error) {
	a := domain.Autoresponder{
		ID:                   row.ID,
		Name:                 row.Name,
		TriggerType:          domain.TriggerType(row.TriggerType),
		ResponseMessage:      row.ResponseMessage,
		TemplateID:           row.TemplateID,
		IsActive:             row.IsActive,
		DelayMinutes:         row.DelayMinutes,
		MaxTriggersPerNumber: row.MaxTriggersPerNumber,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}

	if len(row.TriggerValue) > 0 {
		a.TriggerValue = json.RawMessage(row.TriggerValue)
	}
	if len(row.Conditions) > 0 {
		if err := json.Unmarshal(row.Conditions, &a.Conditions); err != nil {
			return a, fmt.Errorf("autoresponder %d: invalid conditions: %w", row.ID, err)
		}
	}

	return a, nil
}

type automationLogRow struct {
	ID              int64     `db:"id"`
	AutoresponderID int64     `db:"autoresponder_id"`
	TriggerEventID  string    `db:"trigger_event_id"`
	PhoneNumber     string    `db:"phone_number"`
	Status          string    `db:"status"`
	MessageID       *string   `db:"message_id"`
	CarrierUsed     *string   `db:"carrier_used"`
	ExecutionTimeMs int64     `db:"execution_time_ms"`
	ErrorMessage    *string   `db:"error_message"`
	ContextData     []byte    `db:"context_data"`
	CreatedAt       time.Time `db:"created_at"`
}

type pendingReplyRow struct {
	ID              int64     `db:"id"`
	AutoresponderID int64     `db:"autoresponder_id"`
	AutomationLogID int64     `db:"automation_log_id"`
	TriggerEventID  string    `db:"trigger_event_id"`
	PhoneNumber     string    `db:"phone_number"`
	TriggerData     []byte    `db:"trigger_data"`
	DueAt           time.Time `db:"due_at"`
}

// AutoresponderRepository stores autoresponders together with their trigger
// events, automation logs and pending delayed replies.
type AutoresponderRepository struct {
	db *sqlx.DB
}

func NewAutoresponderRepository(db *sqlx.DB) *AutoresponderRepository {
	return &AutoresponderRepository{db: db}
}

func (r *AutoresponderRepository) Create(ctx context.Context, a *domain.Autoresponder) error {
	conditions, err := json.Marshal(a.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	var triggerValue []byte
	if len(a.TriggerValue) > 0 {
		triggerValue = a.TriggerValue
	}

	query := `
		INSERT INTO autoresponders
			(name, trigger_type, trigger_value, response_message, template_id, is_active,
			 delay_minutes, max_triggers_per_number, conditions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query,
		a.Name, string(a.TriggerType), triggerValue, a.ResponseMessage, a.TemplateID, a.IsActive,
		a.DelayMinutes, a.MaxTriggersPerNumber, conditions,
	)
	if err != nil {
		return fmt.Errorf("failed to insert autoresponder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt

	return nil
}

func (r *AutoresponderRepository) GetAll(ctx context.Context) ([]domain.Autoresponder, error) {
	query := `SELECT ` + autoresponderColumns + ` FROM autoresponders ORDER BY id ASC`

	var rows []autoresponderRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get autoresponders: %w", err)
	}

	return toAutoresponders(rows)
}

func (r *AutoresponderRepository) GetByID(ctx context.Context, id int64) (*domain.Autoresponder, error) {
	query := `SELECT ` + autoresponderColumns + ` FROM autoresponders WHERE id = ?`

	var row autoresponderRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get autoresponder: %w", err)
	}

	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AutoresponderRepository) GetActiveByTriggerType(ctx context.Context, t domain.TriggerType) ([]domain.Autoresponder, error) {
	query := `SELECT ` + autoresponderColumns + ` FROM autoresponders
		WHERE is_active = TRUE AND trigger_type = ?
		ORDER BY id ASC`

	var rows []autoresponderRow
	if err := r.db.SelectContext(ctx, &rows, query, string(t)); err != nil {
		return nil, fmt.Errorf("failed to get active autoresponders: %w", err)
	}

	return toAutoresponders(rows)
}

func (r *AutoresponderRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE autoresponders SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update autoresponder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrAutoresponderNotFound
	}

	return nil
}

// CountAutomationLogs counts rows of every status created at or after since.
func (r *AutoresponderRepository) CountAutomationLogs(
	ctx context.Context,
	autoresponderID int64,
	phoneNumber string,
	since time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*) FROM automation_logs
		WHERE autoresponder_id = ? AND phone_number = ? AND created_at >= ?
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, autoresponderID, phoneNumber, since); err != nil {
		return 0, fmt.Errorf("failed to count automation logs: %w", err)
	}

	return count, nil
}

func (r *AutoresponderRepository) SaveTriggerEvent(ctx context.Context, e *domain.TriggerEvent) error {
	data, err := json.Marshal(e.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to encode trigger data: %w", err)
	}

	query := `
		INSERT INTO trigger_events (id, autoresponder_id, phone_number, trigger_type, trigger_data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.AutoresponderID, e.PhoneNumber, string(e.TriggerType), data, e.OccurredAt,
	); err != nil {
		return fmt.Errorf("failed to insert trigger event: %w", err)
	}

	return nil
}

func (r *AutoresponderRepository) SaveAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) (int64, error) {
	contextData, err := json.Marshal(entry.ContextData)
	if err != nil {
		return 0, fmt.Errorf("failed to encode context data: %w", err)
	}

	query := `
		INSERT INTO automation_logs
			(autoresponder_id, trigger_event_id, phone_number, status, message_id, carrier_used,
			 execution_time_ms, error_message, context_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.AutoresponderID, entry.TriggerEventID, entry.PhoneNumber, string(entry.Status),
		entry.MessageID, entry.CarrierUsed, entry.ExecutionTimeMs, entry.ErrorMessage, contextData,
		entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert automation log: %w", err)
	}

	return result.LastInsertId()
}

// UpdateAutomationLog finalizes the outcome columns of an existing row.
func (r *AutoresponderRepository) UpdateAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) error {
	query := `
		UPDATE automation_logs
		SET status = ?, message_id = ?, carrier_used = ?, execution_time_ms = ?, error_message = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query,
		string(entry.Status), entry.MessageID, entry.CarrierUsed, entry.ExecutionTimeMs, entry.ErrorMessage, entry.ID,
	); err != nil {
		return fmt.Errorf("failed to update automation log: %w", err)
	}

	return nil
}

func (r *AutoresponderRepository) GetAutomationLog(ctx context.Context, id int64) (*domain.AutomationLogEntry, error) {
	query := `
		SELECT id, autoresponder_id, trigger_event_id, phone_number, status, message_id, carrier_used,
		       execution_time_ms, error_message, context_data, created_at
		FROM automation_logs
		WHERE id = ?
	`

	var row automationLogRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get automation log: %w", err)
	}

	entry := row.toDomain()
	return &entry, nil
}

// GetAutomationLogs returns the newest rows for one autoresponder.
func (r *AutoresponderRepository) GetAutomationLogs(ctx context.Context, autoresponderID int64, limit int) ([]domain.AutomationLogEntry, error) {
	query := `
		SELECT id, autoresponder_id, trigger_event_id, phone_number, status, message_id, carrier_used,
		       execution_time_ms, error_message, context_data, created_at
		FROM automation_logs
		WHERE autoresponder_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	var rows []automationLogRow
	if err := r.db.SelectContext(ctx, &rows, query, autoresponderID, limit); err != nil {
		return nil, fmt.Errorf("failed to get automation logs: %w", err)
	}

	entries := make([]domain.AutomationLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (row automationLogRow) toDomain() domain.AutomationLogEntry {
	entry := domain.AutomationLogEntry{
		ID:              row.ID,
		AutoresponderID: row.AutoresponderID,
		TriggerEventID:  row.TriggerEventID,
		PhoneNumber:     row.PhoneNumber,
		Status:          domain.AutomationStatus(row.Status),
		MessageID:       row.MessageID,
		CarrierUsed:     row.CarrierUsed,
		ExecutionTimeMs: row.ExecutionTimeMs,
		ErrorMessage:    row.ErrorMessage,
		CreatedAt:       row.CreatedAt,
	}
	if len(row.ContextData) > 0 {
		_ = json.Unmarshal(row.ContextData, &entry.ContextData)
	}
	return entry
}

func (r *AutoresponderRepository) SavePendingReply(ctx context.Context, p *domain.PendingReply) error {
	data, err := json.Marshal(p.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to encode trigger data: %w", err)
	}

	query := `
		INSERT INTO pending_replies
			(autoresponder_id, automation_log_id, trigger_event_id, phone_number, trigger_data, due_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.AutoresponderID, p.AutomationLogID, p.TriggerEventID, p.PhoneNumber, data, p.DueAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id

	return nil
}

func (r *AutoresponderRepository) GetDuePendingReplies(ctx context.Context, now time.Time, limit int) ([]domain.PendingReply, error) {
	query := `
		SELECT id, autoresponder_id, automation_log_id, trigger_event_id, phone_number, trigger_data, due_at
		FROM pending_replies
		WHERE due_at <= ?
		ORDER BY due_at ASC
		LIMIT ?
	`

	var rows []pendingReplyRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to get due replies: %w", err)
	}

	replies := make([]domain.PendingReply, 0, len(rows))
	for _, row := range rows {
		p := domain.PendingReply{
			ID:              row.ID,
			AutoresponderID: row.AutoresponderID,
			AutomationLogID: row.AutomationLogID,
			TriggerEventID:  row.TriggerEventID,
			PhoneNumber:     row.PhoneNumber,
			DueAt:           row.DueAt,
		}
		if len(row.TriggerData) > 0 {
			if err := json.Unmarshal(row.TriggerData, &p.TriggerData); err != nil {
				return nil, fmt.Errorf("pending reply %d: invalid trigger data: %w", row.ID, err)
			}
		}
		replies = append(replies, p)
	}

	return replies, nil
}

func (r *AutoresponderRepository) DeletePendingReply(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_replies WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending reply: %w", err)
	}
	return nil
}

func toAutoresponders(rows []autoresponderRow) ([]domain.Autoresponder, error) {
	out := make([]domain.Autoresponder, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
