package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database")
	return db, nil
}

// migrations run in order; every statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS templates (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		body TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_templates_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(150) NOT NULL,
		message TEXT,
		template_id BIGINT,
		recipients JSON NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		scheduled_at DATETIME,
		started_at DATETIME,
		completed_at DATETIME,
		driver VARCHAR(30),
		from_number VARCHAR(30),
		total_recipients INT NOT NULL DEFAULT 0,
		sent_count INT NOT NULL DEFAULT 0,
		failed_count INT NOT NULL DEFAULT 0,
		settings JSON,
		failure_reason TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_campaigns_due (status, scheduled_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS message_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		phone_number VARCHAR(20) NOT NULL,
		body TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		carrier VARCHAR(30),
		message_id VARCHAR(100),
		cost DECIMAL(10, 5),
		error_kind VARCHAR(30),
		error_detail TEXT,
		attempts JSON,
		campaign_id BIGINT,
		template_id BIGINT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_message_logs_status (status),
		INDEX idx_message_logs_created_at (created_at),
		INDEX idx_message_logs_campaign (campaign_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS autoresponders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(150) NOT NULL,
		trigger_type VARCHAR(20) NOT NULL,
		trigger_value JSON,
		response_message TEXT,
		template_id BIGINT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		delay_minutes INT NOT NULL DEFAULT 0,
		max_triggers_per_number INT NOT NULL DEFAULT 0,
		conditions JSON,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_autoresponders_trigger (is_active, trigger_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS trigger_events (
		id CHAR(26) PRIMARY KEY,
		autoresponder_id BIGINT NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		trigger_type VARCHAR(20) NOT NULL,
		trigger_data JSON,
		occurred_at DATETIME NOT NULL,
		INDEX idx_trigger_events_autoresponder (autoresponder_id, phone_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS automation_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		autoresponder_id BIGINT NOT NULL,
		trigger_event_id CHAR(26) NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		message_id VARCHAR(100),
		carrier_used VARCHAR(30),
		execution_time_ms BIGINT NOT NULL DEFAULT 0,
		error_message TEXT,
		context_data JSON,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_automation_logs_cap (autoresponder_id, phone_number, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS pending_replies (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		autoresponder_id BIGINT NOT NULL,
		automation_log_id BIGINT NOT NULL,
		trigger_event_id CHAR(26) NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		trigger_data JSON,
		due_at DATETIME NOT NULL,
		INDEX idx_pending_replies_due (due_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

func RunMigrations(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logger.Infof("Database migrations completed (%d statements)", len(migrations))

	return nil
}
