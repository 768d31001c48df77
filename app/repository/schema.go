package repository

import (
	"context"
	"fmt"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		id CHAR(36) NOT NULL PRIMARY KEY,
		order_id VARCHAR(128) NOT NULL,
		amount_minor BIGINT NOT NULL,
		refunded_minor BIGINT NOT NULL DEFAULT 0,
		currency CHAR(3) NOT NULL,
		status VARCHAR(32) NOT NULL,
		provider VARCHAR(32) NOT NULL,
		external_transaction_id VARCHAR(255) NULL,
		checkout_url TEXT NULL,
		failure_reason VARCHAR(1024) NULL,
		version BIGINT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_payments_external_transaction_id (external_transaction_id),
		KEY idx_payments_order_id (order_id, created_at),
		KEY idx_payments_status_created_at (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		payment_id CHAR(36) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		old_status VARCHAR(32) NULL,
		new_status VARCHAR(32) NOT NULL,
		reason VARCHAR(1024) NULL,
		provider_event_id VARCHAR(255) NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_payment_events_payment_id (payment_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_callbacks (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		payment_id CHAR(36) NULL,
		provider VARCHAR(32) NOT NULL,
		provider_event_id VARCHAR(255) NULL,
		event_type VARCHAR(128) NULL,
		signature TEXT NOT NULL,
		payload_json MEDIUMTEXT NOT NULL,
		status INT NOT NULL,
		error VARCHAR(1024) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_payment_callbacks_provider_event_id (provider_event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT NOT NULL PRIMARY KEY,
		order_id TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		refunded_minor INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		provider TEXT NOT NULL,
		external_transaction_id TEXT NULL UNIQUE,
		checkout_url TEXT NULL,
		failure_reason TEXT NULL,
		version INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status_created_at ON payments (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		old_status TEXT NULL,
		new_status TEXT NOT NULL,
		reason TEXT NULL,
		provider_event_id TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_events_payment_id ON payment_events (payment_id)`,
	`CREATE TABLE IF NOT EXISTS payment_callbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_id TEXT NULL,
		provider TEXT NOT NULL,
		provider_event_id TEXT NULL,
		event_type TEXT NULL,
		signature TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		status INTEGER NOT NULL,
		error TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_callbacks_provider_event_id ON payment_callbacks (provider_event_id)`,
}

// Migrate creates the payment tables for the given driver if they do not exist.
func Migrate(ctx context.Context, db DBTX, driver string) error {
	var statements []string
	switch driver {
	case DriverMySQL:
		statements = mysqlSchema
	case DriverSQLite:
		statements = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
