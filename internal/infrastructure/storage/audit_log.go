// Package storage keeps the optional delivery audit log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
)

const deliveriesTable = "deliveries"

// AuditLog appends one row per outbound delivery attempt.
type AuditLog struct {
	db *sql.DB
}

var _ ports.DeliveryLog = (*AuditLog)(nil)

// OpenAuditLog opens (creating if needed) the database at path and migrates it.
func OpenAuditLog(path string, logger *slog.Logger) (*AuditLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if err := migrateUp(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &AuditLog{db: db}, nil
}

// Record appends a delivery row.
func (a *AuditLog) Record(ctx context.Context, d domain.Delivery) error {
	if a == nil || a.db == nil {
		return nil
	}

	query, args, err := sq.Insert(deliveriesTable).
		Columns("kind", "recipient", "subject", "sent_at", "ok", "error_kind").
		Values(string(d.Kind), d.Recipient, d.Subject, d.SentAt.UTC().Unix(), d.OK, string(d.ErrorKind)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// Count returns the number of recorded deliveries.
func (a *AuditLog) Count(ctx context.Context) (int, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}

	query, args, err := sq.Select("COUNT(*)").From(deliveriesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

// Recent returns the latest deliveries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query, args, err := sq.Select("kind", "recipient", "subject", "sent_at", "ok", "error_kind").
		From(deliveriesTable).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var result []domain.Delivery
	for rows.Next() {
		var (
			d       domain.Delivery
			kind    string
			sentAt  int64
			errKind string
		)
		if err := rows.Scan(&kind, &d.Recipient, &d.Subject, &sentAt, &d.OK, &errKind); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Kind = domain.DeliveryKind(kind)
		d.SentAt = time.Unix(sentAt, 0).UTC()
		d.ErrorKind = domain.ErrorKind(errKind)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Close releases the database handle.
func (a *AuditLog) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
