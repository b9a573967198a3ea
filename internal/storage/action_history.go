package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// ActionHistoryStorage defines the interface for durable action execution records
type ActionHistoryStorage interface {
	// SaveExecution stores a completed action execution record
	SaveExecution(ctx context.Context, record *model.ActionExecutionRecord) error

	// Get retrieves an action execution record by ID
	Get(ctx context.Context, id string) (*model.ActionExecutionRecord, error)

	// List retrieves action execution records with pagination and filters
	List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*model.ActionExecutionRecord, error)

	// Count returns the total number of records matching the filters
	Count(ctx context.Context, filters map[string]interface{}) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error
}

// SQLiteActionHistory implements ActionHistoryStorage using SQLite
type SQLiteActionHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteActionHistory opens (or creates) a SQLite-backed action history store.
// An existing database is kept as-is so remediation history survives restarts.
func NewSQLiteActionHistory(logger *zap.Logger, dbPath string) (*SQLiteActionHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteActionHistory{
		logger: logger,
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteActionHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS action_history (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			alert_id TEXT NOT NULL,
			action TEXT NOT NULL,
			success INTEGER NOT NULL,
			message TEXT,
			details TEXT,
			attempts INTEGER NOT NULL,
			executed_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_action_history_rule_id ON action_history(rule_id);
		CREATE INDEX IF NOT EXISTS idx_action_history_alert_id ON action_history(alert_id);
		CREATE INDEX IF NOT EXISTS idx_action_history_action ON action_history(action);
		CREATE INDEX IF NOT EXISTS idx_action_history_executed_at ON action_history(executed_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// SaveExecution implements ActionHistoryStorage.SaveExecution
func (s *SQLiteActionHistory) SaveExecution(ctx context.Context, record *model.ActionExecutionRecord) error {
	var detailsStr string
	if len(record.Outcome.Details) > 0 {
		data, err := json.Marshal(record.Outcome.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome details: %w", err)
		}
		detailsStr = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_history (
			id, rule_id, rule_name, alert_id, action,
			success, message, details, attempts, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RuleID,
		record.RuleName,
		record.AlertID,
		string(record.Action),
		record.Outcome.Success,
		sql.NullString{String: record.Outcome.Message, Valid: record.Outcome.Message != ""},
		sql.NullString{String: detailsStr, Valid: detailsStr != ""},
		record.Attempts,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store action history: %w", err)
	}
	return nil
}

// Get implements ActionHistoryStorage.Get
func (s *SQLiteActionHistory) Get(ctx context.Context, id string) (*model.ActionExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			id, rule_id, rule_name, alert_id, action,
			success, message, details, attempts, executed_at
		FROM action_history
		WHERE id = ?`, id)

	record, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan action history: %w", err)
	}
	return record, nil
}

// List implements ActionHistoryStorage.List
func (s *SQLiteActionHistory) List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*model.ActionExecutionRecord, error) {
	query := "SELECT id, rule_id, rule_name, alert_id, action, success, message, details, attempts, executed_at FROM action_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	query += " ORDER BY executed_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list action history: %w", err)
	}
	defer rows.Close()

	var records []*model.ActionExecutionRecord
	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action history: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements ActionHistoryStorage.Count
func (s *SQLiteActionHistory) Count(ctx context.Context, filters map[string]interface{}) (int, error) {
	query := "SELECT COUNT(*) FROM action_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count action history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements ActionHistoryStorage.DeleteBefore
func (s *SQLiteActionHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM action_history WHERE executed_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete action history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old action history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteActionHistory) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*model.ActionExecutionRecord, error) {
	record := &model.ActionExecutionRecord{}
	var action string
	var message, details sql.NullString

	err := row.Scan(
		&record.ID,
		&record.RuleID,
		&record.RuleName,
		&record.AlertID,
		&action,
		&record.Outcome.Success,
		&message,
		&details,
		&record.Attempts,
		&record.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	record.Action = model.ActionKind(action)
	if message.Valid {
		record.Outcome.Message = message.String
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &record.Outcome.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome details: %w", err)
		}
	}

	return record, nil
}
