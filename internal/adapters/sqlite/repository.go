package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aetherquant/internal/domain"
	"aetherquant/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.AlertRepository and ports.ReportRepository
// interfaces using SQLite. Persisting fired alerts keeps the cooldown
// comparison meaningful across process restarts.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/aetherquant.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		ratio REAL NOT NULL,
		classification TEXT NOT NULL,
		fired_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	-- Indexes for the cooldown lookup and per-chat history
	CREATE INDEX IF NOT EXISTS idx_alerts_chat_symbol_fired ON alerts (chat_id, symbol, fired_at);
	CREATE INDEX IF NOT EXISTS idx_reports_chat_created ON reports (chat_id, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- AlertRepository Implementation ---

// CreateAlert saves a fired alert and returns its assigned ID.
func (r *Repository) CreateAlert(ctx context.Context, alert *domain.Alert) (int64, error) {
	const query = `
	INSERT INTO alerts (chat_id, symbol, ratio, classification, fired_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		alert.ChatID, alert.Symbol, alert.Ratio, string(alert.Classification), alert.FiredAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert for chat %d symbol %s: %w: %w", alert.ChatID, alert.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for alert: %w", err)
	}
	alert.ID = id
	r.logger.Debug(ctx, "Alert persisted", map[string]interface{}{"alertID": id, "chatID": alert.ChatID, "symbol": alert.Symbol})
	return id, nil
}

// FindRecentAlerts retrieves the most recent alerts for a chat, up to a limit.
func (r *Repository) FindRecentAlerts(ctx context.Context, chatID int64, limit int) ([]*domain.Alert, error) {
	const query = `
	SELECT id, chat_id, symbol, ratio, classification, fired_at
	FROM alerts
	WHERE chat_id = ?
	ORDER BY fired_at DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts for chat %d: %w: %w", chatID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	alerts := make([]*domain.Alert, 0)
	for rows.Next() {
		var a domain.Alert
		var classification string
		if err := rows.Scan(&a.ID, &a.ChatID, &a.Symbol, &a.Ratio, &classification, &a.FiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Classification = domain.Classification(classification)
		alerts = append(alerts, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

// LastFiredAt returns the time the last alert fired for a chat/symbol pair.
// Returns the zero time if none has fired yet.
func (r *Repository) LastFiredAt(ctx context.Context, chatID int64, symbol string) (time.Time, error) {
	const query = `
	SELECT fired_at FROM alerts
	WHERE chat_id = ? AND symbol = ?
	ORDER BY fired_at DESC
	LIMIT 1`

	var firedAt time.Time
	err := r.db.QueryRowContext(ctx, query, chatID, symbol).Scan(&firedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil // No prior alert is not an error
		}
		return time.Time{}, fmt.Errorf("failed to query last fired time for chat %d symbol %s: %w: %w", chatID, symbol, ports.ErrQueryFailed, err)
	}
	return firedAt, nil
}

// --- ReportRepository Implementation ---

// CreateReport saves a generated report and returns its assigned ID.
func (r *Repository) CreateReport(ctx context.Context, report *domain.Report) (int64, error) {
	const query = `
	INSERT INTO reports (chat_id, symbol, kind, text, created_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		report.ChatID, report.Symbol, string(report.Kind), report.Text, report.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report for chat %d symbol %s: %w: %w", report.ChatID, report.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for report: %w", err)
	}
	report.ID = id
	r.logger.Debug(ctx, "Report persisted", map[string]interface{}{"reportID": id, "chatID": report.ChatID, "kind": report.Kind})
	return id, nil
}

// CountTodayByChat counts reports generated today (UTC) for a chat.
func (r *Repository) CountTodayByChat(ctx context.Context, chatID int64) (int, error) {
	const query = `
	SELECT COUNT(*) FROM reports
	WHERE chat_id = ? AND created_at >= ?`

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	var count int
	if err := r.db.QueryRowContext(ctx, query, chatID, startOfDay).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count today's reports for chat %d: %w: %w", chatID, ports.ErrQueryFailed, err)
	}
	return count, nil
}
