package ports

import (
	"context"
	"time"

	"aetherquant/internal/domain"
)

// AlertRepository defines the interface for storing and retrieving fired alerts.
type AlertRepository interface {
	// CreateAlert saves a fired alert and returns its assigned ID.
	CreateAlert(ctx context.Context, alert *domain.Alert) (int64, error)
	// FindRecentAlerts retrieves the most recent alerts for a chat, up to a limit.
	FindRecentAlerts(ctx context.Context, chatID int64, limit int) ([]*domain.Alert, error)
	// LastFiredAt returns the time the last alert fired for a chat/symbol pair.
	// Returns the zero time if none has fired yet.
	LastFiredAt(ctx context.Context, chatID int64, symbol string) (time.Time, error)
}

// ReportRepository defines the interface for storing generated reports.
type ReportRepository interface {
	// CreateReport saves a generated report and returns its assigned ID.
	CreateReport(ctx context.Context, report *domain.Report) (int64, error)
	// CountTodayByChat counts reports generated today for a chat.
	CountTodayByChat(ctx context.Context, chatID int64) (int, error)
}
