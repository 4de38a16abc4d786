package domain

import "time"

// Alert represents a fired imbalance alert.
type Alert struct {
	ID             int64
	ChatID         int64
	Symbol         string
	Ratio          float64
	Classification Classification
	FiredAt        time.Time
}

// Report represents a generated analysis report delivered to a chat.
type Report struct {
	ID        int64
	ChatID    int64
	Symbol    string
	Kind      ReportKind
	Text      string
	CreatedAt time.Time
}
