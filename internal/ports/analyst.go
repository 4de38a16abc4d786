package ports

import "context"

// ReportGenerator defines the interface for the narrative-analysis
// collaborator (an LLM service). The payload is a pre-formatted prompt built
// by the report formatter; the result is the final message text.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers out-of-band messages (alerts, degradation notices) to a
// chat. The bot adapter implements it; the monitor only depends on this.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}
