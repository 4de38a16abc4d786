package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
)

// Service is what the chat surface needs from the application core: report
// generation and monitor control. internal/app implements it.
type Service interface {
	AnalyzeSymbol(ctx context.Context, chatID int64, symbol string, kind domain.ReportKind) (string, error)
	ToggleMonitor(ctx context.Context, chatID int64, symbol string) bool
	MonitorEnabled(chatID int64) bool
	AlertHistory(ctx context.Context, chatID int64, limit int) (string, error)
}

// Config holds configuration for the Telegram bot.
type Config struct {
	Token          string
	DefaultSymbol  string
	AllowedUserIDs []int64 // Empty means open access
	Logger         ports.Logger
}

// Bot is the Telegram chat interface: command and callback dispatch plus
// outbound delivery. It also implements ports.Notifier for the alert monitor.
type Bot struct {
	api           *tgbotapi.BotAPI
	logger        ports.Logger
	service       Service
	defaultSymbol string
	allowed       map[int64]bool

	mu       sync.Mutex
	selected map[int64]string // per-chat symbol chosen from the asset menu
}

// New creates the Telegram bot. The service is attached separately because
// the application core needs the bot as its notifier.
func New(cfg Config) (*Bot, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram bot")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("Telegram bot token is required: %w", ports.ErrConfigurationError)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	allowed := make(map[int64]bool, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		allowed[id] = true
	}

	return &Bot{
		api:           api,
		logger:        cfg.Logger,
		defaultSymbol: cfg.DefaultSymbol,
		allowed:       allowed,
		selected:      make(map[int64]string),
	}, nil
}

// AttachService wires the application core in. Must be called before Run.
func (b *Bot) AttachService(svc Service) {
	b.service = svc
}

// Run processes Telegram updates until the context is cancelled. Each update
// is handled on its own goroutine so a long report generation never blocks a
// monitor toggle.
func (b *Bot) Run(ctx context.Context) error {
	if b.service == nil {
		return fmt.Errorf("bot service not attached")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info(ctx, "Telegram bot listening for updates", map[string]interface{}{"username": b.api.Self.UserName})

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.dispatch(ctx, update)
		}
	}
}

// Notify implements ports.Notifier. Alerts and notices are sent as HTML.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	return b.sendHTML(chatID, text)
}

func (b *Bot) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat %d: %w", chatID, err)
	}
	return nil
}

func (b *Bot) sendHTMLWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat %d: %w", chatID, err)
	}
	return nil
}

// isAuthorized gates access by user ID. An empty allow-list leaves the bot open.
func (b *Bot) isAuthorized(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	return b.allowed[userID]
}

// symbolFor returns the chat's selected symbol, falling back to the default.
func (b *Bot) symbolFor(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.selected[chatID]; ok {
		return s
	}
	return b.defaultSymbol
}

func (b *Bot) selectSymbol(chatID int64, symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected[chatID] = symbol
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !b.isAuthorized(msg.From.ID) {
		b.logger.Warn(ctx, "Unauthorized command attempt", map[string]interface{}{"chatID": msg.Chat.ID})
		return
	}

	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.showAssetMenu(ctx, chatID)
	case "analyze":
		symbol := args
		if symbol == "" {
			symbol = b.symbolFor(chatID)
		}
		b.runAnalysis(ctx, chatID, symbol, domain.ReportQuick)
	case "deep_dive":
		symbol := args
		if symbol == "" {
			symbol = b.symbolFor(chatID)
		}
		b.runAnalysis(ctx, chatID, symbol, domain.ReportDeepDive)
	case "monitor":
		b.toggleMonitor(ctx, chatID)
	default:
		if err := b.sendHTML(chatID, "Unknown command. Try /start."); err != nil {
			b.logger.Error(ctx, err, "Failed to send reply", map[string]interface{}{"chatID": chatID})
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || !b.isAuthorized(q.From.ID) {
		callback := tgbotapi.NewCallbackWithAlert(q.ID, "❌ Access denied.")
		if _, err := b.api.Request(callback); err != nil {
			b.logger.Error(ctx, err, "Failed to answer callback query")
		}
		return
	}

	// Acknowledge early so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Error(ctx, err, "Failed to answer callback query")
	}

	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	data := q.Data

	switch {
	case strings.HasPrefix(data, "select_"):
		symbol := strings.TrimPrefix(data, "select_")
		b.selectSymbol(chatID, symbol)
		edit := tgbotapi.NewEditMessageTextAndMarkup(
			chatID, q.Message.MessageID,
			fmt.Sprintf("✅ <b>Selected: %s</b>\n\nWhat kind of analysis?", symbol),
			b.actionMenu(symbol),
		)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error(ctx, err, "Failed to edit message", map[string]interface{}{"chatID": chatID})
		}
	case data == "back_to_main":
		edit := tgbotapi.NewEditMessageTextAndMarkup(
			chatID, q.Message.MessageID,
			assetMenuText,
			b.assetMenu(chatID),
		)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error(ctx, err, "Failed to edit message", map[string]interface{}{"chatID": chatID})
		}
	case strings.HasPrefix(data, "analyze_"):
		b.runAnalysis(ctx, chatID, strings.TrimPrefix(data, "analyze_"), domain.ReportQuick)
	case strings.HasPrefix(data, "deep_"):
		b.runAnalysis(ctx, chatID, strings.TrimPrefix(data, "deep_"), domain.ReportDeepDive)
	case data == "monitor_toggle":
		b.toggleMonitor(ctx, chatID)
	}
}

const assetMenuText = "🚀 <b>Aether-Quant Bot: Pick an Asset</b>\n\nWhich market should I analyze?\nI read the institutional flows."

// alertHistoryLimit caps the recent-alert block appended to the enable reply.
const alertHistoryLimit = 5

func (b *Bot) assetMenu(chatID int64) tgbotapi.InlineKeyboardMarkup {
	monitorLabel := "🔔 Monitor: OFF"
	if b.service.MonitorEnabled(chatID) {
		monitorLabel = "🔔 Monitor: ON"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🪙 BTC/USDT (Crypto)", "select_BTC/USDT"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🥇 XAU/USDT (Gold)", "select_XAU/USDT"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(monitorLabel, "monitor_toggle"),
		),
	)
}

func (b *Bot) actionMenu(symbol string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📡 Analyze: %s", symbol), "analyze_"+symbol),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🕵️ Deep Dive: %s", symbol), "deep_"+symbol),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Main Menu", "back_to_main"),
		),
	)
}

func (b *Bot) showAssetMenu(ctx context.Context, chatID int64) {
	if err := b.sendHTMLWithMarkup(chatID, assetMenuText, b.assetMenu(chatID)); err != nil {
		b.logger.Error(ctx, err, "Failed to send asset menu", map[string]interface{}{"chatID": chatID})
	}
}

// runAnalysis drives a one-shot report: progress message, service call,
// report delivery, then the action menu again for convenience. All errors
// from the service render as user-facing messages here at the boundary.
func (b *Bot) runAnalysis(ctx context.Context, chatID int64, symbol string, kind domain.ReportKind) {
	progress := fmt.Sprintf("🔍 Checking institutional flows for %s...", symbol)
	if kind == domain.ReportDeepDive {
		progress = fmt.Sprintf("🕵️ <b>Deep dive on %s started</b>...\nScanning for dark pools and iceberg orders...", symbol)
	}
	if err := b.sendHTML(chatID, progress); err != nil {
		b.logger.Error(ctx, err, "Failed to send progress message", map[string]interface{}{"chatID": chatID})
	}

	text, err := b.service.AnalyzeSymbol(ctx, chatID, symbol, kind)
	if err != nil {
		if sendErr := b.sendHTML(chatID, renderError(symbol, err)); sendErr != nil {
			b.logger.Error(ctx, sendErr, "Failed to send error reply", map[string]interface{}{"chatID": chatID})
		}
		return
	}

	if err := b.sendHTML(chatID, text); err != nil {
		b.logger.Error(ctx, err, "Failed to send report", map[string]interface{}{"chatID": chatID})
		return
	}
	if err := b.sendHTMLWithMarkup(chatID, "🔄 <b>Next move?</b>", b.actionMenu(symbol)); err != nil {
		b.logger.Error(ctx, err, "Failed to send action menu", map[string]interface{}{"chatID": chatID})
	}
}

func (b *Bot) toggleMonitor(ctx context.Context, chatID int64) {
	symbol := b.symbolFor(chatID)
	enabled := b.service.ToggleMonitor(ctx, chatID, symbol)

	var text string
	if enabled {
		text = fmt.Sprintf("✅ Monitor mode enabled for %s. Scanning every cycle...", symbol)
		if history, err := b.service.AlertHistory(ctx, chatID, alertHistoryLimit); err != nil {
			b.logger.Warn(ctx, "Failed to load alert history", map[string]interface{}{
				"chatID": chatID, "error": err.Error(),
			})
		} else {
			text += "\n\n" + history
		}
	} else {
		text = "🛑 Monitor mode disabled."
	}
	if err := b.sendHTMLWithMarkup(chatID, text, b.assetMenu(chatID)); err != nil {
		b.logger.Error(ctx, err, "Failed to send monitor reply", map[string]interface{}{"chatID": chatID})
	}
}

// renderError maps core errors onto user-facing messages at the command boundary.
func renderError(symbol string, err error) string {
	switch {
	case errors.Is(err, ports.ErrSymbolNotFound):
		return fmt.Sprintf("⚠️ Symbol <code>%s</code> was not found on the exchange.", symbol)
	case errors.Is(err, ports.ErrInsufficientData):
		return fmt.Sprintf("⚠️ Not enough market data for %s yet. Try again shortly.", symbol)
	case errors.Is(err, ports.ErrReportGeneration), errors.Is(err, ports.ErrRateLimited):
		return "⚠️ Report generation failed, please try again."
	case errors.Is(err, ports.ErrExchangeUnavailable), errors.Is(err, ports.ErrConnectionFailed), errors.Is(err, ports.ErrTimeout):
		return fmt.Sprintf("⚠️ Exchange data for %s is temporarily unavailable. Try again shortly.", symbol)
	default:
		return fmt.Sprintf("⚠️ Error: %v", err)
	}
}
