package report

import (
	"fmt"
	"strings"

	"aetherquant/internal/domain"
)

// SystemInstruction is the analyst persona passed to the LLM collaborator as
// the system prompt. The model is instructed to reply with Telegram-safe HTML
// because the bot sends every report with HTML parse mode.
const SystemInstruction = `Identity: You are "Aether-Quant", an analyst agent decoding institutional order flow from raw Level 2 data.

Core framework:
1. Liquidity sourcing: read buy walls and sell icebergs from the depth facts given.
2. Flow direction: interpret the imbalance ratio and delta-OFI together, never in isolation.
3. Momentum context: weigh RSI against VWAP distance before calling direction.

Tone and format:
- Decisive wording ("Detected", "Identified", "Confirmed"); never "I think".
- Telegram HTML only: <b>, <i>, <code>. No Markdown.
- Structure: a bold header, a Facts bullet list, a Read section, a one-line Conclusion.`

// Formatter turns indicator results into LLM prompt payloads and
// user-facing chat messages. It holds no state.
type Formatter struct{}

// New creates a report formatter.
func New() *Formatter {
	return &Formatter{}
}

// factsBlock renders the indicator numbers in the fixed order the prompt and
// the fallback report share.
func (f *Formatter) factsBlock(res *domain.IndicatorResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "symbol: %s\n", res.Symbol)
	fmt.Fprintf(&sb, "last_price: %.2f\n", res.Price)
	fmt.Fprintf(&sb, "vwap: %.2f\n", res.VWAP)
	fmt.Fprintf(&sb, "rsi: %.1f\n", res.RSI)
	fmt.Fprintf(&sb, "volume_imbalance_ratio: %.3f\n", res.ImbalanceRatio)
	fmt.Fprintf(&sb, "depth_imbalance: %.3f\n", res.DepthImbalance)
	fmt.Fprintf(&sb, "delta_ofi: %.3f\n", res.OFI)
	fmt.Fprintf(&sb, "classification: %s", res.Classification)
	return sb.String()
}

// BuildPrompt assembles the structured payload sent to the LLM for the given
// report kind.
func (f *Formatter) BuildPrompt(res *domain.IndicatorResult, kind domain.ReportKind) string {
	var sb strings.Builder
	switch kind {
	case domain.ReportDeepDive:
		sb.WriteString("Run a deep institutional-flow analysis. Pay specific attention to hidden liquidity (icebergs) and stop-hunt setups.\n\n")
	default:
		sb.WriteString("Run a quick institutional-flow read.\n\n")
	}
	sb.WriteString("Market facts (computed from live Level 2 data):\n")
	sb.WriteString(f.factsBlock(res))
	return sb.String()
}

// FallbackReport renders a plain HTML report from the raw numbers, used when
// the LLM collaborator is unavailable so the user still gets the facts.
func (f *Formatter) FallbackReport(res *domain.IndicatorResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s — Flow Snapshot</b>\n\n", res.Symbol)
	fmt.Fprintf(&sb, "<b>Facts:</b>\n")
	fmt.Fprintf(&sb, "• Price: <code>%.2f</code>\n", res.Price)
	fmt.Fprintf(&sb, "• VWAP: <code>%.2f</code>\n", res.VWAP)
	fmt.Fprintf(&sb, "• RSI: <code>%.1f</code>\n", res.RSI)
	fmt.Fprintf(&sb, "• Imbalance Ratio: <code>%.2f</code>\n", res.ImbalanceRatio)
	fmt.Fprintf(&sb, "• Delta OFI: <code>%.2f</code>\n", res.OFI)
	fmt.Fprintf(&sb, "\n<b>Read:</b> %s", classificationLine(res.Classification))
	return sb.String()
}

// AlertMessage renders the push notification for a threshold breach.
func (f *Formatter) AlertMessage(res *domain.IndicatorResult) string {
	switch res.Classification {
	case domain.ClassificationBuyWall:
		return fmt.Sprintf("🚀 <b>BUY WALL DETECTED</b> on %s!\nImbalance Ratio: %.2f", res.Symbol, res.ImbalanceRatio)
	case domain.ClassificationSellIceberg:
		return fmt.Sprintf("🧊 <b>SELL ICEBERG DETECTED</b> on %s!\nImbalance Ratio: %.2f", res.Symbol, res.ImbalanceRatio)
	default:
		return fmt.Sprintf("🚨 <b>SELL WALL DETECTED</b> on %s!\nImbalance Ratio: %.2f", res.Symbol, res.ImbalanceRatio)
	}
}

// AlertHistory renders recent fired alerts as an HTML block, newest first,
// shown when a chat enables monitoring.
func (f *Formatter) AlertHistory(alerts []*domain.Alert) string {
	if len(alerts) == 0 {
		return "<i>No alerts fired yet.</i>"
	}
	var sb strings.Builder
	sb.WriteString("<b>Recent alerts:</b>\n")
	for _, a := range alerts {
		fmt.Fprintf(&sb, "• %s %s ratio <code>%.2f</code> at %s\n",
			a.Symbol, a.Classification, a.Ratio, a.FiredAt.Format("Jan 2 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DegradedMessage renders the one-time notice sent after repeated fetch
// failures in the monitoring loop.
func (f *Formatter) DegradedMessage(symbol string, failures int) string {
	return fmt.Sprintf("⚠️ <b>Monitoring degraded</b> for %s: %d consecutive data-fetch failures. Retrying in the background.", symbol, failures)
}

func classificationLine(c domain.Classification) string {
	switch c {
	case domain.ClassificationBuyWall:
		return "Large resting bid depth concentrated near the best bid — support signal."
	case domain.ClassificationSellWall:
		return "Ask-side depth dominates the book — heavy sell pressure overhead."
	case domain.ClassificationSellIceberg:
		return "Ask depth replenishes as it is executed against — likely hidden seller."
	default:
		return "No dominant liquidity pattern in the current book."
	}
}
