package domain

// TradeSide represents the aggressor side of an executed trade (BUY or SELL).
type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

// Classification is the closed set of order-book read-outs produced by the
// indicator engine. Downstream consumers (formatter, monitor, tests) switch
// over it exhaustively instead of matching free-form strings.
type Classification string

const (
	ClassificationNeutral     Classification = "NEUTRAL"
	ClassificationBuyWall     Classification = "BUY_WALL"
	ClassificationSellWall    Classification = "SELL_WALL"
	ClassificationSellIceberg Classification = "SELL_ICEBERG"
)

// ReportKind distinguishes the one-shot quick report from the full deep dive.
type ReportKind string

const (
	ReportQuick    ReportKind = "quick"
	ReportDeepDive ReportKind = "deep_dive"
)
