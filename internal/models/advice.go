package models

// AdviceRequest — данные, которые отдаём советнику.
type AdviceRequest struct {
	Currency     string  `json:"currency"`
	Balance      float64 `json:"balance"`
	CurrentPrice float64 `json:"current_price"`
	Volatility   float64 `json:"volatility"`
	Volume24h    float64 `json:"volume_24h"`
	BidDepth     float64 `json:"bid_depth"`
	AskDepth     float64 `json:"ask_depth"`
	Spread       float64 `json:"spread"`
}

type Strategy string

const (
	StrategyMarket   Strategy = "market"
	StrategyLimit    Strategy = "limit"
	StrategyTWAP     Strategy = "twap"
	StrategyIceberg  Strategy = "iceberg"
	StrategyAdaptive Strategy = "adaptive"
)

func (s Strategy) Known() bool {
	switch s {
	case StrategyMarket, StrategyLimit, StrategyTWAP, StrategyIceberg, StrategyAdaptive:
		return true
	}
	return false
}

// Advice — подсказка советника. Никогда не обязательна.
type Advice struct {
	Strategy   Strategy       `json:"strategy"`
	Parameters map[string]any `json:"parameters"`
	Reasoning  string         `json:"reasoning"`
	Confidence float64        `json:"confidence"`
}
