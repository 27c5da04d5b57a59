package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Strategy 策略配置实体
type Strategy struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id,omitempty" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Config    json.RawMessage `json:"config" db:"config"` // 灵活存储配置
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type IndicatorKind string

const (
	IndicatorEMA  IndicatorKind = "EMA"
	IndicatorRSI  IndicatorKind = "RSI"
	IndicatorMACD IndicatorKind = "MACD"
)

// IndicatorSpec configures one indicator computation. Params are numeric
// (periods etc.); defaults are applied by the indicator library.
type IndicatorSpec struct {
	Kind   IndicatorKind      `json:"type"`
	Params map[string]float64 `json:"params"`
}

type Operator string

const (
	OpLT  Operator = "<"
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpGTE Operator = ">="
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// Operand is either a reference to a named indicator series or a numeric
// literal. Exactly one of the two is set.
type Operand struct {
	Name    string
	Literal float64
	IsName  bool
}

func (o *Operand) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Name = s
		o.IsName = true
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("operand must be an indicator name or a number: %s", data)
	}
	o.Literal = f
	return nil
}

func (o Operand) MarshalJSON() ([]byte, error) {
	if o.IsName {
		return json.Marshal(o.Name)
	}
	return json.Marshal(o.Literal)
}

type Condition struct {
	Left     Operand  `json:"left"`
	Operator Operator `json:"operator"`
	Right    Operand  `json:"right"`
}

// LogicNode is a tagged variant: a Condition leaf, an AND over children, or
// an OR over children. Exactly one of the three fields is populated.
type LogicNode struct {
	Condition *Condition  `json:"condition"`
	And       []LogicNode `json:"and"`
	Or        []LogicNode `json:"or"`
}

// MarshalJSON emits only the populated variant. An empty AND/OR group is a
// valid node, so nil and empty slices must stay distinguishable across a
// storage round trip; omitempty would collapse both to an absent key.
func (n LogicNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Condition != nil:
		return json.Marshal(struct {
			Condition *Condition `json:"condition"`
		}{n.Condition})
	case n.And != nil:
		return json.Marshal(struct {
			And []LogicNode `json:"and"`
		}{n.And})
	case n.Or != nil:
		return json.Marshal(struct {
			Or []LogicNode `json:"or"`
		}{n.Or})
	default:
		return []byte("{}"), nil
	}
}

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketPerp    MarketType = "perp"
	MarketFuture  MarketType = "future"
	MarketOptions MarketType = "options"
)

// StrategyConfig is the full declarative strategy accepted by the engine.
type StrategyConfig struct {
	Name        string          `json:"name"`
	Indicators  []IndicatorSpec `json:"indicators"`
	Entry       LogicNode       `json:"entry"`
	Exit        LogicNode       `json:"exit"`
	OrderType   OrderType       `json:"order_type"`
	MarketType  MarketType      `json:"market_type"`
	Allocation  float64         `json:"allocation"`  // fraction of capital, (0,1]
	SlippageBps float64         `json:"slippage"`    // basis points
	FeeBps      float64         `json:"fee"`         // basis points
	StopLoss    *float64        `json:"stop_loss"`   // fraction, e.g. 0.05
	TakeProfit  *float64        `json:"take_profit"` // fraction, e.g. 0.1
}

// Signal is the per-bar decision produced by the signal generator.
type Signal int

const (
	SignalHold  Signal = 0
	SignalEnter Signal = 1
	SignalExit  Signal = -1
)

type TradeType string

const (
	TradeBuy    TradeType = "BUY"
	TradeSell   TradeType = "SELL"
	TradeSellSL TradeType = "SELL_SL"
	TradeSellTP TradeType = "SELL_TP"
)

// SimulatedTrade 回测中的单笔交易记录
type SimulatedTrade struct {
	Timestamp  time.Time       `json:"timestamp"`
	Type       TradeType       `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`    // buys
	Revenue    decimal.Decimal `json:"revenue"` // sells
	MarketType MarketType      `json:"market_type"`
	Leverage   float64         `json:"leverage,omitempty"`
}

// FundingPayment records one periodic funding deduction on a perpetual.
type FundingPayment struct {
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
}

// BacktestResult 回测结果报告. Immutable once the run completes; the
// equity curve is aligned 1:1 with the input candles.
type BacktestResult struct {
	StrategyName    string            `json:"strategy_name"`
	InitialCapital  decimal.Decimal   `json:"initial_capital"`
	FinalCapital    decimal.Decimal   `json:"final_capital"`
	TotalReturn     decimal.Decimal   `json:"total_return"`
	SharpeRatio     float64           `json:"sharpe_ratio"`
	MaxDrawdown     decimal.Decimal   `json:"max_drawdown"`
	Trades          []SimulatedTrade  `json:"trades"`
	EquityCurve     []decimal.Decimal `json:"equity_curve"`
	Returns         []float64         `json:"returns"`
	Signals         []Signal          `json:"signals"`
	FundingPayments []FundingPayment  `json:"funding_payments"`
	MarketType      MarketType        `json:"market_type"`
}
