package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/Vaibhavk18/backtesting-platform/internal/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	one        = decimal.NewFromInt(1)
	bpsDivisor = decimal.NewFromInt(10000)
)

// Simulator replays a strategy against historical candles bar by bar. Each
// run owns its capital, position and trade ledger exclusively; concurrent
// backtests use independent instances and share nothing.
type Simulator struct {
	cfg     *model.StrategyConfig
	market  MarketConfig
	logger  *zap.Logger
	initial decimal.Decimal

	capital    decimal.Decimal
	position   decimal.Decimal // quantity held, zero when flat
	entryPrice decimal.Decimal // defined iff position > 0

	trades      []model.SimulatedTrade
	equityCurve []decimal.Decimal
	funding     []model.FundingPayment

	// Optional hooks for progress/trade notifications during async runs.
	OnProgress func(bar, total int)
	OnTrade    func(model.SimulatedTrade)
}

func NewSimulator(cfg *model.StrategyConfig, initialCapital decimal.Decimal, logger *zap.Logger) (*Simulator, error) {
	if err := strategy.Validate(cfg); err != nil {
		return nil, err
	}
	if !initialCapital.IsPositive() {
		return nil, model.NewConfigError("initial capital must be positive, got %s", initialCapital)
	}
	market, err := GetMarketConfig(cfg.MarketType)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:         cfg,
		market:      market,
		logger:      logger,
		initial:     initialCapital,
		capital:     initialCapital,
		position:    decimal.Zero,
		trades:      make([]model.SimulatedTrade, 0),
		equityCurve: make([]decimal.Decimal, 0),
		funding:     make([]model.FundingPayment, 0),
	}, nil
}

// Run executes the full backtest. The per-bar transition order is fixed:
// funding, entry, stop-loss/take-profit, exit, equity mark. Any failure
// aborts the run; no partial result is returned.
func (s *Simulator) Run(ctx context.Context, candles []model.Candle) (*model.BacktestResult, error) {
	if len(candles) == 0 {
		return nil, &model.DataError{Msg: "empty candle sequence"}
	}
	for i, c := range candles {
		if !c.Close.IsPositive() {
			return nil, &model.DataError{Msg: fmt.Sprintf("non-positive close at bar %d", i)}
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return nil, &model.DataError{Msg: fmt.Sprintf("timestamps not strictly increasing at bar %d", i)}
		}
	}

	signals, _, err := strategy.GenerateSignals(model.Closes(candles), s.cfg)
	if err != nil {
		return nil, err
	}

	for i, candle := range candles {
		if err := ctx.Err(); err != nil {
			return nil, &model.ComputationError{Stage: "simulation", Bar: i, Err: err}
		}
		s.step(candle, signals[i], i)
		if s.OnProgress != nil {
			s.OnProgress(i, len(candles))
		}
	}

	result := s.buildResult(signals)
	s.logger.Info("backtest complete",
		zap.String("strategy", s.cfg.Name),
		zap.Int("bars", len(candles)),
		zap.Int("trades", len(s.trades)),
		zap.String("final_capital", result.FinalCapital.String()),
	)
	return result, nil
}

func (s *Simulator) step(candle model.Candle, signal model.Signal, bar int) {
	price := candle.Close

	// 1. Funding on perpetuals while holding.
	if s.cfg.MarketType == model.MarketPerp && s.position.IsPositive() {
		payment := s.fundingPayment(s.position.Mul(price))
		s.capital = s.capital.Sub(payment)
		s.funding = append(s.funding, model.FundingPayment{
			Timestamp: candle.Timestamp,
			Amount:    payment,
		})
	}

	switch {
	// 2. Flat and told to enter: size, price and gate the order on capital.
	case s.position.IsZero() && signal == model.SignalEnter:
		s.tryEnter(candle, bar)

	case s.position.IsPositive():
		// 3. Stop-loss / take-profit are checked every held bar, stop-loss
		// first on a tie.
		if closed := s.checkStops(candle); closed {
			break
		}
		// 4. Exit signal closes the full position.
		if signal == model.SignalExit {
			s.closePosition(candle, model.TradeSell)
		}
	}

	// 5. Mark to market, every bar.
	equity := s.capital.Add(s.position.Mul(price))
	s.equityCurve = append(s.equityCurve, equity)
}

func (s *Simulator) tryEnter(candle model.Candle, bar int) {
	price := candle.Close
	leverage := s.market.Leverage
	allocation := decimal.NewFromFloat(s.cfg.Allocation)
	quantity := s.capital.Mul(allocation).Div(price).Mul(leverage)

	fill := s.fillPrice(price, true)
	cost := s.orderCost(fill, quantity)

	if cost.GreaterThan(s.capital) {
		// Admission control, not an error: the signal is dropped.
		infrastructure.InsufficientCapitalSkips.WithLabelValues(string(s.cfg.MarketType)).Inc()
		s.logger.Debug("entry skipped, cost exceeds capital",
			zap.Int("bar", bar),
			zap.String("cost", cost.String()),
			zap.String("capital", s.capital.String()),
		)
		return
	}

	s.position = quantity
	s.capital = s.capital.Sub(cost)
	s.entryPrice = fill
	lev, _ := leverage.Float64()
	s.record(model.SimulatedTrade{
		Timestamp:  candle.Timestamp,
		Type:       model.TradeBuy,
		Price:      fill,
		Quantity:   quantity,
		Cost:       cost,
		MarketType: s.cfg.MarketType,
		Leverage:   lev,
	})
}

// checkStops closes the position when the stop-loss or take-profit level is
// crossed. Reports whether the position was closed.
func (s *Simulator) checkStops(candle model.Candle) bool {
	price := candle.Close
	if s.cfg.StopLoss != nil {
		limit := s.entryPrice.Mul(one.Sub(decimal.NewFromFloat(*s.cfg.StopLoss)))
		if price.LessThanOrEqual(limit) {
			s.closePosition(candle, model.TradeSellSL)
			return true
		}
	}
	if s.cfg.TakeProfit != nil {
		limit := s.entryPrice.Mul(one.Add(decimal.NewFromFloat(*s.cfg.TakeProfit)))
		if price.GreaterThanOrEqual(limit) {
			s.closePosition(candle, model.TradeSellTP)
			return true
		}
	}
	return false
}

func (s *Simulator) closePosition(candle model.Candle, tradeType model.TradeType) {
	fill := s.fillPrice(candle.Close, false)
	revenue := s.orderCost(fill, s.position)
	s.capital = s.capital.Add(revenue)
	s.record(model.SimulatedTrade{
		Timestamp:  candle.Timestamp,
		Type:       tradeType,
		Price:      fill,
		Quantity:   s.position,
		Revenue:    revenue,
		MarketType: s.cfg.MarketType,
	})
	s.position = decimal.Zero
	s.entryPrice = decimal.Zero
}

func (s *Simulator) record(trade model.SimulatedTrade) {
	s.trades = append(s.trades, trade)
	if s.OnTrade != nil {
		s.OnTrade(trade)
	}
}

// fillPrice applies slippage and fee basis points to the raw price. Both
// widen the price on a buy and narrow it on a sell; limit orders skip the
// slippage adjustment.
func (s *Simulator) fillPrice(price decimal.Decimal, isBuy bool) decimal.Decimal {
	slippage := decimal.NewFromFloat(s.cfg.SlippageBps).Div(bpsDivisor)
	fee := decimal.NewFromFloat(s.cfg.FeeBps).Div(bpsDivisor)
	if s.cfg.OrderType == model.OrderLimit {
		slippage = decimal.Zero
	}
	if isBuy {
		return price.Mul(one.Add(slippage)).Mul(one.Add(fee))
	}
	return price.Mul(one.Sub(slippage)).Mul(one.Sub(fee))
}

// orderCost is the capital consumed by (or released to) an order: margined
// notional on perp/future, full notional otherwise.
func (s *Simulator) orderCost(fill, quantity decimal.Decimal) decimal.Decimal {
	notional := fill.Mul(quantity)
	if s.cfg.MarketType == model.MarketPerp || s.cfg.MarketType == model.MarketFuture {
		return notional.Mul(s.market.MarginRequirement)
	}
	return notional
}

func (s *Simulator) fundingPayment(positionValue decimal.Decimal) decimal.Decimal {
	hoursFactor := decimal.NewFromFloat(s.market.FundingHours / 8.0)
	return positionValue.Mul(s.market.FundingRate).Mul(hoursFactor)
}

func (s *Simulator) buildResult(signals []model.Signal) *model.BacktestResult {
	returns := pctChange(s.equityCurve)
	final := s.equityCurve[len(s.equityCurve)-1]

	return &model.BacktestResult{
		StrategyName:    s.cfg.Name,
		InitialCapital:  s.initial,
		FinalCapital:    final,
		TotalReturn:     final.Sub(s.initial).Div(s.initial),
		SharpeRatio:     annualizedSharpe(returns),
		MaxDrawdown:     maxDrawdown(s.equityCurve),
		Trades:          s.trades,
		EquityCurve:     s.equityCurve,
		Returns:         returns,
		Signals:         signals,
		FundingPayments: s.funding,
		MarketType:      s.cfg.MarketType,
	}
}

// pctChange is the bar-over-bar percentage change of the equity curve, with
// the first element dropped.
func pctChange(equity []decimal.Decimal) []float64 {
	if len(equity) < 2 {
		return []float64{}
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1].IsZero() {
			out = append(out, 0)
			continue
		}
		ret, _ := equity[i].Sub(equity[i-1]).Div(equity[i-1]).Float64()
		out = append(out, ret)
	}
	return out
}

// annualizedSharpe is mean/std of per-bar returns scaled by sqrt(252), using
// sample standard deviation. Zero when the deviation is zero.
func annualizedSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	std := math.Sqrt(sumSq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

// maxDrawdown is the minimum of equity/runningMax - 1; non-positive, zero
// only for a non-decreasing curve.
func maxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	runMax := equity[0]
	minDD := decimal.Zero
	for _, e := range equity {
		if e.GreaterThan(runMax) {
			runMax = e
		}
		dd := e.Div(runMax).Sub(one)
		if dd.LessThan(minDD) {
			minDD = dd
		}
	}
	return minDD
}
