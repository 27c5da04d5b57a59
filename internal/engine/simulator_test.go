package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func candlesFromCloses(closes []float64) []model.Candle {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, p := range closes {
		out[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Period:    "1h",
			Close:     decimal.NewFromFloat(p),
			Timestamp: now.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func emaCross() *model.StrategyConfig {
	entry := model.LogicNode{Condition: &model.Condition{
		Left:     model.Operand{Name: "EMA_3", IsName: true},
		Operator: model.OpGT,
		Right:    model.Operand{Literal: 2.0},
	}}
	exit := model.LogicNode{Condition: &model.Condition{
		Left:     model.Operand{Name: "EMA_3", IsName: true},
		Operator: model.OpLT,
		Right:    model.Operand{Literal: 8.0},
	}}
	return &model.StrategyConfig{
		Name:       "ema cross",
		Indicators: []model.IndicatorSpec{{Kind: model.IndicatorEMA, Params: map[string]float64{"period": 3}}},
		Entry:      entry,
		Exit:       exit,
		OrderType:  model.OrderMarket,
		MarketType: model.MarketSpot,
		Allocation: 0.5,
	}
}

func runBacktest(t *testing.T, cfg *model.StrategyConfig, closes []float64, capital int64) *model.BacktestResult {
	t.Helper()
	sim, err := NewSimulator(cfg, decimal.NewFromInt(capital), zap.NewNop())
	require.NoError(t, err)
	result, err := sim.Run(context.Background(), candlesFromCloses(closes))
	require.NoError(t, err)
	return result
}

func TestSimulator_EndToEndScenario(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	result := runBacktest(t, emaCross(), closes, 1000)

	require.Len(t, result.EquityCurve, 10)
	require.Len(t, result.Returns, 9)
	require.Len(t, result.Signals, 10)

	// EMA_3 stays above 2 from some bar onward, so exactly one entry; the
	// exit condition (EMA_3 < 8) is only reachable while entry is false, and
	// entry wins ties, so at most one closing trade follows.
	var buys, sells int
	for _, tr := range result.Trades {
		switch tr.Type {
		case model.TradeBuy:
			buys++
		default:
			sells++
		}
	}
	assert.Equal(t, 1, buys)
	assert.LessOrEqual(t, sells, 1)
	if len(result.Trades) > 0 {
		assert.Equal(t, model.TradeBuy, result.Trades[0].Type)
	}
	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.True(t, final.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, result.FinalCapital.Equal(final))
}

func TestSimulator_Determinism(t *testing.T) {
	closes := []float64{5, 6, 4, 7, 8, 3, 9, 10, 2, 11}

	first := runBacktest(t, emaCross(), closes, 1000)
	second := runBacktest(t, emaCross(), closes, 1000)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestSimulator_CapitalGating(t *testing.T) {
	cfg := emaCross()
	cfg.Allocation = 1.0
	cfg.FeeBps = 100 // with full allocation the fee pushes cost above capital

	result := runBacktest(t, cfg, []float64{1, 2, 3, 4, 5, 6}, 1000)

	assert.Empty(t, result.Trades, "gated entries must not record trades")
	// Flat throughout: equity equals capital on every bar.
	for _, e := range result.EquityCurve {
		assert.True(t, e.Equal(decimal.NewFromInt(1000)))
	}
}

func TestSimulator_SpotCostAndEquity(t *testing.T) {
	// No slippage, no fees: entry at close=3 with allocation 0.6 buys
	// qty = 1000*0.6/3 = 200 for cost = 600, leaving 400 capital. The
	// division is exact, so the math below is too.
	cfg := emaCross()
	cfg.Allocation = 0.6
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	result := runBacktest(t, cfg, closes, 1000)

	require.NotEmpty(t, result.Trades)
	buy := result.Trades[0]
	assert.Equal(t, model.TradeBuy, buy.Type)
	assert.True(t, buy.Quantity.Equal(decimal.NewFromInt(200)), "qty = %s", buy.Quantity)
	assert.True(t, buy.Cost.Equal(decimal.NewFromInt(600)), "cost = %s", buy.Cost)
	assert.Equal(t, 1.0, buy.Leverage)

	// Equity on the entry bar is unchanged by a frictionless fill.
	entryBar := -1
	for i, s := range result.Signals {
		if s == model.SignalEnter {
			entryBar = i
			break
		}
	}
	require.GreaterOrEqual(t, entryBar, 0)
	assert.True(t, result.EquityCurve[entryBar].Equal(decimal.NewFromInt(1000)))

	// Post-entry equity marks the open position: 400 + 200*close.
	assert.True(t, result.EquityCurve[entryBar+1].Equal(decimal.NewFromInt(400+200*4)))
}

func TestSimulator_PerpFundingAndMargin(t *testing.T) {
	cfg := emaCross()
	cfg.Allocation = 0.6
	cfg.MarketType = model.MarketPerp

	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	result := runBacktest(t, cfg, closes, 1000)

	require.NotEmpty(t, result.Trades)
	buy := result.Trades[0]
	// Perp: qty is levered 10x and the cost is margined at 10%, so the cash
	// outlay equals the spot outlay while the position is 10x larger.
	assert.True(t, buy.Quantity.Equal(decimal.NewFromInt(2000)), "qty = %s", buy.Quantity)
	assert.True(t, buy.Cost.Equal(decimal.NewFromInt(600)), "cost = %s", buy.Cost)
	assert.Equal(t, 10.0, buy.Leverage)

	// Funding accrues on every held bar after the entry bar.
	assert.NotEmpty(t, result.FundingPayments)
	for _, fp := range result.FundingPayments {
		assert.True(t, fp.Amount.IsPositive())
	}
}

func TestSimulator_NoFundingOnSpot(t *testing.T) {
	result := runBacktest(t, emaCross(), []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 1000)
	assert.Empty(t, result.FundingPayments)
}

func TestSimulator_StopLoss(t *testing.T) {
	cfg := emaCross()
	sl := 0.1
	cfg.StopLoss = &sl

	// Enter on the rise, then crash 50%: the stop closes the position.
	closes := []float64{1, 5, 6, 7, 3, 3, 3, 3}
	result := runBacktest(t, cfg, closes, 1000)

	require.GreaterOrEqual(t, len(result.Trades), 2)
	assert.Equal(t, model.TradeBuy, result.Trades[0].Type)
	assert.Equal(t, model.TradeSellSL, result.Trades[1].Type)
}

func TestSimulator_TakeProfit(t *testing.T) {
	cfg := emaCross()
	tp := 0.2
	cfg.TakeProfit = &tp
	// Exit logic that never triggers, so only the take-profit can close.
	cfg.Exit = model.LogicNode{Condition: &model.Condition{
		Left:     model.Operand{Name: "EMA_3", IsName: true},
		Operator: model.OpLT,
		Right:    model.Operand{Literal: -1},
	}}

	closes := []float64{1, 5, 6, 7, 20, 20, 20}
	result := runBacktest(t, cfg, closes, 1000)

	require.GreaterOrEqual(t, len(result.Trades), 2)
	assert.Equal(t, model.TradeBuy, result.Trades[0].Type)
	assert.Equal(t, model.TradeSellTP, result.Trades[1].Type)
}

func TestSimulator_StopLossWinsTie(t *testing.T) {
	cfg := emaCross()
	// Zero-width brackets: a bar at the entry price triggers both levels;
	// stop-loss is checked first.
	zero := 0.0
	cfg.StopLoss = &zero
	cfg.TakeProfit = &zero

	closes := []float64{1, 5, 5, 5}
	result := runBacktest(t, cfg, closes, 1000)

	require.GreaterOrEqual(t, len(result.Trades), 2)
	assert.Equal(t, model.TradeSellSL, result.Trades[1].Type)
}

func TestSimulator_SlippageAndFeesWidenBuys(t *testing.T) {
	cfg := emaCross()
	cfg.SlippageBps = 10
	cfg.FeeBps = 10

	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	result := runBacktest(t, cfg, closes, 1000)

	require.NotEmpty(t, result.Trades)
	buy := result.Trades[0]
	rawPrice := decimal.NewFromInt(3)
	assert.True(t, buy.Price.GreaterThan(rawPrice), "buy fill must be above the raw close")

	// fill = 3 * 1.001 * 1.001
	want := rawPrice.Mul(decimal.NewFromFloat(1.001)).Mul(decimal.NewFromFloat(1.001))
	assert.True(t, buy.Price.Equal(want), "fill = %s, want %s", buy.Price, want)
}

func TestSimulator_LimitOrderSkipsSlippage(t *testing.T) {
	cfg := emaCross()
	cfg.OrderType = model.OrderLimit
	cfg.SlippageBps = 500
	cfg.FeeBps = 10

	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	result := runBacktest(t, cfg, closes, 1000)

	require.NotEmpty(t, result.Trades)
	want := decimal.NewFromInt(3).Mul(decimal.NewFromFloat(1.001))
	assert.True(t, result.Trades[0].Price.Equal(want), "limit fill must apply fee only")
}

func TestSimulator_MaxDrawdownProperties(t *testing.T) {
	nonDecreasing := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(150),
	}
	assert.True(t, maxDrawdown(nonDecreasing).IsZero())

	dipping := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(50), decimal.NewFromInt(120),
	}
	dd := maxDrawdown(dipping)
	assert.True(t, dd.LessThan(decimal.Zero))
	assert.True(t, dd.Equal(decimal.NewFromFloat(-0.5)), "dd = %s", dd)
}

func TestSimulator_EmptyCandles(t *testing.T) {
	sim, err := NewSimulator(emaCross(), decimal.NewFromInt(1000), zap.NewNop())
	require.NoError(t, err)
	_, err = sim.Run(context.Background(), nil)
	require.Error(t, err)
	var dataErr *model.DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestSimulator_MalformedCandles(t *testing.T) {
	sim, err := NewSimulator(emaCross(), decimal.NewFromInt(1000), zap.NewNop())
	require.NoError(t, err)

	candles := candlesFromCloses([]float64{1, 2, 3})
	candles[2].Timestamp = candles[1].Timestamp
	_, err = sim.Run(context.Background(), candles)
	var dataErr *model.DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestSimulator_InvalidConfigRejected(t *testing.T) {
	cfg := emaCross()
	cfg.Allocation = 0
	_, err := NewSimulator(cfg, decimal.NewFromInt(1000), zap.NewNop())
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSimulator_Cancellation(t *testing.T) {
	sim, err := NewSimulator(emaCross(), decimal.NewFromInt(1000), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Run(ctx, candlesFromCloses([]float64{1, 2, 3}))
	require.Error(t, err)
	var compErr *model.ComputationError
	assert.ErrorAs(t, err, &compErr)
}

func TestSimulator_TradeHook(t *testing.T) {
	sim, err := NewSimulator(emaCross(), decimal.NewFromInt(1000), zap.NewNop())
	require.NoError(t, err)

	var seen []model.TradeType
	sim.OnTrade = func(tr model.SimulatedTrade) {
		seen = append(seen, tr.Type)
	}

	result, err := sim.Run(context.Background(), candlesFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	require.NoError(t, err)
	require.Len(t, seen, len(result.Trades))
	for i, tr := range result.Trades {
		assert.Equal(t, tr.Type, seen[i])
	}
}
