// Package analytics computes performance statistics from a completed
// backtest: equity-curve measures, risk ratios and trade-ledger metrics.
// Everything here is a pure function over already-computed series.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
)

const DefaultPeriodsPerYear = 252

// PnL is the absolute equity change over the run.
func PnL(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	return equity[len(equity)-1].Sub(equity[0])
}

// PnLPct is last/first - 1, exact in decimal.
func PnLPct(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 || equity[0].IsZero() {
		return decimal.Zero
	}
	return equity[len(equity)-1].Div(equity[0]).Sub(decimal.NewFromInt(1))
}

// CAGR annualizes the total growth over (n-1)/periodsPerYear years. Zero
// when the span covers no time.
func CAGR(equity []decimal.Decimal, periodsPerYear int) float64 {
	years := float64(len(equity)-1) / float64(periodsPerYear)
	if years <= 0 || len(equity) == 0 || equity[0].IsZero() {
		return 0
	}
	first, _ := equity[0].Float64()
	last, _ := equity[len(equity)-1].Float64()
	if first <= 0 {
		return 0
	}
	return math.Pow(last/first, 1/years) - 1
}

// Sharpe is the annualized ratio of mean excess return over its sample
// standard deviation. Zero when the deviation is zero.
func Sharpe(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	perPeriodRF := riskFreeRate / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - perPeriodRF
	}
	std := stdDev(excess)
	if std <= 0 {
		return 0
	}
	return math.Sqrt(float64(periodsPerYear)) * mean(excess) / std
}

// Sortino divides mean excess return by downside-only deviation. With no
// downside observations the deviation defaults to 1; a non-positive
// denominator yields 0.
func Sortino(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	denom := 1.0
	if len(downside) > 0 {
		denom = stdDev(downside)
	}
	if denom <= 0 {
		return 0
	}
	perPeriodRF := riskFreeRate / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - perPeriodRF
	}
	return math.Sqrt(float64(periodsPerYear)) * mean(excess) / denom
}

// MaxDrawdown is the minimum of equity/runningMax - 1.
func MaxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	runMax := equity[0]
	minDD := decimal.Zero
	for _, e := range equity {
		if e.GreaterThan(runMax) {
			runMax = e
		}
		if runMax.IsZero() {
			continue
		}
		dd := e.Div(runMax).Sub(one)
		if dd.LessThan(minDD) {
			minDD = dd
		}
	}
	return minDD
}

// VaR is the 100*alpha-th percentile of the returns distribution, the
// left-tail loss threshold. Linear interpolation between order statistics.
func VaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	rank := alpha * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// BetaToBTC is covariance(strategy, benchmark)/variance(benchmark). Nil when
// the series lengths differ or the benchmark variance is zero.
func BetaToBTC(strategyReturns, btcReturns []float64) *float64 {
	if len(strategyReturns) != len(btcReturns) || len(strategyReturns) < 2 {
		return nil
	}
	meanS := mean(strategyReturns)
	meanB := mean(btcReturns)

	var cov, varB float64
	for i := range strategyReturns {
		cov += (strategyReturns[i] - meanS) * (btcReturns[i] - meanB)
		varB += (btcReturns[i] - meanB) * (btcReturns[i] - meanB)
	}
	n := float64(len(strategyReturns) - 1)
	cov /= n
	varB /= n
	if varB <= 0 {
		return nil
	}
	beta := cov / varB
	return &beta
}

// TradeMetrics summarizes the trade ledger.
type TradeMetrics struct {
	WinRate     *float64 `json:"win_rate"`
	TradeCount  int      `json:"trade_count"`
	AvgDuration *float64 `json:"avg_duration"`
	Turnover    *float64 `json:"turnover"`
}

// ComputeTradeMetrics pairs the i-th BUY with the i-th SELL-variant
// positionally. The pairing is sound because the simulator's flat/long
// machine strictly alternates entries and closes. A pair wins when
// (sellPrice - buyPrice) * quantity is positive. Durations fall back to one
// unit when a timestamp is unset.
func ComputeTradeMetrics(trades []model.SimulatedTrade) TradeMetrics {
	if len(trades) == 0 {
		return TradeMetrics{}
	}

	var buys, sells []model.SimulatedTrade
	for _, t := range trades {
		if strings.HasPrefix(string(t.Type), "BUY") {
			buys = append(buys, t)
		} else if strings.HasPrefix(string(t.Type), "SELL") {
			sells = append(sells, t)
		}
	}

	count := len(buys)
	if len(sells) < count {
		count = len(sells)
	}
	if count == 0 {
		turnover := sumTurnover(trades)
		return TradeMetrics{Turnover: &turnover}
	}

	wins := 0
	var durations []float64
	for i := 0; i < count; i++ {
		buy, sell := buys[i], sells[i]
		profit := sell.Price.Sub(buy.Price).Mul(buy.Quantity)
		if profit.IsPositive() {
			wins++
		}
		if buy.Timestamp.IsZero() || sell.Timestamp.IsZero() {
			durations = append(durations, 1)
		} else {
			durations = append(durations, sell.Timestamp.Sub(buy.Timestamp).Seconds())
		}
	}

	winRate := float64(wins) / float64(count)
	avgDuration := mean(durations)
	turnover := sumTurnover(trades)
	return TradeMetrics{
		WinRate:     &winRate,
		TradeCount:  count,
		AvgDuration: &avgDuration,
		Turnover:    &turnover,
	}
}

func sumTurnover(trades []model.SimulatedTrade) float64 {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Cost).Add(t.Revenue)
	}
	out, _ := total.Float64()
	return out
}

// AverageLeverage is the mean leverage across trades that declare one, nil
// if none do.
func AverageLeverage(trades []model.SimulatedTrade) *float64 {
	var leverages []float64
	for _, t := range trades {
		if t.Leverage > 0 {
			leverages = append(leverages, t.Leverage)
		}
	}
	if len(leverages) == 0 {
		return nil
	}
	avg := mean(leverages)
	return &avg
}

// Report is the full metrics payload served for a stored backtest.
type Report struct {
	PnL             decimal.Decimal `json:"pnl"`
	PnLPct          decimal.Decimal `json:"pnl_pct"`
	CAGR            float64         `json:"cagr"`
	Sharpe          float64         `json:"sharpe"`
	Sortino         float64         `json:"sortino"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	VaR             float64         `json:"var"`
	BetaToBTC       *float64        `json:"beta_to_btc"`
	TradeMetrics    TradeMetrics    `json:"trade_metrics"`
	AverageLeverage *float64        `json:"average_leverage"`
}

// BuildReport computes every metric from a stored result. btcReturns may be
// nil when no benchmark is available.
func BuildReport(result *model.BacktestResult, btcReturns []float64, periodsPerYear int) Report {
	return Report{
		PnL:             PnL(result.EquityCurve),
		PnLPct:          PnLPct(result.EquityCurve),
		CAGR:            CAGR(result.EquityCurve, periodsPerYear),
		Sharpe:          Sharpe(result.Returns, 0, periodsPerYear),
		Sortino:         Sortino(result.Returns, 0, periodsPerYear),
		MaxDrawdown:     MaxDrawdown(result.EquityCurve),
		VaR:             VaR(result.Returns, 0.05),
		BetaToBTC:       BetaToBTC(result.Returns, btcReturns),
		TradeMetrics:    ComputeTradeMetrics(result.Trades),
		AverageLeverage: AverageLeverage(result.Trades),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		sumSq += (x - m) * (x - m)
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
