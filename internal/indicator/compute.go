package indicator

import (
	"fmt"
	"math"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
)

// Series naming follows the strategy schema: EMA outputs are period-suffixed,
// RSI and MACD keep fixed names.
const (
	NameRSI           = "RSI"
	NameMACD          = "MACD"
	NameMACDSignal    = "MACD_SIGNAL"
	NameMACDHistogram = "MACD_HISTOGRAM"
)

// param looks up an integer parameter. Fractional values are a
// configuration error, never silently truncated.
func param(params map[string]float64, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) {
		return 0, model.NewConfigError("indicator param %q must be an integer, got %v", key, v)
	}
	return int(v), nil
}

// Compute evaluates every configured indicator over the close series and
// returns the named output series, each aligned 1:1 with the candles.
// Unknown indicator kinds are a configuration error.
func Compute(closes []float64, specs []model.IndicatorSpec) (map[string][]float64, error) {
	results := make(map[string][]float64)

	for _, spec := range specs {
		switch spec.Kind {
		case model.IndicatorEMA:
			period, err := param(spec.Params, "period", 10)
			if err != nil {
				return nil, err
			}
			results[fmt.Sprintf("EMA_%d", period)] = EMA(closes, period)
		case model.IndicatorRSI:
			period, err := param(spec.Params, "period", 14)
			if err != nil {
				return nil, err
			}
			results[NameRSI] = RSI(closes, period)
		case model.IndicatorMACD:
			fast, err := param(spec.Params, "fast_period", 12)
			if err != nil {
				return nil, err
			}
			slow, err := param(spec.Params, "slow_period", 26)
			if err != nil {
				return nil, err
			}
			signal, err := param(spec.Params, "signal_period", 9)
			if err != nil {
				return nil, err
			}
			macd, signalLine, histogram := MACD(closes, fast, slow, signal)
			results[NameMACD] = macd
			results[NameMACDSignal] = signalLine
			results[NameMACDHistogram] = histogram
		default:
			return nil, model.NewConfigError("unknown indicator type: %s", spec.Kind)
		}
	}

	return results, nil
}
