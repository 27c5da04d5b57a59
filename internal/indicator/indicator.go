package indicator

import "math"

// EMA computes the exponential moving average with alpha = 2/(period+1).
// The first output is seeded with the first input, so there is no NaN
// warm-up and the output has the same length as the input.
func EMA(series []float64, period int) []float64 {
	if len(series) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index over a rolling window of simple
// means of positive and negative deltas. The first `period` outputs are NaN.
// When the rolling loss is zero the RSI is 100.
func RSI(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(series) < 2 || period < 1 {
		return out
	}

	gains := make([]float64, len(series))
	losses := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(series); i++ {
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the MACD line (EMA fast minus EMA slow), the signal line
// (EMA of the MACD line) and the histogram, all aligned with the input.
func MACD(series []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	emaFast := EMA(series, fast)
	emaSlow := EMA(series, slow)
	macd = make([]float64, len(series))
	for i := range series {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = EMA(macd, signal)
	histogram = make([]float64, len(series))
	for i := range series {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram
}
