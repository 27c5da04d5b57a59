// Package processor normalizes raw exchange candles before they are
// persisted or fed to the engine: symbols are unified, rows are sorted,
// duplicates and malformed rows dropped.
package processor

import (
	"sort"
	"strings"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"go.uber.org/zap"
)

// NormalizeSymbol unifies different exchange symbol formats into a standard
// one (e.g. BTCUSDT).
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

type Preprocessor struct {
	logger *zap.Logger
}

func NewPreprocessor(logger *zap.Logger) *Preprocessor {
	return &Preprocessor{logger: logger}
}

// Clean returns candles sorted by ascending timestamp with normalized
// symbols, duplicate timestamps collapsed (first kept) and rows with
// non-positive prices or zero timestamps dropped. The engine relies on the
// strictly increasing order this guarantees.
func (p *Preprocessor) Clean(candles []model.Candle) []model.Candle {
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Timestamp.IsZero() {
			p.logger.Debug("dropping candle with zero timestamp", zap.String("symbol", c.Symbol))
			continue
		}
		if !c.Open.IsPositive() || !c.High.IsPositive() || !c.Low.IsPositive() || !c.Close.IsPositive() {
			p.logger.Debug("dropping candle with non-positive price",
				zap.String("symbol", c.Symbol),
				zap.Time("time", c.Timestamp),
			)
			continue
		}
		c.Symbol = NormalizeSymbol(c.Symbol)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	deduped := make([]model.Candle, 0, len(out))
	for _, c := range out {
		if len(deduped) > 0 && c.Timestamp.Equal(deduped[len(deduped)-1].Timestamp) {
			continue
		}
		deduped = append(deduped, c)
	}
	return deduped
}
