// Package connector fetches historical OHLCV candles from exchange REST
// APIs. Connectors may return fewer rows than requested; callers must
// tolerate any length.
package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"go.uber.org/zap"
)

type Connector interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// New returns the connector for an exchange.
func New(exchange string, logger *zap.Logger) (Connector, error) {
	switch exchange {
	case "binance":
		return NewBinanceConnector(logger), nil
	case "okx":
		return NewOKXConnector(logger), nil
	case "bybit":
		return NewBybitConnector(logger), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", exchange)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
