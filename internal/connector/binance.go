package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BinanceConnector struct {
	logger *zap.Logger
	client *http.Client
	url    string
}

func NewBinanceConnector(logger *zap.Logger) *BinanceConnector {
	return &BinanceConnector{
		logger: logger,
		client: newHTTPClient(),
		url:    "https://api.binance.com",
	}
}

func (b *BinanceConnector) Name() string {
	return "binance"
}

var binanceIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "1h", "4h": "4h", "1d": "1d",
}

func (b *BinanceConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	interval, ok := binanceIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", timeframe)
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", b.url, symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: kline request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: unexpected status %d", resp.StatusCode)
	}

	// Each row: [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("binance: failed to decode klines: %w", err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, row := range raw {
		candle, err := b.convertRow(row, symbol, timeframe)
		if err != nil {
			b.logger.Warn("skipping malformed binance kline", zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}

	infrastructure.CandlesFetched.WithLabelValues("binance", symbol).Add(float64(len(candles)))
	b.logger.Info("fetched binance klines",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (b *BinanceConnector) convertRow(row []json.RawMessage, symbol, timeframe string) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Candle{}, err
	}

	prices := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(row[i], &s); err != nil {
			return model.Candle{}, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return model.Candle{}, err
		}
		prices[i-1] = d
	}

	return model.Candle{
		Symbol:    symbol,
		Exchange:  "binance",
		Period:    timeframe,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		Timestamp: time.Unix(0, openTime*int64(time.Millisecond)).UTC(),
	}, nil
}
