package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BybitConnector struct {
	logger *zap.Logger
	client *http.Client
	url    string
}

func NewBybitConnector(logger *zap.Logger) *BybitConnector {
	return &BybitConnector{
		logger: logger,
		client: newHTTPClient(),
		url:    "https://api.bybit.com",
	}
}

func (b *BybitConnector) Name() string {
	return "bybit"
}

// Bybit intervals are minutes, or D for daily.
var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "1h": "60", "4h": "240", "1d": "D",
}

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

func (b *BybitConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", timeframe)
	}

	url := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d", b.url, symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bybit: kline request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bybit: unexpected status %d", resp.StatusCode)
	}

	var payload bybitKlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("bybit: failed to decode klines: %w", err)
	}
	if payload.RetCode != 0 {
		return nil, fmt.Errorf("bybit: api error %d: %s", payload.RetCode, payload.RetMsg)
	}

	// Bybit returns newest first; flip to ascending time.
	candles := make([]model.Candle, 0, len(payload.Result.List))
	for i := len(payload.Result.List) - 1; i >= 0; i-- {
		candle, err := b.convertRow(payload.Result.List[i], symbol, timeframe)
		if err != nil {
			b.logger.Warn("skipping malformed bybit kline", zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}

	infrastructure.CandlesFetched.WithLabelValues("bybit", symbol).Add(float64(len(candles)))
	b.logger.Info("fetched bybit klines",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (b *BybitConnector) convertRow(row []string, symbol, timeframe string) (model.Candle, error) {
	// Row: [startTime, open, high, low, close, volume, turnover]
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}

	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, err
	}

	prices := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		d, err := decimal.NewFromString(row[i])
		if err != nil {
			return model.Candle{}, err
		}
		prices[i-1] = d
	}

	return model.Candle{
		Symbol:    symbol,
		Exchange:  "bybit",
		Period:    timeframe,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		Timestamp: time.Unix(0, ms*int64(time.Millisecond)).UTC(),
	}, nil
}
