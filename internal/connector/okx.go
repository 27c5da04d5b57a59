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

type OKXConnector struct {
	logger *zap.Logger
	client *http.Client
	url    string
}

func NewOKXConnector(logger *zap.Logger) *OKXConnector {
	return &OKXConnector{
		logger: logger,
		client: newHTTPClient(),
		url:    "https://www.okx.com",
	}
}

func (o *OKXConnector) Name() string {
	return "okx"
}

var okxBars = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "1H", "4h": "4H", "1d": "1D",
}

type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

func (o *OKXConnector) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	bar, ok := okxBars[timeframe]
	if !ok {
		return nil, fmt.Errorf("okx: unsupported timeframe %q", timeframe)
	}

	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d", o.url, symbol, bar, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx: candle request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("okx: unexpected status %d", resp.StatusCode)
	}

	var payload okxCandleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("okx: failed to decode candles: %w", err)
	}
	if payload.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", payload.Code, payload.Msg)
	}

	// OKX returns newest first; flip to ascending time.
	candles := make([]model.Candle, 0, len(payload.Data))
	for i := len(payload.Data) - 1; i >= 0; i-- {
		candle, err := o.convertRow(payload.Data[i], symbol, timeframe)
		if err != nil {
			o.logger.Warn("skipping malformed okx candle", zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}

	infrastructure.CandlesFetched.WithLabelValues("okx", symbol).Add(float64(len(candles)))
	o.logger.Info("fetched okx candles",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (o *OKXConnector) convertRow(row []string, symbol, timeframe string) (model.Candle, error) {
	// Row: [ts, open, high, low, close, vol, ...]
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("candle row too short: %d fields", len(row))
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
		Exchange:  "okx",
		Period:    timeframe,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		Timestamp: time.Unix(0, ms*int64(time.Millisecond)).UTC(),
	}, nil
}
