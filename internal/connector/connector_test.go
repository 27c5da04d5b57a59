package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBinanceConnector_ConvertRow(t *testing.T) {
	c := NewBinanceConnector(zap.NewNop())

	row := []json.RawMessage{
		json.RawMessage(`1640123400000`),
		json.RawMessage(`"50000.00"`),
		json.RawMessage(`"50100.5"`),
		json.RawMessage(`"49900.1"`),
		json.RawMessage(`"50050.25"`),
		json.RawMessage(`"12.345"`),
	}

	candle, err := c.convertRow(row, "BTCUSDT", "1h")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", candle.Symbol)
	assert.Equal(t, "binance", candle.Exchange)
	assert.Equal(t, "1h", candle.Period)
	assert.True(t, candle.Open.Equal(decimal.NewFromFloat(50000.00)))
	assert.True(t, candle.High.Equal(decimal.NewFromFloat(50100.5)))
	assert.True(t, candle.Low.Equal(decimal.NewFromFloat(49900.1)))
	assert.True(t, candle.Close.Equal(decimal.NewFromFloat(50050.25)))
	assert.True(t, candle.Volume.Equal(decimal.NewFromFloat(12.345)))
	assert.Equal(t, time.Unix(0, 1640123400000*int64(time.Millisecond)).UTC(), candle.Timestamp)
}

func TestBinanceConnector_FetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Write([]byte(`[
			[1640120000000, "100", "110", "95", "105", "1.5", 1640123599999],
			[1640123600000, "105", "120", "104", "118", "2.5", 1640127199999]
		]`))
	}))
	defer srv.Close()

	c := NewBinanceConnector(zap.NewNop())
	c.url = srv.URL

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Close.Equal(decimal.NewFromInt(105)))
	assert.True(t, candles[1].Close.Equal(decimal.NewFromInt(118)))
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
}

func TestBinanceConnector_UnsupportedTimeframe(t *testing.T) {
	c := NewBinanceConnector(zap.NewNop())
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "3w", 10)
	assert.Error(t, err)
}

func TestOKXConnector_FetchCandles_ReversesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/candles", r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		assert.Equal(t, "1H", r.URL.Query().Get("bar"))
		// Newest first, as OKX serves them.
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1640123600000","105","120","104","118","2.5"],
			["1640120000000","100","110","95","105","1.5"]
		]}`))
	}))
	defer srv.Close()

	c := NewOKXConnector(zap.NewNop())
	c.url = srv.URL

	candles, err := c.FetchCandles(context.Background(), "BTC-USDT", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "okx", candles[0].Exchange)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp), "candles must be ascending")
	assert.True(t, candles[0].Close.Equal(decimal.NewFromInt(105)))
}

func TestOKXConnector_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	c := NewOKXConnector(zap.NewNop())
	c.url = srv.URL

	_, err := c.FetchCandles(context.Background(), "NOPE-USDT", "1h", 10)
	assert.Error(t, err)
}

func TestBybitConnector_FetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			["1640123600000","105","120","104","118","2.5","290"],
			["1640120000000","100","110","95","105","1.5","150"]
		]}}`))
	}))
	defer srv.Close()

	c := NewBybitConnector(zap.NewNop())
	c.url = srv.URL

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "bybit", candles[0].Exchange)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
}

func TestNew_Registry(t *testing.T) {
	for _, name := range []string{"binance", "okx", "bybit"} {
		c, err := New(name, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := New("kraken", zap.NewNop())
	assert.Error(t, err)
}
