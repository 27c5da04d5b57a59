package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BacktestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtests_total",
		Help: "Total number of backtest runs",
	}, []string{"market_type", "status"})

	BacktestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "backtest_duration_seconds",
		Help: "Wall-clock duration of backtest runs",
	})

	InsufficientCapitalSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insufficient_capital_skips_total",
		Help: "Entry signals dropped because order cost exceeded capital",
	}, []string{"market_type"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	DBInsertRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_insert_total",
		Help: "Total number of records inserted into DB",
	}, []string{"table"})

	CandlesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "candles_fetched_total",
		Help: "Total number of candles fetched from exchanges",
	}, []string{"exchange", "symbol"})
)
