package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/analytics"
	"github.com/Vaibhavk18/backtesting-platform/internal/connector"
	"github.com/Vaibhavk18/backtesting-platform/internal/engine"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/Vaibhavk18/backtesting-platform/internal/processor"
	"github.com/Vaibhavk18/backtesting-platform/internal/storage"
	"github.com/Vaibhavk18/backtesting-platform/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	strategies     *storage.StrategyStore
	results        *storage.ResultStore
	loader         *engine.DataLoader
	pool           *engine.WorkerPool
	saver          *storage.CandleSaver
	preprocessor   *processor.Preprocessor
	logger         *zap.Logger
	initialCapital decimal.Decimal
	periodsPerYear int
}

func NewHandler(
	strategies *storage.StrategyStore,
	results *storage.ResultStore,
	loader *engine.DataLoader,
	pool *engine.WorkerPool,
	saver *storage.CandleSaver,
	preprocessor *processor.Preprocessor,
	logger *zap.Logger,
	initialCapital decimal.Decimal,
	periodsPerYear int,
) *Handler {
	return &Handler{
		strategies:     strategies,
		results:        results,
		loader:         loader,
		pool:           pool,
		saver:          saver,
		preprocessor:   preprocessor,
		logger:         logger,
		initialCapital: initialCapital,
		periodsPerYear: periodsPerYear,
	}
}

// Strategy Handlers

func (h *Handler) CreateStrategy(c *gin.Context) {
	var req struct {
		Name   string                `json:"name" binding:"required"`
		UserID string                `json:"user_id"`
		Config *model.StrategyConfig `json:"config" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Config.Name == "" {
		req.Config.Name = req.Name
	}
	if err := strategy.Validate(req.Config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.strategies.Create(c.Request.Context(), req.Name, req.Config, req.UserID)
	if err != nil {
		h.logger.Error("failed to create strategy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store strategy"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "name": req.Name})
}

func (h *Handler) GetStrategy(c *gin.Context) {
	strat, err := h.strategies.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load strategy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, strat)
}

// Backtest Handlers

type backtestRequest struct {
	StrategyID     string                `json:"strategy_id"`
	Config         *model.StrategyConfig `json:"config"`
	UserID         string                `json:"user_id"`
	Symbol         string                `json:"symbol" binding:"required"`
	Period         string                `json:"period"`
	StartTime      time.Time             `json:"start_time"`
	EndTime        time.Time             `json:"end_time"`
	InitialCapital decimal.Decimal       `json:"initial_capital"`
	Async          bool                  `json:"async"`
}

// RunBacktest executes a backtest synchronously, or queues it and returns a
// session id when async is requested. The strategy comes either inline or by
// reference to a stored one.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := req.Config
	strategyID := req.StrategyID
	if cfg == nil {
		if strategyID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "either strategy_id or config is required"})
			return
		}
		stored, err := h.strategies.GetConfig(c.Request.Context(), strategyID)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
			return
		}
		if err != nil {
			h.logger.Error("failed to load strategy config", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		cfg = stored
	}

	capital := req.InitialCapital
	if !capital.IsPositive() {
		capital = h.initialCapital
	}

	symbol := processor.NormalizeSymbol(req.Symbol)
	period := req.Period
	if period == "" {
		period = "1h"
	}

	var candles []model.Candle
	var err error
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		candles, err = h.loader.LoadRecentCandles(c.Request.Context(), symbol, period, 1000)
	} else {
		candles, err = h.loader.LoadCandles(c.Request.Context(), symbol, req.StartTime, req.EndTime, period)
	}
	if err != nil {
		h.logger.Error("failed to load candles for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load candles"})
		return
	}

	if req.Async {
		sessionID := uuid.NewString()
		job := engine.BacktestJob{
			StrategyID:     strategyID,
			SessionID:      sessionID,
			UserID:         req.UserID,
			Config:         cfg,
			Candles:        candles,
			InitialCapital: capital,
		}
		if !h.pool.Submit(job) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest queue full"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID})
		return
	}

	sim, err := engine.NewSimulator(cfg, capital, h.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := sim.Run(c.Request.Context(), candles)
	if err != nil {
		var dataErr *model.DataError
		if errors.As(err, &dataErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("backtest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backtest failed"})
		return
	}

	if strategyID != "" {
		if err := h.results.SaveResult(c.Request.Context(), strategyID, result, req.UserID); err != nil {
			h.logger.Error("failed to persist backtest result", zap.Error(err))
		}
	}

	report := analytics.BuildReport(result, nil, h.periodsPerYear)
	c.JSON(http.StatusOK, gin.H{"result": result, "report": report})
}

// GetMetrics rehydrates the latest stored result for a strategy and
// computes the full analytics report from it.
func (h *Handler) GetMetrics(c *gin.Context) {
	result, err := h.results.LoadLatestResult(c.Request.Context(), c.Param("strategy_id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no backtest results for strategy"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load backtest result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	btcReturns := h.benchmarkReturns(c, len(result.Returns))
	c.JSON(http.StatusOK, analytics.BuildReport(result, btcReturns, h.periodsPerYear))
}

// benchmarkReturns loads BTC bar returns matching the result length. Beta is
// optional: any failure or length mismatch yields nil and the report simply
// omits it.
func (h *Handler) benchmarkReturns(c *gin.Context, n int) []float64 {
	if n == 0 {
		return nil
	}
	period := c.DefaultQuery("period", "1h")
	candles, err := h.loader.LoadRecentCandles(c.Request.Context(), "BTCUSDT", period, n+1)
	if err != nil || len(candles) != n+1 {
		return nil
	}
	closes := model.Closes(candles)
	returns := make([]float64, n)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil
		}
		returns[i-1] = closes[i]/closes[i-1] - 1
	}
	return returns
}

// Data Handlers

func (h *Handler) GetHistoryKLines(c *gin.Context) {
	symbol := processor.NormalizeSymbol(c.Param("symbol"))
	period := c.DefaultQuery("period", "1m")

	candles, err := h.loader.LoadRecentCandles(c.Request.Context(), symbol, period, 100)
	if err != nil {
		h.logger.Error("failed to query klines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, candles)
}

// FetchData pulls historical candles from an exchange REST API, cleans them
// and queues them for persistence.
func (h *Handler) FetchData(c *gin.Context) {
	var req struct {
		Exchange  string `json:"exchange" binding:"required"`
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe"`
		Limit     int    `json:"limit"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "1h"
	}
	if req.Limit <= 0 || req.Limit > 1000 {
		req.Limit = 500
	}

	conn, err := connector.New(req.Exchange, h.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := conn.FetchCandles(c.Request.Context(), req.Symbol, req.Timeframe, req.Limit)
	if err != nil {
		h.logger.Error("failed to fetch candles",
			zap.String("exchange", req.Exchange),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "exchange fetch failed"})
		return
	}

	cleaned := h.preprocessor.Clean(candles)
	h.saver.AddBatch(cleaned)
	h.saver.Flush(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"exchange": req.Exchange,
		"symbol":   processor.NormalizeSymbol(req.Symbol),
		"fetched":  len(candles),
		"stored":   len(cleaned),
	})
}
