package engine

import (
	"context"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BacktestJob is one queued asynchronous backtest run. Each job gets its own
// Simulator, so concurrent jobs share no mutable state.
type BacktestJob struct {
	StrategyID     string
	SessionID      string
	UserID         string
	Config         *model.StrategyConfig
	Candles        []model.Candle
	InitialCapital decimal.Decimal
}

// RunFunc executes a job; wiring (persistence, notifications) lives in the
// caller.
type RunFunc func(ctx context.Context, job BacktestJob)

type WorkerPool struct {
	jobQueue    chan BacktestJob
	workerCount int
	run         RunFunc
	logger      *zap.Logger
}

func NewWorkerPool(workerCount int, bufferSize int, run RunFunc, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan BacktestJob, bufferSize),
		workerCount: workerCount,
		run:         run,
		logger:      logger,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}
	p.logger.Info("started backtest worker pool", zap.Int("workers", p.workerCount))
}

// Submit enqueues a job, reporting whether it was accepted. A full queue
// drops the job rather than blocking the caller.
func (p *WorkerPool) Submit(job BacktestJob) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		p.logger.Warn("backtest job queue full, dropping job",
			zap.String("strategy_id", job.StrategyID))
		return false
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.logger.Debug("worker picked up backtest job",
				zap.Int("worker_id", id),
				zap.String("strategy_id", job.StrategyID),
				zap.String("session_id", job.SessionID),
			)
			p.run(ctx, job)
		}
	}
}
