package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/api"
	"github.com/Vaibhavk18/backtesting-platform/internal/config"
	"github.com/Vaibhavk18/backtesting-platform/internal/engine"
	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/processor"
	"github.com/Vaibhavk18/backtesting-platform/internal/push"
	"github.com/Vaibhavk18/backtesting-platform/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Gateway    *push.Gateway
	Publisher  *push.Publisher
	WorkerPool *engine.WorkerPool
	Saver      *storage.CandleSaver
	HTTPServer *http.Server

	initialCapital decimal.Decimal
	cancelWorkers  context.CancelFunc
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	capital, err := decimal.NewFromString(cfg.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CAPITAL %q: %w", cfg.InitialCapital, err)
	}

	return &App{
		Config:         &cfg,
		Logger:         logger,
		initialCapital: capital,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Services
	a.Gateway = push.NewGateway(js, a.Logger)
	a.Publisher = push.NewPublisher(js, a.Logger)

	return nil
}

// Run starts the application services and the HTTP server
func (a *App) Run(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	a.cancelWorkers = cancel

	// Persistence
	a.Saver = storage.NewCandleSaver(a.DB, a.Logger, 1*time.Second, 100)
	go a.Saver.Run(workerCtx)

	results := storage.NewResultStore(a.DB, a.Logger)
	strategies := storage.NewStrategyStore(a.DB, a.Logger)
	loader := engine.NewDataLoader(a.DB)

	// Backtest workers
	runner := newBacktestRunner(results, a.Publisher, a.Logger)
	a.WorkerPool = engine.NewWorkerPool(a.Config.WorkerCount, a.Config.JobQueueSize, runner, a.Logger)
	a.WorkerPool.Start(workerCtx)

	// Setup HTTP Server
	handler := api.NewHandler(
		strategies,
		results,
		loader,
		a.WorkerPool,
		a.Saver,
		processor.NewPreprocessor(a.Logger),
		a.Logger,
		a.initialCapital,
		a.Config.PeriodsPerYear,
	)
	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(handler),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.cancelWorkers()
	a.NC.Close()
	a.DB.Close()

	return nil
}

// initDatabase runs the database initialization script
func (a *App) initDatabase(ctx context.Context) error {
	sqlFile := "scripts/init.sql"
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}

	_, err = a.DB.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}

	a.Logger.Info("database initialized successfully")
	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter(handler *api.Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/strategies", handler.CreateStrategy)
		v1.GET("/strategies/:id", handler.GetStrategy)
		v1.POST("/backtest", handler.RunBacktest)
		v1.GET("/metrics/:strategy_id", handler.GetMetrics)
		v1.GET("/klines/:symbol", handler.GetHistoryKLines)
		v1.POST("/data/fetch", handler.FetchData)
	}

	r.GET("/ws/backtest/:session_id", func(c *gin.Context) {
		a.Gateway.ServeSession(c.Writer, c.Request, c.Param("session_id"))
	})

	return r
}
