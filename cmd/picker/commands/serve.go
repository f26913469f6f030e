package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/picker/internal/api"
	"github.com/wonny/picker/internal/api/handlers"
	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/internal/pipeline"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/report"
	"github.com/wonny/picker/internal/scheduler"
	"github.com/wonny/picker/internal/scheduler/jobs"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/internal/ws"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/database"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
	"github.com/wonny/picker/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API服务器",
	Long: `启动REST API服务器。

提供:
- 选股结果与扫描历史查询
- K线图渲染 (PNG)
- 手动触发扫描, WebSocket进度推送
- --scheduler 同时启动定时任务

Endpoints:
  GET  /health                         - Health check
  GET  /api/v1/picks                   - 最新选股结果
  GET  /api/v1/runs                    - 扫描历史
  GET  /api/v1/instruments/{id}/chart  - K线图
  POST /api/v1/scan                    - 触发扫描
  WS   /ws/scan                        - 扫描进度推送

Example:
  go run ./cmd/picker serve
  go run ./cmd/picker serve --port 8080 --scheduler`,
	RunE: runServe,
}

var (
	// Serve flags
	servePort      string
	serveScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API服务器端口 (默认: 配置值)")
	serveCmd.Flags().BoolVar(&serveScheduler, "scheduler", false, "同时启动定时扫描任务")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Picker API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if servePort != "" {
		cfg.Port = servePort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Create repository
	repo := store.NewRepository(db.Pool)

	// 5. Create HTTP client and feed syncer
	httpClient := httputil.New(cfg, log)
	feedClient := feed.NewClient(cfg, httpClient, log)
	syncer := feed.NewSyncer(feedClient, repo, log)

	// 6. Build strategy registry
	reg := registry.New()
	snapshot, err := configureRegistry(cfg, reg, log)
	if err != nil {
		return err
	}

	// 7. Build series provider, with a Redis cache in front when enabled
	var provider screener.SeriesProvider = store.NewProvider(repo, cfg.Scan.HistoryDays)
	if cfg.Redis.Enabled {
		rdb, err := redis.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		provider = store.NewCachedProvider(provider, redis.NewCache(rdb, "picker"), cfg.Redis.SeriesTTL)
	}

	// 8. Create screening engine
	engine := screener.New(provider, reg, log)

	// 9. Create reporter
	notifier := report.NewNotifier(cfg, httpClient, log)
	reporter := report.NewReporter(cfg, notifier, log)

	// 10. Create pipeline
	pipe := pipeline.NewPipeline(syncer, repo, engine, reporter, log)

	// 11. Create websocket hub
	hub := ws.NewHub(log)

	// 12. Create handlers
	picksHandler := handlers.NewPicksHandler(repo, log)
	scanHandler := handlers.NewScanHandler(pipe, snapshot, cfg, hub, log)
	chartHandler := handlers.NewChartHandler(repo, log)
	strategyHandler := handlers.NewStrategyHandler(reg, log)

	// 13. Create router
	router := api.NewRouter(picksHandler, scanHandler, chartHandler, strategyHandler, hub, log)

	// 14. Create server
	server := api.New(cfg, log, router)

	// 15. Create scheduler when requested
	var sched *scheduler.Scheduler
	if serveScheduler {
		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewDailyScanJob(pipe, snapshot, cfg, log)); err != nil {
			return fmt.Errorf("register daily scan job: %w", err)
		}
		if err := sched.AddJob(jobs.NewProfileRefreshJob(syncer, cfg, log)); err != nil {
			return fmt.Errorf("register profile refresh job: %w", err)
		}
		sched.Start()
		log.Info("Scheduler started alongside API server")
	}

	// 16. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/v1/picks")
	fmt.Println("  GET  /api/v1/runs")
	fmt.Println("  GET  /api/v1/runs/{id}")
	fmt.Println("  GET  /api/v1/strategies")
	fmt.Println("  GET  /api/v1/instruments/{id}/chart")
	fmt.Println("  POST /api/v1/scan")
	fmt.Println("  WS   /ws/scan")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	hub.Close()

	log.Info("Server stopped")
	return nil
}
