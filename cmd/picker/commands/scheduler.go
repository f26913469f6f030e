package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/internal/pipeline"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/report"
	"github.com/wonny/picker/internal/scheduler"
	"github.com/wonny/picker/internal/scheduler/jobs"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/database"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
	"github.com/wonny/picker/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "定时任务管理",
	Long: `启动定时任务守护进程或管理任务。

这个命令:
- 启动定时任务守护进程
- 查询已注册任务
- 查询任务执行历史

Subcommands:
  start   - 启动守护进程
  list    - 已注册任务列表
  run     - 立即执行指定任务
  status  - 任务执行状态

Example:
  go run ./cmd/picker scheduler start
  go run ./cmd/picker scheduler list
  go run ./cmd/picker scheduler run daily_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "启动定时任务守护进程",
		Long: `启动守护进程并调度所有注册的任务。

注册的任务:
- daily_scan: 每个交易日收盘后 (默认 15:30, 同步+扫描+推送)
- profile_refresh: 每周六 09:00 (公司资料刷新)

Ctrl+C 退出。`,
		RunE: runSchedulerDaemon,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "已注册任务列表",
		RunE:  listSchedulerJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "立即执行指定任务",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "任务执行状态",
		RunE:  showSchedulerStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Picker Scheduler ===")

	// Initialize dependencies
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listSchedulerJobs(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started (running in background)")
	return nil
}

func showSchedulerStatus(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range stats {
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}

		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

func initScheduler() (*scheduler.Scheduler, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

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
		return nil, err
	}

	// 7. Build series provider, with a Redis cache in front when enabled
	var provider screener.SeriesProvider = store.NewProvider(repo, cfg.Scan.HistoryDays)
	if cfg.Redis.Enabled {
		rdb, err := redis.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		provider = store.NewCachedProvider(provider, redis.NewCache(rdb, "picker"), cfg.Redis.SeriesTTL)
	}

	// 8. Create screening engine
	engine := screener.New(provider, reg, log)

	// 9. Create reporter
	notifier := report.NewNotifier(cfg, httpClient, log)
	reporter := report.NewReporter(cfg, notifier, log)

	// 10. Create pipeline
	pipe := pipeline.NewPipeline(syncer, repo, engine, reporter, log)

	// 11. Create scheduler
	sched := scheduler.New(log)

	// 12. Register jobs
	if err := sched.AddJob(jobs.NewDailyScanJob(pipe, snapshot, cfg, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewProfileRefreshJob(syncer, cfg, log)); err != nil {
		return nil, err
	}

	return sched, nil
}
