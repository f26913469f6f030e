package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/internal/pipeline"
	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/internal/report"
	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/database"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
	"github.com/wonny/picker/pkg/redis"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "全市场选股扫描",
	Long: `同步行情后按启用的策略扫描全市场, 输出候选股。

流程:
- 同步股票列表和日K行情 (--skip-sync 跳过)
- 并发评估每只股票的全部启用策略
- 结果入库、导出CSV、推送webhook

Flags:
  --date        扫描日期 (默认: 今天)
  --strategies  只运行指定策略 (逗号分隔)
  --top         控制台输出前N只

Example:
  go run ./cmd/picker scan
  go run ./cmd/picker scan --date 2024-01-15 --skip-sync
  go run ./cmd/picker scan --strategies ma_trend,breakout --top 10`,
	RunE: runScan,
}

var (
	// Scan flags
	scanDate         string
	scanStrategies   string
	scanWorkers      int
	scanMinBars      int
	scanTop          int
	scanStrategyFile string
	scanSkipSync     bool
	scanCSV          bool
	scanOutputDir    string
	scanNoNotify     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	// Flags
	scanCmd.Flags().StringVar(&scanDate, "date", "", "扫描日期 (YYYY-MM-DD, 默认: 今天)")
	scanCmd.Flags().StringVar(&scanStrategies, "strategies", "", "只运行指定策略 (逗号分隔, 默认: 全部启用)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "并发评估worker数 (默认: 配置值)")
	scanCmd.Flags().IntVar(&scanMinBars, "min-bars", 0, "评估所需最少K线数 (默认: 配置值)")
	scanCmd.Flags().IntVar(&scanTop, "top", 0, "控制台输出前N只 (默认: 配置值)")
	scanCmd.Flags().StringVar(&scanStrategyFile, "strategy-file", "", "策略配置文件 (YAML)")
	scanCmd.Flags().BoolVar(&scanSkipSync, "skip-sync", false, "跳过行情同步, 直接扫描库内数据")
	scanCmd.Flags().BoolVar(&scanCSV, "csv", true, "导出CSV结果文件")
	scanCmd.Flags().StringVar(&scanOutputDir, "output-dir", "", "CSV输出目录 (默认: 配置值)")
	scanCmd.Flags().BoolVar(&scanNoNotify, "no-notify", false, "跳过webhook推送")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Picker Scan ===")

	// Parse date
	var scanOn time.Time
	if scanDate != "" {
		parsed, err := time.Parse("2006-01-02", scanDate)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
		scanOn = parsed
	} else {
		now := time.Now().UTC()
		scanOn = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	fmt.Printf("\n📅 Scan Date: %s\n", scanOn.Format("2006-01-02"))
	fmt.Printf("🔄 Sync: %v\n\n", !scanSkipSync)

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override config if flags are set
	if scanStrategyFile != "" {
		cfg.Scan.StrategyFile = scanStrategyFile
	}
	if scanOutputDir != "" {
		cfg.Scan.OutputDir = scanOutputDir
	}
	if !scanCSV {
		cfg.Scan.OutputDir = ""
	}
	if scanNoNotify {
		cfg.Notify.WebhookURL = ""
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

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
	if scanStrategies != "" {
		if err := restrictStrategies(reg, scanStrategies); err != nil {
			return err
		}
	}

	// Flags win over both environment and strategy file
	if scanWorkers > 0 {
		cfg.Scan.Workers = scanWorkers
	}
	if scanMinBars > 0 {
		cfg.Scan.MinBars = scanMinBars
	}
	if scanTop > 0 {
		cfg.Scan.TopN = scanTop
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

	fmt.Println("Enabled strategies:")
	for _, d := range reg.Enabled() {
		fmt.Printf("  - %s (weight %.1f)\n", d.Name, d.Weight)
	}
	fmt.Println()

	// 11. Run with a progress bar over the screening stage
	var bar *progressbar.ProgressBar
	result, err := pipe.Run(cmd.Context(), pipeline.RunConfig{
		Date:        scanOn,
		SkipSync:    scanSkipSync,
		Workers:     cfg.Scan.Workers,
		MinBars:     cfg.Scan.MinBars,
		HistoryDays: cfg.Scan.HistoryDays,
		Snapshot:    snapshot,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "screening")
			}
			if err := bar.Set(done); err != nil {
				log.Warnf("update progressbar fail: %v", err)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	printScanResult(result, cfg.Scan.TopN)
	return nil
}

// restrictStrategies keeps only the named strategies enabled for this run.
func restrictStrategies(reg *registry.Registry, names string) error {
	on, off := true, false

	keep := make(map[string]bool)
	overrides := make([]registry.Override, 0, 4)
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		keep[name] = true
		overrides = append(overrides, registry.Override{Name: name, Enabled: &on})
	}
	for _, d := range reg.Descriptors() {
		if !keep[d.Name] {
			overrides = append(overrides, registry.Override{Name: d.Name, Enabled: &off})
		}
	}
	return reg.Configure(overrides)
}

func printScanResult(result *pipeline.RunResult, topN int) {
	fmt.Println("\n✅ Scan Completed")
	fmt.Println()

	// Summary
	fmt.Printf("Run ID: %d\n", result.RunID)
	fmt.Printf("Date: %s\n", result.Date.Format("2006-01-02"))
	fmt.Printf("Duration: %.2fs\n", result.Duration.Seconds())
	fmt.Println()

	// Stages
	fmt.Println("Completed Stages:")
	for _, stage := range result.CompletedStages {
		fmt.Printf("  ✅ %s\n", stage)
	}
	fmt.Println()

	// Results
	scan := result.Scan
	if scan == nil {
		return
	}
	fmt.Printf("Evaluated: %d  Skipped: %d  Failed: %d\n", scan.Evaluated, scan.Skipped, scan.Failed)
	fmt.Printf("Picks: %d\n\n", len(scan.Picks))

	if len(scan.Picks) == 0 {
		fmt.Println(report.FormatShortMessage(scan))
		return
	}

	report.RenderTable(os.Stdout, scan.Picks, topN)
	fmt.Println()
	fmt.Println(report.FormatShortMessage(scan))
}
