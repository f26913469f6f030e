package commands

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/wonny/picker/internal/feed"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/database"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [target]",
	Short: "行情数据同步",
	Long: `从东方财富接口同步行情数据到数据库。

目标:
  listings  - 股票列表 (全市场A股)
  bars      - 日K行情 (按配置的历史天数)
  profiles  - 公司资料 (名称/行业)
  all       - 全部 (默认)

Example:
  go run ./cmd/picker fetch
  go run ./cmd/picker fetch bars --history-days 250
  go run ./cmd/picker fetch profiles --workers 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

var (
	// Fetch flags
	fetchHistoryDays int
	fetchWorkers     int
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().IntVar(&fetchHistoryDays, "history-days", 0, "同步历史天数 (默认: 配置值)")
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", 0, "并发下载worker数 (默认: 配置值)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	target := "all"
	if len(args) > 0 {
		target = args[0]
	}

	fmt.Printf("=== Picker Data Fetch ===\n\n")
	fmt.Printf("Target: %s\n", target)

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override config if flags are set
	if fetchHistoryDays > 0 {
		cfg.Scan.HistoryDays = fetchHistoryDays
	}
	if fetchWorkers > 0 {
		cfg.Scan.Workers = fetchWorkers
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Create repository and feed syncer
	repo := store.NewRepository(db.Pool)
	httpClient := httputil.New(cfg, log)
	feedClient := feed.NewClient(cfg, httpClient, log)
	syncer := feed.NewSyncer(feedClient, repo, log)

	ctx := cmd.Context()

	switch target {
	case "listings":
		return fetchListings(ctx, syncer)
	case "bars":
		return fetchBars(ctx, syncer, cfg)
	case "profiles":
		return fetchProfiles(ctx, syncer, cfg)
	case "all":
		return fetchAll(ctx, syncer, cfg)
	default:
		return fmt.Errorf("unknown target: %s (valid: listings, bars, profiles, all)", target)
	}
}

func fetchListings(ctx context.Context, syncer *feed.Syncer) error {
	fmt.Println()
	PrintSeparator()
	fmt.Println("📋 同步股票列表...")
	PrintSeparator()

	count, err := syncer.SyncInstruments(ctx)
	if err != nil {
		return fmt.Errorf("sync listings: %w", err)
	}

	PrintSuccess(fmt.Sprintf("股票列表同步完成: %d 只", count))
	return nil
}

func fetchBars(ctx context.Context, syncer *feed.Syncer, cfg *config.Config) error {
	fmt.Println()
	PrintSeparator()
	fmt.Println("📊 同步日K行情...")
	PrintSeparator()

	var bar *progressbar.ProgressBar
	results, err := syncer.SyncBars(ctx, feed.SyncConfig{
		Workers:     cfg.Scan.Workers,
		HistoryDays: cfg.Scan.HistoryDays,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "bars")
			}
			_ = bar.Set(done)
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("sync bars: %w", err)
	}

	synced, failed, barCount := 0, 0, 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		synced++
		barCount += r.BarCount
	}

	PrintSuccess(fmt.Sprintf("行情同步完成: %d 只股票, %d 根K线, %d 失败", synced, barCount, failed))
	return nil
}

func fetchProfiles(ctx context.Context, syncer *feed.Syncer, cfg *config.Config) error {
	fmt.Println()
	PrintSeparator()
	fmt.Println("🏢 同步公司资料...")
	PrintSeparator()

	var bar *progressbar.ProgressBar
	results, err := syncer.SyncProfiles(ctx, feed.SyncConfig{
		Workers: cfg.Scan.Workers,
		OnProgress: func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "profiles")
			}
			_ = bar.Set(done)
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("sync profiles: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	PrintSuccess(fmt.Sprintf("公司资料同步完成: %d 只, %d 失败", len(results)-failed, failed))
	return nil
}

func fetchAll(ctx context.Context, syncer *feed.Syncer, cfg *config.Config) error {
	fmt.Println("🚀 全量同步开始...")

	if err := fetchListings(ctx, syncer); err != nil {
		return err
	}

	if err := fetchBars(ctx, syncer, cfg); err != nil {
		return err
	}

	if err := fetchProfiles(ctx, syncer, cfg); err != nil {
		return err
	}

	fmt.Println()
	PrintSuccess("全量同步完成!")
	return nil
}
