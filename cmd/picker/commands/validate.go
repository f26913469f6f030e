package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/pkg/config"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "策略配置检查",
	Long: `检查策略配置文件的语法和取值。

不带参数时使用 STRATEGY_FILE 配置的路径。
硬性约束失败时退出非零, 建议性约束打印警告。

Example:
  go run ./cmd/picker validate strategies.yaml
  go run ./cmd/picker validate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Picker Strategy Config ===")

	// Resolve the file path: argument first, configured path otherwise
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Scan.StrategyFile
	}
	if path == "" {
		return fmt.Errorf("no strategy file: pass a path or set STRATEGY_FILE")
	}

	fmt.Printf("\nFile: %s\n\n", path)

	fileCfg, _, err := strategyconfig.Load(path)
	if err != nil {
		return fmt.Errorf("invalid strategy file: %w", err)
	}

	hash, err := strategyconfig.Hash(fileCfg)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	PrintKeyValue("config_id", fileCfg.Meta.ConfigID, 12)
	if fileCfg.Meta.Version != "" {
		PrintKeyValue("version", fileCfg.Meta.Version, 12)
	}
	PrintKeyValue("hash", hash[:12], 12)
	fmt.Println()

	if s := fileCfg.Scan; s.Workers > 0 || s.MinBars > 0 || s.TopN > 0 || s.HistoryDays > 0 {
		fmt.Println("Scan settings:")
		if s.Workers > 0 {
			PrintKeyValue("workers", fmt.Sprintf("%d", s.Workers), 12)
		}
		if s.MinBars > 0 {
			PrintKeyValue("min_bars", fmt.Sprintf("%d", s.MinBars), 12)
		}
		if s.TopN > 0 {
			PrintKeyValue("top_n", fmt.Sprintf("%d", s.TopN), 12)
		}
		if s.HistoryDays > 0 {
			PrintKeyValue("history_days", fmt.Sprintf("%d", s.HistoryDays), 12)
		}
		fmt.Println()
	}

	if len(fileCfg.Strategies) > 0 {
		fmt.Println("Strategies:")
		PrintList(strategyLines(fileCfg.Strategies))
	}

	for _, w := range strategyconfig.Warn(fileCfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	fmt.Println()
	PrintSuccess("配置有效")
	return nil
}

func strategyLines(entries []strategyconfig.StrategyEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		line := entry.Name
		if entry.Weight != nil {
			line += fmt.Sprintf(" (weight %.1f)", *entry.Weight)
		}
		if len(entry.Params) > 0 {
			line += fmt.Sprintf(" [%d params]", len(entry.Params))
		}
		if entry.Enabled != nil && !*entry.Enabled {
			line += " (disabled)"
		}
		lines = append(lines, line)
	}
	return lines
}
