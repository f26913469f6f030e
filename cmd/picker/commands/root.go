package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "picker",
	Short: "Picker - A股短线选股系统",
	Long: `Picker Unified CLI

A股短线量化选股系统。
行情同步、四策略全市场扫描、结果推送与API服务。

Usage:
  go run ./cmd/picker [command]

Examples:
  go run ./cmd/picker scan
  go run ./cmd/picker fetch all
  go run ./cmd/picker serve --scheduler
  go run ./cmd/picker validate strategies.yaml`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
