package main

import (
	"os"

	"github.com/wonny/picker/cmd/picker/commands"
)

// main is the entry point for the picker CLI
// ⭐ 统一 CLI 入口: go run ./cmd/picker [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
