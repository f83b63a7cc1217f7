package main

import (
	"os"

	"github.com/wonny/aegis-risklab/cmd/risklab/commands"
)

// main is the entry point for the risklab CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/risklab [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
