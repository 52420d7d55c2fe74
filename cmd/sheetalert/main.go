package main

import (
	"os"

	"github.com/wonny/sheetalert/cmd/sheetalert/commands"
)

// main is the entry point for the sheetalert CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/sheetalert [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
