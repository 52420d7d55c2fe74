package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sheetalert",
	Short: "Sheet Alert - 스프레드시트 주가 알림 서비스",
	Long: `Sheet Alert CLI

Google Sheets에 적힌 종목의 현재가를 채워 넣고,
가격이 사용자가 지정한 범위를 벗어나면 이메일로 알립니다.

Usage:
  go run ./cmd/sheetalert [command]

Examples:
  go run ./cmd/sheetalert api
  go run ./cmd/sheetalert api --with-scheduler
  go run ./cmd/sheetalert scheduler start
  go run ./cmd/sheetalert refresh
  go run ./cmd/sheetalert migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
