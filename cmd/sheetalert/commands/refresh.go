package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// refreshCmd runs one refresh pass and exits
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "가격 갱신 1회 실행",
	Long: `모든 종목의 가격을 갱신하고, 범위를 벗어난 종목을 메일로 알린 뒤
변경된 시트에 가격을 기록합니다.

Example:
  go run ./cmd/sheetalert refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.refresher.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Printf("✅ Refresh finished in %s\n", result.Duration)
	fmt.Printf("   Changed stocks: %d\n", result.ChangedStocks)
	fmt.Printf("   Sheets touched: %d\n", result.SheetsTouched)
	fmt.Printf("   Alerts:         %d\n", result.Alerts)
	fmt.Printf("   Emails sent:    %d\n", result.EmailsSent)
	fmt.Printf("   Sheets written: %d\n", result.SheetsWritten)
	for _, id := range result.Skipped {
		fmt.Printf("   ⚠️  skipped %s (no owners)\n", id)
	}
	for _, id := range result.Failed {
		fmt.Printf("   ❌ failed %s\n", id)
	}

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d sheet writes failed", len(result.Failed))
	}
	return nil
}
