package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sheetalert/pkg/database"
)

// migrateCmd creates the postgres schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "데이터베이스 스키마 생성",
	Long: `PostgreSQL 스키마를 생성합니다. 이미 있는 테이블은 건드리지 않습니다.

Example:
  go run ./cmd/sheetalert migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	health, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	fmt.Println("✅ Schema ready")
	fmt.Printf("   Connections: %d total, %d idle\n", health.Stats.TotalConns, health.Stats.IdleConns)
	return nil
}
