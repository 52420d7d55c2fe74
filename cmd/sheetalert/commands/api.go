package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sheetalert/internal/api"
	"github.com/wonny/sheetalert/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `HTTP 서버를 시작합니다.

Endpoints:
  GET  /health          - Health check
  GET  /oauth2callback  - Google 로그인
  GET  /                - 내 시트 목록
  GET  /settings        - 알림 설정 조회
  POST /settings        - 알림 설정 변경
  GET  /create          - 새 시트 생성
  POST /delete          - 시트 등록 해제
  POST /sync            - 시트 동기화
  GET  /update_stocks   - 가격 갱신 (외부 cron)
  GET  /ws              - 실시간 이벤트

Example:
  go run ./cmd/sheetalert api
  go run ./cmd/sheetalert api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "같은 프로세스에서 스케줄러 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sheet Alert API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	if err := a.migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log := a.logger
	router := api.NewRouter(api.Handlers{
		Health:   handlers.NewHealthHandler(a.healthChecks(), a.hub),
		Auth:     handlers.NewAuthHandler(a.oauth, a.sessions, a.accounts, log),
		Sheets:   handlers.NewSheetHandler(a.accounts, a.reconciler, a.sheets, a.hub, log),
		Settings: handlers.NewSettingsHandler(a.accounts, log),
		Refresh:  handlers.NewRefreshHandler(a.refresher, a.cfg.Scheduler.CronToken, log),
		Realtime: handlers.NewRealtimeHandler(a.hub, a.cfg.BaseURL, log),
	}, a.sessions, log)

	server := api.New(a.cfg, log, router, a.hub.Close)

	if withScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.WithField("jobs", sched.GetAllJobs()).Info("Scheduler started")
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
