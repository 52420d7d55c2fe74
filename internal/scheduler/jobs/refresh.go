package jobs

import (
	"context"
	"errors"

	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

// PassRunner runs one refresh pass
type PassRunner interface {
	Run(ctx context.Context) (*tracker.PassResult, error)
}

// RefreshJob updates every stock price, mails alerts and rewrites the
// affected sheets.
type RefreshJob struct {
	runner   PassRunner
	schedule string
	logger   *logger.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(runner PassRunner, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh_stocks"
}

// Schedule returns the configured cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run executes one refresh pass
func (j *RefreshJob) Run(ctx context.Context) error {
	result, err := j.runner.Run(ctx)
	if errors.Is(err, tracker.ErrPassRunning) {
		j.logger.Warn("Refresh pass already running, skipping this run")
		return nil
	}
	if err != nil {
		return err
	}

	if len(result.Failed) > 0 {
		j.logger.WithFields(map[string]interface{}{
			"failed": result.Failed,
		}).Warn("Some sheets could not be written")
	}
	return nil
}
