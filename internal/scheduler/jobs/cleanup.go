package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/sheetalert/pkg/logger"
)

// Cleaner drops expired in-process entries and reports how many
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// CleanupJob purges expired sessions and cached quotes
type CleanupJob struct {
	targets  map[string]Cleaner
	schedule string
	logger   *logger.Logger
}

// NewCleanupJob creates a new cleanup job over the named targets
func NewCleanupJob(targets map[string]Cleaner, schedule string, log *logger.Logger) *CleanupJob {
	return &CleanupJob{
		targets:  targets,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the configured cron schedule
func (j *CleanupJob) Schedule() string {
	return j.schedule
}

// Run cleans every target. A failing target does not stop the others.
func (j *CleanupJob) Run(ctx context.Context) error {
	names := make([]string, 0, len(j.targets))
	for name := range j.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		removed, err := j.targets[name].Cleanup(ctx)
		if err != nil {
			j.logger.WithError(err).WithField("target", name).Error("Cleanup failed")
			failed = append(failed, name)
			continue
		}
		if removed > 0 {
			j.logger.WithFields(map[string]interface{}{
				"target":  name,
				"removed": removed,
			}).Info("Cleanup completed")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("cleanup failed for %v", failed)
	}
	return nil
}
