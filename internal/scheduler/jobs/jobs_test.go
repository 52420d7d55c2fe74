package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

type fakeRunner struct {
	result *tracker.PassResult
	err    error
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context) (*tracker.PassResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeCleaner struct {
	removed int
	err     error
	calls   int
}

func (f *fakeCleaner) Cleanup(ctx context.Context) (int, error) {
	f.calls++
	return f.removed, f.err
}

func TestRefreshJob(t *testing.T) {
	runner := &fakeRunner{result: &tracker.PassResult{Failed: []string{"s1"}}}
	job := NewRefreshJob(runner, "0 */15 * * * *", logger.Nop())

	assert.Equal(t, "refresh_stocks", job.Name())
	assert.Equal(t, "0 */15 * * * *", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)

	runner.err = assert.AnError
	assert.ErrorIs(t, job.Run(context.Background()), assert.AnError)

	// an HTTP-triggered pass in flight is not a job failure
	runner.result, runner.err = nil, tracker.ErrPassRunning
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, runner.calls)
}

func TestCleanupJob(t *testing.T) {
	sessions := &fakeCleaner{removed: 3}
	quotes := &fakeCleaner{}
	job := NewCleanupJob(map[string]Cleaner{"sessions": sessions, "quotes": quotes}, "@every 10m", logger.Nop())

	assert.Equal(t, "cache_cleanup", job.Name())
	assert.Equal(t, "@every 10m", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sessions.calls)
	assert.Equal(t, 1, quotes.calls)

	sessions.err = assert.AnError
	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "sessions")
	assert.Equal(t, 2, quotes.calls)
}
