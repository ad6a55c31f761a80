// Package retention prunes old trigger history on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner deletes history recorded before a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job keeps the trigger history within the retention window.
type Job struct {
	pruner Pruner
	keep   time.Duration
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

func NewJob(pruner Pruner, keep time.Duration, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("retention")
	cronLog := cronLogger{logger.Sugar()}
	return &Job{
		pruner: pruner,
		keep:   keep,
		cron:   cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)), cron.WithLogger(cronLog)),
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the prune with a standard five-field spec or a descriptor
// such as "@daily". A non-positive retention disables pruning.
func (j *Job) Start(schedule string) error {
	if j.keep <= 0 {
		j.logger.Info("history retention disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Warn("history prune failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	return nil
}

// Stop waits for a running prune to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce deletes everything older than the retention window.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.keep)
	removed, err := j.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		j.logger.Info("pruned trigger history", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
