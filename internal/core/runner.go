package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// UserSource lists the users whose tasks the nightly batch should process.
type UserSource interface {
	ListAutoBumpUsers(ctx context.Context) ([]string, error)
}

// Notifier pushes a human-readable summary after a batch run. Satisfied by
// the notify package.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Runner triggers one auto-bump batch per day at the configured bump hour.
// Users are processed sequentially, which also serializes runs per user.
type Runner struct {
	bumper   *Bumper
	users    UserSource
	notifier Notifier
	logger   *slog.Logger
	location *time.Location

	cron *cron.Cron
	ctx  context.Context
}

// NewRunner constructs the nightly batch runner.
func NewRunner(bumper *Bumper, users UserSource, notifier Notifier, logger *slog.Logger, location *time.Location) *Runner {
	if location == nil {
		location = time.Local
	}
	return &Runner{
		bumper:   bumper,
		users:    users,
		notifier: notifier,
		logger:   logger,
		location: location,
		cron:     cron.New(cron.WithLocation(location)),
	}
}

// Start registers the daily entry and begins the cron loop. ctx is used for
// the batch runs triggered in the background.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	spec := fmt.Sprintf("0 %d * * *", r.bumper.Config().BumpHour)
	if _, err := r.cron.AddFunc(spec, r.runBatch); err != nil {
		return fmt.Errorf("schedule bump batch: %w", err)
	}
	r.cron.Start()
	r.logger.Info("bump batch scheduled", "cron", spec)
	return nil
}

// Stop stops the cron loop and returns a context that is done once any
// in-flight batch dispatch has finished.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

// RunNow executes one batch immediately, outside the cron schedule.
func (r *Runner) RunNow(ctx context.Context) (int, error) {
	return r.processAllUsers(ctx)
}

func (r *Runner) runBatch() {
	ctx := r.ctxOrBackground()
	if _, err := r.processAllUsers(ctx); err != nil {
		r.logger.Error("bump batch", "err", err)
	}
}

func (r *Runner) processAllUsers(ctx context.Context) (int, error) {
	userIDs, err := r.users.ListAutoBumpUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list auto-bump users: %w", err)
	}
	r.logger.Info("bump batch starting", "users", len(userIDs))

	totalBumped := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return totalBumped, err
		}
		result := r.bumper.ProcessAutoBump(ctx, userID)
		totalBumped += result.BumpedCount
		if !result.Success {
			r.logger.Error("bump run failed", "user_id", userID, "errors", result.Errors)
			continue
		}
		r.notifyUser(ctx, userID, result)
	}
	r.logger.Info("bump batch complete", "users", len(userIDs), "bumped", totalBumped)
	return totalBumped, nil
}

func (r *Runner) notifyUser(ctx context.Context, userID string, result BumpResult) {
	if r.notifier == nil || result.BumpedCount == 0 {
		return
	}
	body := fmt.Sprintf("Rescheduled %d task(s)", result.BumpedCount)
	if result.SkippedCount > 0 {
		body = fmt.Sprintf("%s, skipped %d", body, result.SkippedCount)
	}
	if err := r.notifier.Send(ctx, "Tasks rescheduled", body); err != nil {
		r.logger.Warn("send bump notification", "user_id", userID, "err", err)
	}
}

func (r *Runner) ctxOrBackground() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}
