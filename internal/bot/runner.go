// Package bot is the built-in account worker. It loads the account's
// credentials and settings, reports liveness and fires the daily schedule
// slots; the automation itself is out of scope.
package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/internal/supervisor"
	appLogger "github.com/fastygo/botfleet/pkg/logger"
	"github.com/fastygo/botfleet/repository"
)

// Workspace is the part of the account workspace a worker reads at startup.
type Workspace interface {
	ReadCookies(ctx context.Context, accountID string) (domain.CookieJar, error)
	ReadSettings(ctx context.Context, accountID string) (domain.Settings, error)
}

// HistorySource opens the activity history of an account.
type HistorySource interface {
	For(ctx context.Context, accountID string) (repository.HistoryRepository, error)
}

type Runner struct {
	workspace Workspace
	history   HistorySource
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewRunner(workspace Workspace, history HistorySource, heartbeat time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = 5 * time.Second
	}
	return &Runner{workspace: workspace, history: history, heartbeat: heartbeat, logger: logger}
}

var _ supervisor.TaskFunc = (&Runner{}).Run

// Run blocks until ctx is cancelled. Configuration problems are returned
// before the worker reports ready.
func (r *Runner) Run(ctx context.Context, accountID string, reporter supervisor.Reporter) error {
	log := appLogger.ForAccount(r.logger, accountID)

	if _, err := r.workspace.ReadCookies(ctx, accountID); err != nil {
		return domain.OpError("worker", accountID, err)
	}
	settings, err := r.workspace.ReadSettings(ctx, accountID)
	if err != nil {
		return domain.OpError("worker", accountID, err)
	}

	var hist repository.HistoryRepository
	if r.history != nil {
		if hist, err = r.history.For(ctx, accountID); err != nil {
			log.Warn("history unavailable, activity will not be recorded", zap.Error(err))
		}
	}

	scheduler, slots, err := r.schedule(ctx, settings.Schedule, hist, log)
	if err != nil {
		return domain.OpError("worker", accountID, err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	record(ctx, hist, log, domain.ActivityWorkerStarted, strings.Join(slots, ","))
	log.Info("worker ready", zap.Strings("slots", slots))
	reporter.Ready()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			reporter.Heartbeat()
		case <-ctx.Done():
			// the run context is gone; the final entry gets its own deadline
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			record(stopCtx, hist, log, domain.ActivityWorkerStopped, "")
			cancel()
			log.Info("worker stopped")
			return nil
		}
	}
}

func (r *Runner) schedule(ctx context.Context, sched domain.ScheduleSettings, hist repository.HistoryRepository, log *zap.Logger) (*cron.Cron, []string, error) {
	loc := time.UTC
	if sched.Timezone != "" {
		l, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidDocument, sched.Timezone)
		}
		loc = l
	}
	c := cron.New(cron.WithLocation(loc))
	if !sched.Enabled {
		return c, nil, nil
	}

	names := make([]string, 0, len(sched.Slots))
	for name := range sched.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	var active []string
	for _, name := range names {
		slot := sched.Slots[name]
		if !slot.Enabled {
			continue
		}
		spec, err := SlotSpec(slot.Time)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: slot %s: %v", domain.ErrInvalidDocument, name, err)
		}
		activity := domain.ActivitySlotPrefix + name
		if _, err := c.AddFunc(spec, func() {
			log.Info("slot fired", zap.String("slot", name))
			record(ctx, hist, log, activity, slot.Time)
		}); err != nil {
			return nil, nil, err
		}
		active = append(active, name)
	}
	return c, active, nil
}

// SlotSpec converts an HH:MM slot time into a daily cron spec.
func SlotSpec(hhmm string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return "", fmt.Errorf("time %q is not HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour %q out of range", h)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute %q out of range", m)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func record(ctx context.Context, hist repository.HistoryRepository, log *zap.Logger, activity, details string) {
	if hist == nil {
		return
	}
	entry := &domain.ActivityEntry{ActivityType: activity, Details: details, Success: true}
	if err := hist.LogActivity(ctx, entry); err != nil {
		log.Warn("failed to record activity", zap.String("activity", activity), zap.Error(err))
	}
}
