package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"sintonia/internal/config"
	"sintonia/internal/models"
	"sintonia/internal/repository"
	"sintonia/internal/service"
)

// UserLister finds the recipients of the digests
type UserLister interface {
	ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// InvalidationLister finds pending invalidation requests
type InvalidationLister interface {
	List(ctx context.Context, filter repository.InvalidationFilter) ([]models.InvalidationRequest, int, error)
}

// AlertLister finds open alerts
type AlertLister interface {
	List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, int, error)
}

// SessionCleaner removes expired session rows
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler handles periodic tasks. None of them change workflow state.
type Scheduler struct {
	users         UserLister
	invalidations InvalidationLister
	alerts        AlertLister
	sessions      SessionCleaner
	notifier      service.Notifier
	config        *config.SchedulerConfig
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(
	users UserLister,
	invalidations InvalidationLister,
	alerts AlertLister,
	sessions SessionCleaner,
	notifier service.Notifier,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		users:         users,
		invalidations: invalidations,
		alerts:        alerts,
		sessions:      sessions,
		notifier:      notifier,
		config:        cfg,
		stopChan:      make(chan struct{}),
	}
}

// Start starts all enabled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"invalidation_digest_enabled", s.config.EnableInvalidationDigest,
		"alert_digest_enabled", s.config.EnableAlertDigest,
		"session_cleanup_enabled", s.config.EnableSessionCleanup)

	tasks := []struct {
		enabled bool
		cron    string
		name    string
		run     func(ctx context.Context)
	}{
		{s.config.EnableInvalidationDigest, s.config.InvalidationDigestCron, "invalidation_digest", s.sendInvalidationDigest},
		{s.config.EnableAlertDigest, s.config.AlertDigestCron, "alert_digest", s.sendAlertDigest},
		{s.config.EnableSessionCleanup, s.config.SessionCleanupCron, "session_cleanup", s.cleanupSessions},
	}
	for _, t := range tasks {
		if !t.enabled {
			continue
		}
		if err := s.startCronTask(t.cron, t.name, t.run); err != nil {
			slog.Error("Failed to start scheduled task", "task", t.name, "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

type scheduleKind int

const (
	everyNMinutes scheduleKind = iota
	everyNHours
	daily
	weekly
)

// schedule is a parsed subset of cron: "minute hour day month weekday".
// Supported: "*/n * * * *", "m */n * * *", "m h * * *" and "m h * * d".
type schedule struct {
	kind     scheduleKind
	interval int
	minute   int
	hour     int
	weekday  time.Weekday
}

func parseCron(expr string) (schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("invalid cron expression: %q (expected 5 fields)", expr)
	}

	if n, ok := strings.CutPrefix(parts[0], "*/"); ok {
		interval, err := strconv.Atoi(n)
		if err != nil || interval < 1 || interval > 59 {
			return schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return schedule{kind: everyNMinutes, interval: interval}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if n, ok := strings.CutPrefix(parts[1], "*/"); ok {
		interval, err := strconv.Atoi(n)
		if err != nil || interval < 1 || interval > 23 {
			return schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return schedule{kind: everyNHours, interval: interval, minute: minute}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		return schedule{kind: daily, minute: minute, hour: hour}, nil
	}
	weekday, err := strconv.Atoi(parts[4])
	if err != nil || weekday < 0 || weekday > 6 {
		return schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
	}
	return schedule{kind: weekly, minute: minute, hour: hour, weekday: time.Weekday(weekday)}, nil
}

// next returns the first run strictly after from
func (sc schedule) next(from time.Time) time.Time {
	switch sc.kind {
	case everyNMinutes:
		return from.Add(time.Duration(sc.interval) * time.Minute)
	case everyNHours:
		next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), sc.minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
		for next.Hour()%sc.interval != 0 {
			next = next.Add(time.Hour)
		}
		return next
	case weekly:
		next := time.Date(from.Year(), from.Month(), from.Day(), sc.hour, sc.minute, 0, 0, from.Location())
		days := int(sc.weekday - from.Weekday())
		if days < 0 {
			days += 7
		}
		next = next.AddDate(0, 0, days)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		next := time.Date(from.Year(), from.Month(), from.Day(), sc.hour, sc.minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// startCronTask parses a cron expression and runs the task on it until Stop.
// Interval tasks also run once right away.
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func(ctx context.Context)) error {
	sc, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-s.stopChan
			cancel()
		}()

		if sc.kind == everyNMinutes {
			s.runTask(ctx, taskName, task)
		}
		for {
			now := time.Now()
			next := sc.next(now)
			slog.Info("Next task run scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
				s.runTask(ctx, taskName, task)
			case <-s.stopChan:
				timer.Stop()
				return
			}
		}
	}()
	return nil
}

func (s *Scheduler) runTask(ctx context.Context, taskName string, task func(ctx context.Context)) {
	start := time.Now()
	slog.Info("Running scheduled task", "task", taskName)
	task(ctx)
	slog.Info("Scheduled task finished", "task", taskName, "duration", time.Since(start))
}

// sendInvalidationDigest sends every active admin the pending invalidation requests
func (s *Scheduler) sendInvalidationDigest(ctx context.Context) {
	pending, _, err := s.invalidations.List(ctx, repository.InvalidationFilter{Status: models.InvalidationPending})
	if err != nil {
		slog.Error("Failed to list pending invalidation requests", "error", err)
		return
	}
	if len(pending) == 0 {
		slog.Info("No pending invalidation requests")
		return
	}

	admins, err := s.users.ListActiveByRole(ctx, models.RoleAdmin)
	if err != nil {
		slog.Error("Failed to list admins", "error", err)
		return
	}

	sent := 0
	for i := range admins {
		if err := s.notifier.PendingInvalidationDigest(ctx, &admins[i], pending); err != nil {
			slog.Error("Failed to send invalidation digest", "admin_email", admins[i].Email, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Invalidation digests completed", "digests_sent", sent, "pending_requests", len(pending))
}

// sendAlertDigest sends every active psychologist their open alerts
func (s *Scheduler) sendAlertDigest(ctx context.Context) {
	psychologists, err := s.users.ListActiveByRole(ctx, models.RolePsychologist)
	if err != nil {
		slog.Error("Failed to list psychologists", "error", err)
		return
	}

	sent := 0
	for i := range psychologists {
		psychologist := &psychologists[i]
		open, _, err := s.alerts.List(ctx, repository.AlertFilter{
			PsychologistID: &psychologist.ID,
			Status:         models.AlertStatusOpen,
		})
		if err != nil {
			slog.Error("Failed to list open alerts", "psychologist_id", psychologist.ID, "error", err)
			continue
		}
		if len(open) == 0 {
			continue
		}
		if err := s.notifier.OpenAlertDigest(ctx, psychologist, open); err != nil {
			slog.Error("Failed to send alert digest", "psychologist_email", psychologist.Email, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Alert digests completed", "digests_sent", sent)
}

// cleanupSessions removes expired session rows
func (s *Scheduler) cleanupSessions(ctx context.Context) {
	removed, err := s.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		slog.Error("Failed to clean up expired sessions", "error", err)
		return
	}
	slog.Info("Expired sessions cleaned up", "removed", removed)
}
