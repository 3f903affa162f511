package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sintonia/internal/config"
	"sintonia/internal/models"
	"sintonia/internal/repository"
	"sintonia/internal/testutil"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		want    schedule
		wantErr bool
	}{
		{"*/30 * * * *", schedule{kind: everyNMinutes, interval: 30}, false},
		{"15 */6 * * *", schedule{kind: everyNHours, interval: 6, minute: 15}, false},
		{"0 8 * * *", schedule{kind: daily, hour: 8}, false},
		{"30 9 * * 1", schedule{kind: weekly, hour: 9, minute: 30, weekday: time.Monday}, false},
		{"0 8 * *", schedule{}, true},
		{"*/0 * * * *", schedule{}, true},
		{"60 8 * * *", schedule{}, true},
		{"0 24 * * *", schedule{}, true},
		{"0 8 * * 7", schedule{}, true},
		{"0 */24 * * *", schedule{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := parseCron(tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.expr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCron returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestScheduleNext(t *testing.T) {
	// Wednesday
	from := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		sc   schedule
		want time.Time
	}{
		{"daily later today", schedule{kind: daily, hour: 18}, time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)},
		{"daily already passed", schedule{kind: daily, hour: 8}, time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)},
		{"daily exactly now", schedule{kind: daily, hour: 10, minute: 30}, time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)},
		{"weekly monday", schedule{kind: weekly, hour: 9, weekday: time.Monday}, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		{"weekly today passed", schedule{kind: weekly, hour: 9, weekday: time.Wednesday}, time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)},
		{"every 6 hours", schedule{kind: everyNHours, interval: 6, minute: 0}, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
		{"every 30 minutes", schedule{kind: everyNMinutes, interval: 30}, time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sc.next(from); !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func alertsOf(psychologistID uint) repository.AlertFilter {
	return repository.AlertFilter{PsychologistID: &psychologistID, Status: models.AlertStatusOpen}
}

func newTestScheduler(t *testing.T) (*Scheduler, *testutil.MemStore, *testutil.Fixtures, *testutil.RecordingNotifier, *fakeCleaner) {
	t.Helper()

	store := testutil.NewMemStore()
	fx := testutil.SetupFixtures(t, store.Users())
	notifier := &testutil.RecordingNotifier{}
	cleaner := &fakeCleaner{}
	s := NewScheduler(store.Users(), store.Invalidations(), store.Alerts(), cleaner, notifier, &config.SchedulerConfig{})
	return s, store, fx, notifier, cleaner
}

func TestInvalidationDigest(t *testing.T) {
	s, store, fx, notifier, _ := newTestScheduler(t)
	ctx := context.Background()

	s.sendInvalidationDigest(ctx)
	if len(notifier.Sent()) != 0 {
		t.Fatalf("expected no digest without pending requests, got %v", notifier.Kinds())
	}

	q := &models.Questionnaire{PatientID: fx.Patient.ID, TypeName: "PHQ9"}
	if err := store.Questionnaires().Create(ctx, q); err != nil {
		t.Fatalf("Create questionnaire: %v", err)
	}
	req := &models.InvalidationRequest{QuestionnaireID: q.ID, RequestingPsychologistID: fx.Psychologist.ID, Notes: "answered at random"}
	if err := store.Invalidations().Create(ctx, req); err != nil {
		t.Fatalf("Create request: %v", err)
	}

	s.sendInvalidationDigest(ctx)
	sent := notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one digest for the single admin, got %d", len(sent))
	}
	if sent[0].Kind != "invalidation_digest" || sent[0].Recipients[0] != fx.Admin.Email || sent[0].Subject != "1" {
		t.Errorf("unexpected digest %+v", sent[0])
	}
}

func TestAlertDigest(t *testing.T) {
	s, store, fx, notifier, _ := newTestScheduler(t)
	ctx := context.Background()

	for i, psychologistID := range []uint{fx.Psychologist.ID, fx.Psychologist.ID, fx.Psychologist2.ID} {
		alert := &models.Alert{
			PatientID:       fx.Patient.ID,
			PsychologistID:  psychologistID,
			QuestionnaireID: uint(100 + i),
			TypeName:        "K10",
			Score:           35,
			Threshold:       30,
		}
		if err := store.Alerts().Create(ctx, alert); err != nil {
			t.Fatalf("Create alert: %v", err)
		}
	}
	// Acknowledged alerts are left out
	open, _, _ := store.Alerts().List(ctx, alertsOf(fx.Psychologist2.ID))
	if err := store.Alerts().Acknowledge(ctx, open[0].ID, time.Now()); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	s.sendAlertDigest(ctx)
	sent := notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one digest, got %d (%v)", len(sent), notifier.Kinds())
	}
	if sent[0].Recipients[0] != fx.Psychologist.Email || sent[0].Subject != "2" {
		t.Errorf("unexpected digest %+v", sent[0])
	}
}

func TestDigestFailuresDoNotStopOthers(t *testing.T) {
	s, store, fx, notifier, _ := newTestScheduler(t)
	ctx := context.Background()
	notifier.Err = errors.New("smtp down")

	for _, psychologistID := range []uint{fx.Psychologist.ID, fx.Psychologist2.ID} {
		alert := &models.Alert{PatientID: fx.Patient.ID, PsychologistID: psychologistID, QuestionnaireID: psychologistID, TypeName: "K10"}
		if err := store.Alerts().Create(ctx, alert); err != nil {
			t.Fatalf("Create alert: %v", err)
		}
	}

	s.sendAlertDigest(ctx)
	if len(notifier.Sent()) != 2 {
		t.Errorf("expected both psychologists attempted, got %d", len(notifier.Sent()))
	}
}

func TestCleanupSessions(t *testing.T) {
	s, _, _, _, cleaner := newTestScheduler(t)

	s.cleanupSessions(context.Background())
	cleaner.err = errors.New("db down")
	s.cleanupSessions(context.Background())

	if n := cleaner.calls.Load(); n != 2 {
		t.Errorf("expected 2 cleanup calls, got %d", n)
	}
}

func TestStartAndStop(t *testing.T) {
	store := testutil.NewMemStore()
	cleaner := &fakeCleaner{}
	s := NewScheduler(store.Users(), store.Invalidations(), store.Alerts(), cleaner, &testutil.RecordingNotifier{}, &config.SchedulerConfig{
		SessionCleanupCron:       "*/30 * * * *",
		EnableSessionCleanup:     true,
		InvalidationDigestCron:   "not a cron",
		EnableInvalidationDigest: true,
	})

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for cleaner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if cleaner.calls.Load() == 0 {
		t.Error("expected interval task to run once at start")
	}
}
