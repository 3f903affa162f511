package service_test

import (
	"context"
	"testing"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/service"
)

func TestAlertRaisedAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// GAD7 threshold is 15: 7 answers of 2 stay below, 7 answers of 3 reach 21
	env.compile(t, env.patient(), "GAD7", 2)
	q := env.compile(t, env.patient(), "GAD7", 3)

	alerts, err := env.alerts.List(ctx, env.psychologist(), service.AlertListFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if alerts.Total != 1 {
		t.Fatalf("expected exactly one alert, got %d", alerts.Total)
	}
	alert := alerts.Items[0]
	if alert.QuestionnaireID != q.ID || alert.Status != models.AlertStatusOpen {
		t.Errorf("unexpected alert %+v", alert)
	}
	if alert.PsychologistID != env.fx.Psychologist.ID {
		t.Errorf("expected alert routed to %d, got %d", env.fx.Psychologist.ID, alert.PsychologistID)
	}

	found := false
	for _, kind := range env.notifier.Kinds() {
		if kind == "alert_raised" {
			found = true
		}
	}
	if !found {
		t.Error("expected an alert notification")
	}
}

func TestAlertRaisedOncePerQuestionnaire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	q := env.compile(t, env.patient(), "GAD7", 3)

	qt, err := env.store.Questionnaires().GetType(ctx, "GAD7")
	if err != nil {
		t.Fatalf("GetType returned error: %v", err)
	}
	again, err := env.alerts.RaiseForQuestionnaire(ctx, env.fx.Patient, q, qt)
	if err != nil {
		t.Fatalf("RaiseForQuestionnaire returned error: %v", err)
	}
	if again != nil {
		t.Errorf("expected no second alert, got %+v", again)
	}

	raised := 0
	for _, kind := range env.notifier.Kinds() {
		if kind == "alert_raised" {
			raised++
		}
	}
	if raised != 1 {
		t.Errorf("expected one alert notification, got %d", raised)
	}
}

func TestNoAlertWithoutPsychologistOrThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.compile(t, env.patient2(), "GAD7", 3) // unassigned patient
	env.compile(t, env.patient(), "WHO5", 5)  // type without threshold

	for _, actor := range []models.Identity{env.psychologist(), env.psychologist2()} {
		alerts, err := env.alerts.List(ctx, actor, service.AlertListFilter{})
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if alerts.Total != 0 {
			t.Errorf("expected no alerts, got %d", alerts.Total)
		}
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.compile(t, env.patient(), "PHQ9", 3)

	alerts, _ := env.alerts.List(ctx, env.psychologist(), service.AlertListFilter{Status: models.AlertStatusOpen})
	if alerts.Total != 1 {
		t.Fatalf("expected one open alert, got %d", alerts.Total)
	}
	id := alerts.Items[0].ID

	_, err := env.alerts.Acknowledge(ctx, env.psychologist2(), id)
	assertCode(t, err, apperr.CodeForbidden)

	acked, err := env.alerts.Acknowledge(ctx, env.psychologist(), id)
	if err != nil {
		t.Fatalf("Acknowledge returned error: %v", err)
	}
	if acked.Status != models.AlertStatusAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("unexpected alert after acknowledge: %+v", acked)
	}

	_, err = env.alerts.Acknowledge(ctx, env.psychologist(), id)
	assertCode(t, err, apperr.CodeInvalidState)

	_, err = env.alerts.Acknowledge(ctx, env.psychologist(), 9999)
	assertCode(t, err, apperr.CodeNotFound)

	_, err = env.alerts.List(ctx, env.patient(), service.AlertListFilter{})
	assertCode(t, err, apperr.CodeForbidden)
}
