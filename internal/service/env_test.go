package service_test

import (
	"context"
	"errors"
	"testing"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/repository"
	"sintonia/internal/service"
	"sintonia/internal/testutil"
	"sintonia/internal/vault"
)

// testEnv wires every service on one in-memory store with inline notifications
type testEnv struct {
	store    *testutil.MemStore
	fx       *testutil.Fixtures
	notifier *testutil.RecordingNotifier

	audit          *service.AuditService
	alerts         *service.AlertService
	questionnaires *service.QuestionnaireService
	workflow       *service.WorkflowService
	forum          *service.ForumService
	roster         *service.RosterService
	profile        *service.ProfileService
	auth           *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewMemStore()
	notifier := &testutil.RecordingNotifier{}
	authSvc := testutil.NewAuthService()

	audit := service.NewAuditService(store.Audit())
	alerts := service.NewAlertService(store.Alerts(), store.Users(), audit, notifier, service.Sync)

	return &testEnv{
		store:          store,
		fx:             testutil.SetupFixtures(t, store.Users()),
		notifier:       notifier,
		audit:          audit,
		alerts:         alerts,
		questionnaires: service.NewQuestionnaireService(store.Questionnaires(), store.Invalidations(), store.Users(), vault.PlainSealer{}, alerts, audit),
		workflow:       service.NewWorkflowService(store.Questionnaires(), store.Invalidations(), store.Users(), audit, notifier, service.Sync),
		forum:          service.NewForumService(store.Forum(), audit),
		roster:         service.NewRosterService(store.Users(), store.Sessions(), authSvc, audit),
		profile:        service.NewProfileService(store.Users(), store.Sessions(), authSvc, audit),
		auth:           service.NewAuthService(store.Users(), store.Sessions(), authSvc, audit),
	}
}

func (e *testEnv) admin() models.Identity         { return testutil.Identity(e.fx.Admin) }
func (e *testEnv) psychologist() models.Identity  { return testutil.Identity(e.fx.Psychologist) }
func (e *testEnv) psychologist2() models.Identity { return testutil.Identity(e.fx.Psychologist2) }
func (e *testEnv) patient() models.Identity       { return testutil.Identity(e.fx.Patient) }
func (e *testEnv) patient2() models.Identity      { return testutil.Identity(e.fx.Patient2) }

// compile stores a questionnaire of typeName for patient where every slot is value
func (e *testEnv) compile(t *testing.T, patient models.Identity, typeName string, value float64) *models.Questionnaire {
	t.Helper()

	qt, err := e.store.Questionnaires().GetType(context.Background(), typeName)
	if err != nil {
		t.Fatalf("unknown type %s: %v", typeName, err)
	}
	answers := make(models.Answers, qt.QuestionCount)
	for _, slot := range qt.Slots() {
		answers[slot] = models.NumberAnswer(value)
	}

	q, err := e.questionnaires.Compile(context.Background(), patient, typeName, answers)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	return q
}

// requestInvalidation files a pending request by the first psychologist
func (e *testEnv) requestInvalidation(t *testing.T, questionnaireID uint) *models.InvalidationRequest {
	t.Helper()

	req, err := e.workflow.RequestInvalidation(context.Background(), e.psychologist(), questionnaireID, "patient reported answering at random")
	if err != nil {
		t.Fatalf("RequestInvalidation returned error: %v", err)
	}
	return req
}

func assertCode(t *testing.T, err error, want apperr.Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error with code %s, got %T: %v", want, err, err)
	}
	if appErr.Code != want {
		t.Fatalf("expected code %s, got %s (%v)", want, appErr.Code, err)
	}
}

func repositoryPending(questionnaireID uint) repository.InvalidationFilter {
	return repository.InvalidationFilter{Status: models.InvalidationPending, QuestionnaireID: &questionnaireID}
}

func repositoryAll() repository.QuestionnaireFilter {
	return repository.QuestionnaireFilter{}
}
