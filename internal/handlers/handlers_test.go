package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sintonia/internal/config"
	"sintonia/internal/middleware"
	"sintonia/internal/models"
	"sintonia/internal/service"
	"sintonia/internal/testutil"
	"sintonia/internal/vault"
)

type testServer struct {
	handler http.Handler
	store   *testutil.MemStore
	fx      *testutil.Fixtures
	auth    *testutil.AuthHelper
}

func newTestServer(t *testing.T, checks ...HealthCheck) *testServer {
	t.Helper()

	store := testutil.NewMemStore()
	notifier := &testutil.RecordingNotifier{}
	authSvc := testutil.NewAuthService()
	cfg := &config.Config{App: config.AppConfig{Name: "Sintonia", Version: "1.2.0", Env: "test"}}

	audit := service.NewAuditService(store.Audit())
	alerts := service.NewAlertService(store.Alerts(), store.Users(), audit, notifier, service.Sync)
	authService := service.NewAuthService(store.Users(), store.Sessions(), authSvc, audit)

	h := &Handlers{
		Auth:          NewAuthHandler(authService, cfg),
		Profile:       NewProfileHandler(service.NewProfileService(store.Users(), store.Sessions(), authSvc, audit), authService),
		Questionnaire: NewQuestionnaireHandler(service.NewQuestionnaireService(store.Questionnaires(), store.Invalidations(), store.Users(), vault.PlainSealer{}, alerts, audit)),
		Workflow:      NewWorkflowHandler(service.NewWorkflowService(store.Questionnaires(), store.Invalidations(), store.Users(), audit, notifier, service.Sync)),
		Forum:         NewForumHandler(service.NewForumService(store.Forum(), audit)),
		Alert:         NewAlertHandler(alerts),
		User:          NewUserHandler(service.NewRosterService(store.Users(), store.Sessions(), authSvc, audit)),
		Audit:         NewAuditHandler(audit),
		Config:        NewConfigHandler(cfg, checks...),
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, h, middleware.NewAuthMiddleware(authService))

	return &testServer{
		handler: mux,
		store:   store,
		fx:      testutil.SetupFixtures(t, store.Users()),
		auth:    testutil.NewAuthHelper(authSvc, store.Sessions()),
	}
}

// do sends a request as user (anonymous when nil); body is JSON encoded unless it is a string
func (s *testServer) do(t *testing.T, method, path string, body any, user *models.User) *testutil.TestResponse {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	}

	var req *http.Request
	if user != nil {
		req = s.auth.CreateAuthenticatedRequest(t, method, path, reader, user)
	} else {
		req = httptest.NewRequest(method, path, reader)
	}
	resp := testutil.NewTestResponse()
	s.handler.ServeHTTP(resp, req)
	return resp
}

// compile submits a questionnaire where every slot has value
func (s *testServer) compile(t *testing.T, patient *models.User, typeName string, slots int, value float64) *models.Questionnaire {
	t.Helper()

	answers := make(map[string]float64, slots)
	for i := 1; i <= slots; i++ {
		answers[fmt.Sprintf("q%d", i)] = value
	}
	resp := s.do(t, http.MethodPost, "/api/v1/questionnaires", map[string]any{"type_name": typeName, "answers": answers}, patient)
	resp.AssertStatus(t, http.StatusCreated)

	var q models.Questionnaire
	resp.Decode(t, &q)
	return &q
}

func TestReviewAndInvalidationFlow(t *testing.T) {
	s := newTestServer(t)
	q := s.compile(t, s.fx.Patient, "PHQ9", 9, 1)
	base := fmt.Sprintf("/api/v1/questionnaires/%d", q.ID)

	resp := s.do(t, http.MethodPost, base+"/review", nil, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusOK)
	var reviewed models.Questionnaire
	resp.Decode(t, &reviewed)
	if !reviewed.Reviewed || reviewed.ReviewingPsychologistID == nil || *reviewed.ReviewingPsychologistID != s.fx.Psychologist.ID {
		t.Fatalf("expected questionnaire reviewed by psychologist, got %+v", reviewed)
	}

	resp = s.do(t, http.MethodPost, base+"/invalidation-requests", InvalidationNotesRequest{Notes: "answered at random"}, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusCreated)
	var req models.InvalidationRequest
	resp.Decode(t, &req)
	if req.Status != models.InvalidationPending {
		t.Fatalf("expected pending request, got %s", req.Status)
	}

	resp = s.do(t, http.MethodPost, base+"/invalidation-requests", InvalidationNotesRequest{Notes: "again"}, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusConflict)
	if code := resp.ErrorCode(t); code != "conflict" {
		t.Errorf("expected conflict for a second pending request, got %s", code)
	}

	accept := fmt.Sprintf("/api/v1/invalidation-requests/%d/accept", req.ID)
	resp = s.do(t, http.MethodPost, accept, nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)
	var decision InvalidationDecisionResponse
	resp.Decode(t, &decision)
	if decision.Request == nil || decision.Request.Status != models.InvalidationApproved {
		t.Errorf("expected approved request, got %+v", decision.Request)
	}
	if decision.Questionnaire == nil || !decision.Questionnaire.Invalidated {
		t.Errorf("expected invalidated questionnaire, got %+v", decision.Questionnaire)
	}

	resp = s.do(t, http.MethodPost, accept, nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusConflict)

	resp = s.do(t, http.MethodPost, base+"/review", nil, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusConflict)

	resp = s.do(t, http.MethodPost, base+"/invalidation-requests", InvalidationNotesRequest{Notes: "late"}, s.fx.Psychologist2)
	resp.AssertStatus(t, http.StatusConflict)
	if code := resp.ErrorCode(t); code != "invalid_state" {
		t.Errorf("expected invalid_state on an invalidated questionnaire, got %s", code)
	}
}

func TestInvalidationRequestOrder(t *testing.T) {
	s := newTestServer(t)
	var ids []uint
	for i := 0; i < 2; i++ {
		q := s.compile(t, s.fx.Patient, "WHO5", 5, 1)
		resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/questionnaires/%d/invalidation-requests", q.ID), InvalidationNotesRequest{Notes: "unreliable"}, s.fx.Psychologist)
		resp.AssertStatus(t, http.StatusCreated)
		var req models.InvalidationRequest
		resp.Decode(t, &req)
		ids = append(ids, req.ID)
	}

	tests := []struct {
		query string
		first uint
	}{
		{"", ids[0]},
		{"?order=asc", ids[0]},
		{"?order=desc", ids[1]},
	}
	for _, tt := range tests {
		resp := s.do(t, http.MethodGet, "/api/v1/invalidation-requests"+tt.query, nil, s.fx.Admin)
		resp.AssertStatus(t, http.StatusOK)
		var list ListResponse[models.InvalidationRequest]
		resp.Decode(t, &list)
		if len(list.Data) != 2 || list.Data[0].ID != tt.first {
			t.Errorf("%q: expected request %d first, got %+v", tt.query, tt.first, list.Data)
		}
	}
}

func TestCancelRevisionRequiresReview(t *testing.T) {
	s := newTestServer(t)
	q := s.compile(t, s.fx.Patient, "GAD7", 7, 1)
	path := fmt.Sprintf("/api/v1/questionnaires/%d/cancel-revision", q.ID)

	resp := s.do(t, http.MethodPost, path, nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusConflict)

	s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/questionnaires/%d/review", q.ID), nil, s.fx.Psychologist).AssertStatus(t, http.StatusOK)

	resp = s.do(t, http.MethodPost, path, nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)
	var cleared models.Questionnaire
	resp.Decode(t, &cleared)
	if cleared.Reviewed || cleared.ReviewingPsychologistID != nil {
		t.Errorf("expected review cleared, got %+v", cleared)
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	q := s.compile(t, s.fx.Patient, "WHO5", 5, 2)
	qPath := fmt.Sprintf("/api/v1/questionnaires/%d", q.ID)

	tests := []struct {
		name       string
		method     string
		path       string
		user       *models.User
		wantStatus int
	}{
		{"anonymous questionnaire list", http.MethodGet, "/api/v1/questionnaires", nil, http.StatusUnauthorized},
		{"patient reviews", http.MethodPost, qPath + "/review", s.fx.Patient, http.StatusForbidden},
		{"psychologist cancels revision", http.MethodPost, qPath + "/cancel-revision", s.fx.Psychologist, http.StatusForbidden},
		{"psychologist accepts", http.MethodPost, "/api/v1/invalidation-requests/1/accept", s.fx.Psychologist, http.StatusForbidden},
		{"psychologist rejects", http.MethodPost, "/api/v1/invalidation-requests/1/reject", s.fx.Psychologist, http.StatusForbidden},
		{"patient lists requests", http.MethodGet, "/api/v1/invalidation-requests", s.fx.Patient, http.StatusForbidden},
		{"psychologist compiles", http.MethodPost, "/api/v1/questionnaires", s.fx.Psychologist, http.StatusForbidden},
		{"patient lists alerts", http.MethodGet, "/api/v1/alerts", s.fx.Patient, http.StatusForbidden},
		{"psychologist lists users", http.MethodGet, "/api/v1/admin/users", s.fx.Psychologist, http.StatusForbidden},
		{"patient reads audit", http.MethodGet, "/api/v1/admin/audit-logs", s.fx.Patient, http.StatusForbidden},
		{"other psychologist reads questionnaire", http.MethodGet, qPath, s.fx.Psychologist2, http.StatusForbidden},
		{"other patient reads questionnaire", http.MethodGet, qPath, s.fx.Patient2, http.StatusNotFound},
		{"assigned psychologist reads questionnaire", http.MethodGet, qPath, s.fx.Psychologist, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.do(t, tt.method, tt.path, nil, tt.user).AssertStatus(t, tt.wantStatus)
		})
	}
}

func TestBadInput(t *testing.T) {
	s := newTestServer(t)
	q := s.compile(t, s.fx.Patient, "WHO5", 5, 2)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		user       *models.User
		wantStatus int
		wantCode   string
	}{
		{"malformed json", http.MethodPost, "/api/v1/questionnaires", `{"type_name":`, s.fx.Patient, http.StatusBadRequest, "validation"},
		{"non numeric id", http.MethodGet, "/api/v1/questionnaires/abc", nil, s.fx.Patient, http.StatusBadRequest, "validation"},
		{"unknown questionnaire", http.MethodGet, "/api/v1/questionnaires/9999", nil, s.fx.Admin, http.StatusNotFound, "not_found"},
		{"unknown type", http.MethodPost, "/api/v1/questionnaires", CompileRequest{TypeName: "NOPE"}, s.fx.Patient, http.StatusUnprocessableEntity, "validation"},
		{"missing notes", http.MethodPost, fmt.Sprintf("/api/v1/questionnaires/%d/invalidation-requests", q.ID), InvalidationNotesRequest{}, s.fx.Psychologist, http.StatusUnprocessableEntity, "validation"},
		{"bad boolean filter", http.MethodGet, "/api/v1/questionnaires?reviewed=maybe", nil, s.fx.Admin, http.StatusUnprocessableEntity, "validation"},
		{"bad status filter", http.MethodGet, "/api/v1/invalidation-requests?status=done", nil, s.fx.Admin, http.StatusUnprocessableEntity, "validation"},
		{"malformed profile email", http.MethodPut, "/api/v1/users/me", service.UpdateProfileRequest{Email: "not-an-email", FirstName: "Marco", LastName: "Verdi"}, s.fx.Patient, http.StatusUnprocessableEntity, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.body, tt.user)
			resp.AssertStatus(t, tt.wantStatus)
			if code := resp.ErrorCode(t); code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "patient@test.com", Password: "wrong"}, nil)
	resp.AssertStatus(t, http.StatusUnauthorized)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "patient@test.com", Password: testutil.FixturePassword}, nil)
	resp.AssertStatus(t, http.StatusOK)
	var login TokenResponse
	resp.Decode(t, &login)
	cookie := refreshCookie(t, resp)
	if !cookie.HttpOnly || cookie.Path != refreshCookiePath {
		t.Errorf("expected HTTP-only refresh cookie on %s, got %+v", refreshCookiePath, cookie)
	}
	if login.User == nil || login.User.ID != s.fx.Patient.ID || login.TokenType != "Bearer" {
		t.Fatalf("unexpected login response %+v", login)
	}

	refresh := func(c *http.Cookie) *testutil.TestResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		if c != nil {
			req.AddCookie(c)
		}
		r := testutil.NewTestResponse()
		s.handler.ServeHTTP(r, req)
		return r
	}

	resp = refresh(cookie)
	resp.AssertStatus(t, http.StatusOK)
	var refreshed TokenResponse
	resp.Decode(t, &refreshed)
	rotated := refreshCookie(t, resp)
	if rotated.Value == cookie.Value {
		t.Error("expected a new refresh token")
	}

	refresh(cookie).AssertStatus(t, http.StatusUnauthorized)
	refresh(nil).AssertStatus(t, http.StatusUnauthorized)

	// The access token of the rotated session still works until logout
	me := func(token string) *testutil.TestResponse {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r := testutil.NewTestResponse()
		s.handler.ServeHTTP(r, req)
		return r
	}
	me(refreshed.AccessToken).AssertStatus(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)
	logout := testutil.NewTestResponse()
	s.handler.ServeHTTP(logout, req)
	logout.AssertStatus(t, http.StatusNoContent)

	me(refreshed.AccessToken).AssertStatus(t, http.StatusUnauthorized)
}

func refreshCookie(t *testing.T, resp *testutil.TestResponse) *http.Cookie {
	t.Helper()

	for _, c := range resp.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("expected %s cookie in response", refreshCookieName)
	return nil
}

func TestSessions(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "psy@test.com", Password: testutil.FixturePassword}, nil)
	resp.AssertStatus(t, http.StatusOK)
	var login TokenResponse
	resp.Decode(t, &login)

	resp = s.do(t, http.MethodGet, "/api/v1/users/me/sessions", nil, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusOK)
	var sessions []models.Session
	resp.Decode(t, &sessions)
	if len(sessions) != 1 || sessions[0].SessionID != login.SessionID {
		t.Fatalf("expected the login session, got %+v", sessions)
	}

	s.do(t, http.MethodDelete, "/api/v1/users/me/sessions/"+login.SessionID, nil, s.fx.Psychologist).AssertStatus(t, http.StatusNoContent)
	s.do(t, http.MethodDelete, "/api/v1/users/me/sessions/"+login.SessionID, nil, s.fx.Psychologist).AssertStatus(t, http.StatusNotFound)
	s.do(t, http.MethodDelete, "/api/v1/users/me/sessions", nil, s.fx.Psychologist).AssertStatus(t, http.StatusNoContent)
}

func TestListEnvelope(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/forum/questions", nil, s.fx.Patient)
	resp.AssertStatus(t, http.StatusOK)
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"data":[]`)) {
		t.Errorf("expected empty data array, got %s", resp.Body.String())
	}

	// PHQ9 with every answer at 3 scores 27, above the threshold of 20
	s.compile(t, s.fx.Patient, "PHQ9", 9, 3)
	s.compile(t, s.fx.Patient, "PHQ9", 9, 0)

	resp = s.do(t, http.MethodGet, "/api/v1/questionnaires?per_page=1", nil, s.fx.Patient)
	resp.AssertStatus(t, http.StatusOK)
	var list ListResponse[models.Questionnaire]
	resp.Decode(t, &list)
	if len(list.Data) != 1 || list.Pagination.Total != 2 || list.Pagination.TotalPages != 2 || list.Pagination.PerPage != 1 {
		t.Errorf("unexpected page %+v", list.Pagination)
	}
	if list.Data[0].Answers != nil {
		t.Error("expected answers left out of listings")
	}

	resp = s.do(t, http.MethodGet, "/api/v1/alerts?status=open", nil, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusOK)
	var alerts ListResponse[models.Alert]
	resp.Decode(t, &alerts)
	if len(alerts.Data) != 1 {
		t.Fatalf("expected one open alert, got %d", len(alerts.Data))
	}

	ack := fmt.Sprintf("/api/v1/alerts/%d/acknowledge", alerts.Data[0].ID)
	s.do(t, http.MethodPost, ack, nil, s.fx.Psychologist).AssertStatus(t, http.StatusOK)
	s.do(t, http.MethodPost, ack, nil, s.fx.Psychologist).AssertStatus(t, http.StatusConflict)
}

func TestForumAnswerOwnership(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/forum/questions", service.AskQuestionRequest{
		Title: "Sleep problems",
		Body:  "I wake up every night at 4am and cannot fall asleep again.",
	}, s.fx.Patient)
	resp.AssertStatus(t, http.StatusCreated)
	var question models.ForumQuestion
	resp.Decode(t, &question)
	if bytes.Contains(resp.Body.Bytes(), []byte("patient_id")) {
		t.Error("expected the author to stay anonymous")
	}

	text := "Try keeping a regular schedule and avoid screens before bed."
	resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/forum/questions/%d/answers", question.ID), AnswerRequest{Text: text}, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusCreated)
	var answer models.ForumAnswer
	resp.Decode(t, &answer)

	answerPath := fmt.Sprintf("/api/v1/forum/answers/%d", answer.ID)
	s.do(t, http.MethodPut, answerPath, AnswerRequest{Text: "Someone else rewrote this answer entirely."}, s.fx.Psychologist2).AssertStatus(t, http.StatusForbidden)
	s.do(t, http.MethodPut, answerPath, AnswerRequest{Text: "short"}, s.fx.Psychologist).AssertStatus(t, http.StatusUnprocessableEntity)

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/forum/questions/%d", question.ID), nil, s.fx.Patient2)
	resp.AssertStatus(t, http.StatusOK)
	var withAnswers models.ForumQuestion
	resp.Decode(t, &withAnswers)
	if len(withAnswers.Answers) != 1 || withAnswers.Answers[0].Text != text {
		t.Errorf("expected the original answer text, got %+v", withAnswers.Answers)
	}

	s.do(t, http.MethodDelete, answerPath, nil, s.fx.Psychologist2).AssertStatus(t, http.StatusForbidden)
	s.do(t, http.MethodDelete, answerPath, nil, s.fx.Psychologist).AssertStatus(t, http.StatusNoContent)
	s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/forum/questions/%d", question.ID), nil, s.fx.Admin).AssertStatus(t, http.StatusNoContent)
}

func TestAdminRoster(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/admin/users", service.CreateUserRequest{
		Email:     "new.patient@test.com",
		Password:  "a-long-password",
		FirstName: "Luca",
		LastName:  "Gallo",
		Role:      models.RolePatient,
	}, s.fx.Admin)
	resp.AssertStatus(t, http.StatusCreated)
	var created models.User
	resp.Decode(t, &created)

	resp = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/psychologist", created.ID), AssignPsychologistRequest{PsychologistID: &s.fx.Psychologist.ID}, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)

	resp = s.do(t, http.MethodGet, "/api/v1/psychologist/patients", nil, s.fx.Psychologist)
	resp.AssertStatus(t, http.StatusOK)
	var patients ListResponse[models.User]
	resp.Decode(t, &patients)
	if patients.Pagination.Total != 2 {
		t.Errorf("expected 2 assigned patients, got %d", patients.Pagination.Total)
	}

	resp = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/status", created.ID), UpdateStatusRequest{Status: models.UserStatusInactive}, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/users?role=patient&status=inactive", nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)
	var inactive ListResponse[models.User]
	resp.Decode(t, &inactive)
	if len(inactive.Data) != 1 || inactive.Data[0].ID != created.ID {
		t.Errorf("expected only the deactivated patient, got %+v", inactive.Data)
	}

	s.do(t, http.MethodGet, "/api/v1/admin/users?role=wizard", nil, s.fx.Admin).AssertStatus(t, http.StatusUnprocessableEntity)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?action="+service.AuditUserCreated, nil, s.fx.Admin)
	resp.AssertStatus(t, http.StatusOK)
	var logs ListResponse[models.AuditLog]
	resp.Decode(t, &logs)
	if len(logs.Data) != 1 || logs.Data[0].UserID == nil || *logs.Data[0].UserID != s.fx.Admin.ID {
		t.Errorf("expected one user creation entry by the admin, got %+v", logs.Data)
	}
}

func TestAppConfigAndHealth(t *testing.T) {
	s := newTestServer(t,
		HealthCheck{Name: "database", Check: func(ctx context.Context) error { return nil }},
		HealthCheck{Name: "vault", Check: func(ctx context.Context) error { return errors.New("sealed") }},
	)

	resp := s.do(t, http.MethodGet, "/api/v1/config/app", nil, nil)
	resp.AssertStatus(t, http.StatusOK)
	var cfg AppConfigResponse
	resp.Decode(t, &cfg)
	if cfg.Name != "Sintonia" || cfg.Forum.AnswerMin != models.ForumAnswerMinLength || cfg.Forum.TitleMax != models.ForumTitleMaxLength {
		t.Errorf("unexpected app config %+v", cfg)
	}

	resp = s.do(t, http.MethodGet, "/health", nil, nil)
	resp.AssertStatus(t, http.StatusServiceUnavailable)
	var health HealthResponse
	resp.Decode(t, &health)
	if health.Status != "degraded" || health.Checks["database"] != "ok" || health.Checks["vault"] != "unavailable" {
		t.Errorf("unexpected health %+v", health)
	}
}
