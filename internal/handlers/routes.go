package handlers

import (
	"net/http"

	"sintonia/internal/middleware"
	"sintonia/internal/models"
)

// Handlers bundles every API handler for route registration
type Handlers struct {
	Auth          *AuthHandler
	Profile       *ProfileHandler
	Questionnaire *QuestionnaireHandler
	Workflow      *WorkflowHandler
	Forum         *ForumHandler
	Alert         *AlertHandler
	User          *UserHandler
	Audit         *AuditHandler
	Config        *ConfigHandler
}

// RegisterRoutes mounts the API under /api/v1 plus /health.
// Role checks here mirror the ones the services enforce.
func RegisterRoutes(mux *http.ServeMux, h *Handlers, authMw *middleware.AuthMiddleware) {
	authed := func(fn http.HandlerFunc) http.Handler {
		return authMw.Authenticate(fn)
	}
	role := func(fn http.HandlerFunc, roles ...models.Role) http.Handler {
		return authMw.Authenticate(middleware.RequireRole(roles...)(fn))
	}
	const (
		patient      = models.RolePatient
		psychologist = models.RolePsychologist
		admin        = models.RoleAdmin
	)

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Auth.Logout)
	mux.HandleFunc("GET /api/v1/config/app", h.Config.GetAppConfig)
	mux.HandleFunc("GET /health", h.Config.Health)

	// Own account
	mux.Handle("GET /api/v1/users/me", authed(h.Profile.GetProfile))
	mux.Handle("PUT /api/v1/users/me", authed(h.Profile.UpdateProfile))
	mux.Handle("PUT /api/v1/users/me/password", authed(h.Profile.ChangePassword))
	mux.Handle("GET /api/v1/users/me/sessions", authed(h.Profile.ListSessions))
	mux.Handle("DELETE /api/v1/users/me/sessions", authed(h.Profile.RevokeAllSessions))
	mux.Handle("DELETE /api/v1/users/me/sessions/{sessionID}", authed(h.Profile.RevokeSession))

	// Questionnaires
	mux.Handle("GET /api/v1/questionnaire-types", authed(h.Questionnaire.ListTypes))
	mux.Handle("POST /api/v1/questionnaires", role(h.Questionnaire.Compile, patient))
	mux.Handle("GET /api/v1/questionnaires", authed(h.Questionnaire.List))
	mux.Handle("GET /api/v1/questionnaires/{id}", authed(h.Questionnaire.Get))

	// Review workflow
	mux.Handle("POST /api/v1/questionnaires/{id}/review", role(h.Workflow.Review, psychologist))
	mux.Handle("POST /api/v1/questionnaires/{id}/cancel-revision", role(h.Workflow.CancelRevision, admin))
	mux.Handle("POST /api/v1/questionnaires/{id}/invalidation-requests", role(h.Workflow.RequestInvalidation, psychologist))
	mux.Handle("GET /api/v1/invalidation-requests", role(h.Workflow.ListInvalidationRequests, admin, psychologist))
	mux.Handle("GET /api/v1/invalidation-requests/{id}", role(h.Workflow.GetInvalidationRequest, admin, psychologist))
	mux.Handle("POST /api/v1/invalidation-requests/{id}/accept", role(h.Workflow.AcceptInvalidation, admin))
	mux.Handle("POST /api/v1/invalidation-requests/{id}/reject", role(h.Workflow.RejectInvalidation, admin))

	// Forum
	mux.Handle("GET /api/v1/forum/questions", authed(h.Forum.ListQuestions))
	mux.Handle("GET /api/v1/forum/questions/{id}", authed(h.Forum.GetQuestion))
	mux.Handle("POST /api/v1/forum/questions", role(h.Forum.AskQuestion, patient))
	mux.Handle("DELETE /api/v1/forum/questions/{id}", role(h.Forum.DeleteQuestion, admin))
	mux.Handle("POST /api/v1/forum/questions/{id}/answers", role(h.Forum.AnswerQuestion, psychologist))
	mux.Handle("PUT /api/v1/forum/answers/{id}", role(h.Forum.EditAnswer, psychologist))
	mux.Handle("DELETE /api/v1/forum/answers/{id}", role(h.Forum.DeleteAnswer, psychologist))

	// Psychologist routes
	mux.Handle("GET /api/v1/alerts", role(h.Alert.List, psychologist))
	mux.Handle("POST /api/v1/alerts/{id}/acknowledge", role(h.Alert.Acknowledge, psychologist))
	mux.Handle("GET /api/v1/psychologist/patients", role(h.User.ListMyPatients, psychologist))

	// Admin routes
	mux.Handle("GET /api/v1/admin/users", role(h.User.ListUsers, admin))
	mux.Handle("POST /api/v1/admin/users", role(h.User.CreateUser, admin))
	mux.Handle("GET /api/v1/admin/users/{id}", role(h.User.GetUser, admin))
	mux.Handle("PUT /api/v1/admin/users/{id}/status", role(h.User.UpdateStatus, admin))
	mux.Handle("PUT /api/v1/admin/users/{id}/psychologist", role(h.User.AssignPsychologist, admin))
	mux.Handle("GET /api/v1/admin/audit-logs", role(h.Audit.List, admin))
}
