package testutil

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"sintonia/internal/models"
	"sintonia/internal/repository"
)

// MemStore is an in-memory stand-in for the postgres repositories.
// Conditional updates, unique indexes and sentinel errors behave like the SQL versions.
// All stores share one mutex so multi-row transitions are atomic.
type MemStore struct {
	mu sync.Mutex

	nextID         uint
	users          map[uint]*models.User
	sessions       map[string]*models.Session
	audit          []models.AuditLog
	types          map[string]*models.QuestionnaireType
	questionnaires map[uint]*models.Questionnaire
	requests       map[uint]*models.InvalidationRequest
	questions      map[uint]*models.ForumQuestion
	answers        map[uint]*models.ForumAnswer
	alerts         map[uint]*models.Alert
}

// NewMemStore returns an empty store seeded with the default questionnaire types
func NewMemStore() *MemStore {
	m := &MemStore{
		users:          make(map[uint]*models.User),
		sessions:       make(map[string]*models.Session),
		types:          make(map[string]*models.QuestionnaireType),
		questionnaires: make(map[uint]*models.Questionnaire),
		requests:       make(map[uint]*models.InvalidationRequest),
		questions:      make(map[uint]*models.ForumQuestion),
		answers:        make(map[uint]*models.ForumAnswer),
		alerts:         make(map[uint]*models.Alert),
	}
	for _, qt := range DefaultQuestionnaireTypes() {
		m.types[qt.Name] = &qt
	}
	return m
}

// DefaultQuestionnaireTypes mirrors the types seeded by the migrations
func DefaultQuestionnaireTypes() []models.QuestionnaireType {
	threshold := func(v float64) *float64 { return &v }
	return []models.QuestionnaireType{
		{Name: "GAD7", Title: "Generalized Anxiety Disorder scale", QuestionCount: 7, AlertThreshold: threshold(15)},
		{Name: "K10", Title: "Kessler Psychological Distress Scale", QuestionCount: 10, AlertThreshold: threshold(30)},
		{Name: "PHQ9", Title: "Patient Health Questionnaire", QuestionCount: 9, AlertThreshold: threshold(20)},
		{Name: "WHO5", Title: "WHO-5 Well-Being Index", QuestionCount: 5},
	}
}

func (m *MemStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemStore) Users() *MemUsers                   { return &MemUsers{m} }
func (m *MemStore) Sessions() *MemSessions             { return &MemSessions{m} }
func (m *MemStore) Audit() *MemAudit                   { return &MemAudit{m} }
func (m *MemStore) Questionnaires() *MemQuestionnaires { return &MemQuestionnaires{m} }
func (m *MemStore) Invalidations() *MemInvalidations   { return &MemInvalidations{m} }
func (m *MemStore) Forum() *MemForum                   { return &MemForum{m} }
func (m *MemStore) Alerts() *MemAlerts                 { return &MemAlerts{m} }

// page applies limit/offset the way the SQL LIMIT/OFFSET fragment does
func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---- users ----

type MemUsers struct{ m *MemStore }

func (s *MemUsers) Create(ctx context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	now := time.Now()
	user.ID = s.m.id()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	s.m.users[user.ID] = &stored
	return nil
}

func (s *MemUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemUsers) UpdateProfile(ctx context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range s.m.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	u.Email, u.FirstName, u.LastName, u.Phone = user.Email, user.FirstName, user.LastName, user.Phone
	u.UpdatedAt = time.Now()
	user.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *MemUsers) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	return s.update(userID, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (s *MemUsers) UpdateStatus(ctx context.Context, userID uint, status models.UserStatus) error {
	return s.update(userID, func(u *models.User) { u.Status = status })
}

func (s *MemUsers) UpdateLastLogin(ctx context.Context, userID uint) error {
	now := time.Now()
	err := s.update(userID, func(u *models.User) { u.LastLoginAt = &now })
	if err == repository.ErrNotFound {
		return nil
	}
	return err
}

func (s *MemUsers) SetPsychologist(ctx context.Context, patientID uint, psychologistID *uint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[patientID]
	if !ok || u.Role != models.RolePatient {
		return repository.ErrStaleState
	}
	u.PsychologistID = psychologistID
	return nil
}

func (s *MemUsers) update(id uint, fn func(u *models.User)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemUsers) List(ctx context.Context, filters repository.UserFilters) ([]models.User, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	search := strings.ToLower(filters.Search)
	var out []models.User
	for _, u := range s.m.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Email+" "+u.FirstName+" "+u.LastName), search) {
			continue
		}
		if len(filters.Roles) > 0 && !slices.Contains(filters.Roles, u.Role) {
			continue
		}
		if filters.Status != "" && u.Status != filters.Status {
			continue
		}
		if filters.PsychologistID != nil && (u.PsychologistID == nil || *u.PsychologistID != *filters.PsychologistID) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if filters.SortOrder == "asc" {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filters.Limit, filters.Offset), len(out), nil
}

func (s *MemUsers) ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users, _, err := s.List(ctx, repository.UserFilters{
		Roles:     []models.Role{role},
		Status:    models.UserStatusActive,
		SortOrder: "asc",
	})
	return users, err
}

func (s *MemUsers) CountByRole(ctx context.Context, role models.Role) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n := 0
	for _, u := range s.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// ---- sessions ----

type MemSessions struct{ m *MemStore }

func (s *MemSessions) Create(ctx context.Context, session *models.Session) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *session
	s.m.sessions[session.ID] = &cp
	return nil
}

func (s *MemSessions) GetByJTI(ctx context.Context, jti string) (*models.Session, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now()
	for _, session := range s.m.sessions {
		if session.JTI == jti && session.ExpiresAt.After(now) {
			cp := *session
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemSessions) GetByUserID(ctx context.Context, userID uint) ([]models.Session, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now()
	var out []models.Session
	for _, session := range s.m.sessions {
		if session.UserID == userID && session.ExpiresAt.After(now) {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemSessions) UpdateLastActivity(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if session, ok := s.m.sessions[id]; ok {
		session.LastActivityAt = time.Now()
	}
	return nil
}

func (s *MemSessions) DeleteBySessionID(ctx context.Context, userID uint, sessionID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	deleted := 0
	for id, session := range s.m.sessions {
		if session.SessionID == sessionID && session.UserID == userID {
			delete(s.m.sessions, id)
			deleted++
		}
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *MemSessions) DeleteAllUserSessions(ctx context.Context, userID uint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, session := range s.m.sessions {
		if session.UserID == userID {
			delete(s.m.sessions, id)
		}
	}
	return nil
}

func (s *MemSessions) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now()
	var n int64
	for id, session := range s.m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.m.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---- audit ----

type MemAudit struct{ m *MemStore }

func (s *MemAudit) Create(ctx context.Context, log *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	log.ID = s.m.id()
	log.CreatedAt = time.Now()
	s.m.audit = append(s.m.audit, *log)
	return nil
}

func (s *MemAudit) List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.AuditLog
	for i := len(s.m.audit) - 1; i >= 0; i-- {
		entry := s.m.audit[i]
		if filter.UserID != nil && (entry.UserID == nil || *entry.UserID != *filter.UserID) {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Resource != "" && entry.Resource != filter.Resource {
			continue
		}
		out = append(out, entry)
	}
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

// Actions returns the recorded audit actions in order
func (s *MemAudit) Actions() []string {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	actions := make([]string, len(s.m.audit))
	for i, entry := range s.m.audit {
		actions[i] = entry.Action
	}
	return actions
}

// ---- questionnaires ----

type MemQuestionnaires struct{ m *MemStore }

func (s *MemQuestionnaires) ListTypes(ctx context.Context) ([]models.QuestionnaireType, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.QuestionnaireType, 0, len(s.m.types))
	for _, qt := range s.m.types {
		out = append(out, *qt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemQuestionnaires) GetType(ctx context.Context, name string) (*models.QuestionnaireType, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	qt, ok := s.m.types[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *qt
	return &cp, nil
}

func (s *MemQuestionnaires) Create(ctx context.Context, q *models.Questionnaire) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if q.CompiledAt.IsZero() {
		q.CompiledAt = time.Now()
	}
	q.ID = s.m.id()
	stored := *q
	stored.Answers = nil
	s.m.questionnaires[q.ID] = &stored
	return nil
}

func (s *MemQuestionnaires) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questionnaires[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *MemQuestionnaires) List(ctx context.Context, filter repository.QuestionnaireFilter) ([]models.Questionnaire, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Questionnaire
	for _, q := range s.m.questionnaires {
		if filter.PsychologistID != nil {
			patient, ok := s.m.users[q.PatientID]
			if !ok || patient.PsychologistID == nil || *patient.PsychologistID != *filter.PsychologistID {
				continue
			}
		}
		if filter.PatientID != nil && q.PatientID != *filter.PatientID {
			continue
		}
		if filter.TypeName != "" && q.TypeName != filter.TypeName {
			continue
		}
		if filter.Reviewed != nil && q.Reviewed != *filter.Reviewed {
			continue
		}
		if filter.Invalidated != nil && q.Invalidated != *filter.Invalidated {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (s *MemQuestionnaires) MarkReviewed(ctx context.Context, id, psychologistID uint, at time.Time) (*models.Questionnaire, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questionnaires[id]
	if !ok || q.Invalidated {
		return nil, repository.ErrStaleState
	}
	q.Reviewed = true
	q.ReviewingPsychologistID = &psychologistID
	q.ReviewedAt = &at
	cp := *q
	return &cp, nil
}

func (s *MemQuestionnaires) ClearReview(ctx context.Context, id uint) (*models.Questionnaire, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questionnaires[id]
	if !ok || !q.Reviewed {
		return nil, repository.ErrStaleState
	}
	q.Reviewed = false
	q.ReviewingPsychologistID = nil
	q.ReviewedAt = nil
	cp := *q
	return &cp, nil
}

// ---- invalidation requests ----

type MemInvalidations struct{ m *MemStore }

func (s *MemInvalidations) Create(ctx context.Context, req *models.InvalidationRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if q, ok := s.m.questionnaires[req.QuestionnaireID]; !ok || q.Invalidated {
		return repository.ErrStaleState
	}
	for _, other := range s.m.requests {
		if other.QuestionnaireID == req.QuestionnaireID && other.Status == models.InvalidationPending {
			return repository.ErrDuplicatePending
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	req.ID = s.m.id()
	req.Status = models.InvalidationPending
	stored := *req
	s.m.requests[req.ID] = &stored
	return nil
}

func (s *MemInvalidations) GetByID(ctx context.Context, id uint) (*models.InvalidationRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	req, ok := s.m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *MemInvalidations) List(ctx context.Context, filter repository.InvalidationFilter) ([]models.InvalidationRequest, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.InvalidationRequest
	for _, req := range s.m.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.PsychologistID != nil && req.RequestingPsychologistID != *filter.PsychologistID {
			continue
		}
		if filter.QuestionnaireID != nil && req.QuestionnaireID != *filter.QuestionnaireID {
			continue
		}
		if filter.CreatedBefore != nil && !req.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.SortOrder == "desc" {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (s *MemInvalidations) Accept(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, *models.Questionnaire, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	req, ok := s.m.requests[id]
	if !ok || req.Status != models.InvalidationPending {
		return nil, nil, repository.ErrStaleState
	}
	q, ok := s.m.questionnaires[req.QuestionnaireID]
	if !ok || q.Invalidated {
		return nil, nil, repository.ErrStaleState
	}

	req.Status = models.InvalidationApproved
	req.DecidedByAdminID = &adminID
	req.DecidedAt = &at

	notes := req.Notes
	requester := req.RequestingPsychologistID
	q.Invalidated = true
	q.InvalidatedAt = &at
	q.ConfirmingAdminID = &adminID
	q.RequestingPsychologistID = &requester
	q.InvalidationNotes = &notes

	reqCopy, qCopy := *req, *q
	return &reqCopy, &qCopy, nil
}

func (s *MemInvalidations) Reject(ctx context.Context, id, adminID uint, at time.Time) (*models.InvalidationRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	req, ok := s.m.requests[id]
	if !ok || req.Status != models.InvalidationPending {
		return nil, repository.ErrStaleState
	}
	req.Status = models.InvalidationRejected
	req.DecidedByAdminID = &adminID
	req.DecidedAt = &at
	cp := *req
	return &cp, nil
}

// ---- forum ----

type MemForum struct{ m *MemStore }

func (s *MemForum) CreateQuestion(ctx context.Context, q *models.ForumQuestion) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	q.ID = s.m.id()
	stored := *q
	stored.Answers = nil
	s.m.questions[q.ID] = &stored
	return nil
}

func (s *MemForum) GetQuestion(ctx context.Context, id uint) (*models.ForumQuestion, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.withCount(q), nil
}

func (s *MemForum) withCount(q *models.ForumQuestion) *models.ForumQuestion {
	cp := *q
	cp.AnswerCount = 0
	for _, a := range s.m.answers {
		if a.QuestionID == q.ID {
			cp.AnswerCount++
		}
	}
	return &cp
}

func (s *MemForum) ListQuestions(ctx context.Context, filter repository.ForumFilter) ([]models.ForumQuestion, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.ForumQuestion
	for _, q := range s.m.questions {
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		counted := s.withCount(q)
		if filter.Unanswered && counted.AnswerCount > 0 {
			continue
		}
		out = append(out, *counted)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (s *MemForum) DeleteQuestion(ctx context.Context, id uint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.questions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.m.questions, id)
	for aid, a := range s.m.answers {
		if a.QuestionID == id {
			delete(s.m.answers, aid)
		}
	}
	return nil
}

func (s *MemForum) CreateAnswer(ctx context.Context, a *models.ForumAnswer) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.questions[a.QuestionID]; !ok {
		return repository.ErrNotFound
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt
	a.ID = s.m.id()
	stored := *a
	s.m.answers[a.ID] = &stored
	return nil
}

func (s *MemForum) GetAnswer(ctx context.Context, id uint) (*models.ForumAnswer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.answers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.withAuthor(a), nil
}

func (s *MemForum) withAuthor(a *models.ForumAnswer) *models.ForumAnswer {
	cp := *a
	if u, ok := s.m.users[a.PsychologistID]; ok {
		cp.PsychologistName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return &cp
}

func (s *MemForum) ListAnswers(ctx context.Context, questionID uint) ([]models.ForumAnswer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.ForumAnswer
	for _, a := range s.m.answers {
		if a.QuestionID == questionID {
			out = append(out, *s.withAuthor(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemForum) UpdateAnswer(ctx context.Context, id, psychologistID uint, text string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.answers[id]
	if !ok || a.PsychologistID != psychologistID {
		return repository.ErrStaleState
	}
	a.Text = text
	a.UpdatedAt = at
	return nil
}

func (s *MemForum) DeleteAnswer(ctx context.Context, id, psychologistID uint) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.answers[id]
	if !ok || a.PsychologistID != psychologistID {
		return repository.ErrStaleState
	}
	delete(s.m.answers, id)
	return nil
}

// ---- alerts ----

type MemAlerts struct{ m *MemStore }

func (s *MemAlerts) Create(ctx context.Context, a *models.Alert) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, other := range s.m.alerts {
		if other.QuestionnaireID == a.QuestionnaireID {
			return repository.ErrDuplicateAlert
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.ID = s.m.id()
	a.Status = models.AlertStatusOpen
	stored := *a
	s.m.alerts[a.ID] = &stored
	return nil
}

func (s *MemAlerts) GetByID(ctx context.Context, id uint) (*models.Alert, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemAlerts) List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Alert
	for _, a := range s.m.alerts {
		if filter.PsychologistID != nil && a.PsychologistID != *filter.PsychologistID {
			continue
		}
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (s *MemAlerts) Acknowledge(ctx context.Context, id uint, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.alerts[id]
	if !ok || a.Status != models.AlertStatusOpen {
		return repository.ErrStaleState
	}
	a.Status = models.AlertStatusAcknowledged
	a.AcknowledgedAt = &at
	return nil
}
