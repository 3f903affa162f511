package testutil

import (
	"context"
	"fmt"
	"sync"

	"sintonia/internal/models"
)

// Notification is one message captured by RecordingNotifier
type Notification struct {
	Kind       string
	Recipients []string
	Subject    string // id of the questionnaire, request or alert
}

// RecordingNotifier captures notifications instead of sending them
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *RecordingNotifier) record(kind, subject string, users ...models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	recipients := make([]string, len(users))
	for i, u := range users {
		recipients[i] = u.Email
	}
	n.sent = append(n.sent, Notification{Kind: kind, Recipients: recipients, Subject: subject})
	return n.Err
}

// Sent returns a copy of the captured notifications
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Kinds returns the kinds of the captured notifications in order
func (n *RecordingNotifier) Kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, len(n.sent))
	for i, s := range n.sent {
		kinds[i] = s.Kind
	}
	return kinds
}

func (n *RecordingNotifier) QuestionnaireReviewed(_ context.Context, patient *models.User, q *models.Questionnaire) error {
	return n.record("questionnaire_reviewed", fmt.Sprint(q.ID), *patient)
}

func (n *RecordingNotifier) InvalidationRequested(_ context.Context, admins []models.User, req *models.InvalidationRequest) error {
	return n.record("invalidation_requested", fmt.Sprint(req.ID), admins...)
}

func (n *RecordingNotifier) InvalidationDecided(_ context.Context, psychologist *models.User, req *models.InvalidationRequest) error {
	return n.record("invalidation_"+string(req.Status), fmt.Sprint(req.ID), *psychologist)
}

func (n *RecordingNotifier) AlertRaised(_ context.Context, psychologist *models.User, alert *models.Alert) error {
	return n.record("alert_raised", fmt.Sprint(alert.ID), *psychologist)
}

func (n *RecordingNotifier) PendingInvalidationDigest(_ context.Context, admin *models.User, requests []models.InvalidationRequest) error {
	return n.record("invalidation_digest", fmt.Sprint(len(requests)), *admin)
}

func (n *RecordingNotifier) OpenAlertDigest(_ context.Context, psychologist *models.User, alerts []models.Alert) error {
	return n.record("alert_digest", fmt.Sprint(len(alerts)), *psychologist)
}
