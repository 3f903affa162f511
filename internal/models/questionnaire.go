package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QuestionnaireType describes a questionnaire template such as K10
type QuestionnaireType struct {
	Name           string   `json:"name" db:"name"`
	Title          string   `json:"title" db:"title"`
	Description    string   `json:"description" db:"description"`
	QuestionCount  int      `json:"question_count" db:"question_count"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty" db:"alert_threshold"`
}

// Slots returns the expected answer slots q1..qN
func (t *QuestionnaireType) Slots() []string {
	slots := make([]string, t.QuestionCount)
	for i := range slots {
		slots[i] = "q" + strconv.Itoa(i+1)
	}
	return slots
}

// Questionnaire is a compiled questionnaire with its review and invalidation state
type Questionnaire struct {
	ID                       uint       `json:"id" db:"id"`
	PatientID                uint       `json:"patient_id" db:"patient_id"`
	TypeName                 string     `json:"type_name" db:"type_name"`
	Answers                  Answers    `json:"answers,omitempty" db:"-"`
	SealedAnswers            string     `json:"-" db:"answers"`
	Score                    *float64   `json:"score" db:"score"`
	CompiledAt               time.Time  `json:"compiled_at" db:"compiled_at"`
	Reviewed                 bool       `json:"reviewed" db:"reviewed"`
	ReviewingPsychologistID  *uint      `json:"reviewing_psychologist_id,omitempty" db:"reviewing_psychologist_id"`
	ReviewedAt               *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	Invalidated              bool       `json:"invalidated" db:"invalidated"`
	InvalidationNotes        *string    `json:"invalidation_notes,omitempty" db:"invalidation_notes"`
	InvalidatedAt            *time.Time `json:"invalidated_at,omitempty" db:"invalidated_at"`
	RequestingPsychologistID *uint      `json:"requesting_psychologist_id,omitempty" db:"requesting_psychologist_id"`
	ConfirmingAdminID        *uint      `json:"confirming_admin_id,omitempty" db:"confirming_admin_id"`
}

// Answers maps a question slot to its value
type Answers map[string]AnswerValue

// Score sums the numeric answers; nil when there are none
func (a Answers) Score() *float64 {
	var sum float64
	found := false
	for _, v := range a {
		if v.Number != nil {
			sum += *v.Number
			found = true
		}
	}
	if !found {
		return nil
	}
	return &sum
}

// AnswerValue holds either a number or a text answer
type AnswerValue struct {
	Number *float64
	Text   *string
}

func NumberAnswer(n float64) AnswerValue { return AnswerValue{Number: &n} }
func TextAnswer(s string) AnswerValue    { return AnswerValue{Text: &s} }

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Number, v.Text = nil, &s
		return nil
	case 'n':
		return fmt.Errorf("answer value must not be null")
	case '{', '[', 't', 'f':
		return fmt.Errorf("answer value must be a number or a string")
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer value must be a number or a string")
		}
		v.Number, v.Text = &n, nil
		return nil
	}
}

// InvalidationStatus is the lifecycle state of an invalidation request
type InvalidationStatus string

const (
	InvalidationPending  InvalidationStatus = "pending"
	InvalidationApproved InvalidationStatus = "approved"
	InvalidationRejected InvalidationStatus = "rejected"
)

// Terminal reports whether the status can no longer change
func (s InvalidationStatus) Terminal() bool {
	return s == InvalidationApproved || s == InvalidationRejected
}

// InvalidationRequest asks an admin to invalidate a questionnaire
type InvalidationRequest struct {
	ID                       uint               `json:"id" db:"id"`
	QuestionnaireID          uint               `json:"questionnaire_id" db:"questionnaire_id"`
	RequestingPsychologistID uint               `json:"requesting_psychologist_id" db:"requesting_psychologist_id"`
	Status                   InvalidationStatus `json:"status" db:"status"`
	Notes                    string             `json:"notes" db:"notes"`
	CreatedAt                time.Time          `json:"created_at" db:"created_at"`
	DecidedByAdminID         *uint              `json:"decided_by_admin_id,omitempty" db:"decided_by_admin_id"`
	DecidedAt                *time.Time         `json:"decided_at,omitempty" db:"decided_at"`
}
