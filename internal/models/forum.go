package models

import "time"

// ForumQuestion is an anonymous question asked by a patient
type ForumQuestion struct {
	ID          uint          `json:"id" db:"id"`
	PatientID   uint          `json:"-" db:"patient_id"`
	Title       string        `json:"title" db:"title"`
	Body        string        `json:"body" db:"body"`
	Category    string        `json:"category" db:"category"`
	AnswerCount int           `json:"answer_count" db:"answer_count"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	Answers     []ForumAnswer `json:"answers,omitempty" db:"-"`
}

// ForumAnswer is a psychologist's answer to a forum question
type ForumAnswer struct {
	ID               uint      `json:"id" db:"id"`
	QuestionID       uint      `json:"question_id" db:"question_id"`
	PsychologistID   uint      `json:"psychologist_id" db:"psychologist_id"`
	PsychologistName string    `json:"psychologist_name" db:"-"`
	Text             string    `json:"text" db:"text"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Forum text bounds, counted in characters
const (
	ForumAnswerMinLength   = 20
	ForumAnswerMaxLength   = 2000
	ForumTitleMinLength    = 5
	ForumTitleMaxLength    = 200
	ForumQuestionMinLength = 20
	ForumQuestionMaxLength = 2000
)
