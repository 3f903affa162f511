package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sintonia/internal/database"
	"sintonia/internal/models"
)

// ForumFilter narrows forum question listings
type ForumFilter struct {
	Category   string
	Unanswered bool
	Limit      int
	Offset     int
}

// ForumRepository handles forum question and answer database operations
type ForumRepository struct {
	db *sql.DB
}

// NewForumRepository creates a new forum repository
func NewForumRepository(db *sql.DB) *ForumRepository {
	return &ForumRepository{db: db}
}

// CreateQuestion inserts a new question
func (r *ForumRepository) CreateQuestion(ctx context.Context, q *models.ForumQuestion) error {
	query := `
		INSERT INTO forum_questions (patient_id, title, body, category, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query, q.PatientID, q.Title, q.Body, q.Category, q.CreatedAt).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create forum question: %w", err)
	}
	return nil
}

const forumQuestionSelect = `
	SELECT fq.id, fq.patient_id, fq.title, fq.body, fq.category, fq.created_at,
	       (SELECT COUNT(*) FROM forum_answers fa WHERE fa.question_id = fq.id) AS answer_count
	FROM forum_questions fq`

// GetQuestion retrieves a question without its answers
func (r *ForumRepository) GetQuestion(ctx context.Context, id uint) (*models.ForumQuestion, error) {
	row := r.db.QueryRowContext(ctx, forumQuestionSelect+` WHERE fq.id = $1`, id)
	return scanForumQuestion(row)
}

// ListQuestions returns questions, newest first, plus the total count
func (r *ForumRepository) ListQuestions(ctx context.Context, filter ForumFilter) ([]models.ForumQuestion, int, error) {
	var w whereBuilder
	if filter.Category != "" {
		w.add("fq.category = ?", filter.Category)
	}
	if filter.Unanswered {
		w.add("NOT EXISTS (SELECT 1 FROM forum_answers fa WHERE fa.question_id = fq.id)")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forum_questions fq`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count forum questions: %w", err)
	}

	paging, args := w.page(filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, forumQuestionSelect+w.clause()+` ORDER BY fq.created_at DESC, fq.id DESC`+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list forum questions: %w", err)
	}
	defer rows.Close()

	var questions []models.ForumQuestion
	for rows.Next() {
		q, err := scanForumQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, *q)
	}
	return questions, total, rows.Err()
}

// DeleteQuestion removes a question and, by cascade, its answers
func (r *ForumRepository) DeleteQuestion(ctx context.Context, id uint) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM forum_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete forum question: %w", err)
	}
	return requireRow(result)
}

// CreateAnswer inserts an answer; ErrNotFound if the question does not exist
func (r *ForumRepository) CreateAnswer(ctx context.Context, a *models.ForumAnswer) error {
	query := `
		INSERT INTO forum_answers (question_id, psychologist_id, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt

	err := r.db.QueryRowContext(ctx, query, a.QuestionID, a.PsychologistID, a.Text, a.CreatedAt).Scan(&a.ID)
	if database.IsForeignKeyViolation(err, "") {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create forum answer: %w", err)
	}
	return nil
}

const forumAnswerSelect = `
	SELECT fa.id, fa.question_id, fa.psychologist_id, TRIM(u.first_name || ' ' || u.last_name),
	       fa.text, fa.created_at, fa.updated_at
	FROM forum_answers fa
	JOIN users u ON u.id = fa.psychologist_id`

// GetAnswer retrieves an answer with its author's name
func (r *ForumRepository) GetAnswer(ctx context.Context, id uint) (*models.ForumAnswer, error) {
	row := r.db.QueryRowContext(ctx, forumAnswerSelect+` WHERE fa.id = $1`, id)
	return scanForumAnswer(row)
}

// ListAnswers returns the answers of a question, oldest first
func (r *ForumRepository) ListAnswers(ctx context.Context, questionID uint) ([]models.ForumAnswer, error) {
	rows, err := r.db.QueryContext(ctx, forumAnswerSelect+` WHERE fa.question_id = $1 ORDER BY fa.created_at, fa.id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forum answers: %w", err)
	}
	defer rows.Close()

	var answers []models.ForumAnswer
	for rows.Next() {
		a, err := scanForumAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}

// UpdateAnswer replaces the text of an answer owned by psychologistID.
// ErrStaleState if the answer is missing or owned by someone else.
func (r *ForumRepository) UpdateAnswer(ctx context.Context, id, psychologistID uint, text string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE forum_answers
		SET text = $1, updated_at = $2
		WHERE id = $3 AND psychologist_id = $4
	`, text, at, id, psychologistID)
	if err != nil {
		return fmt.Errorf("failed to update forum answer: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrStaleState
	}
	return nil
}

// DeleteAnswer removes an answer owned by psychologistID.
// ErrStaleState if the answer is missing or owned by someone else.
func (r *ForumRepository) DeleteAnswer(ctx context.Context, id, psychologistID uint) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM forum_answers WHERE id = $1 AND psychologist_id = $2`, id, psychologistID)
	if err != nil {
		return fmt.Errorf("failed to delete forum answer: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrStaleState
	}
	return nil
}

func scanForumQuestion(s scanner) (*models.ForumQuestion, error) {
	var q models.ForumQuestion
	err := s.Scan(&q.ID, &q.PatientID, &q.Title, &q.Body, &q.Category, &q.CreatedAt, &q.AnswerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan forum question: %w", err)
	}
	return &q, nil
}

func scanForumAnswer(s scanner) (*models.ForumAnswer, error) {
	var a models.ForumAnswer
	err := s.Scan(&a.ID, &a.QuestionID, &a.PsychologistID, &a.PsychologistName, &a.Text, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan forum answer: %w", err)
	}
	return &a, nil
}
