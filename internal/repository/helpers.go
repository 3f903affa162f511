package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a conditional update matched no row
	// because the row no longer satisfies the expected state
	ErrStaleState = errors.New("record is not in the expected state")
	// ErrDuplicatePending is returned when a questionnaire already has a pending invalidation request
	ErrDuplicatePending = errors.New("a pending invalidation request already exists")
	// ErrDuplicateAlert is returned when the questionnaire already raised an alert
	ErrDuplicateAlert = errors.New("questionnaire already raised an alert")
	// ErrDuplicateEmail is returned when the email belongs to another account
	ErrDuplicateEmail = errors.New("email already in use")
)

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func uintPtr(n sql.NullInt64) *uint {
	if !n.Valid {
		return nil
	}
	v := uint(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// whereBuilder accumulates AND-ed conditions with positional arguments
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; each "?" in cond is replaced by the next $n placeholder
func (w *whereBuilder) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the SQL fragment and args
func (w *whereBuilder) page(limit, offset int) (string, []any) {
	if limit <= 0 {
		return "", w.args
	}
	args := append(append([]any{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
