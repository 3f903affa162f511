package models

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"patient", RolePatient, false},
		{" Psychologist ", RolePsychologist, false},
		{"ADMIN", RoleAdmin, false},
		{"reviewer", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAnswersUnmarshalAndScore(t *testing.T) {
	var answers Answers
	payload := `{"q1": 3, "q2": 4.5, "q3": "sometimes"}`
	if err := json.Unmarshal([]byte(payload), &answers); err != nil {
		t.Fatalf("Failed to unmarshal answers: %v", err)
	}

	if answers["q3"].Text == nil || *answers["q3"].Text != "sometimes" {
		t.Errorf("expected q3 to be a text answer, got %+v", answers["q3"])
	}

	score := answers.Score()
	if score == nil {
		t.Fatal("expected a score")
	}
	if *score != 7.5 {
		t.Errorf("score = %v, want 7.5", *score)
	}
}

func TestAnswersScoreNilWithoutNumbers(t *testing.T) {
	answers := Answers{"q1": TextAnswer("no"), "q2": TextAnswer("yes")}
	if score := answers.Score(); score != nil {
		t.Errorf("expected nil score, got %v", *score)
	}
}

func TestAnswerValueRejectsOtherKinds(t *testing.T) {
	for _, payload := range []string{`{"q1": true}`, `{"q1": null}`, `{"q1": [1]}`, `{"q1": {"a": 1}}`} {
		var answers Answers
		if err := json.Unmarshal([]byte(payload), &answers); err == nil {
			t.Errorf("expected error for %s", payload)
		}
	}
}

func TestQuestionnaireTypeSlots(t *testing.T) {
	qt := QuestionnaireType{Name: "GAD7", QuestionCount: 3}
	slots := qt.Slots()
	if len(slots) != 3 || slots[0] != "q1" || slots[2] != "q3" {
		t.Errorf("unexpected slots: %v", slots)
	}
}

func TestInvalidationStatusTerminal(t *testing.T) {
	if InvalidationPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !InvalidationApproved.Terminal() || !InvalidationRejected.Terminal() {
		t.Error("approved and rejected must be terminal")
	}
}

func TestUserFullName(t *testing.T) {
	u := User{Email: "anna@example.com"}
	if u.FullName() != "anna@example.com" {
		t.Errorf("expected email fallback, got %q", u.FullName())
	}
	u.FirstName, u.LastName = "Anna", "Rossi"
	if u.FullName() != "Anna Rossi" {
		t.Errorf("unexpected full name %q", u.FullName())
	}
}
