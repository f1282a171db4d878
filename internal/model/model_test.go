package model

import (
	"errors"
	"testing"
)

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		batch   []StudentAnswerSet
		wantErr bool
	}{
		{"empty batch", nil, false},
		{"valid", []StudentAnswerSet{
			{StudentName: "Ana", Answers: map[int]string{1: "a", 2: "b"}},
			{StudentName: "Ben", Answers: map[int]string{1: "c"}},
		}, false},
		{"duplicate name", []StudentAnswerSet{
			{StudentName: "Ana", Answers: map[int]string{1: "a"}},
			{StudentName: "Ana", Answers: map[int]string{1: "b"}},
		}, true},
		{"blank name", []StudentAnswerSet{
			{StudentName: "  ", Answers: map[int]string{1: "a"}},
		}, true},
		{"zero question", []StudentAnswerSet{
			{StudentName: "Ana", Answers: map[int]string{0: "a"}},
		}, true},
		{"negative question", []StudentAnswerSet{
			{StudentName: "Ana", Answers: map[int]string{-3: "a"}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.batch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCombineResults(t *testing.T) {
	results := []QuestionResult{
		{
			QuestionNumber: 1,
			Scores: []CriterionScore{
				{Criterion: "Correctness", Awarded: 4, Max: 5},
				{Criterion: "Clarity", Awarded: 2, Max: 2},
			},
			TotalScore: 6,
			Feedback:   []string{"good"},
		},
		{
			QuestionNumber: 2,
			Scores:         []CriterionScore{{Criterion: "Correctness", Awarded: 1, Max: 5}},
			TotalScore:     1,
			Feedback:       []string{"revise", "cite sources"},
		},
	}

	ev := CombineResults("Ana", ModeModerate, results)
	if ev.TotalScore != 7 {
		t.Errorf("TotalScore = %v, want 7", ev.TotalScore)
	}
	if ev.TotalMax != 12 {
		t.Errorf("TotalMax = %v, want 12", ev.TotalMax)
	}
	if ev.Percentage != 58.33 {
		t.Errorf("Percentage = %v, want 58.33", ev.Percentage)
	}
	if len(ev.Feedback) != 3 {
		t.Errorf("expected 3 feedback items, got %d", len(ev.Feedback))
	}
}

func TestPercentageZeroMax(t *testing.T) {
	if got := Percentage(5, 0); got != 0 {
		t.Errorf("Percentage(5, 0) = %v, want 0", got)
	}
	if got := (CriterionScore{Awarded: 3, Max: 0}).Percentage(); got != 0 {
		t.Errorf("CriterionScore.Percentage with zero max = %v, want 0", got)
	}
}

func TestAssignmentMarks(t *testing.T) {
	a := Assignment{
		Questions: []Question{{Number: 1}, {Number: 2}, {Number: 3}},
		Rubric:    []Criterion{{Name: "Correctness", MaxMarks: 5}, {Name: "Clarity", MaxMarks: 2}},
	}
	if got := a.MaxMarksPerQuestion(); got != 7 {
		t.Errorf("MaxMarksPerQuestion = %v, want 7", got)
	}
	if got := a.TotalMarks(); got != 21 {
		t.Errorf("TotalMarks = %v, want 21", got)
	}
	if !ModeLenient.IsValid() || EvaluationMode("harsh").IsValid() {
		t.Error("unexpected EvaluationMode.IsValid result")
	}
}
