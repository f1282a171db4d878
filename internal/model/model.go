package model

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleTeacher can import assignments and run analyses.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents an API user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// EvaluationMode controls how harshly the grading oracle scores.
type EvaluationMode string

const (
	ModeStrict   EvaluationMode = "strict"
	ModeModerate EvaluationMode = "moderate"
	ModeLenient  EvaluationMode = "lenient"
)

// IsValid reports whether m is a known evaluation mode.
func (m EvaluationMode) IsValid() bool {
	switch m {
	case ModeStrict, ModeModerate, ModeLenient:
		return true
	}
	return false
}

// Criterion is one rubric row.
type Criterion struct {
	Name     string  `json:"name" yaml:"name"`
	MaxMarks float64 `json:"max_marks" yaml:"max_marks"`
}

// Question is a numbered assignment question.
type Question struct {
	Number int    `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// Assignment is a rubric plus its questions.
// SourceHash is the SHA-256 of the imported file, empty when the assignment
// was not imported from a file.
type Assignment struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	Questions  []Question  `json:"questions"`
	Rubric     []Criterion `json:"rubric"`
	SourceHash string      `json:"source_hash,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// MaxMarksPerQuestion is the rubric total applied to every question.
func (a Assignment) MaxMarksPerQuestion() float64 {
	var total float64
	for _, c := range a.Rubric {
		total += c.MaxMarks
	}
	return total
}

// TotalMarks is the maximum score over all questions.
func (a Assignment) TotalMarks() float64 {
	return a.MaxMarksPerQuestion() * float64(len(a.Questions))
}

// StudentAnswerSet is one student's submission for an assignment.
// Answers maps question number to raw answer text.
type StudentAnswerSet struct {
	StudentName string         `json:"student_name"`
	Answers     map[int]string `json:"answers"`
}

// CombinedText joins the non-empty answers in question-number order with
// single spaces.
func (s StudentAnswerSet) CombinedText() string {
	qs := make([]int, 0, len(s.Answers))
	for q := range s.Answers {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		if a := strings.TrimSpace(s.Answers[q]); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// CriterionScore is the oracle's verdict on one rubric criterion.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Awarded   float64 `json:"awarded"`
	Max       float64 `json:"max"`
	Reason    string  `json:"reason"`
}

// Percentage returns awarded/max as a percentage, 0 when max is 0.
func (c CriterionScore) Percentage() float64 {
	if c.Max <= 0 {
		return 0
	}
	return c.Awarded / c.Max * 100
}

// QuestionResult is the oracle's evaluation of one answer.
type QuestionResult struct {
	QuestionNumber int              `json:"question_number"`
	Scores         []CriterionScore `json:"scores"`
	TotalScore     float64          `json:"total_score"`
	Feedback       []string         `json:"feedback"`
	Confidence     string           `json:"confidence,omitempty"`
	AnswerLength   int              `json:"answer_length"`
}

// MaxScore sums the criterion maxima.
func (r QuestionResult) MaxScore() float64 {
	var total float64
	for _, s := range r.Scores {
		total += s.Max
	}
	return total
}

// Evaluation is a graded submission: every question result for one student.
type Evaluation struct {
	ID           int64            `json:"id"`
	AssignmentID int64            `json:"assignment_id"`
	StudentName  string           `json:"student_name"`
	Mode         EvaluationMode   `json:"mode"`
	Results      []QuestionResult `json:"individual_results"`
	TotalScore   float64          `json:"total_score"`
	TotalMax     float64          `json:"total_max"`
	Percentage   float64          `json:"percentage"`
	Feedback     []string         `json:"combined_feedback"`
	EvaluatedAt  time.Time        `json:"evaluated_at"`
}

// CombineResults folds per-question results into an Evaluation.
func CombineResults(student string, mode EvaluationMode, results []QuestionResult) Evaluation {
	ev := Evaluation{
		StudentName: student,
		Mode:        mode,
		Results:     results,
	}
	for _, r := range results {
		ev.TotalScore += r.TotalScore
		ev.TotalMax += r.MaxScore()
		ev.Feedback = append(ev.Feedback, r.Feedback...)
	}
	ev.Percentage = Percentage(ev.TotalScore, ev.TotalMax)
	return ev
}

// Percentage returns score/max*100 rounded to two decimals, 0 when max is 0.
func Percentage(score, max float64) float64 {
	if max == 0 {
		return 0
	}
	return math.Round(score/max*100*100) / 100
}
