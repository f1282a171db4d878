package store

import (
	"testing"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestAssignment(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.CreateAssignment(model.Assignment{
		Title: title,
		Questions: []model.Question{
			{Number: 2, Text: "State Newton's second law."},
			{Number: 1, Text: "What is inertia?"},
		},
		Rubric: []model.Criterion{
			{Name: "Correctness", MaxMarks: 6},
			{Name: "Clarity", MaxMarks: 4},
		},
	})
	if err != nil {
		t.Fatalf("insertTestAssignment: %v", err)
	}
	return id
}

func TestAssignmentCRUD(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListAssignments()
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	id := insertTestAssignment(t, s, "Mechanics")
	a, err := s.GetAssignment(id)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a == nil || a.Title != "Mechanics" {
		t.Fatalf("got %+v", a)
	}
	if len(a.Questions) != 2 || a.Questions[0].Number != 1 {
		t.Errorf("questions should be ordered by number, got %+v", a.Questions)
	}
	if len(a.Rubric) != 2 || a.Rubric[0].Name != "Correctness" || a.Rubric[1].MaxMarks != 4 {
		t.Errorf("rubric should keep its order, got %+v", a.Rubric)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	// Not found.
	missing, err := s.GetAssignment(9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing assignment, got %+v, %v", missing, err)
	}

	insertTestAssignment(t, s, "Optics")
	list, err = s.ListAssignments()
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Optics" || len(list[1].Questions) != 2 {
		t.Errorf("list = %+v", list)
	}

	if err := s.DeleteAssignment(id); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}
	if a, _ := s.GetAssignment(id); a != nil {
		t.Error("assignment still present after delete")
	}
}

func TestSubmissions(t *testing.T) {
	s := newTestStore(t)
	id := insertTestAssignment(t, s, "Mechanics")

	students := []model.StudentAnswerSet{
		{StudentName: "Ben", Answers: map[int]string{1: "Things keep moving."}},
		{StudentName: "Ana", Answers: map[int]string{1: "Objects resist change.", 2: "F = ma"}},
	}
	if err := s.SaveSubmissions(id, students); err != nil {
		t.Fatalf("SaveSubmissions: %v", err)
	}

	// Resubmitting replaces the answer.
	if err := s.SaveSubmissions(id, []model.StudentAnswerSet{
		{StudentName: "Ben", Answers: map[int]string{1: "Inertia resists acceleration."}},
	}); err != nil {
		t.Fatalf("SaveSubmissions update: %v", err)
	}

	got, err := s.ListSubmissions(id)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(got) != 2 || got[0].StudentName != "Ana" || got[1].StudentName != "Ben" {
		t.Fatalf("got %+v", got)
	}
	if got[0].Answers[2] != "F = ma" || got[1].Answers[1] != "Inertia resists acceleration." {
		t.Errorf("answers = %+v / %+v", got[0].Answers, got[1].Answers)
	}

	dup := []model.StudentAnswerSet{{StudentName: "X"}, {StudentName: "X"}}
	if err := s.SaveSubmissions(id, dup); err == nil {
		t.Error("expected error for duplicate student names")
	}
}

func TestEvaluations(t *testing.T) {
	s := newTestStore(t)
	id := insertTestAssignment(t, s, "Mechanics")

	ev := model.CombineResults("Ana", model.ModeStrict, []model.QuestionResult{{
		QuestionNumber: 1,
		Scores:         []model.CriterionScore{{Criterion: "Correctness", Awarded: 5, Max: 6, Reason: "Good."}},
		TotalScore:     5,
		Feedback:       []string{"Add an example."},
		AnswerLength:   42,
	}})
	ev.AssignmentID = id
	first, err := s.SaveEvaluation(ev)
	if err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	// Regrading overwrites the same row.
	ev.Mode = model.ModeLenient
	second, err := s.SaveEvaluation(ev)
	if err != nil {
		t.Fatalf("SaveEvaluation regrade: %v", err)
	}
	if first != second {
		t.Errorf("regrade created a new row: %d != %d", first, second)
	}

	evals, err := s.ListEvaluations(id)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("got %d evaluations, want 1", len(evals))
	}
	got := evals[0]
	if got.Mode != model.ModeLenient || got.Percentage != 83.33 || got.TotalMax != 6 {
		t.Errorf("evaluation = %+v", got)
	}
	if len(got.Results) != 1 || got.Results[0].AnswerLength != 42 || got.Results[0].Scores[0].Reason != "Good." {
		t.Errorf("results = %+v", got.Results)
	}
	if len(got.Feedback) != 1 || got.Feedback[0] != "Add an example." {
		t.Errorf("feedback = %v", got.Feedback)
	}
}

func TestReports(t *testing.T) {
	s := newTestStore(t)
	id := insertTestAssignment(t, s, "Mechanics")

	older := time.Now().Add(-time.Hour)
	if err := s.SaveReport(model.ReportSummary{RunID: "run-1", AssignmentID: id, CreatedAt: older}, []byte(`{"run_id":"run-1"}`)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.SaveReport(model.ReportSummary{RunID: "run-2", AssignmentID: id}, []byte(`{"run_id":"run-2"}`)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.SaveReport(model.ReportSummary{RunID: "run-1", AssignmentID: id}, []byte(`{}`)); err == nil {
		t.Error("expected error for duplicate run ID")
	}

	data, err := s.GetReport("run-1")
	if err != nil || string(data) != `{"run_id":"run-1"}` {
		t.Errorf("GetReport = %s, %v", data, err)
	}
	if data, err := s.GetReport("nope"); data != nil || err != nil {
		t.Errorf("missing report = %s, %v", data, err)
	}

	list, err := s.ListReports(id)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "run-2" {
		t.Errorf("reports should be newest first, got %+v", list)
	}
}

func TestExportAssignment(t *testing.T) {
	s := newTestStore(t)
	id := insertTestAssignment(t, s, "Mechanics")
	if err := s.SaveSubmissions(id, []model.StudentAnswerSet{{StudentName: "Ana", Answers: map[int]string{1: "x"}}}); err != nil {
		t.Fatalf("SaveSubmissions: %v", err)
	}

	exp, err := s.ExportAssignment(id)
	if err != nil {
		t.Fatalf("ExportAssignment: %v", err)
	}
	if exp.Assignment.Title != "Mechanics" || len(exp.Submissions) != 1 || len(exp.Evaluations) != 0 {
		t.Errorf("export = %+v", exp)
	}

	if exp, err := s.ExportAssignment(404); exp != nil || err != nil {
		t.Errorf("missing export = %+v, %v", exp, err)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil || count != 0 {
		t.Fatalf("UserCount = %d, %v", count, err)
	}

	id, err := s.CreateUser(model.User{
		Username: "marie", DisplayName: "Marie", PasswordHash: "hash", Role: model.UserRoleTeacher, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "marie", PasswordHash: "h"}); err == nil {
		t.Error("expected error for duplicate username")
	}

	u, err := s.GetUserByUsername("marie")
	if err != nil || u == nil || u.ID != id || !u.Active || u.Role != model.UserRoleTeacher {
		t.Fatalf("GetUserByUsername = %+v, %v", u, err)
	}

	if err := s.SetUserActive(id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if err := s.UpdatePassword(id, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	u, _ = s.GetUserByUsername("marie")
	if u.Active || u.PasswordHash != "new-hash" {
		t.Errorf("user after update = %+v", u)
	}

	if u, err := s.GetUserByUsername("nobody"); u != nil || err != nil {
		t.Errorf("missing user = %+v, %v", u, err)
	}

	users, err := s.ListUsers()
	if err != nil || len(users) != 1 {
		t.Errorf("ListUsers = %+v, %v", users, err)
	}
}

func TestGetAssignmentByHash(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateAssignment(model.Assignment{
		Title:      "Imported",
		Questions:  []model.Question{{Number: 1, Text: "Why?"}},
		SourceHash: "abc123",
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	insertTestAssignment(t, s, "Manual")

	a, err := s.GetAssignmentByHash("abc123")
	if err != nil || a == nil || a.ID != id || a.SourceHash != "abc123" {
		t.Errorf("GetAssignmentByHash = %+v, %v", a, err)
	}
	for _, h := range []string{"", "other"} {
		if a, err := s.GetAssignmentByHash(h); a != nil || err != nil {
			t.Errorf("GetAssignmentByHash(%q) = %+v, %v", h, a, err)
		}
	}
}
