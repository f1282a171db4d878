package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/llm"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fullMarks awards every criterion its maximum.
type fullMarks struct{}

func (fullMarks) Grade(_ context.Context, req llm.Request) (*model.QuestionResult, error) {
	res := &model.QuestionResult{QuestionNumber: req.Question.Number, AnswerLength: len([]rune(req.Answer))}
	for _, c := range req.Rubric {
		res.Scores = append(res.Scores, model.CriterionScore{Criterion: c.Name, Awarded: c.MaxMarks, Max: c.MaxMarks, Reason: "ok"})
		res.TotalScore += c.MaxMarks
	}
	res.Feedback = []string{"Well done."}
	return res, nil
}

const importCSV = `CRITERIA,TOTAL MARKS
Correctness,6
Clarity,4
QUESTIONS,
1,What is inertia?
2,State Newton's second law.
STUDENTS,
Ana,"Inertia is the tendency of an object to resist changes in its motion.","Force equals mass times acceleration."
Ben,"Inertia is the tendency of an object to resist changes in its motion.","Force equals mass times acceleration."
`

type testServer struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.Store
}

func newTestServer(t *testing.T, oracle llm.Oracle) *testServer {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	for _, u := range []struct {
		name string
		role model.UserRole
	}{{"admin", model.UserRoleAdmin}, {"teacher", model.UserRoleTeacher}} {
		hash, err := HashPassword("secret")
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		if _, err := s.CreateUser(model.User{Username: u.name, DisplayName: u.name, PasswordHash: hash, Role: u.role, Active: true}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	h := New(s, oracle, Config{})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, store: s}
}

// do sends a request, authenticated as user unless user is empty.
func (ts *testServer) do(method, path, user string, body io.Reader) *http.Response {
	ts.t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	if err != nil {
		ts.t.Fatalf("NewRequest: %v", err)
	}
	if user != "" {
		req.SetBasicAuth(user, "secret")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) postJSON(path, user string, v any) *http.Response {
	ts.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		ts.t.Fatalf("marshal: %v", err)
	}
	return ts.do(http.MethodPost, path, user, bytes.NewReader(data))
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["status"] != "ok" || body["grading"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		user   string
		pass   string
		status int
	}{
		{"no credentials", "/api/assignments", "", "", http.StatusUnauthorized},
		{"bad password", "/api/assignments", "teacher", "wrong", http.StatusUnauthorized},
		{"unknown user", "/api/assignments", "ghost", "secret", http.StatusUnauthorized},
		{"teacher ok", "/api/assignments", "teacher", "secret", http.StatusOK},
		{"teacher not admin", "/api/users", "teacher", "secret", http.StatusForbidden},
		{"admin ok", "/api/users", "admin", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+tt.path, nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestInactiveUserRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	u, err := ts.store.GetUserByUsername("teacher")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %+v, %v", u, err)
	}
	resp := ts.postJSON("/api/users/"+itoa(u.ID)+"/active", "admin", map[string]bool{"active": false})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate status = %d", resp.StatusCode)
	}
	if resp := ts.do(http.MethodGet, "/api/assignments", "teacher", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("inactive user status = %d", resp.StatusCode)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAssignmentWorkflow(t *testing.T) {
	ts := newTestServer(t, fullMarks{})

	resp := ts.do(http.MethodPost, "/api/assignments/import?title=Mechanics", "teacher", strings.NewReader(importCSV))
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("import status = %d: %s", resp.StatusCode, body)
	}
	var imp importResponse
	decode(t, resp, &imp)
	if imp.Questions != 2 || imp.Students != 2 || imp.Duplicate {
		t.Fatalf("import = %+v", imp)
	}
	id := itoa(imp.AssignmentID)

	// The same file again resolves to the existing assignment.
	resp = ts.do(http.MethodPost, "/api/assignments/import", "teacher", strings.NewReader(importCSV))
	var dup importResponse
	decode(t, resp, &dup)
	if resp.StatusCode != http.StatusOK || !dup.Duplicate || dup.AssignmentID != imp.AssignmentID {
		t.Errorf("re-import = %d %+v", resp.StatusCode, dup)
	}

	var a model.Assignment
	decode(t, ts.do(http.MethodGet, "/api/assignments/"+id, "teacher", nil), &a)
	if a.Title != "Mechanics" || len(a.Rubric) != 2 {
		t.Errorf("assignment = %+v", a)
	}

	resp = ts.do(http.MethodPost, "/api/assignments/"+id+"/grade?mode=strict", "teacher", nil)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("grade status = %d: %s", resp.StatusCode, body)
	}
	var graded []model.Evaluation
	decode(t, resp, &graded)
	if len(graded) != 2 || graded[0].Percentage != 100 || graded[0].Mode != model.ModeStrict {
		t.Errorf("graded = %+v", graded)
	}

	var stored []model.Evaluation
	decode(t, ts.do(http.MethodGet, "/api/assignments/"+id+"/evaluations", "teacher", nil), &stored)
	if len(stored) != 2 {
		t.Errorf("stored evaluations = %d", len(stored))
	}

	resp = ts.do(http.MethodGet, "/api/assignments/"+id+"/analysis", "teacher", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d", resp.StatusCode)
	}
	var rep struct {
		RunID string `json:"run_id"`
		Pairs []struct {
			StudentA string `json:"student_a"`
			StudentB string `json:"student_b"`
		} `json:"suspicious_pairs"`
	}
	decode(t, resp, &rep)
	if rep.RunID == "" || len(rep.Pairs) != 1 {
		t.Errorf("report = %+v", rep)
	}

	var reports []model.ReportSummary
	decode(t, ts.do(http.MethodGet, "/api/assignments/"+id+"/reports", "teacher", nil), &reports)
	if len(reports) != 1 || reports[0].RunID != rep.RunID {
		t.Errorf("reports = %+v", reports)
	}

	resp = ts.do(http.MethodGet, "/api/reports/"+rep.RunID+"?format=text", "teacher", nil)
	text, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("text report = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(text), "Ana") {
		t.Errorf("text report missing student:\n%s", text)
	}

	resp = ts.do(http.MethodGet, "/api/assignments/"+id+"/export?format=csv", "teacher", nil)
	csvOut, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(csvOut), "QUESTIONS") || !strings.Contains(string(csvOut), "Ben") {
		t.Errorf("csv export:\n%s", csvOut)
	}

	var exp model.AssignmentExport
	decode(t, ts.do(http.MethodGet, "/api/assignments/"+id+"/export", "teacher", nil), &exp)
	if len(exp.Submissions) != 2 || len(exp.Evaluations) != 2 {
		t.Errorf("export = %+v", exp)
	}

	if resp := ts.do(http.MethodDelete, "/api/assignments/"+id, "teacher", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := ts.do(http.MethodGet, "/api/assignments/"+id, "teacher", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted assignment status = %d", resp.StatusCode)
	}
}

func TestSaveSubmissions(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(http.MethodPost, "/api/assignments/import", "teacher", strings.NewReader(importCSV))
	var imp importResponse
	decode(t, resp, &imp)
	id := itoa(imp.AssignmentID)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"new student", []model.StudentAnswerSet{{StudentName: "Cai", Answers: map[int]string{1: "Resistance to change."}}}, http.StatusOK},
		{"unknown question", []model.StudentAnswerSet{{StudentName: "Dan", Answers: map[int]string{7: "?"}}}, http.StatusBadRequest},
		{"duplicate names", []model.StudentAnswerSet{{StudentName: "Eve"}, {StudentName: "Eve"}}, http.StatusBadRequest},
		{"not a list", map[string]string{"x": "y"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.postJSON("/api/assignments/"+id+"/submissions", "teacher", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	var subs []model.StudentAnswerSet
	decode(t, ts.do(http.MethodGet, "/api/assignments/"+id+"/submissions", "teacher", nil), &subs)
	if len(subs) != 3 {
		t.Errorf("submissions = %+v", subs)
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t, nil)
	const twoStudents = `{"students":[` +
		`{"student_name":"A","answers":{"1":"plants need light and water"}},` +
		`{"student_name":"B","answers":{"1":"plants need light and water"}}]}`
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing assignment", http.MethodGet, "/api/assignments/999", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/assignments/abc", "", http.StatusBadRequest},
		{"missing report", http.MethodGet, "/api/reports/nope", "", http.StatusNotFound},
		{"grading disabled", http.MethodPost, "/api/assignments/1/grade", "", http.StatusServiceUnavailable},
		{"empty import", http.MethodPost, "/api/assignments/import", "", http.StatusBadRequest},
		{"bad threshold", http.MethodPost, "/api/similarity?threshold=high", `{"students":[]}`, http.StatusBadRequest},
		{"NaN threshold", http.MethodPost, "/api/similarity?threshold=NaN", twoStudents, http.StatusBadRequest},
		{"infinite threshold", http.MethodPost, "/api/similarity?threshold=Inf", twoStudents, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/compare", `{"c":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(tt.method, tt.path, "teacher", strings.NewReader(tt.body))
			if resp.StatusCode != tt.status {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
		})
	}
}

func TestCoreEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	same := "Photosynthesis converts light energy into chemical energy stored in glucose."
	students := []model.StudentAnswerSet{
		{StudentName: "Ana", Answers: map[int]string{1: same}},
		{StudentName: "Ben", Answers: map[int]string{1: same}},
		{StudentName: "Cai", Answers: map[int]string{1: "Mitochondria are where cells make their energy, I think."}},
	}

	t.Run("similarity", func(t *testing.T) {
		var out similarityResponse
		resp := ts.postJSON("/api/similarity", "teacher", batchRequest{Students: students})
		decode(t, resp, &out)
		if out.Matrix == nil || len(out.Matrix.Names) != 3 {
			t.Fatalf("matrix = %+v", out.Matrix)
		}
		if len(out.Pairs) != 1 || out.Pairs[0].StudentA != "Ana" || out.Pairs[0].StudentB != "Ben" {
			t.Errorf("pairs = %+v", out.Pairs)
		}
	})

	t.Run("question similarity", func(t *testing.T) {
		resp := ts.postJSON("/api/similarity/questions/1", "teacher", batchRequest{Students: students})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if resp := ts.postJSON("/api/similarity/questions/0", "teacher", batchRequest{Students: students}); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("question 0 status = %d", resp.StatusCode)
		}
	})

	t.Run("compare", func(t *testing.T) {
		var out struct {
			Similarity float64 `json:"similarity"`
		}
		decode(t, ts.postJSON("/api/compare", "teacher", map[string]string{"a": same, "b": same}), &out)
		if out.Similarity != 100 {
			t.Errorf("similarity = %v", out.Similarity)
		}
	})

	t.Run("ai detection", func(t *testing.T) {
		resp := ts.postJSON("/api/ai-detection", "teacher", map[string]string{"text": same})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("single status = %d", resp.StatusCode)
		}
		var batch []map[string]any
		decode(t, ts.postJSON("/api/ai-detection", "teacher", map[string]any{"students": students}), &batch)
		if len(batch) != 3 || batch[0]["student_name"] != "Ana" {
			t.Errorf("batch = %+v", batch)
		}
		if resp := ts.postJSON("/api/ai-detection", "teacher", map[string]string{"text": "  "}); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("blank text status = %d", resp.StatusCode)
		}
	})

	t.Run("baseline", func(t *testing.T) {
		if resp := ts.postJSON("/api/baseline", "teacher", map[string][]string{"answers": {same}}); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("single answer status = %d", resp.StatusCode)
		}
		var b map[string]any
		decode(t, ts.postJSON("/api/baseline", "teacher", map[string][]string{"answers": {same, "It's fine, I guess."}}), &b)
		if b["sample_size"] != float64(2) {
			t.Errorf("baseline = %+v", b)
		}
	})

	t.Run("confidence", func(t *testing.T) {
		var out map[string]any
		decode(t, ts.postJSON("/api/confidence", "teacher", map[string]any{
			"answer_length": 5,
			"scores":        []model.CriterionScore{{Criterion: "Correctness", Awarded: 5, Max: 5}},
			"total_score":   5,
		}), &out)
		if _, ok := out["confidence_score"]; !ok {
			t.Errorf("confidence = %+v", out)
		}
	})

	t.Run("class stats", func(t *testing.T) {
		var out struct {
			Statistics struct {
				TotalStudents int     `json:"total_students"`
				ClassAverage  float64 `json:"class_average"`
			} `json:"statistics"`
			Top        []map[string]any `json:"top_performers"`
			Struggling []map[string]any `json:"struggling_students"`
		}
		decode(t, ts.postJSON("/api/class-stats", "teacher", map[string]any{"records": []map[string]any{
			{"student_name": "Ana", "percentage": 90},
			{"student_name": "Ben", "percentage": 50},
		}}), &out)
		if out.Statistics.TotalStudents != 2 || out.Statistics.ClassAverage != 70 {
			t.Errorf("stats = %+v", out.Statistics)
		}
		if len(out.Top) != 1 || len(out.Struggling) != 1 {
			t.Errorf("top = %v, struggling = %v", out.Top, out.Struggling)
		}
	})
}

func TestCreateUser(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.postJSON("/api/users", "admin", map[string]string{"username": "marie", "password": "pw"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var u userView
	decode(t, resp, &u)
	if u.Role != model.UserRoleTeacher || u.DisplayName != "marie" || !u.Active {
		t.Errorf("user = %+v", u)
	}

	tests := []struct {
		name string
		body map[string]string
	}{
		{"duplicate", map[string]string{"username": "marie", "password": "pw"}},
		{"no password", map[string]string{"username": "pierre"}},
		{"bad role", map[string]string{"username": "pierre", "password": "pw", "role": "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := ts.postJSON("/api/users", "admin", tt.body); resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
		})
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/assignments", nil)
	req.SetBasicAuth("marie", "pw")
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer r2.Body.Close()
	if r2.StatusCode != http.StatusOK {
		t.Errorf("new user status = %d", r2.StatusCode)
	}
}
