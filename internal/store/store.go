package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		source_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		text TEXT NOT NULL,
		UNIQUE (assignment_id, number),
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS criteria (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		max_marks REAL NOT NULL,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		student_name TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		answer TEXT NOT NULL,
		UNIQUE (assignment_id, student_name, question_number),
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		student_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		results TEXT NOT NULL,
		total_score REAL NOT NULL DEFAULT 0,
		total_max REAL NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '[]',
		evaluated_at DATETIME NOT NULL,
		UNIQUE (assignment_id, student_name),
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS analysis_reports (
		run_id TEXT PRIMARY KEY,
		assignment_id INTEGER NOT NULL,
		report TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'teacher',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAssignment stores an assignment with its questions and rubric.
func (s *Store) CreateAssignment(a model.Assignment) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO assignments (title, source_hash, created_at) VALUES (?, ?, ?)`,
		a.Title, a.SourceHash, time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, q := range a.Questions {
		if _, err := tx.Exec(
			`INSERT INTO questions (assignment_id, number, text) VALUES (?, ?, ?)`,
			id, q.Number, q.Text,
		); err != nil {
			return 0, fmt.Errorf("insert question %d: %w", q.Number, err)
		}
	}
	for i, c := range a.Rubric {
		if _, err := tx.Exec(
			`INSERT INTO criteria (assignment_id, position, name, max_marks) VALUES (?, ?, ?, ?)`,
			id, i, c.Name, c.MaxMarks,
		); err != nil {
			return 0, fmt.Errorf("insert criterion %q: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("created assignment", "id", id, "title", a.Title,
		"questions", len(a.Questions), "criteria", len(a.Rubric))
	return id, nil
}

// GetAssignment returns an assignment with its questions and rubric, or nil
// if it does not exist.
func (s *Store) GetAssignment(id int64) (*model.Assignment, error) {
	return s.getAssignment(`WHERE id = ?`, id)
}

// GetAssignmentByHash returns the assignment imported from a file with the
// given SHA-256, or nil.
func (s *Store) GetAssignmentByHash(hash string) (*model.Assignment, error) {
	if hash == "" {
		return nil, nil
	}
	return s.getAssignment(`WHERE source_hash = ? ORDER BY id LIMIT 1`, hash)
}

func (s *Store) getAssignment(where string, arg any) (*model.Assignment, error) {
	var a model.Assignment
	err := s.db.QueryRow(`SELECT id, title, source_hash, created_at FROM assignments `+where, arg).
		Scan(&a.ID, &a.Title, &a.SourceHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignmentParts(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) loadAssignmentParts(a *model.Assignment) error {
	var err error
	if a.Questions, err = s.listQuestions(a.ID); err != nil {
		return err
	}
	a.Rubric, err = s.listCriteria(a.ID)
	return err
}

func (s *Store) listQuestions(assignmentID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT number, text FROM questions WHERE assignment_id = ? ORDER BY number`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.Number, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) listCriteria(assignmentID int64) ([]model.Criterion, error) {
	rows, err := s.db.Query(
		`SELECT name, max_marks FROM criteria WHERE assignment_id = ? ORDER BY position`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rubric []model.Criterion
	for rows.Next() {
		var c model.Criterion
		if err := rows.Scan(&c.Name, &c.MaxMarks); err != nil {
			return nil, err
		}
		rubric = append(rubric, c)
	}
	return rubric, rows.Err()
}

// ListAssignments returns all assignments, newest first.
func (s *Store) ListAssignments() ([]model.Assignment, error) {
	rows, err := s.db.Query(`SELECT id, title, source_hash, created_at FROM assignments ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	var list []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.SourceHash, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		if err := s.loadAssignmentParts(&list[i]); err != nil {
			return nil, fmt.Errorf("load assignment %d: %w", list[i].ID, err)
		}
	}
	return list, nil
}

// DeleteAssignment removes an assignment and everything recorded against it.
func (s *Store) DeleteAssignment(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"analysis_reports", "evaluations", "submissions", "criteria", "questions"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE assignment_id = ?`, id); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM assignments WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("deleted assignment", "id", id)
	return nil
}

// SaveSubmissions upserts student answers for an assignment.
func (s *Store) SaveSubmissions(assignmentID int64, students []model.StudentAnswerSet) error {
	if err := model.ValidateBatch(students); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, st := range students {
		for q, answer := range st.Answers {
			if _, err := tx.Exec(
				`INSERT INTO submissions (assignment_id, student_name, question_number, answer)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(assignment_id, student_name, question_number) DO UPDATE SET answer = excluded.answer`,
				assignmentID, st.StudentName, q, answer,
			); err != nil {
				return fmt.Errorf("save answer %s/%d: %w", st.StudentName, q, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("saved submissions", "assignment_id", assignmentID, "students", len(students))
	return nil
}

// ListSubmissions returns every student's answers, ordered by student name.
func (s *Store) ListSubmissions(assignmentID int64) ([]model.StudentAnswerSet, error) {
	rows, err := s.db.Query(
		`SELECT student_name, question_number, answer FROM submissions
		 WHERE assignment_id = ? ORDER BY student_name, question_number`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StudentAnswerSet
	for rows.Next() {
		var name, answer string
		var q int
		if err := rows.Scan(&name, &q, &answer); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].StudentName != name {
			out = append(out, model.StudentAnswerSet{StudentName: name, Answers: make(map[int]string)})
		}
		out[len(out)-1].Answers[q] = answer
	}
	return out, rows.Err()
}

// SaveEvaluation stores a graded submission, replacing any earlier evaluation
// of the same student on the same assignment.
func (s *Store) SaveEvaluation(ev model.Evaluation) (int64, error) {
	results, err := json.Marshal(ev.Results)
	if err != nil {
		return 0, fmt.Errorf("marshal results: %w", err)
	}
	feedback, err := json.Marshal(ev.Feedback)
	if err != nil {
		return 0, fmt.Errorf("marshal feedback: %w", err)
	}
	if ev.EvaluatedAt.IsZero() {
		ev.EvaluatedAt = time.Now()
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO evaluations (assignment_id, student_name, mode, results, total_score, total_max, percentage, feedback, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(assignment_id, student_name) DO UPDATE SET
		   mode = excluded.mode, results = excluded.results, total_score = excluded.total_score,
		   total_max = excluded.total_max, percentage = excluded.percentage,
		   feedback = excluded.feedback, evaluated_at = excluded.evaluated_at
		 RETURNING id`,
		ev.AssignmentID, ev.StudentName, ev.Mode, string(results), ev.TotalScore, ev.TotalMax,
		ev.Percentage, string(feedback), ev.EvaluatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save evaluation for %s: %w", ev.StudentName, err)
	}
	return id, nil
}

// ListEvaluations returns an assignment's evaluations ordered by student name.
func (s *Store) ListEvaluations(assignmentID int64) ([]model.Evaluation, error) {
	rows, err := s.db.Query(
		`SELECT id, assignment_id, student_name, mode, results, total_score, total_max, percentage, feedback, evaluated_at
		 FROM evaluations WHERE assignment_id = ? ORDER BY student_name`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evals []model.Evaluation
	for rows.Next() {
		var ev model.Evaluation
		var results, feedback string
		if err := rows.Scan(&ev.ID, &ev.AssignmentID, &ev.StudentName, &ev.Mode, &results,
			&ev.TotalScore, &ev.TotalMax, &ev.Percentage, &feedback, &ev.EvaluatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(results), &ev.Results); err != nil {
			return nil, fmt.Errorf("decode results for %s: %w", ev.StudentName, err)
		}
		if err := json.Unmarshal([]byte(feedback), &ev.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback for %s: %w", ev.StudentName, err)
		}
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

// SaveReport stores a rendered analysis report under its run ID.
func (s *Store) SaveReport(sum model.ReportSummary, report []byte) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO analysis_reports (run_id, assignment_id, report, created_at) VALUES (?, ?, ?, ?)`,
		sum.RunID, sum.AssignmentID, string(report), sum.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", sum.RunID, err)
	}
	slog.Info("saved analysis report", "run_id", sum.RunID, "assignment_id", sum.AssignmentID)
	return nil
}

// GetReport returns the stored report JSON, or nil if the run is unknown.
func (s *Store) GetReport(runID string) ([]byte, error) {
	var report string
	err := s.db.QueryRow(`SELECT report FROM analysis_reports WHERE run_id = ?`, runID).Scan(&report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(report), nil
}

// ListReports returns the stored runs for an assignment, newest first.
func (s *Store) ListReports(assignmentID int64) ([]model.ReportSummary, error) {
	rows, err := s.db.Query(
		`SELECT run_id, assignment_id, created_at FROM analysis_reports WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.ReportSummary
	for rows.Next() {
		var r model.ReportSummary
		if err := rows.Scan(&r.RunID, &r.AssignmentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
