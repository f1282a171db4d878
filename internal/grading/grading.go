// Package grading runs every submitted answer of an assignment through a
// grading oracle and records one Evaluation per student.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Varun-Kachroo/RubrikAI/internal/llm"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// DefaultWorkers bounds concurrent oracle calls.
const DefaultWorkers = 4

// Sink receives finished evaluations. *store.Store satisfies it.
type Sink interface {
	SaveEvaluation(ev model.Evaluation) (int64, error)
}

// Runner grades submissions through an Oracle.
type Runner struct {
	Oracle  llm.Oracle
	Sink    Sink
	Mode    model.EvaluationMode
	Workers int
}

// Grade grades every answered question of every student. Unanswered
// questions are not sent to the oracle. Any oracle error aborts the run and
// nothing is saved. The returned slice follows the order of students.
func (r *Runner) Grade(ctx context.Context, a model.Assignment, students []model.StudentAnswerSet) ([]model.Evaluation, error) {
	if !r.Mode.IsValid() {
		return nil, fmt.Errorf("%w: evaluation mode %q", model.ErrInvalidInput, r.Mode)
	}
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}
	if len(a.Rubric) == 0 {
		return nil, fmt.Errorf("%w: assignment %d has no rubric", model.ErrInvalidInput, a.ID)
	}

	questions := make([]model.Question, len(a.Questions))
	copy(questions, a.Questions)
	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	type job struct {
		student int
		slot    int
		req     llm.Request
	}
	results := make([][]model.QuestionResult, len(students))
	var jobs []job
	for i, s := range students {
		for _, q := range questions {
			answer, ok := s.Answers[q.Number]
			if !ok {
				continue
			}
			jobs = append(jobs, job{
				student: i,
				slot:    len(results[i]),
				req:     llm.Request{Question: q, Rubric: a.Rubric, Answer: answer, Mode: r.Mode},
			})
			results[i] = append(results[i], model.QuestionResult{})
		}
	}

	slog.Info("grading started", "assignment_id", a.ID, "students", len(students),
		"answers", len(jobs), "mode", r.Mode, "workers", workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		g.Go(func() error {
			res, err := r.Oracle.Grade(gctx, j.req)
			if err != nil {
				return fmt.Errorf("grade %s question %d: %w", students[j.student].StudentName, j.req.Question.Number, err)
			}
			results[j.student][j.slot] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	evals := make([]model.Evaluation, 0, len(students))
	for i, s := range students {
		ev := model.CombineResults(s.StudentName, r.Mode, results[i])
		ev.AssignmentID = a.ID
		ev.EvaluatedAt = time.Now()
		if r.Sink != nil {
			id, err := r.Sink.SaveEvaluation(ev)
			if err != nil {
				return nil, fmt.Errorf("save evaluation: %w", err)
			}
			ev.ID = id
		}
		evals = append(evals, ev)
	}

	slog.Info("grading finished", "assignment_id", a.ID, "evaluations", len(evals),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return evals, nil
}
