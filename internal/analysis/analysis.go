// Package analysis is the entry point to the similarity, authorship,
// confidence and class-performance engines. It exposes each engine as a
// plain function and assembles them into a full Report.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Varun-Kachroo/RubrikAI/internal/aidetect"
	"github.com/Varun-Kachroo/RubrikAI/internal/confidence"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/performance"
	"github.com/Varun-Kachroo/RubrikAI/internal/similarity"
)

// ComputeSimilarityMatrix compares every student's combined answers.
func ComputeSimilarityMatrix(students []model.StudentAnswerSet) (*similarity.Matrix, error) {
	return similarity.ComputeMatrix(students)
}

// ComputeQuestionSimilarityMatrix compares answers to a single question.
func ComputeQuestionSimilarityMatrix(students []model.StudentAnswerSet, question int) (*similarity.Matrix, error) {
	return similarity.ComputeQuestionMatrix(students, question)
}

// SuspiciousPairs lists pairs at or above threshold, most similar first.
func SuspiciousPairs(m *similarity.Matrix, threshold float64) []similarity.Pair {
	return similarity.SuspiciousPairs(m, threshold)
}

// DetectAIAuthorship scores one text. baseline may be nil.
func DetectAIAuthorship(text string, baseline *aidetect.Baseline) aidetect.Result {
	return aidetect.Analyze(text, baseline)
}

// BuildWritingBaseline profiles a student from prior answers.
func BuildWritingBaseline(prior []string) *aidetect.Baseline {
	return aidetect.BuildBaseline(prior)
}

// EstimateGradingConfidence scores how trustworthy one evaluation is.
func EstimateGradingConfidence(in confidence.Input) confidence.Result {
	return confidence.Estimate(in)
}

// AnalyzeClassPerformance summarizes overall percentages.
func AnalyzeClassPerformance(records []performance.Record) *performance.ClassStatistics {
	return performance.Analyze(records)
}

// Options are the thresholds a Run applies.
type Options struct {
	PairThreshold         float64 `json:"pair_threshold"`
	QuestionPairThreshold float64 `json:"question_pair_threshold"`
	TopThreshold          float64 `json:"top_threshold"`
	StrugglingThreshold   float64 `json:"struggling_threshold"`
	Workers               int     `json:"-"`
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		PairThreshold:         60,
		QuestionPairThreshold: 65,
		TopThreshold:          performance.DefaultTopScore,
		StrugglingThreshold:   performance.DefaultStruggling,
	}
}

// Input is everything a Run looks at.
type Input struct {
	Assignment  model.Assignment
	Students    []model.StudentAnswerSet
	Evaluations []model.Evaluation
	Baselines   map[string]*aidetect.Baseline
}

// Report is the outcome of one full analysis run.
type Report struct {
	RunID        string                          `json:"run_id"`
	AssignmentID int64                           `json:"assignment_id"`
	Title        string                          `json:"title"`
	GeneratedAt  time.Time                       `json:"generated_at"`
	Options      Options                         `json:"options"`
	Students     int                             `json:"students"`
	Matrix       *similarity.Matrix              `json:"similarity_matrix"`
	Pairs        []similarity.Pair               `json:"suspicious_pairs"`
	Questions    []similarity.QuestionAnalysis   `json:"questions"`
	AIDetection  []aidetect.StudentResult        `json:"ai_detection"`
	Confidence   []confidence.QuestionConfidence `json:"confidence"`
	ClassStats   *performance.ClassStatistics    `json:"class_statistics"`
	ByQuestion   []performance.QuestionStats     `json:"by_question"`
	ByCriteria   []performance.CriterionStats    `json:"by_criteria"`
	Top          []performance.Record            `json:"top_performers"`
	Struggling   []performance.Record            `json:"struggling_students"`
}

// NeedsReview returns the confidence entries flagged for a human check.
func (r *Report) NeedsReview() []confidence.QuestionConfidence {
	var out []confidence.QuestionConfidence
	for _, c := range r.Confidence {
		if c.NeedsReview {
			out = append(out, c)
		}
	}
	return out
}

// Run computes every analysis over in. The engines are CPU-bound and do not
// observe ctx themselves; Run checks it between stages.
func Run(ctx context.Context, in Input, opts Options) (*Report, error) {
	rep := &Report{
		RunID:        uuid.NewString(),
		AssignmentID: in.Assignment.ID,
		Title:        in.Assignment.Title,
		GeneratedAt:  time.Now().UTC(),
		Options:      opts,
		Students:     len(in.Students),
	}
	log := slog.With("run_id", rep.RunID, "assignment_id", rep.AssignmentID)
	engine := similarity.New()
	engine.Workers = opts.Workers

	start := time.Now()
	m, err := engine.ComputeMatrix(in.Students)
	if err != nil {
		return nil, fmt.Errorf("similarity matrix: %w", err)
	}
	rep.Matrix = m
	rep.Pairs = similarity.SuspiciousPairs(m, opts.PairThreshold)
	log.Debug("similarity matrix computed", "students", len(in.Students), "pairs", len(rep.Pairs), "elapsed", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep.Questions, err = engine.QuestionBreakdown(in.Students, opts.QuestionPairThreshold)
	if err != nil {
		return nil, fmt.Errorf("question breakdown: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep.AIDetection = aidetect.AnalyzeBatch(in.Students, in.Baselines)
	log.Debug("authorship detection done", "flagged", len(aidetect.Flagged(rep.AIDetection)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, ev := range in.Evaluations {
		rep.Confidence = append(rep.Confidence, confidence.FromEvaluation(ev)...)
	}
	records := performance.RecordsFrom(in.Evaluations)
	rep.ClassStats = performance.Analyze(records)
	rep.ByQuestion = performance.ByQuestion(in.Evaluations)
	rep.ByCriteria = performance.ByCriteria(in.Evaluations)
	rep.Top = performance.TopPerformers(records, opts.TopThreshold)
	rep.Struggling = performance.StrugglingStudents(records, opts.StrugglingThreshold)

	log.Info("analysis complete",
		"pairs", len(rep.Pairs),
		"needs_review", len(rep.NeedsReview()),
		"elapsed", time.Since(start))
	return rep, nil
}
