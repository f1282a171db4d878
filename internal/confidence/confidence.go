// Package confidence estimates how far a grading oracle's evaluation of one
// answer can be trusted.
package confidence

import (
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
)

// ReviewThreshold is the score below which an evaluation needs a human look.
const ReviewThreshold = 70

// Input is the part of an evaluation the estimator looks at.
type Input struct {
	AnswerLength int                    `json:"answer_length"`
	Scores       []model.CriterionScore `json:"scores"`
	Feedback     []string               `json:"feedback"`
	TotalScore   float64                `json:"total_score"`
}

// Result is the trust signal for one evaluation.
type Result struct {
	Score          float64  `json:"confidence_score"`
	Level          string   `json:"confidence_level"`
	Recommendation string   `json:"recommendation"`
	Color          string   `json:"color"`
	NeedsReview    bool     `json:"needs_review"`
	Reasons        []string `json:"reasons"`
}

// Factor weights before renormalization.
const (
	weightLength    = 0.15
	weightCoverage  = 0.25
	weightVariance  = 0.20
	weightFeedback  = 0.20
	weightExtremity = 0.20
)

type factor struct {
	score  float64
	weight float64
	reason string
}

// Estimate blends up to five factors. Coverage and variance apply only when
// scores are present, extremity only when the scores carry a positive maximum.
func Estimate(in Input) Result {
	factors := []factor{lengthFactor(in.AnswerLength)}

	if len(in.Scores) > 0 {
		pcts := make([]float64, len(in.Scores))
		for i, s := range in.Scores {
			pcts[i] = s.Percentage()
		}
		factors = append(factors, coverageFactor(pcts), varianceFactor(pcts))
	}

	factors = append(factors, feedbackFactor(in.Feedback))

	var maxScore float64
	for _, s := range in.Scores {
		maxScore += s.Max
	}
	if maxScore > 0 {
		factors = append(factors, extremityFactor(in.TotalScore/maxScore*100))
	}

	var sum, weights float64
	reasons := make([]string, 0, len(factors))
	for _, f := range factors {
		sum += f.score * f.weight
		weights += f.weight
		reasons = append(reasons, f.reason)
	}
	score := textstats.Round(sum/weights, 1)

	res := Result{Score: score, NeedsReview: score < ReviewThreshold, Reasons: reasons}
	res.Level, res.Recommendation, res.Color = Band(score)
	return res
}

// Band maps a confidence score to its level, recommendation and colour.
func Band(score float64) (level, recommendation, color string) {
	switch {
	case score >= 90:
		return "Very High", "Trust this grade", "#44ff88"
	case score >= 75:
		return "High", "Grade is reliable", "#88ff44"
	case score >= 60:
		return "Moderate", "Consider quick review", "#ffbb44"
	default:
		return "Low", "Manual review recommended", "#ff8844"
	}
}

// FromResult builds the estimator input for one question result.
func FromResult(r model.QuestionResult) Input {
	return Input{
		AnswerLength: r.AnswerLength,
		Scores:       r.Scores,
		Feedback:     r.Feedback,
		TotalScore:   r.TotalScore,
	}
}

// QuestionConfidence is the estimate for one graded question.
type QuestionConfidence struct {
	StudentName    string `json:"student_name"`
	QuestionNumber int    `json:"question_number"`
	Result
}

// FromEvaluation estimates every question result of an evaluation.
func FromEvaluation(ev model.Evaluation) []QuestionConfidence {
	out := make([]QuestionConfidence, 0, len(ev.Results))
	for _, r := range ev.Results {
		out = append(out, QuestionConfidence{
			StudentName:    ev.StudentName,
			QuestionNumber: r.QuestionNumber,
			Result:         Estimate(FromResult(r)),
		})
	}
	return out
}

func lengthFactor(n int) factor {
	switch {
	case n > 200:
		return factor{95, weightLength, "Detailed answer provided"}
	case n > 100:
		return factor{85, weightLength, "Adequate answer length"}
	case n > 50:
		return factor{70, weightLength, "Brief answer"}
	default:
		return factor{50, weightLength, "Very short answer - difficult to assess"}
	}
}

func coverageFactor(pcts []float64) factor {
	positive := 0
	for _, p := range pcts {
		if p > 0 {
			positive++
		}
	}
	switch {
	case positive == len(pcts):
		return factor{90, weightCoverage, "All rubric criteria addressed"}
	case positive > 0:
		return factor{70, weightCoverage, "Some criteria not fully addressed"}
	default:
		return factor{40, weightCoverage, "Multiple criteria missing"}
	}
}

func varianceFactor(pcts []float64) factor {
	_, sd := textstats.MeanStd(pcts)
	switch {
	case sd < 15:
		return factor{85, weightVariance, "Consistent performance across criteria"}
	case sd < 30:
		return factor{75, weightVariance, "Some variation in criterion scores"}
	default:
		return factor{60, weightVariance, "High variation - some criteria much stronger"}
	}
}

// minFeedbackItems items each longer than minFeedbackLen count as clear reasoning.
const (
	minFeedbackItems = 2
	minFeedbackLen   = 20
)

func feedbackFactor(feedback []string) factor {
	clear := len(feedback) >= minFeedbackItems
	for _, f := range feedback {
		if utf8.RuneCountInString(f) <= minFeedbackLen {
			clear = false
		}
	}
	if clear {
		return factor{90, weightFeedback, "Clear reasoning provided"}
	}
	return factor{70, weightFeedback, "Limited feedback detail"}
}

func extremityFactor(pct float64) factor {
	switch {
	case pct >= 90 || pct <= 20:
		return factor{95, weightExtremity, "Clear-cut performance level"}
	case pct >= 40 && pct <= 70:
		return factor{70, weightExtremity, "Borderline performance - recommend review"}
	default:
		return factor{85, weightExtremity, "Performance level reasonably clear"}
	}
}
