package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// ValidationError collects every problem found in an oracle response.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

type rawResult struct {
	Scores     []model.CriterionScore `json:"scores"`
	TotalScore *float64               `json:"total_score"`
	Feedback   json.RawMessage        `json:"feedback"`
	Confidence string                 `json:"confidence"`
}

// ParseResult decodes an oracle reply into a QuestionResult. Code fences and
// prose around the JSON object are tolerated. A missing total_score is
// recomputed from the criterion scores.
func ParseResult(raw string) (*model.QuestionResult, error) {
	body := extractJSON(stripCodeFences(raw))
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrEmptyResponse)
	}

	var r rawResult
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("parse LLM JSON response: %w", err)
	}

	feedback, err := parseFeedback(r.Feedback)
	if err != nil {
		return nil, err
	}

	res := &model.QuestionResult{
		Scores:     r.Scores,
		Feedback:   feedback,
		Confidence: r.Confidence,
	}
	if r.TotalScore != nil {
		res.TotalScore = *r.TotalScore
	} else {
		for _, s := range r.Scores {
			res.TotalScore += s.Awarded
		}
		res.TotalScore = math.Round(res.TotalScore*100) / 100
	}

	if err := Validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks that a result has at least one named criterion, that
// every award lies within [0, max] and that the total does not exceed the
// sum of the criterion maxima.
func Validate(r *model.QuestionResult) error {
	var (
		errs     []string
		maxTotal float64
	)
	if len(r.Scores) == 0 {
		errs = append(errs, "no criterion scores")
	}
	for i, s := range r.Scores {
		maxTotal += s.Max
		if strings.TrimSpace(s.Criterion) == "" {
			errs = append(errs, fmt.Sprintf("score %d: empty criterion name", i+1))
		}
		if s.Max < 0 {
			errs = append(errs, fmt.Sprintf("score %d (%s): negative max %g", i+1, s.Criterion, s.Max))
		}
		if s.Awarded < 0 || s.Awarded > s.Max {
			errs = append(errs, fmt.Sprintf("score %d (%s): awarded %g outside [0, %g]", i+1, s.Criterion, s.Awarded, s.Max))
		}
	}
	if r.TotalScore < 0 {
		errs = append(errs, fmt.Sprintf("negative total score %g", r.TotalScore))
	}
	if len(r.Scores) > 0 && r.TotalScore > maxTotal+1e-9 {
		errs = append(errs, fmt.Sprintf("total score %g exceeds maximum %g", r.TotalScore, maxTotal))
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func parseFeedback(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("parse feedback: %w", err)
	}
	if strings.TrimSpace(single) == "" {
		return nil, nil
	}
	return []string{single}, nil
}

// stripCodeFences removes ```json ... ``` wrapping if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSON returns the span from the first '{' to the last '}'.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
