package performance

import (
	"sort"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
)

// QuestionStats is how the class did on one question.
type QuestionStats struct {
	QuestionNumber    int     `json:"question_number"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	MaxPossible       float64 `json:"max_possible"`
	FullMarks         int     `json:"students_full_marks"`
	Failed            int     `json:"students_failed"`
	Difficulty        string  `json:"difficulty"`
}

// ByQuestion aggregates per-question results across evaluations, ordered by
// question number. The maximum for a question is taken from its last result.
func ByQuestion(evals []model.Evaluation) []QuestionStats {
	type acc struct {
		scores []float64
		max    float64
	}
	byQ := make(map[int]*acc)
	for _, ev := range evals {
		for _, r := range ev.Results {
			if r.QuestionNumber <= 0 {
				continue
			}
			a, ok := byQ[r.QuestionNumber]
			if !ok {
				a = &acc{}
				byQ[r.QuestionNumber] = a
			}
			a.scores = append(a.scores, r.TotalScore)
			a.max = r.MaxScore()
		}
	}

	out := make([]QuestionStats, 0, len(byQ))
	for q, a := range byQ {
		pcts := make([]float64, len(a.scores))
		st := QuestionStats{QuestionNumber: q, MaxPossible: a.max}
		for i, s := range a.scores {
			if a.max > 0 {
				pcts[i] = s / a.max * 100
			}
			if s == a.max {
				st.FullMarks++
			}
			if pcts[i] < 50 {
				st.Failed++
			}
		}
		avgScore, _ := textstats.MeanStd(a.scores)
		avgPct, _ := textstats.MeanStd(pcts)
		st.AverageScore = textstats.Round(avgScore, 1)
		st.AveragePercentage = textstats.Round(avgPct, 1)
		st.Difficulty = Difficulty(avgPct)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out
}

// CriterionStats is how the class did on one rubric criterion.
type CriterionStats struct {
	Criterion         string  `json:"criterion"`
	AveragePercentage float64 `json:"average_percentage"`
	FullMarks         int     `json:"students_full_marks"`
	Struggled         int     `json:"students_struggled"`
	Strength          string  `json:"strength_level"`
}

// ByCriteria aggregates criterion scores across all results in first-seen
// order. Scores with a zero maximum are ignored.
func ByCriteria(evals []model.Evaluation) []CriterionStats {
	var order []string
	pcts := make(map[string][]float64)
	for _, ev := range evals {
		for _, r := range ev.Results {
			for _, s := range r.Scores {
				if s.Criterion == "" {
					continue
				}
				if _, seen := pcts[s.Criterion]; !seen {
					order = append(order, s.Criterion)
					pcts[s.Criterion] = nil
				}
				if s.Max > 0 {
					pcts[s.Criterion] = append(pcts[s.Criterion], s.Percentage())
				}
			}
		}
	}

	var out []CriterionStats
	for _, name := range order {
		ps := pcts[name]
		if len(ps) == 0 {
			continue
		}
		avg, _ := textstats.MeanStd(ps)
		st := CriterionStats{
			Criterion:         name,
			AveragePercentage: textstats.Round(avg, 1),
			Strength:          Strength(avg),
		}
		for _, p := range ps {
			if p >= 99 {
				st.FullMarks++
			}
			if p < 50 {
				st.Struggled++
			}
		}
		out = append(out, st)
	}
	return out
}

// Difficulty labels a question by its average percentage.
func Difficulty(avgPct float64) string {
	switch {
	case avgPct >= 80:
		return "Easy"
	case avgPct >= 60:
		return "Moderate"
	case avgPct >= 40:
		return "Hard"
	default:
		return "Very Hard"
	}
}

// Strength labels a criterion by its average percentage.
func Strength(avgPct float64) string {
	switch {
	case avgPct >= 80:
		return "Strong"
	case avgPct >= 65:
		return "Good"
	case avgPct >= 50:
		return "Adequate"
	default:
		return "Weak"
	}
}
