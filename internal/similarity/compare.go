package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
	"github.com/Varun-Kachroo/RubrikAI/internal/vectorize"
)

const maxCommonWords = 10

// Comparison is a side-by-side look at two answers.
type Comparison struct {
	Similarity  float64  `json:"similarity"`
	CommonWords []string `json:"common_words"`
	UniqueToA   int      `json:"unique_to_a"`
	UniqueToB   int      `json:"unique_to_b"`
}

// CompareAnswers scores two answers by word cosine and lists up to ten shared
// words longer than three runes, alphabetically.
func CompareAnswers(a, b string) Comparison {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return Comparison{}
	}
	sim := vectorize.Similarity(vectorize.QuestionConfig(), []string{a, b})[0][1]

	wa, wb := significantWords(a), significantWords(b)
	var common []string
	for w := range wa {
		if _, ok := wb[w]; ok {
			common = append(common, w)
		}
	}
	shared := len(common)
	sort.Strings(common)
	if len(common) > maxCommonWords {
		common = common[:maxCommonWords]
	}
	return Comparison{
		Similarity:  textstats.Round(sim*100, 1),
		CommonWords: common,
		UniqueToA:   len(wa) - shared,
		UniqueToB:   len(wb) - shared,
	}
}

func significantWords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

// QuestionAnalysis is one question's matrix and its suspicious pairs.
// Matrix is nil when too few students answered.
type QuestionAnalysis struct {
	Question int     `json:"question"`
	Matrix   *Matrix `json:"matrix"`
	Pairs    []Pair  `json:"pairs"`
}

// QuestionBreakdown computes a matrix for every question number present in
// the batch, in ascending order.
func (e *Engine) QuestionBreakdown(students []model.StudentAnswerSet, threshold float64) ([]QuestionAnalysis, error) {
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}
	seen := make(map[int]struct{})
	for _, s := range students {
		for q := range s.Answers {
			seen[q] = struct{}{}
		}
	}
	qs := make([]int, 0, len(seen))
	for q := range seen {
		qs = append(qs, q)
	}
	sort.Ints(qs)

	out := make([]QuestionAnalysis, 0, len(qs))
	for _, q := range qs {
		m, err := e.ComputeQuestionMatrix(students, q)
		if err != nil {
			return nil, err
		}
		out = append(out, QuestionAnalysis{Question: q, Matrix: m, Pairs: SuspiciousPairs(m, threshold)})
	}
	return out, nil
}

// QuestionBreakdown runs the default engine's breakdown.
func QuestionBreakdown(students []model.StudentAnswerSet, threshold float64) ([]QuestionAnalysis, error) {
	return defaultEngine.QuestionBreakdown(students, threshold)
}
