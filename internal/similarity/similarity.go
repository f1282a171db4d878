// Package similarity fuses word, character and lexical-overlap signals into
// per-assignment and per-question similarity matrices and extracts
// suspicious student pairs from them.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
	"github.com/Varun-Kachroo/RubrikAI/internal/vectorize"
)

// Matrix is a square similarity table in percent, indexed by student name.
// The diagonal is always 100 and Values[i][j] == Values[j][i].
type Matrix struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// At returns the similarity between students a and b.
func (m *Matrix) At(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

func (m *Matrix) index(name string) int {
	for i, n := range m.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Weights holds the fusion weights and amplification brackets. The values in
// DefaultWeights are empirical and meant to be tuned.
type Weights struct {
	Word    float64
	Char    float64
	Overlap float64

	HighCut   float64 // fused values above this are scaled by HighScale
	HighScale float64
	Cap       float64 // upper bound after HighScale
	MidCut    float64 // values in (MidCut, HighCut] are scaled by MidScale
	MidScale  float64
}

// DefaultWeights is the standard fusion table.
var DefaultWeights = Weights{
	Word:      0.4,
	Char:      0.3,
	Overlap:   0.3,
	HighCut:   0.5,
	HighScale: 1.3,
	Cap:       0.95,
	MidCut:    0.3,
	MidScale:  1.1,
}

// Fuse combines the three signals, each in [0, 1].
func (w Weights) Fuse(word, char, overlap float64) float64 {
	return w.Word*word + w.Char*char + w.Overlap*overlap
}

// Amplify stretches the upper range of a fused score.
func (w Weights) Amplify(x float64) float64 {
	switch {
	case x > w.HighCut:
		return math.Min(w.Cap, x*w.HighScale)
	case x > w.MidCut:
		return x * w.MidScale
	default:
		return x
	}
}

// Amplify applies DefaultWeights amplification.
func Amplify(x float64) float64 { return DefaultWeights.Amplify(x) }

// StopWords are removed before computing lexical overlap.
var StopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {},
}

// minQuestionAnswerLen is the trimmed rune count an answer must exceed to
// count toward a per-question matrix.
const minQuestionAnswerLen = 10

// Engine computes similarity matrices. The zero value is not usable; use New.
type Engine struct {
	Weights   Weights
	StopWords map[string]struct{}
	Workers   int // pairwise pool size, GOMAXPROCS when <= 0
}

// New returns an Engine with the default tables.
func New() *Engine {
	return &Engine{Weights: DefaultWeights, StopWords: StopWords}
}

var defaultEngine = New()

// ComputeMatrix builds the combined-answers matrix with the default engine.
func ComputeMatrix(students []model.StudentAnswerSet) (*Matrix, error) {
	return defaultEngine.ComputeMatrix(students)
}

// ComputeQuestionMatrix builds one question's matrix with the default engine.
func ComputeQuestionMatrix(students []model.StudentAnswerSet, question int) (*Matrix, error) {
	return defaultEngine.ComputeQuestionMatrix(students, question)
}

// ComputeMatrix returns nil when fewer than two students are given. Each
// student's document is their non-empty answers in question order joined by
// single spaces.
func (e *Engine) ComputeMatrix(students []model.StudentAnswerSet) (*Matrix, error) {
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}
	if len(students) < 2 {
		return nil, nil
	}

	names := make([]string, len(students))
	docs := make([]string, len(students))
	words := make([]map[string]struct{}, len(students))
	for i, s := range students {
		names[i] = s.StudentName
		docs[i] = s.CombinedText()
		words[i] = e.contentWords(docs[i])
	}

	wordVecs := vectorize.FitTransform(vectorize.WordConfig(), docs)
	charVecs := vectorize.FitTransform(vectorize.CharConfig(), docs)
	values := vectorize.Pairwise(len(docs), e.Workers, func(i, j int) float64 {
		if i == j {
			return 100
		}
		fused := e.Weights.Fuse(
			vectorize.Cosine(wordVecs[i], wordVecs[j]),
			vectorize.Cosine(charVecs[i], charVecs[j]),
			overlap(words[i], words[j]),
		)
		return e.Weights.Amplify(fused) * 100
	})
	return &Matrix{Names: names, Values: values}, nil
}

// ComputeQuestionMatrix compares only the answers to one question, by word
// cosine. Every student keeps a row; it returns nil when fewer than two
// students answered with more than ten characters.
func (e *Engine) ComputeQuestionMatrix(students []model.StudentAnswerSet, question int) (*Matrix, error) {
	if err := model.ValidateQuestionNumber(question); err != nil {
		return nil, err
	}
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}

	names := make([]string, len(students))
	docs := make([]string, len(students))
	answered := 0
	for i, s := range students {
		names[i] = s.StudentName
		docs[i] = s.Answers[question]
		if utf8.RuneCountInString(strings.TrimSpace(docs[i])) > minQuestionAnswerLen {
			answered++
		}
	}
	if answered < 2 {
		return nil, nil
	}

	vecs := vectorize.FitTransform(vectorize.QuestionConfig(), docs)
	values := vectorize.Pairwise(len(docs), e.Workers, func(i, j int) float64 {
		if i == j {
			return 100
		}
		return vectorize.Cosine(vecs[i], vecs[j]) * 100
	})
	return &Matrix{Names: names, Values: values}, nil
}

func (e *Engine) contentWords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, stop := e.StopWords[w]; !stop {
			set[w] = struct{}{}
		}
	}
	return set
}

// overlap is |A ∩ B| / min(|A|, |B|), 0 when either set is empty.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// Severity is the display tier of a similarity percentage.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityNone     Severity = "none"
)

// SeverityFor buckets a similarity percentage.
func SeverityFor(pct float64) Severity {
	switch {
	case pct >= 80:
		return SeverityCritical
	case pct >= 70:
		return SeverityHigh
	case pct >= 60:
		return SeverityModerate
	default:
		return SeverityNone
	}
}

// ColorFor returns the display colour for a similarity percentage.
func ColorFor(pct float64) string {
	switch {
	case pct >= 80:
		return "#ff4444"
	case pct >= 65:
		return "#ff8844"
	case pct >= 50:
		return "#ffbb44"
	default:
		return "#44ff88"
	}
}

// Pair is two students whose similarity met a threshold.
type Pair struct {
	StudentA   string   `json:"student_a"`
	StudentB   string   `json:"student_b"`
	Similarity float64  `json:"similarity"`
	Severity   Severity `json:"severity"`
}

// SuspiciousPairs scans the upper triangle of m for cells at or above
// threshold and returns them sorted by similarity, highest first. Ties keep
// scan order. A nil matrix yields no pairs.
func SuspiciousPairs(m *Matrix, threshold float64) []Pair {
	if m == nil {
		return nil
	}
	type cell struct {
		pair Pair
		raw  float64
	}
	var cells []cell
	for i := range m.Names {
		for j := i + 1; j < len(m.Names); j++ {
			v := m.Values[i][j]
			if v < threshold {
				continue
			}
			cells = append(cells, cell{
				pair: Pair{
					StudentA:   m.Names[i],
					StudentB:   m.Names[j],
					Similarity: textstats.Round(v, 1),
					Severity:   SeverityFor(v),
				},
				raw: v,
			})
		}
	}
	sort.SliceStable(cells, func(a, b int) bool { return cells[a].raw > cells[b].raw })

	pairs := make([]Pair, len(cells))
	for i, c := range cells {
		pairs[i] = c.pair
	}
	return pairs
}
