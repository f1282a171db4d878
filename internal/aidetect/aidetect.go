// Package aidetect scores answer text for signs of machine-generated prose
// using a table of additive heuristics.
package aidetect

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
)

// Level is the coarse confidence band of a detection.
type Level string

const (
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
)

// ShortTextReason is the sole indicator for answers too short to judge.
const ShortTextReason = "Answer too short to analyze"

// Result is the verdict for one piece of text.
type Result struct {
	IsAILikely     bool            `json:"is_ai_likely"`
	Confidence     int             `json:"confidence"`
	Level          Level           `json:"confidence_level"`
	TotalScore     int             `json:"total_score"`
	Indicators     []string        `json:"indicators"`
	Recommendation string          `json:"recommendation"`
	Stats          textstats.Stats `json:"text_stats"`
}

// Rules is the heuristic table. Point values and thresholds are empirical.
type Rules struct {
	MinLength int // trimmed runes below which text is not judged

	Transitions         []string
	TransitionThreshold int
	TransitionPoints    int

	StockPhrases    []string
	PhraseThreshold int
	PhrasePoints    int

	Contractions         []string
	Informal             []string
	PerfectGrammarMin    int // text must be longer than this
	PerfectGrammarPoints int

	UniformMinSentences int
	UniformMaxStd       float64
	UniformPoints       int

	StructureMarkers []string
	StructureMaxLen  int // text must be shorter than this
	StructurePoints  int

	BaselineSentenceDelta float64
	BaselineWordDelta     float64
	BaselinePoints        int

	LongWordRunes  int
	LongWordRatio  float64
	LongWordPoints int

	LikelyScore   int
	HighScore     int
	MaxConfidence int
}

// DefaultRules is the standard heuristic table.
var DefaultRules = Rules{
	MinLength: 50,

	Transitions:         []string{"furthermore", "moreover", "consequently", "nevertheless", "thus", "hence", "therefore"},
	TransitionThreshold: 3,
	TransitionPoints:    25,

	StockPhrases:    []string{"it is important to note", "in conclusion", "to summarize", "in summary", "as mentioned", "as previously stated"},
	PhraseThreshold: 2,
	PhrasePoints:    30,

	Contractions:         []string{"don't", "can't", "won't", "it's", "that's"},
	Informal:             []string{"gonna", "wanna", "gotta", "yeah", "ok", "like,"},
	PerfectGrammarMin:    100,
	PerfectGrammarPoints: 20,

	UniformMinSentences: 3,
	UniformMaxStd:       3,
	UniformPoints:       15,

	StructureMarkers: []string{"firstly", "secondly", "thirdly", "finally", "in conclusion"},
	StructureMaxLen:  300,
	StructurePoints:  20,

	BaselineSentenceDelta: 10,
	BaselineWordDelta:     2,
	BaselinePoints:        30,

	LongWordRunes:  10,
	LongWordRatio:  0.15,
	LongWordPoints: 15,

	LikelyScore:   60,
	HighScore:     75,
	MaxConfidence: 95,
}

// Detector applies a rule table.
type Detector struct {
	rules Rules
}

// NewDetector returns a Detector for rules.
func NewDetector(rules Rules) *Detector {
	return &Detector{rules: rules}
}

var defaultDetector = NewDetector(DefaultRules)

// Analyze scores text with DefaultRules. baseline may be nil.
func Analyze(text string, baseline *Baseline) Result {
	return defaultDetector.Analyze(text, baseline)
}

// Analyze scores text. It is a pure function of text, baseline and the rules.
func (d *Detector) Analyze(text string, baseline *Baseline) Result {
	r := d.rules
	if utf8.RuneCountInString(strings.TrimSpace(text)) < r.MinLength {
		return Result{
			Level:          LevelLow,
			Indicators:     []string{ShortTextReason},
			Recommendation: Recommendation(0),
			Stats:          textstats.Extract(text),
		}
	}

	lower := strings.ToLower(text)
	length := utf8.RuneCountInString(text)
	stats := textstats.Extract(text)
	var (
		score      int
		indicators []string
	)

	if n := countPresent(lower, r.Transitions); n >= r.TransitionThreshold {
		score += r.TransitionPoints
		indicators = append(indicators, fmt.Sprintf("Excessive formal transitions (%d found)", n))
	}

	if n := countPresent(lower, r.StockPhrases); n >= r.PhraseThreshold {
		score += r.PhrasePoints
		indicators = append(indicators, fmt.Sprintf("AI-typical phrases detected (%d found)", n))
	}

	// Contractions are matched as written, informal words case-insensitively.
	if length > r.PerfectGrammarMin && !containsAny(text, r.Contractions) && !containsAny(lower, r.Informal) {
		score += r.PerfectGrammarPoints
		indicators = append(indicators, "Unusually perfect grammar - no contractions or informal language")
	}

	if counts := textstats.SentenceWordCounts(text); len(counts) >= r.UniformMinSentences {
		if _, sd := textstats.MeanStd(counts); sd < r.UniformMaxStd {
			score += r.UniformPoints
			indicators = append(indicators, "Extremely consistent sentence lengths")
		}
	}

	if length < r.StructureMaxLen && containsAny(lower, r.StructureMarkers) {
		score += r.StructurePoints
		indicators = append(indicators, "Over-structured for answer length")
	}

	if baseline != nil {
		if diffs := d.compareBaseline(stats, *baseline); len(diffs) > 0 {
			score += r.BaselinePoints
			indicators = append(indicators, diffs...)
		}
	}

	if ratio, n := textstats.LongWordRatio(text, r.LongWordRunes); ratio > r.LongWordRatio {
		score += r.LongWordPoints
		indicators = append(indicators, fmt.Sprintf("Unusually sophisticated vocabulary (%d complex words)", n))
	}

	res := Result{
		TotalScore:     score,
		Confidence:     score,
		Level:          LevelLow,
		Indicators:     indicators,
		Recommendation: Recommendation(score),
		Stats:          stats,
	}
	if score >= r.LikelyScore {
		res.IsAILikely = true
		res.Confidence = min(score, r.MaxConfidence)
		res.Level = LevelModerate
		if score >= r.HighScore {
			res.Level = LevelHigh
		}
	}
	return res
}

func (d *Detector) compareBaseline(stats textstats.Stats, b Baseline) []string {
	var diffs []string
	if math.Abs(stats.AvgSentenceLength-b.AvgSentenceLength) > d.rules.BaselineSentenceDelta {
		diffs = append(diffs, "Sentence length changed significantly")
	}
	if math.Abs(stats.AvgWordLength-b.AvgWordLength) > d.rules.BaselineWordDelta {
		diffs = append(diffs, "Vocabulary complexity differs from student's typical style")
	}
	return diffs
}

// Recommendation maps a detection score to advice for the teacher.
func Recommendation(score int) string {
	switch {
	case score >= 75:
		return "High likelihood of AI use - Review manually and discuss with student"
	case score >= 60:
		return "Possible AI use - Consider reviewing"
	case score >= 40:
		return "Some AI indicators - Monitor"
	default:
		return "Appears to be student's own work"
	}
}

// countPresent returns how many distinct needles occur in s.
func countPresent(s string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
