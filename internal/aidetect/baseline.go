package aidetect

import (
	"sort"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
)

// minBaselineSamples is the fewest prior answers a baseline is built from.
const minBaselineSamples = 2

// Baseline is a student's usual writing style.
type Baseline struct {
	AvgSentenceLength         float64 `json:"avg_sentence_length"`
	AvgWordLength             float64 `json:"avg_word_length"`
	TypicallyUsesContractions bool    `json:"typically_uses_contractions"`
	SampleSize                int     `json:"sample_size"`
}

// BuildBaseline averages text statistics over prior answers. It returns nil
// for fewer than two answers.
func BuildBaseline(prior []string) *Baseline {
	if len(prior) < minBaselineSamples {
		return nil
	}
	sentence := make([]float64, len(prior))
	word := make([]float64, len(prior))
	contractions := 0
	for i, text := range prior {
		st := textstats.Extract(text)
		sentence[i] = st.AvgSentenceLength
		word[i] = st.AvgWordLength
		if st.HasContractions {
			contractions++
		}
	}
	avgSentence, _ := textstats.MeanStd(sentence)
	avgWord, _ := textstats.MeanStd(word)
	return &Baseline{
		AvgSentenceLength:         avgSentence,
		AvgWordLength:             avgWord,
		TypicallyUsesContractions: float64(contractions)/float64(len(prior)) > 0.5,
		SampleSize:                len(prior),
	}
}

// StudentResult is one student's detection over their combined answers.
type StudentResult struct {
	StudentName string `json:"student_name"`
	Result
}

// AnalyzeBatch runs the detector over every student's combined answer text,
// sorted by student name. baselines is keyed by student name and may be nil.
func (d *Detector) AnalyzeBatch(students []model.StudentAnswerSet, baselines map[string]*Baseline) []StudentResult {
	out := make([]StudentResult, 0, len(students))
	for _, s := range students {
		out = append(out, StudentResult{
			StudentName: s.StudentName,
			Result:      d.Analyze(s.CombinedText(), baselines[s.StudentName]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out
}

// AnalyzeBatch runs the default detector over a batch.
func AnalyzeBatch(students []model.StudentAnswerSet, baselines map[string]*Baseline) []StudentResult {
	return defaultDetector.AnalyzeBatch(students, baselines)
}

// Flagged returns the results judged likely machine-written.
func Flagged(results []StudentResult) []StudentResult {
	var out []StudentResult
	for _, r := range results {
		if r.IsAILikely {
			out = append(out, r)
		}
	}
	return out
}
