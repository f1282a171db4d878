// Package textstats extracts simple statistical descriptors from answer text.
package textstats

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Stats describes the surface shape of a piece of text.
type Stats struct {
	WordCount         int     `json:"word_count"`
	SentenceCount     int     `json:"sentence_count"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	AvgWordLength     float64 `json:"avg_word_length"`
	HasContractions   bool    `json:"has_contractions"`
	HasQuestions      bool    `json:"has_questions"`
	HasExclamations   bool    `json:"has_exclamations"`
}

// Extract computes Stats for text. Empty text yields zeroed stats.
// Sentences are split naively on '.', words on whitespace.
func Extract(text string) Stats {
	words := strings.Fields(text)
	sentences := Sentences(text)

	st := Stats{
		WordCount:       len(words),
		SentenceCount:   len(sentences),
		HasQuestions:    strings.Contains(text, "?"),
		HasExclamations: strings.Contains(text, "!"),
	}
	if len(sentences) > 0 {
		st.AvgSentenceLength = float64(len(words)) / float64(len(sentences))
	}
	if len(words) > 0 {
		chars := 0
		for _, w := range words {
			chars += utf8.RuneCountInString(w)
			if strings.Contains(w, "'") {
				st.HasContractions = true
			}
		}
		st.AvgWordLength = float64(chars) / float64(len(words))
	}
	return st
}

// Sentences splits text on '.' and drops fragments that are empty after trimming.
func Sentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SentenceWordCounts returns the whitespace word count of each sentence.
func SentenceWordCounts(text string) []float64 {
	sentences := Sentences(text)
	counts := make([]float64, len(sentences))
	for i, s := range sentences {
		counts[i] = float64(len(strings.Fields(s)))
	}
	return counts
}

// LongWordRatio returns the fraction of words longer than minRunes runes,
// and the number of such words.
func LongWordRatio(text string, minRunes int) (float64, int) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0, 0
	}
	long := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > minRunes {
			long++
		}
	}
	return float64(long) / float64(len(words)), long
}

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
