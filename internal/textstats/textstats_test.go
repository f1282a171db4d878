package textstats

import (
	"math"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Stats
	}{
		{"empty", "", Stats{}},
		{"whitespace only", "   \n\t", Stats{}},
		{"two sentences", "The cat sat. It was warm.", Stats{
			WordCount:         6,
			SentenceCount:     2,
			AvgSentenceLength: 3,
			AvgWordLength:     float64(3+3+4+2+3+5) / 6,
		}},
		{"no terminal period", "just some words here", Stats{
			WordCount:         4,
			SentenceCount:     1,
			AvgSentenceLength: 4,
			AvgWordLength:     float64(4+4+5+4) / 4,
		}},
		{"flags", "Don't stop! Why? Ok.", Stats{
			WordCount:         4,
			SentenceCount:     1,
			AvgSentenceLength: 4,
			AvgWordLength:     float64(5+5+4+3) / 4,
			HasContractions:   true,
			HasQuestions:      true,
			HasExclamations:   true,
		}},
		{"only periods", "...", Stats{WordCount: 1, AvgWordLength: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got.WordCount != tt.want.WordCount || got.SentenceCount != tt.want.SentenceCount {
				t.Fatalf("counts = (%d, %d), want (%d, %d)",
					got.WordCount, got.SentenceCount, tt.want.WordCount, tt.want.SentenceCount)
			}
			if math.Abs(got.AvgSentenceLength-tt.want.AvgSentenceLength) > 1e-9 {
				t.Errorf("AvgSentenceLength = %v, want %v", got.AvgSentenceLength, tt.want.AvgSentenceLength)
			}
			if math.Abs(got.AvgWordLength-tt.want.AvgWordLength) > 1e-9 {
				t.Errorf("AvgWordLength = %v, want %v", got.AvgWordLength, tt.want.AvgWordLength)
			}
			if got.HasContractions != tt.want.HasContractions ||
				got.HasQuestions != tt.want.HasQuestions ||
				got.HasExclamations != tt.want.HasExclamations {
				t.Errorf("flags = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSentenceWordCounts(t *testing.T) {
	got := SentenceWordCounts("One two three. Four five.  . Six")
	want := []float64{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("count[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLongWordRatio(t *testing.T) {
	ratio, n := LongWordRatio("internationalization is extraordinarily long", 10)
	if n != 2 {
		t.Errorf("long words = %d, want 2", n)
	}
	if ratio != 0.5 {
		t.Errorf("ratio = %v, want 0.5", ratio)
	}
	if r, n := LongWordRatio("", 10); r != 0 || n != 0 {
		t.Errorf("empty text ratio = (%v, %d), want (0, 0)", r, n)
	}
}

func TestMeanStd(t *testing.T) {
	mean, sd := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 || sd != 2 {
		t.Errorf("MeanStd = (%v, %v), want (5, 2)", mean, sd)
	}
	if m, s := MeanStd(nil); m != 0 || s != 0 {
		t.Errorf("MeanStd(nil) = (%v, %v), want zeros", m, s)
	}
	if m, s := MeanStd([]float64{3}); m != 3 || s != 0 {
		t.Errorf("MeanStd single = (%v, %v), want (3, 0)", m, s)
	}
}

func TestRound(t *testing.T) {
	if got := Round(66.66666, 1); got != 66.7 {
		t.Errorf("Round = %v, want 66.7", got)
	}
}
