// Package performance aggregates graded evaluations into class statistics.
package performance

import (
	"sort"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/textstats"
)

// Default cohort thresholds in percent.
const (
	PassingScore      = 60
	DefaultTopScore   = 85
	DefaultStruggling = 60
)

// Record is one student's overall result.
type Record struct {
	StudentName string  `json:"student_name"`
	Percentage  float64 `json:"percentage"`
	TotalScore  float64 `json:"total_score"`
}

// RecordsFrom extracts records from evaluations.
func RecordsFrom(evals []model.Evaluation) []Record {
	out := make([]Record, len(evals))
	for i, ev := range evals {
		out[i] = Record{StudentName: ev.StudentName, Percentage: ev.Percentage, TotalScore: ev.TotalScore}
	}
	return out
}

// Distribution counts students per grade bucket.
type Distribution struct {
	Excellent    int `json:"excellent"`
	Good         int `json:"good"`
	Average      int `json:"average"`
	BelowAverage int `json:"below_average"`
	Failing      int `json:"failing"`
}

// ClassStatistics summarizes a batch of percentages.
type ClassStatistics struct {
	TotalStudents int          `json:"total_students"`
	ClassAverage  float64      `json:"class_average"`
	Median        float64      `json:"median"`
	StdDev        float64      `json:"std_dev"`
	MinScore      float64      `json:"min_score"`
	MaxScore      float64      `json:"max_score"`
	PassingRate   float64      `json:"passing_rate"`
	Distribution  Distribution `json:"distribution"`
}

// Analyze returns nil for an empty batch.
func Analyze(records []Record) *ClassStatistics {
	if len(records) == 0 {
		return nil
	}
	pcts := make([]float64, len(records))
	for i, r := range records {
		pcts[i] = r.Percentage
	}
	sorted := append([]float64(nil), pcts...)
	sort.Float64s(sorted)

	mean, sd := textstats.MeanStd(pcts)
	st := &ClassStatistics{
		TotalStudents: len(records),
		ClassAverage:  textstats.Round(mean, 1),
		Median:        textstats.Round(median(sorted), 1),
		StdDev:        textstats.Round(sd, 1),
		MinScore:      textstats.Round(sorted[0], 1),
		MaxScore:      textstats.Round(sorted[len(sorted)-1], 1),
	}

	passing := 0
	for _, p := range pcts {
		if p >= PassingScore {
			passing++
		}
		switch {
		case p >= 90:
			st.Distribution.Excellent++
		case p >= 80:
			st.Distribution.Good++
		case p >= 70:
			st.Distribution.Average++
		case p >= 60:
			st.Distribution.BelowAverage++
		default:
			st.Distribution.Failing++
		}
	}
	st.PassingRate = textstats.Round(float64(passing)/float64(len(pcts))*100, 1)
	return st
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// TopPerformers returns records at or above threshold, highest first.
func TopPerformers(records []Record, threshold float64) []Record {
	var out []Record
	for _, r := range records {
		if r.Percentage >= threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out
}

// StrugglingStudents returns records below threshold, lowest first.
func StrugglingStudents(records []Record, threshold float64) []Record {
	var out []Record
	for _, r := range records {
		if r.Percentage < threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage < out[j].Percentage })
	return out
}

// Label names a performance percentage.
func Label(pct float64) string {
	switch {
	case pct >= 90:
		return "Excellent"
	case pct >= 75:
		return "Good"
	case pct >= 60:
		return "Average"
	case pct >= 40:
		return "Below Average"
	default:
		return "Poor"
	}
}
