// Package report renders an analysis report as localized plain text.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/analysis"
	"github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/performance"
	"github.com/Varun-Kachroo/RubrikAI/internal/similarity"
)

// WriteText renders rep to w using the localizer in ctx.
func WriteText(ctx context.Context, w io.Writer, rep *analysis.Report) error {
	p := &printer{ctx: ctx, w: w}

	p.line(i18n.Td(ctx, "ReportTitle", map[string]any{"Title": rep.Title}))
	p.line(i18n.Td(ctx, "ReportRun", map[string]any{
		"RunID":       rep.RunID,
		"GeneratedAt": rep.GeneratedAt.Format(time.RFC3339),
	}))
	p.line(i18n.Tp(ctx, "StudentsAnalyzed", rep.Students))

	p.classStats(rep)
	p.records("SectionTop", rep.Top)
	p.records("SectionStruggling", rep.Struggling)
	p.byQuestion(rep)
	p.byCriteria(rep)
	p.pairs(rep)
	p.aiDetection(rep)
	p.review(rep)
	return p.err
}

type printer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) heading(id string, data map[string]any) {
	title := i18n.Td(p.ctx, id, data)
	p.line("")
	p.line(title)
	p.line(strings.Repeat("=", len([]rune(title))))
}

// table writes tab-separated rows through a tabwriter. The first row is
// the localized header.
func (p *printer) table(header []string, rows [][]string) {
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	cols := make([]string, len(header))
	for i, id := range header {
		cols[i] = i18n.T(p.ctx, id)
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	p.err = tw.Flush()
}

func (p *printer) none(id string) {
	p.line(i18n.T(p.ctx, id))
}

func (p *printer) classStats(rep *analysis.Report) {
	p.heading("SectionClassStats", nil)
	cs := rep.ClassStats
	if cs == nil {
		p.none("NotEnoughData")
		return
	}
	rows := [][]string{
		{i18n.T(p.ctx, "StatStudents"), fmt.Sprint(cs.TotalStudents)},
		{i18n.T(p.ctx, "StatAverage"), num(cs.ClassAverage)},
		{i18n.T(p.ctx, "StatMedian"), num(cs.Median)},
		{i18n.T(p.ctx, "StatStdDev"), num(cs.StdDev)},
		{i18n.T(p.ctx, "StatRange"), num(cs.MinScore) + " - " + num(cs.MaxScore)},
		{i18n.T(p.ctx, "StatPassing"), num(cs.PassingRate) + "%"},
	}
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	if p.err = tw.Flush(); p.err != nil {
		return
	}
	d := cs.Distribution
	p.line(i18n.Td(p.ctx, "StatDistribution", map[string]any{
		"Excellent":    d.Excellent,
		"Good":         d.Good,
		"Average":      d.Average,
		"BelowAverage": d.BelowAverage,
		"Failing":      d.Failing,
	}))
}

func (p *printer) records(section string, recs []performance.Record) {
	p.heading(section, nil)
	if len(recs) == 0 {
		p.none("NoneFound")
		return
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.StudentName, num(r.TotalScore), num(r.Percentage), i18n.Label(p.ctx, performance.Label(r.Percentage))}
	}
	p.table([]string{"ColStudent", "ColScore", "ColPercentage", "ColLevel"}, rows)
}

func (p *printer) byQuestion(rep *analysis.Report) {
	p.heading("SectionByQuestion", nil)
	if len(rep.ByQuestion) == 0 {
		p.none("NotEnoughData")
		return
	}
	rows := make([][]string, len(rep.ByQuestion))
	for i, q := range rep.ByQuestion {
		rows[i] = []string{
			fmt.Sprint(q.QuestionNumber), num(q.AverageScore), num(q.AveragePercentage), num(q.MaxPossible),
			fmt.Sprint(q.FullMarks), fmt.Sprint(q.Failed), i18n.Label(p.ctx, q.Difficulty),
		}
	}
	p.table([]string{"ColQuestion", "ColAverage", "ColAveragePct", "ColMax", "ColFullMarks", "ColFailed", "ColDifficulty"}, rows)
}

func (p *printer) byCriteria(rep *analysis.Report) {
	p.heading("SectionByCriteria", nil)
	if len(rep.ByCriteria) == 0 {
		p.none("NotEnoughData")
		return
	}
	rows := make([][]string, len(rep.ByCriteria))
	for i, c := range rep.ByCriteria {
		rows[i] = []string{c.Criterion, num(c.AveragePercentage), fmt.Sprint(c.FullMarks), fmt.Sprint(c.Struggled), i18n.Label(p.ctx, c.Strength)}
	}
	p.table([]string{"ColCriterion", "ColAveragePct", "ColFullMarks", "ColStruggled", "ColStrength"}, rows)
}

func (p *printer) pairs(rep *analysis.Report) {
	p.heading("SectionPairs", nil)
	if rep.Matrix == nil {
		p.none("NotEnoughData")
	} else {
		p.pairTable(rep.Pairs)
	}
	for _, q := range rep.Questions {
		if len(q.Pairs) == 0 {
			continue
		}
		p.line("")
		p.line(i18n.Td(p.ctx, "SectionQuestionPairs", map[string]any{"Number": q.Question}))
		p.pairTable(q.Pairs)
	}
}

func (p *printer) pairTable(pairs []similarity.Pair) {
	if len(pairs) == 0 {
		p.none("NoneFound")
		return
	}
	rows := make([][]string, len(pairs))
	for i, pr := range pairs {
		rows[i] = []string{pr.StudentA, pr.StudentB, num(pr.Similarity), i18n.Label(p.ctx, string(pr.Severity))}
	}
	p.table([]string{"ColStudentA", "ColStudentB", "ColSimilarity", "ColSeverity"}, rows)
}

func (p *printer) aiDetection(rep *analysis.Report) {
	p.heading("SectionAIDetection", nil)
	var rows [][]string
	for _, r := range rep.AIDetection {
		if r.TotalScore == 0 {
			continue
		}
		rows = append(rows, []string{r.StudentName, fmt.Sprint(r.Confidence), i18n.Label(p.ctx, string(r.Level)), r.Recommendation})
	}
	if len(rows) == 0 {
		p.none("NoneFound")
		return
	}
	p.table([]string{"ColStudent", "ColConfidence", "ColLevel", "ColRecommendation"}, rows)
}

func (p *printer) review(rep *analysis.Report) {
	p.heading("SectionReview", nil)
	flagged := rep.NeedsReview()
	if len(flagged) == 0 {
		p.none("NoneFound")
		return
	}
	p.line(i18n.Tp(p.ctx, "ReviewCount", len(flagged)))
	rows := make([][]string, len(flagged))
	for i, c := range flagged {
		rows[i] = []string{c.StudentName, fmt.Sprint(c.QuestionNumber), num(c.Score), i18n.Label(p.ctx, c.Level)}
	}
	p.table([]string{"ColStudent", "ColQuestion", "ColConfidence", "ColLevel"}, rows)
}

func num(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
