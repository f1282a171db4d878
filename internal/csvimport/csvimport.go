// Package csvimport reads assignments and student answers from the sectioned
// CSV layout teachers export from spreadsheets, or from an equivalent YAML
// document.
//
// CSV layout:
//
//	CRITERIA,TOTAL MARKS
//	Correctness,5
//	Clarity,2
//	QUESTIONS,
//	1,What is inertia?
//	2,State Newton's second law.
//	STUDENTS,
//	Ana,answer to 1,answer to 2
//
// The rubric section is optional and defaults to DefaultRubric. The STUDENTS
// section is optional.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// Format selects the input syntax.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FormatFromName picks a format from a file name's extension, defaulting to CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatCSV
}

// DefaultRubric is used when the input defines no criteria.
var DefaultRubric = []model.Criterion{
	{Name: "Correctness", MaxMarks: 5},
	{Name: "Explanation", MaxMarks: 3},
	{Name: "Clarity", MaxMarks: 2},
}

// ErrNoQuestions is returned when the input defines no questions.
var ErrNoQuestions = fmt.Errorf("%w: no questions found", model.ErrInvalidInput)

// Result is an imported assignment with any answers that came with it.
type Result struct {
	Assignment model.Assignment
	Students   []model.StudentAnswerSet
}

// Parse reads r in the given format. title is used when the input carries none.
func Parse(r io.Reader, format Format, title string) (*Result, error) {
	switch format {
	case FormatYAML:
		return ParseYAML(r, title)
	case FormatCSV, "":
		return ParseCSV(r, title)
	}
	return nil, fmt.Errorf("%w: unknown import format %q", model.ErrInvalidInput, format)
}

type section int

const (
	sectionRubric section = iota
	sectionQuestions
	sectionStudents
)

// ParseCSV reads the sectioned CSV layout.
func ParseCSV(r io.Reader, title string) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		rubric    []model.Criterion
		questions []model.Question
		rows      [][]string
		cur       = sectionRubric
		line      = 0
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read CSV: %v", model.ErrInvalidInput, err)
		}
		line++
		if blank(row) {
			continue
		}

		first := strings.ToUpper(strings.TrimSpace(row[0]))
		switch first {
		case "QUESTIONS", "QUESTION":
			cur = sectionQuestions
			continue
		case "STUDENTS", "STUDENT", "ANSWERS":
			cur = sectionStudents
			continue
		}
		if line == 1 && (strings.Contains(first, "CRITERIA") || strings.Contains(first, "CRITERION")) {
			continue
		}

		switch cur {
		case sectionRubric:
			if len(row) < 2 {
				continue
			}
			name, marks := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
			if name == "" || marks == "" {
				continue
			}
			m, err := strconv.ParseFloat(marks, 64)
			if err != nil || m <= 0 {
				continue
			}
			rubric = append(rubric, model.Criterion{Name: name, MaxMarks: m})
		case sectionQuestions:
			if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
				continue
			}
			questions = append(questions, model.Question{
				Number: len(questions) + 1,
				Text:   strings.TrimSpace(row[1]),
			})
		case sectionStudents:
			if len(row) >= 2 && strings.TrimSpace(row[0]) != "" {
				rows = append(rows, row)
			}
		}
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if len(rubric) == 0 {
		rubric = append([]model.Criterion(nil), DefaultRubric...)
	}

	students := make([]model.StudentAnswerSet, 0, len(rows))
	for _, row := range rows {
		s := model.StudentAnswerSet{
			StudentName: strings.TrimSpace(row[0]),
			Answers:     make(map[int]string),
		}
		for i, cell := range row[1:] {
			if i >= len(questions) {
				break
			}
			if a := strings.TrimSpace(cell); a != "" {
				s.Answers[i+1] = a
			}
		}
		if len(s.Answers) > 0 {
			students = append(students, s)
		}
	}
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}

	return &Result{
		Assignment: model.Assignment{
			Title:     strings.TrimSpace(title),
			Questions: questions,
			Rubric:    rubric,
		},
		Students: students,
	}, nil
}

// WriteCSV writes an assignment and its answers in the layout ParseCSV reads.
func WriteCSV(w io.Writer, a model.Assignment, students []model.StudentAnswerSet) error {
	cw := csv.NewWriter(w)
	records := [][]string{{"CRITERIA", "TOTAL MARKS"}}
	for _, c := range a.Rubric {
		records = append(records, []string{c.Name, strconv.FormatFloat(c.MaxMarks, 'f', -1, 64)})
	}
	records = append(records, []string{"QUESTIONS", ""})
	for _, q := range a.Questions {
		records = append(records, []string{strconv.Itoa(q.Number), q.Text})
	}
	if len(students) > 0 {
		records = append(records, []string{"STUDENTS", ""})
		for _, s := range students {
			rec := []string{s.StudentName}
			for _, q := range a.Questions {
				rec = append(rec, s.Answers[q.Number])
			}
			records = append(records, rec)
		}
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
