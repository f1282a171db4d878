package csvimport

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// AssignmentFile is the YAML form of an assignment:
//
//	title: Mechanics quiz
//	rubric:
//	  - {name: Correctness, max_marks: 5}
//	questions:
//	  - {number: 1, text: What is inertia?}
//	students:
//	  - name: Ana
//	    answers: {1: Objects keep moving.}
type AssignmentFile struct {
	Title     string            `yaml:"title"`
	Rubric    []model.Criterion `yaml:"rubric"`
	Questions []model.Question  `yaml:"questions"`
	Students  []StudentFile     `yaml:"students"`
}

// StudentFile is one student's answers keyed by question number.
type StudentFile struct {
	Name    string         `yaml:"name"`
	Answers map[int]string `yaml:"answers"`
}

// ParseYAML reads an AssignmentFile. Questions without a number are numbered
// by position.
func ParseYAML(r io.Reader, title string) (*Result, error) {
	var f AssignmentFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: parse assignment yaml: %v", model.ErrInvalidInput, err)
	}

	var questions []model.Question
	seen := make(map[int]bool)
	for i, q := range f.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		if q.Number == 0 {
			q.Number = i + 1
		}
		if err := model.ValidateQuestionNumber(q.Number); err != nil {
			return nil, err
		}
		if seen[q.Number] {
			return nil, fmt.Errorf("%w: duplicate question number %d", model.ErrInvalidInput, q.Number)
		}
		seen[q.Number] = true
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	rubric := make([]model.Criterion, 0, len(f.Rubric))
	for _, c := range f.Rubric {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || c.MaxMarks <= 0 {
			return nil, fmt.Errorf("%w: rubric criterion %q needs a name and positive max_marks", model.ErrInvalidInput, c.Name)
		}
		rubric = append(rubric, c)
	}
	if len(rubric) == 0 {
		rubric = append(rubric, DefaultRubric...)
	}

	students := make([]model.StudentAnswerSet, 0, len(f.Students))
	for _, s := range f.Students {
		set := model.StudentAnswerSet{
			StudentName: strings.TrimSpace(s.Name),
			Answers:     make(map[int]string, len(s.Answers)),
		}
		for q, a := range s.Answers {
			if a = strings.TrimSpace(a); a != "" {
				set.Answers[q] = a
			}
		}
		students = append(students, set)
	}
	if err := model.ValidateBatch(students); err != nil {
		return nil, err
	}

	if t := strings.TrimSpace(f.Title); t != "" {
		title = t
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
