package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// Files holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Files embed.FS

// MaxAnswerRunes is the longest answer sent to the oracle.
const MaxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var modes = []model.EvaluationMode{model.ModeStrict, model.ModeModerate, model.ModeLenient}

var (
	loadOnce        sync.Once
	loadErr         error
	systemTemplates map[model.EvaluationMode]*template.Template
	taskTemplate    *template.Template
)

// TaskData holds template data for the grading task.
type TaskData struct {
	QuestionNumber int
	QuestionText   string
	Rubric         []model.Criterion
	Answer         string
}

// Load parses templates/grade_<mode>.txt and templates/task.txt from fsys.
// Only the first call has any effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		systemTemplates = make(map[model.EvaluationMode]*template.Template)
		for _, m := range modes {
			name := "templates/grade_" + string(m) + ".txt"
			tmpl, err := parseFile(fsys, name)
			if err != nil {
				loadErr = err
				return
			}
			systemTemplates[m] = tmpl
		}
		taskTemplate, loadErr = parseFile(fsys, "templates/task.txt")
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// Build renders the system and user prompts for grading one answer.
func Build(mode model.EvaluationMode, question model.Question, rubric []model.Criterion, answer string) (system, user string, err error) {
	if taskTemplate == nil {
		if loadErr != nil {
			return "", "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := systemTemplates[mode]
	if !ok {
		return "", "", fmt.Errorf("%w: evaluation mode %q", model.ErrInvalidInput, mode)
	}

	var sys bytes.Buffer
	if err := tmpl.Execute(&sys, nil); err != nil {
		return "", "", err
	}

	data := TaskData{
		QuestionNumber: question.Number,
		QuestionText:   question.Text,
		Rubric:         rubric,
		Answer:         SanitizeAnswer(answer),
	}
	var task bytes.Buffer
	if err := taskTemplate.Execute(&task, data); err != nil {
		return "", "", err
	}
	return sys.String(), task.String(), nil
}

// SanitizeAnswer strips prompt delimiters from a student answer and truncates
// it to MaxAnswerRunes.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:MaxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
