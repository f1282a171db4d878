package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks a caller contract violation. Fix the input and retry.
var ErrInvalidInput = errors.New("invalid input")

// ValidateBatch checks that student names are unique and non-empty and that
// every question number is positive.
func ValidateBatch(students []StudentAnswerSet) error {
	seen := make(map[string]struct{}, len(students))
	for i, s := range students {
		name := strings.TrimSpace(s.StudentName)
		if name == "" {
			return fmt.Errorf("%w: student %d has no name", ErrInvalidInput, i+1)
		}
		if _, dup := seen[s.StudentName]; dup {
			return fmt.Errorf("%w: duplicate student name %q", ErrInvalidInput, s.StudentName)
		}
		seen[s.StudentName] = struct{}{}
		for q := range s.Answers {
			if err := ValidateQuestionNumber(q); err != nil {
				return fmt.Errorf("student %q: %w", s.StudentName, err)
			}
		}
	}
	return nil
}

// ValidateQuestionNumber rejects zero and negative question numbers.
func ValidateQuestionNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: question number %d must be positive", ErrInvalidInput, n)
	}
	return nil
}
