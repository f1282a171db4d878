package store

import (
	"fmt"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// ExportAssignment gathers an assignment with its submissions and
// evaluations. It returns nil if the assignment does not exist.
func (s *Store) ExportAssignment(id int64) (*model.AssignmentExport, error) {
	a, err := s.GetAssignment(id)
	if err != nil {
		return nil, fmt.Errorf("get assignment %d: %w", id, err)
	}
	if a == nil {
		return nil, nil
	}

	subs, err := s.ListSubmissions(id)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	evals, err := s.ListEvaluations(id)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	return &model.AssignmentExport{
		Assignment:  *a,
		Submissions: subs,
		Evaluations: evals,
		ExportedAt:  time.Now(),
	}, nil
}
