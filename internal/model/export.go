package model

import "time"

// AssignmentExport is the top-level JSON structure for assignment export.
type AssignmentExport struct {
	Assignment  Assignment         `json:"assignment"`
	Submissions []StudentAnswerSet `json:"submissions"`
	Evaluations []Evaluation       `json:"evaluations"`
	ExportedAt  time.Time          `json:"exported_at"`
}

// ReportSummary is a stored analysis run without its payload.
type ReportSummary struct {
	RunID        string    `json:"run_id"`
	AssignmentID int64     `json:"assignment_id"`
	CreatedAt    time.Time `json:"created_at"`
}
