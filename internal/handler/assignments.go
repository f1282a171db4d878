package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Varun-Kachroo/RubrikAI/internal/analysis"
	"github.com/Varun-Kachroo/RubrikAI/internal/csvimport"
	"github.com/Varun-Kachroo/RubrikAI/internal/grading"
	"github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/report"
)

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAssignments()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadAssignment resolves the {id} path parameter.
func (h *Handler) loadAssignment(r *http.Request) (*model.Assignment, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	a, err := h.store.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("assignment %d: %w", id, errNotFound)
	}
	return a, nil
}

func (h *Handler) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteAssignment(a.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importResponse struct {
	AssignmentID int64 `json:"assignment_id"`
	Questions    int   `json:"questions"`
	Students     int   `json:"students"`
	Duplicate    bool  `json:"duplicate"`
}

// handleImport accepts either a multipart upload in the "file" field or a
// raw CSV/YAML body. The format comes from ?format=, the file name or the
// Content-Type, in that order. Re-uploading an identical file returns the
// existing assignment.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var (
		data     []byte
		filename string
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, r, fmt.Errorf("%w: no file uploaded", model.ErrInvalidInput))
			return
		}
		defer file.Close()
		filename = header.Filename
		data, err = io.ReadAll(file)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read upload: %v", model.ErrInvalidInput, err))
		return
	}

	format := csvimport.Format(r.URL.Query().Get("format"))
	if format == "" {
		switch {
		case filename != "":
			format = csvimport.FormatFromName(filename)
		case strings.Contains(mediaType, "yaml"):
			format = csvimport.FormatYAML
		default:
			format = csvimport.FormatCSV
		}
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = strings.TrimSuffix(filename, "."+string(format))
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if existing, err := h.store.GetAssignmentByHash(hash); err != nil {
		writeError(w, r, err)
		return
	} else if existing != nil {
		slog.Info("skipping duplicate import", "assignment_id", existing.ID, "filename", filename)
		writeJSON(w, http.StatusOK, importResponse{
			AssignmentID: existing.ID,
			Questions:    len(existing.Questions),
			Duplicate:    true,
		})
		return
	}

	res, err := csvimport.Parse(bytes.NewReader(data), format, title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res.Assignment.SourceHash = hash
	id, err := h.store.CreateAssignment(res.Assignment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(res.Students) > 0 {
		if err := h.store.SaveSubmissions(id, res.Students); err != nil {
			writeError(w, r, err)
			return
		}
	}
	slog.Info("imported assignment", "id", id, "format", format, "filename", filename,
		"questions", len(res.Assignment.Questions), "students", len(res.Students))
	writeJSON(w, http.StatusCreated, importResponse{
		AssignmentID: id,
		Questions:    len(res.Assignment.Questions),
		Students:     len(res.Students),
	})
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := h.store.ListSubmissions(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.StudentAnswerSet{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleSaveSubmissions(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var students []model.StudentAnswerSet
	if err := decodeJSON(r, &students); err != nil {
		writeError(w, r, err)
		return
	}
	known := make(map[int]bool, len(a.Questions))
	for _, q := range a.Questions {
		known[q.Number] = true
	}
	for _, s := range students {
		for q := range s.Answers {
			if !known[q] {
				writeError(w, r, fmt.Errorf("%w: assignment %d has no question %d", model.ErrInvalidInput, a.ID, q))
				return
			}
		}
	}
	if err := h.store.SaveSubmissions(a.ID, students); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"students": len(students)})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	if h.oracle == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": i18n.T(r.Context(), "ErrNoOracle")})
		return
	}
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mode := h.config.Mode
	if m := r.URL.Query().Get("mode"); m != "" {
		mode = model.EvaluationMode(m)
	}
	subs, err := h.store.ListSubmissions(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	runner := &grading.Runner{Oracle: h.oracle, Sink: h.store, Mode: mode, Workers: h.config.Workers}
	evals, err := runner.Grade(r.Context(), *a, subs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *Handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := h.store.ListEvaluations(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

// handleAnalysis runs a full analysis, stores it and returns it as JSON, or
// as localized text with ?format=text. Thresholds may be overridden with
// ?threshold= and ?question_threshold=.
func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := h.config.Analysis
	if opts.PairThreshold, err = queryFloat(r, "threshold", opts.PairThreshold); err != nil {
		writeError(w, r, err)
		return
	}
	if opts.QuestionPairThreshold, err = queryFloat(r, "question_threshold", opts.QuestionPairThreshold); err != nil {
		writeError(w, r, err)
		return
	}

	subs, err := h.store.ListSubmissions(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := h.store.ListEvaluations(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := analysis.Run(r.Context(), analysis.Input{Assignment: *a, Students: subs, Evaluations: evals}, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SaveReport(model.ReportSummary{
		RunID:        rep.RunID,
		AssignmentID: a.ID,
		CreatedAt:    rep.GeneratedAt,
	}, payload); err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(r.Context(), w, rep); err != nil {
			slog.Error("render report", "run_id", rep.RunID, "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(payload, '\n'))
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	a, err := h.loadAssignment(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.store.ListReports(a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.ReportSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	data, err := h.store.GetReport(runID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		writeError(w, r, fmt.Errorf("report %s: %w", runID, errNotFound))
		return
	}
	if r.URL.Query().Get("format") == "text" {
		var rep analysis.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(r.Context(), w, &rep); err != nil {
			slog.Error("render report", "run_id", runID, "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleExport returns the assignment with its submissions and evaluations
// as JSON, or the assignment and answers as sectioned CSV with ?format=csv.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	exp, err := h.store.ExportAssignment(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if exp == nil {
		writeError(w, r, fmt.Errorf("assignment %d: %w", id, errNotFound))
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assignment-%d.csv"`, id))
		if err := csvimport.WriteCSV(w, exp.Assignment, exp.Submissions); err != nil {
			slog.Error("write CSV export", "assignment_id", id, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
