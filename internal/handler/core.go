package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Varun-Kachroo/RubrikAI/internal/aidetect"
	"github.com/Varun-Kachroo/RubrikAI/internal/confidence"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/performance"
	"github.com/Varun-Kachroo/RubrikAI/internal/similarity"
)

// The endpoints in this file work on the request body alone and touch no
// stored state.

type batchRequest struct {
	Students []model.StudentAnswerSet `json:"students"`
}

type similarityResponse struct {
	Matrix *similarity.Matrix `json:"matrix"`
	Pairs  []similarity.Pair  `json:"pairs"`
}

func (h *Handler) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryFloat(r, "threshold", h.config.Analysis.PairThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := similarity.ComputeMatrix(req.Students)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pairs := similarity.SuspiciousPairs(m, threshold)
	if pairs == nil {
		pairs = []similarity.Pair{}
	}
	writeJSON(w, http.StatusOK, similarityResponse{Matrix: m, Pairs: pairs})
}

func (h *Handler) handleQuestionSimilarity(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid question number", model.ErrInvalidInput))
		return
	}
	if err := model.ValidateQuestionNumber(n); err != nil {
		writeError(w, r, err)
		return
	}
	threshold, err := queryFloat(r, "threshold", h.config.Analysis.QuestionPairThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := similarity.ComputeQuestionMatrix(req.Students, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pairs := similarity.SuspiciousPairs(m, threshold)
	if pairs == nil {
		pairs = []similarity.Pair{}
	}
	writeJSON(w, http.StatusOK, similarityResponse{Matrix: m, Pairs: pairs})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, similarity.CompareAnswers(req.A, req.B))
}

type aiDetectionRequest struct {
	Text      string                        `json:"text,omitempty"`
	Baseline  *aidetect.Baseline            `json:"baseline,omitempty"`
	Students  []model.StudentAnswerSet      `json:"students,omitempty"`
	Baselines map[string]*aidetect.Baseline `json:"baselines,omitempty"`
}

// handleAIDetection checks a single text, or with "students" set, every
// student's combined answers. ?flagged=true narrows a batch to likely hits.
func (h *Handler) handleAIDetection(w http.ResponseWriter, r *http.Request) {
	var req aiDetectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Students) == 0 {
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, r, fmt.Errorf("%w: text or students required", model.ErrInvalidInput))
			return
		}
		writeJSON(w, http.StatusOK, aidetect.Analyze(req.Text, req.Baseline))
		return
	}
	if err := model.ValidateBatch(req.Students); err != nil {
		writeError(w, r, err)
		return
	}
	results := aidetect.AnalyzeBatch(req.Students, req.Baselines)
	if r.URL.Query().Get("flagged") == "true" {
		results = aidetect.Flagged(results)
	}
	if results == nil {
		results = []aidetect.StudentResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleBaseline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []string `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b := aidetect.BuildBaseline(req.Answers)
	if b == nil {
		writeError(w, r, fmt.Errorf("%w: at least two prior answers required", model.ErrInvalidInput))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleConfidence(w http.ResponseWriter, r *http.Request) {
	var in confidence.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confidence.Estimate(in))
}

type classStatsResponse struct {
	Statistics *performance.ClassStatistics `json:"statistics"`
	Top        []performance.Record         `json:"top_performers"`
	Struggling []performance.Record         `json:"struggling_students"`
}

func (h *Handler) handleClassStats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []performance.Record `json:"records"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	top, err := queryFloat(r, "top", h.config.Analysis.TopThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	struggling, err := queryFloat(r, "struggling", h.config.Analysis.StrugglingThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := classStatsResponse{
		Statistics: performance.Analyze(req.Records),
		Top:        performance.TopPerformers(req.Records, top),
		Struggling: performance.StrugglingStudents(req.Records, struggling),
	}
	if resp.Top == nil {
		resp.Top = []performance.Record{}
	}
	if resp.Struggling == nil {
		resp.Struggling = []performance.Record{}
	}
	writeJSON(w, http.StatusOK, resp)
}
