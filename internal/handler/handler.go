package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Varun-Kachroo/RubrikAI/internal/analysis"
	"github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/llm"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/store"
)

// maxBodyBytes caps request bodies, uploads included.
const maxBodyBytes = 10 << 20

// Config holds server-side grading and analysis settings.
type Config struct {
	Mode           model.EvaluationMode
	Workers        int
	Analysis       analysis.Options
	Lang           string
	AllowedOrigins []string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	oracle llm.Oracle
	config Config
}

// New creates a new Handler. oracle may be nil, in which case grading
// endpoints answer 503.
func New(s *store.Store, oracle llm.Oracle, cfg Config) *Handler {
	if cfg.Mode == "" {
		cfg.Mode = model.ModeModerate
	}
	if cfg.Analysis == (analysis.Options{}) {
		cfg.Analysis = analysis.DefaultOptions()
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	return &Handler{store: s, oracle: oracle, config: cfg}
}

// Router builds the full HTTP handler with middleware.
func (h *Handler) Router() http.Handler {
	origins := h.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(i18n.Middleware(h.config.Lang))
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(h.requireAuth)
		api.Use(middleware.RequestSize(maxBodyBytes))

		api.Get("/assignments", h.handleListAssignments)
		api.Post("/assignments/import", h.handleImport)
		api.Get("/assignments/{id}", h.handleGetAssignment)
		api.Delete("/assignments/{id}", h.handleDeleteAssignment)
		api.Get("/assignments/{id}/submissions", h.handleListSubmissions)
		api.Post("/assignments/{id}/submissions", h.handleSaveSubmissions)
		api.Post("/assignments/{id}/grade", h.handleGrade)
		api.Get("/assignments/{id}/evaluations", h.handleListEvaluations)
		api.Get("/assignments/{id}/analysis", h.handleAnalysis)
		api.Get("/assignments/{id}/reports", h.handleListReports)
		api.Get("/assignments/{id}/export", h.handleExport)
		api.Get("/reports/{runID}", h.handleGetReport)

		api.Post("/similarity", h.handleSimilarity)
		api.Post("/similarity/questions/{n}", h.handleQuestionSimilarity)
		api.Post("/compare", h.handleCompare)
		api.Post("/ai-detection", h.handleAIDetection)
		api.Post("/baseline", h.handleBaseline)
		api.Post("/confidence", h.handleConfidence)
		api.Post("/class-stats", h.handleClassStats)

		api.Group(func(admin chi.Router) {
			admin.Use(requireRole(model.UserRoleAdmin))
			admin.Get("/users", h.handleListUsers)
			admin.Post("/users", h.handleCreateUser)
			admin.Post("/users/{userID}/active", h.handleSetUserActive)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"grading": h.oracle != nil,
	})
}

var errNotFound = errors.New("not found")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps err to a status code and a localized message. Invalid
// input is a 400, errNotFound a 404, anything else a logged 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": i18n.Td(ctx, "ErrBadRequest", map[string]any{"Detail": err.Error()}),
		})
	case errors.Is(err, errNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": i18n.T(ctx, "ErrNotFound")})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(ctx), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": i18n.T(ctx, "ErrInternal")})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode request: %v", model.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrInvalidInput, name)
	}
	return id, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrInvalidInput, name)
	}
	return v, nil
}
