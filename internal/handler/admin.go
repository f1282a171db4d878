package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/model"
)

// userView is a user as the API shows it, without the password hash.
type userView struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Role        model.UserRole `json:"role"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

func viewOf(u model.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, r, err)
		return
	}
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = viewOf(u)
	}
	writeJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, fmt.Errorf("%w: username and password required", model.ErrInvalidInput))
		return
	}
	if req.Role == "" {
		req.Role = model.UserRoleTeacher
	}
	if req.Role != model.UserRoleTeacher && req.Role != model.UserRoleAdmin {
		writeError(w, r, fmt.Errorf("%w: unknown role %q", model.ErrInvalidInput, req.Role))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, r, fmt.Errorf("%w: user %q already exists", model.ErrInvalidInput, req.Username))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, err)
		return
	}
	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
	}
	id, err := h.store.CreateUser(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = id
	u.CreatedAt = time.Now()
	writeJSON(w, http.StatusCreated, viewOf(u))
}

func (h *Handler) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetUserActive(id, req.Active); err != nil {
		slog.Error("failed to set user active", "id", id, "error", err)
		writeError(w, r, err)
		return
	}
	slog.Info("user active flag changed", "id", id, "active", req.Active)
	w.WriteHeader(http.StatusNoContent)
}
