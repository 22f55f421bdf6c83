package handler

import (
	"net/http"

	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/model"
	"github.com/peerpoints/peerpoints/internal/service"
)

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser returns a single user by ID.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	RoleID   string `json:"roleId"`
}

// CreateUser creates a new user account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	user, err := h.userSvc.Create(r.Context(), sess, service.CreateUserParams{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	RoleID *string `json:"roleId"`
	Status *string `json:"status"`
}

// UpdateUser modifies a user account.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	params := service.UpdateUserParams{
		Name:   req.Name,
		Email:  req.Email,
		RoleID: req.RoleID,
	}
	if req.Status != nil {
		status := model.UserStatus(*req.Status)
		if status != model.UserStatusActive && status != model.UserStatusDisabled {
			writeError(w, http.StatusBadRequest, "invalid_request", "Status must be active or disabled")
			return
		}
		params.Status = &status
	}

	sess := middleware.SessionFromContext(r.Context())
	user, err := h.userSvc.Update(r.Context(), sess, r.PathValue("id"), params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser soft-deletes a user account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := h.userSvc.Delete(r.Context(), sess, r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
