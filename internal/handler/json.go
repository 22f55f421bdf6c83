package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/repository"
	"github.com/peerpoints/peerpoints/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// writeServiceError maps domain errors onto the HTTP error taxonomy.
// Anything unrecognized is an internal error: logged server-side, generic
// to the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, rbac.ErrRoleNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, repository.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", "Email already registered")
	case errors.Is(err, rbac.ErrDuplicateRoleName):
		writeError(w, http.StatusConflict, "duplicate_role_name", "Role name already in use")
	case errors.Is(err, repository.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "insufficient_balance", "Insufficient balance")
	case errors.Is(err, rbac.ErrUnknownPermission):
		writeError(w, http.StatusBadRequest, "unknown_permission", "Unknown permission in request")
	case errors.Is(err, service.ErrSelfDeletion):
		writeError(w, http.StatusForbidden, "self_deletion", "Users cannot delete their own account")
	case errors.Is(err, service.ErrLastAdministrator):
		writeError(w, http.StatusForbidden, "last_administrator", "Cannot remove the last active administrator")
	case errors.Is(err, service.ErrRoleAssignmentDenied):
		writeError(w, http.StatusForbidden, "role_assignment_denied", "Insufficient permissions to assign this role")
	case errors.Is(err, rbac.ErrSystemRole):
		writeError(w, http.StatusForbidden, "system_role", "System roles cannot be modified or deleted")
	case errors.Is(err, rbac.ErrCriticalPermission):
		writeError(w, http.StatusForbidden, "critical_permission", "System-critical permissions cannot be removed from the Administrator role")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", "Unknown role")
	case errors.Is(err, service.ErrSelfRecognition):
		writeError(w, http.StatusBadRequest, "self_recognition", "Cannot give recognition to yourself")
	case errors.Is(err, service.ErrRewardInactive):
		writeError(w, http.StatusBadRequest, "reward_inactive", "Reward is not available")
	default:
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
