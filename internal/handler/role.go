package handler

import (
	"net/http"

	"github.com/peerpoints/peerpoints/internal/rbac"
)

// ListRoles returns all roles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": h.roles.Roles()})
}

// GetRole returns a single role.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Role(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

type roleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

func toPermissions(names []string) []rbac.Permission {
	if names == nil {
		return nil
	}
	out := make([]rbac.Permission, len(names))
	for i, n := range names {
		out[i] = rbac.Permission(n)
	}
	return out
}

// CreateRole creates a custom role.
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Name == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Role name is required")
		return
	}

	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	role, err := h.roles.CreateRole(*req.Name, description, toPermissions(req.Permissions))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, role)
}

// UpdateRole modifies a role.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	role, err := h.roles.UpdateRole(r.PathValue("id"), req.Name, req.Description, toPermissions(req.Permissions))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, role)
}

// DeleteRole removes a custom role.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.DeleteRole(r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListPermissions returns the permission catalog grouped by category.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	grouped := rbac.ByCategory()

	out := make(map[string][]map[string]interface{}, len(grouped))
	for category, perms := range grouped {
		for _, p := range perms {
			meta := p.Meta()
			out[category] = append(out[category], map[string]interface{}{
				"id":               string(p),
				"name":             meta.Name,
				"description":      meta.Description,
				"isSystemCritical": meta.SystemCritical,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": out})
}
