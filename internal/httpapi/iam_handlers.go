package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"idgate.org/internal/audit"
	"idgate.org/internal/iam"
)

var (
	errInvalidLimit  = errors.New("limit must be a non-negative integer")
	errInvalidOffset = errors.New("offset must be a non-negative integer")
)

type permissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type policyRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Document    json.RawMessage `json:"document"`
}

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPermission(w, r)
	case http.MethodGet:
		a.listPermissions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/permissions/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	segs := strings.Split(rest, "/")
	name := segs[0]

	switch {
	case len(segs) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getPermission(w, r, name)
		case http.MethodPut:
			a.updatePermission(w, r, name)
		case http.MethodDelete:
			a.deletePermission(w, r, name)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(segs) == 2 && segs[1] == "roles":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.rolesForPermission(w, r, name)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleRoleResource routes /v1/roles/{id}/permissions[/{name}].
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	segs := strings.Split(rest, "/")

	switch {
	case len(segs) == 2 && segs[1] == "permissions":
		switch r.Method {
		case http.MethodGet:
			a.listRolePermissions(w, r, segs[0])
		default:
			methodNotAllowed(w, r, http.MethodGet)
		}
	case len(segs) == 3 && segs[1] == "permissions":
		a.handleRolePermission(w, r, segs[0], segs[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.perms.CreatePermission(r.Context(), req.Name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permission.create", map[string]any{"name": p.Name})
	w.Header().Set("Location", "/v1/permissions/"+p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perms, listErr := a.perms.ListPermissions(r.Context(), opts)
	if listErr != nil {
		writeAppError(w, r, listErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request, name string) {
	p, err := a.perms.GetPermission(r.Context(), name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request, name string) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.perms.UpdatePermission(r.Context(), name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permission.update", map[string]any{"name": name, "version": p.Version})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request, name string) {
	if err := a.perms.DeletePermission(r.Context(), name); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permission.delete", map[string]any{"name": name})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) rolesForPermission(w http.ResponseWriter, r *http.Request, name string) {
	roles, err := a.perms.RolesForPermission(r.Context(), name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) listRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	assignments, err := a.perms.ListForRole(r.Context(), roleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (a *API) handleRolePermission(w http.ResponseWriter, r *http.Request, roleID, name string) {
	switch r.Method {
	case http.MethodPut:
		if err := a.perms.AssignToRole(r.Context(), roleID, name); err != nil {
			writeAppError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "permission.assign", map[string]any{"role": roleID, "name": name})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := a.perms.RemoveFromRole(r.Context(), roleID, name); err != nil {
			writeAppError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "permission.unassign", map[string]any{"role": roleID, "name": name})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

// --- policies ---

func (a *API) handlePoliciesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPolicy(w, r)
	case http.MethodGet:
		a.listPolicies(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePolicyResource(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/policies/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getPolicy(w, r, name)
	case http.MethodPut:
		a.updatePolicy(w, r, name)
	case http.MethodDelete:
		a.deletePolicy(w, r, name)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.policies.CreatePolicy(r.Context(), iam.Policy{
		Name:        req.Name,
		Description: req.Description,
		Document:    req.Document,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "policy.create", map[string]any{"name": p.Name})
	w.Header().Set("Location", "/v1/policies/"+p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listPolicies(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	policies, listErr := a.policies.ListPolicies(r.Context(), opts)
	if listErr != nil {
		writeAppError(w, r, listErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (a *API) getPolicy(w http.ResponseWriter, r *http.Request, name string) {
	p, err := a.policies.GetPolicy(r.Context(), name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updatePolicy(w http.ResponseWriter, r *http.Request, name string) {
	var req policyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.policies.UpdatePolicy(r.Context(), name, req.Description, req.Document)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "policy.update", map[string]any{"name": name, "version": p.Version})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePolicy(w http.ResponseWriter, r *http.Request, name string) {
	if err := a.policies.DeletePolicy(r.Context(), name); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "policy.delete", map[string]any{"name": name})
	w.WriteHeader(http.StatusNoContent)
}

func listOptionsFromQuery(r *http.Request) (iam.ListOptions, error) {
	var opts iam.ListOptions
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return iam.ListOptions{}, errInvalidLimit
		}
		opts.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return iam.ListOptions{}, errInvalidOffset
		}
		opts.Offset = n
	}
	return opts, nil
}
