package httpapi

import (
	"net/http"
	"strings"

	"idgate.org/internal/audit"
	"idgate.org/internal/directory"
)

type createUserRequest struct {
	Username          string            `json:"username"`
	Attributes        map[string]string `json:"attributes"`
	TemporaryPassword string            `json:"temporary_password"`
}

type updateAttributesRequest struct {
	Attributes map[string]string `json:"attributes"`
}

type setPasswordRequest struct {
	Password  string `json:"password"`
	Permanent bool   `json:"permanent"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserResource routes /v1/users/{username} and its sub-resources.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	segs := strings.Split(rest, "/")
	username := segs[0]

	switch {
	case len(segs) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, username)
		case http.MethodDelete:
			a.deleteUser(w, r, username)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(segs) == 2 && segs[1] == "attributes":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateUserAttributes(w, r, username)
	case len(segs) == 2 && segs[1] == "enable":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setUserEnabled(w, r, username, true)
	case len(segs) == 2 && segs[1] == "disable":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setUserEnabled(w, r, username, false)
	case len(segs) == 2 && segs[1] == "password":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setUserPassword(w, r, username)
	case len(segs) == 3 && segs[1] == "password" && segs[2] == "reset":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.resetUserPassword(w, r, username)
	case len(segs) == 2 && segs[1] == "groups":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listGroupsForUser(w, r, username)
	case len(segs) == 3 && segs[1] == "groups":
		a.handleMembership(w, r, username, segs[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.CreateUser(r.Context(), directory.CreateUserInput{
		Username:          strings.TrimSpace(req.Username),
		Attributes:        req.Attributes,
		TemporaryPassword: req.TemporaryPassword,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", map[string]any{"username": u.Username})
	w.Header().Set("Location", "/v1/users/"+u.Username)
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, token, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, pageErr := a.users.ListUsers(r.Context(), directory.Page{Limit: limit, Token: token})
	if pageErr != nil {
		writeAppError(w, r, pageErr)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, username string) {
	u, err := a.users.GetUser(r.Context(), username)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, r, http.StatusNotFound, "user "+username+" not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, username string) {
	if err := a.users.DeleteUser(r.Context(), username); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{"username": username})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) updateUserAttributes(w http.ResponseWriter, r *http.Request, username string) {
	var req updateAttributesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.users.UpdateUserAttributes(r.Context(), username, req.Attributes); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.attributes.update", map[string]any{"username": username})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setUserEnabled(w http.ResponseWriter, r *http.Request, username string, enabled bool) {
	var err error
	event := "user.disable"
	if enabled {
		event = "user.enable"
		err = a.users.EnableUser(r.Context(), username)
	} else {
		err = a.users.DisableUser(r.Context(), username)
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{"username": username})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setUserPassword(w http.ResponseWriter, r *http.Request, username string) {
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.users.SetUserPassword(r.Context(), username, req.Password, req.Permanent); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.password.set", map[string]any{
		"username":  username,
		"permanent": req.Permanent,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resetUserPassword(w http.ResponseWriter, r *http.Request, username string) {
	if err := a.users.ResetUserPassword(r.Context(), username); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.password.reset", map[string]any{"username": username})
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) listGroupsForUser(w http.ResponseWriter, r *http.Request, username string) {
	limit, token, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, pageErr := a.users.ListGroupsForUser(r.Context(), username, directory.Page{Limit: limit, Token: token})
	if pageErr != nil {
		writeAppError(w, r, pageErr)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleMembership(w http.ResponseWriter, r *http.Request, username, group string) {
	switch r.Method {
	case http.MethodPut:
		if err := a.users.AddUserToGroup(r.Context(), username, group); err != nil {
			writeAppError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "group.member.add", map[string]any{"username": username, "group": group})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := a.users.RemoveUserFromGroup(r.Context(), username, group); err != nil {
			writeAppError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "group.member.remove", map[string]any{"username": username, "group": group})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}
