package httpapi

import (
	"net/http"
	"strings"

	"idgate.org/internal/audit"
	"idgate.org/internal/directory"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Precedence  *int   `json:"precedence"`
}

func (a *API) handleGroupsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createGroup(w, r)
	case http.MethodGet:
		a.listGroups(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGroupResource(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/groups/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getGroup(w, r, name)
	case http.MethodDelete:
		a.deleteGroup(w, r, name)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := a.users.CreateGroup(r.Context(), directory.CreateGroupInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Precedence:  req.Precedence,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "group.create", map[string]any{"group": g.Name})
	w.Header().Set("Location", "/v1/groups/"+g.Name)
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	limit, token, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, pageErr := a.users.ListGroups(r.Context(), directory.Page{Limit: limit, Token: token})
	if pageErr != nil {
		writeAppError(w, r, pageErr)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request, name string) {
	g, err := a.users.GetGroup(r.Context(), name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if g == nil {
		writeError(w, r, http.StatusNotFound, "group "+name+" not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request, name string) {
	if err := a.users.DeleteGroup(r.Context(), name); err != nil {
		writeAppError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "group.delete", map[string]any{"group": name})
	w.WriteHeader(http.StatusNoContent)
}
