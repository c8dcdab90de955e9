// Package httpapi is the admin HTTP surface over the directory adapter
// and the IAM services.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"idgate.org/internal/apperr"
	"idgate.org/internal/audit"
	"idgate.org/internal/iam"
	"idgate.org/internal/obs"
)

// ReadyProbe checks readiness dependencies, e.g. a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's dependencies.
type Config struct {
	Version  string
	Ready    ReadyProbe
	Users    *iam.UserAdminService
	Perms    *iam.PermissionAdminService
	Policies *iam.PolicyAdminService
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	users    *iam.UserAdminService
	perms    *iam.PermissionAdminService
	policies *iam.PolicyAdminService
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		users:      cfg.Users,
		perms:      cfg.Perms,
		policies:   cfg.Policies,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/groups", a.handleGroupsCollection)
	a.mux.HandleFunc("/v1/groups/", a.handleGroupResource)

	a.mux.HandleFunc("/v1/permissions", a.handlePermissionsCollection)
	a.mux.HandleFunc("/v1/permissions/", a.handlePermissionResource)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/policies", a.handlePoliciesCollection)
	a.mux.HandleFunc("/v1/policies/", a.handlePolicyResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = Logging(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "idgate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "idgate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeAppError maps a taxonomy error onto a response. Caller-facing
// kinds keep their message; operator kinds are redacted to the
// operation name.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)

	msg := err.Error()
	switch kind {
	case apperr.KindProviderInternal, apperr.KindAdapterInteraction, apperr.KindUnknown:
		msg = "directory operation failed"
		if op := apperr.OpOf(err); op != "" {
			msg = op + " failed"
		}
	}

	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", strconv.Itoa(30))
	}

	payload := map[string]any{
		"error": msg,
		"kind":  kind.String(),
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func pageFromQuery(r *http.Request) (limit int, token string, err error) {
	q := r.URL.Query()
	token = q.Get("page_token")
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, "", errors.New("limit must be a non-negative integer")
		}
	}
	return limit, token, nil
}
