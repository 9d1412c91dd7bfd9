package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/auth"
	"github.com/joescharf/civic/internal/authz"
	"github.com/joescharf/civic/internal/category"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/logging"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
)

const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	issues    *issues.Service
	accounts  *accounts.Service
	authn     *auth.Authenticator
	suggester *category.Suggester
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewServer creates a new API server. m and logger may be nil.
func NewServer(is *issues.Service, as *accounts.Service, authn *auth.Authenticator, suggester *category.Suggester, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if suggester == nil {
		suggester = category.NewSuggester(nil, logger)
	}
	return &Server{
		issues:    is,
		accounts:  as,
		authn:     authn,
		suggester: suggester,
		metrics:   m,
		logger:    logger,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	anyRole := []models.Role{models.RoleCitizen, models.RoleRegionalAdmin, models.RoleAdmin}
	officials := []models.Role{models.RoleAdmin, models.RoleRegionalAdmin}
	admin := []models.Role{models.RoleAdmin}

	mux.HandleFunc("GET /healthz", s.healthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/v1/auth/register", s.register)
	mux.HandleFunc("GET /api/v1/me", s.authed(s.me, anyRole...))

	mux.HandleFunc("GET /api/v1/zones", s.authed(s.listZones, anyRole...))
	mux.HandleFunc("GET /api/v1/zones/classify", s.authed(s.classifyZone, anyRole...))

	mux.HandleFunc("GET /api/v1/categories", s.authed(s.listCategories, anyRole...))
	mux.HandleFunc("POST /api/v1/categories/suggest", s.authed(s.suggestCategory, anyRole...))

	mux.HandleFunc("GET /api/v1/issues", s.authed(s.listIssues, anyRole...))
	mux.HandleFunc("POST /api/v1/issues", s.authed(s.createIssue, anyRole...))
	mux.HandleFunc("GET /api/v1/issues/{id}", s.authed(s.getIssue, anyRole...))
	mux.HandleFunc("PUT /api/v1/issues/{id}/status", s.authed(s.updateStatus, officials...))
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.authed(s.deleteIssue, admin...))
	mux.HandleFunc("POST /api/v1/issues/{id}/comments", s.authed(s.addComment, anyRole...))

	mux.HandleFunc("GET /api/v1/notifications", s.authed(s.listNotifications, anyRole...))
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", s.authed(s.markNotificationRead, anyRole...))

	mux.HandleFunc("GET /api/v1/admin/officials", s.authed(s.listOfficials, admin...))
	mux.HandleFunc("POST /api/v1/admin/officials", s.authed(s.createOfficial, admin...))
	mux.HandleFunc("DELETE /api/v1/admin/officials/{id}", s.authed(s.removeOfficial, admin...))
	mux.HandleFunc("GET /api/v1/admin/stats", s.authed(s.statsByZone, admin...))
	mux.HandleFunc("GET /api/v1/admin/issues/unassigned", s.authed(s.listUnassigned, admin...))
	mux.HandleFunc("PUT /api/v1/admin/issues/{id}/assign", s.authed(s.assignIssue, admin...))

	mux.HandleFunc("GET /api/v1/regional/issues", s.authed(s.regionalIssues, officials...))
	mux.HandleFunc("GET /api/v1/regional/stats", s.authed(s.regionalStats, officials...))

	return s.requestLogger(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags the request context with a request ID and logs the outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := logging.WithFields(r.Context(), logging.Fields{RequestID: reqID})

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.DebugContext(ctx, "request",
			"method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

// authedHandler is a handler that runs for an authenticated user.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// authed checks HTTP Basic credentials and the user's role before calling h.
func (s *Server) authed(h authedHandler, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			s.writeAppError(w, r, apperr.Unauthenticated("authentication required"))
			return
		}
		user, err := s.authn.Authenticate(r.Context(), email, password)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}

		fields := logging.FieldsFrom(r.Context())
		fields.ActorID = user.ID
		r = r.WithContext(logging.WithFields(r.Context(), fields))

		if err := authz.RequireRole(user.Actor(), roles...); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		h(w, r, user)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the stable error response shape.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: string(kind), Message: msg})
}

// writeAppError maps a domain error to its HTTP status. Anything that is not
// a domain error is logged and reported as a generic 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, apperr.KindInternal, "internal error")
		return
	}

	status := http.StatusBadRequest
	switch appErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindDuplicateEmail, apperr.KindZoneTaken:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	case apperr.KindUnauthenticated:
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="civic"`)
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindInvalidTarget:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: string(appErr.Kind), Message: appErr.Message, Fields: appErr.Fields})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var vErr apperr.Validator
		vErr.Add("body", "invalid JSON body")
		return vErr.Err()
	}
	return nil
}
