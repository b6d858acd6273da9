package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/middleware"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/go-chi/chi/v5"
	chmw "github.com/go-chi/chi/v5/middleware"
)

type BaseResponse struct {
	Ok bool `json:"ok"`
}

type DataResponse struct {
	BaseResponse
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	BaseResponse
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// respondWithError sends an error response with a message
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithData sends a successful envelope
func respondWithData(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, DataResponse{
		BaseResponse: BaseResponse{Ok: true},
		Message:      message,
		Data:         data,
	})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// statusOf maps an engine error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the error envelope for err. Untyped failures are
// logged and hidden behind a generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"requestID", chmw.GetReqID(r.Context()))
		respondWithError(w, code, "Internal server error")
		return
	}
	if code == http.StatusServiceUnavailable {
		slog.WarnContext(r.Context(), "transient failure", "error", err, "requestID", chmw.GetReqID(r.Context()))
	}

	resp := ErrorResponse{Error: http.StatusText(code)}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Error = de.Message
		resp.Details = de.Fields
	}
	respondWithJSON(w, code, resp)
}

// currentUser returns the authenticated user id set by the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

// idParam parses a positive integer route parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		handleError(w, r, domain.InvalidInput("%s must be a positive integer", name))
		return 0, false
	}
	return uint(v), true
}

// numberParam is idParam for compartment numbers.
func numberParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, ok := idParam(w, r, name)
	return int(v), ok
}

// intQuery parses an optional integer query parameter. Absent means zero.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		handleError(w, r, domain.InvalidFields("invalid query parameter", map[string]string{name: "must be an integer"}))
		return 0, false
	}
	return n, true
}

// pageQuery reads the page and limit query parameters.
func pageQuery(w http.ResponseWriter, r *http.Request) (service.PageRequest, bool) {
	page, ok := intQuery(w, r, "page")
	if !ok {
		return service.PageRequest{}, false
	}
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return service.PageRequest{}, false
	}
	return service.PageRequest{Page: page, Limit: limit}, true
}

// decode parses a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
