package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sintonia/internal/apperr"
	"sintonia/internal/middleware"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ListResponse is the body of every paginated listing
type ListResponse[T any] struct {
	Data       []T             `json:"data"`
	Pagination pagination.Meta `json:"pagination"`
}

// newListResponse builds a listing body; a nil page is sent as []
func newListResponse[T any](result models.ListResult[T], p pagination.Params) ListResponse[T] {
	items := result.Items
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Pagination: pagination.BuildMeta(result.Total, p)}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: string(code)})
}

// respondWithAppError maps a service error to its status code.
// Internal errors are logged and their message is not sent to the client.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err)
		respondWithError(w, status, apperr.CodeInternal, ErrMsgInternal)
		return
	}

	body := ErrorResponse{Error: err.Error(), Code: string(apperr.CodeOf(err))}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Fields = appErr.Fields
	}
	respondWithJSON(w, status, body)
}

// decodeJSON reads the request body into v, answering 400 on malformed input
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, apperr.CodeValidation, ErrMsgInvalidRequestBody)
		return false
	}
	return true
}

// pathID parses a numeric path parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		respondWithError(w, http.StatusBadRequest, apperr.CodeValidation, ErrMsgInvalidID)
		return 0, false
	}
	return uint(id), true
}

// actor returns the authenticated caller set by the auth middleware
func actor(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, ErrMsgUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

// queryUint reads an optional positive integer filter
func queryUint(r *http.Request, name string) (*uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, apperr.ValidationFields(fmt.Sprintf("invalid %s", name), map[string]string{name: "must be a positive integer"})
	}
	id := uint(n)
	return &id, nil
}

// queryBool reads an optional boolean filter
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.ValidationFields(fmt.Sprintf("invalid %s", name), map[string]string{name: "must be true or false"})
	}
	return &b, nil
}

// clientMeta returns the caller address and user agent recorded by the logging middleware
func clientMeta(r *http.Request) (ip, userAgent string) {
	if meta, ok := service.RequestMetaFrom(r.Context()); ok {
		return meta.IPAddress, meta.UserAgent
	}
	return r.RemoteAddr, r.UserAgent()
}
