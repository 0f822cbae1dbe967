package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/contact-hub/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json encode failed", "component", "httputil", "error", err)
	}
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

// Created writes a 201 response.
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// Conflict writes a 409 response carrying data, used for recognized
// duplicates that reference the existing row.
func Conflict(w http.ResponseWriter, data any) { JSON(w, http.StatusConflict, data) }

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError logs err and writes a generic 500.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "component", "httputil", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// StatusFor maps an error class (see ingest.Class) to an HTTP status.
func StatusFor(class string) int {
	switch class {
	case "validation":
		return http.StatusBadRequest
	case "unknown_reference", "not_found":
		return http.StatusNotFound
	case "identity_conflict", "storage_conflict", "locked":
		return http.StatusConflict
	case "timeout":
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// Fail writes err under the status of its class. Internal errors are
// logged and hidden from the client.
func Fail(w http.ResponseWriter, class string, err error) {
	status := StatusFor(class)
	if status == http.StatusInternalServerError {
		InternalError(w, err)
		return
	}
	JSON(w, status, ErrorResponse{Error: err.Error(), Code: class})
}

// Decode reads a JSON body into dst. It writes a 400 and returns false
// when the body is missing or malformed.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			BadRequest(w, "request body is required")
			return false
		}
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
