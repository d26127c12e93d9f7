package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/chautari/chautari/pkg/errors"
	"github.com/chautari/chautari/pkg/logger"
	"github.com/chautari/chautari/pkg/validator"
)

// Envelope is the standard JSON response shape for every API endpoint.
// Success responses carry data; failures carry error and a null data field.
type Envelope struct {
	Success    bool           `json:"success"`
	StatusCode int            `json:"status_code"`
	Data       any            `json:"data"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a success envelope with the given status code and payload.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, Envelope{
		Success:    true,
		StatusCode: status,
		Data:       data,
	})
}

// WriteErrorEnvelope writes a failure envelope with the given status and error.
func WriteErrorEnvelope(w http.ResponseWriter, status int, errResp *ErrorResponse) {
	writeEnvelope(w, Envelope{
		Success:    false,
		StatusCode: status,
		Error:      errResp,
	})
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(env)
}

// WriteError writes a standardized error envelope based on the error type.
// It handles AppError and the package sentinels, and logs internal errors
// using the request-scoped logger when present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteErrorEnvelope(w, appErr.Status, &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Fields:    appErr.Fields,
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = "UNAUTHORIZED"
		message = err.Error()
	case errors.Is(err, apperrors.ErrForbidden):
		code = "FORBIDDEN"
		message = err.Error()
	}

	if status == http.StatusInternalServerError && l != nil {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteErrorEnvelope(w, status, &ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}

// WriteValidationError writes a 400 envelope with field-level messages for
// validation failures.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteErrorEnvelope(w, http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	WriteErrorEnvelope(w, http.StatusBadRequest, &ErrorResponse{
		Code:    "INVALID_INPUT",
		Message: err.Error(),
	})
}

// ParseUUID validates that the given string is a valid UUID. If invalid, it
// writes a 400 envelope and returns false, signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteErrorEnvelope(w, http.StatusBadRequest, &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		})
		return uuid.Nil, false
	}
	return id, true
}
