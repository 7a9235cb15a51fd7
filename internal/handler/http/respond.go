package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/amourflorals/wishsync/pkg/logger"
	"github.com/amourflorals/wishsync/pkg/validator"

	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// envelope is the agent's response shape: exactly one of data or error is
// set.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr *validator.ValidationError
		appErr *apperrors.AppError
	)

	body := &errorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_FAILED"
		body.Message = "request validation failed"
		body.Fields = valErr.Fields()
	case errors.As(err, &appErr):
		status = appErr.Status
		body.Code = appErr.Code
		body.Message = appErr.Message
	default:
		status = apperrors.HTTPStatus(err)
		if status != http.StatusInternalServerError {
			body.Code = ""
			body.Message = err.Error()
		}
	}

	if status >= 500 {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body})
}
