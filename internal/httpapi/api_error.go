package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/elysiawen/SubLinks-sub001/internal/engine"
	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/rules"
	"github.com/elysiawen/SubLinks-sub001/internal/store"
	"github.com/elysiawen/SubLinks-sub001/internal/upstream"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func requestError(code, message, hint string) error {
	return &APIError{
		Status: http.StatusBadRequest,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "validate_request",
			Hint:    hint,
		},
	}
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var ae *APIError
	if errors.As(err, &ae) {
		WriteError(w, ae.Status, ae.AppError)
		return
	}

	var be *engine.BuildError
	if errors.As(err, &be) {
		WriteError(w, be.Status, be.AppError)
		return
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		WriteError(w, fe.Status, fe.AppError)
		return
	}

	// Content errors are the caller's to fix => 422.
	var ue *upstream.ParseError
	if errors.As(err, &ue) {
		WriteError(w, http.StatusUnprocessableEntity, ue.AppError)
		return
	}

	var rpe *rules.ParseError
	if errors.As(err, &rpe) {
		WriteError(w, http.StatusUnprocessableEntity, rpe.AppError)
		return
	}

	var ve *store.ValidationError
	if errors.As(err, &ve) {
		WriteError(w, http.StatusUnprocessableEntity, model.AppError{
			Code:    "VALIDATION_ERROR",
			Message: ve.Message,
			Stage:   "validate_request",
		})
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, model.AppError{
			Code:    "NOT_FOUND",
			Message: "对象不存在",
			Stage:   "store",
		})
		return
	}

	// Fallback: internal bug.
	WriteError(w, http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	})
}
