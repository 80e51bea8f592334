package engine

import (
	"fmt"
	"net/http"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

// BuildError is a fatal document-build failure. Non-fatal conditions
// (invalid regex selector, missing config set, a subset of sources failing)
// degrade with a logged warning instead.
type BuildError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

func errSubNotFound(token string) *BuildError {
	return &BuildError{
		Status: http.StatusNotFound,
		AppError: model.AppError{
			Code:    "SUB_NOT_FOUND",
			Message: "订阅不存在",
			Stage:   "load_subscription",
			Snippet: token,
		},
	}
}

func errSubDisabled(token string) *BuildError {
	return &BuildError{
		Status: http.StatusNotFound,
		AppError: model.AppError{
			Code:    "SUB_DISABLED",
			Message: "订阅已停用",
			Stage:   "load_subscription",
			Snippet: token,
		},
	}
}

func errNoSources() *BuildError {
	return &BuildError{
		Status: http.StatusUnprocessableEntity,
		AppError: model.AppError{
			Code:    "NO_SOURCES",
			Message: "订阅没有任何可用的上游源",
			Stage:   "synthesize",
			Hint:    "check selectedSources against configured upstream sources",
		},
	}
}

func errAllSourcesFailed(cause error) *BuildError {
	return &BuildError{
		Status: http.StatusBadGateway,
		AppError: model.AppError{
			Code:    "ALL_SOURCES_FAILED",
			Message: "所有上游源拉取失败",
			Stage:   "synthesize",
		},
		Cause: cause,
	}
}
