package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Err is the body of every error response.
type Err struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	Message        string `json:"message,omitempty"`
}

func (e *Err) Error() string {
	if e.Err == nil {
		return e.StatusText
	}
	return e.Err.Error()
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.Writer.Header().Get("X-Request-ID")),
			zap.Error(e.Err),
		)
	}

	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Bad request.",
		Message:        err.Error(),
	}
}

func ErrInvalidParam(name string, err error) *Err {
	return ErrBadRequest(fmt.Errorf("invalid %s: %w", name, err))
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "Unauthorized.",
		Message:        err.Error(),
	}
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "Unauthorized.",
		Message:        "wrong email or password",
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     "Permission denied.",
	}
}

func ErrNotFound(entity, field string, value any) *Err {
	err := fmt.Errorf("%s with %s %v not found", entity, field, value)

	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Resource not found.",
		Message:        err.Error(),
	}
}

func ErrConflict(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Conflict.",
		Message:        err.Error(),
	}
}

func ErrUnavailable(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Service unavailable.",
		Message:        "try again later",
	}
}

// ErrInternalServerError hides err from the client; RenderErr logs it.
func ErrInternalServerError(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error.",
	}
}

func ErrResourceNotFound(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Resource not found.",
		Message:        err.Error(),
	}
}
