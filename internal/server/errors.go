package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shiftcast/pkg/errors"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code        errors.ErrorCode `json:"code"`
	Message     string           `json:"message"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidationFailed, errors.ErrCodeInvalidInput, errors.ErrCodeInvalidShift:
		return http.StatusBadRequest
	case errors.ErrCodeEmptyCity, errors.ErrCodeNoTargetDate:
		return http.StatusNotFound
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeConnectionFailed,
		errors.ErrCodeConnectionTimeout, errors.ErrCodeNetworkUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout, errors.ErrCodeSQLTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetErrorCode(err)
	if code == errors.ErrCodeInternal && stderrors.Is(err, context.DeadlineExceeded) {
		code = errors.ErrCodeTimeout
	}
	status := StatusFor(code)

	detail := ErrorDetail{Code: code, Message: err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		detail.Message = appErr.Message
		detail.Suggestions = appErr.Suggestions
	}
	if status == http.StatusInternalServerError {
		s.opts.Logger.Error("request error", "code", string(code), "error", err.Error())
		detail.Message = "internal error"
		detail.Suggestions = nil
	}

	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}
