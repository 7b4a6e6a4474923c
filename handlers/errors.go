package handlers

import (
	"errors"
	"net/http"

	"checkout-svc/apperr"
	"checkout-svc/circuitbreaker"
	"checkout-svc/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindState, apperr.KindUpstream, apperr.KindSignature:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {error, code, message?} envelope. Wrapped
// detail is only exposed in development.
func respondError(c *gin.Context, err error, development bool, logger *zap.Logger) {
	appErr, ok := apperr.As(err)
	if !ok {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			appErr = apperr.Wrap(apperr.KindUnavailable, apperr.CodeServiceUnavailable, "Service temporarily unavailable", err)
		} else {
			appErr = apperr.Internal(err)
		}
	}

	status := statusFor(appErr.Kind)
	traceID := middleware.GetTraceID(c.Request.Context())
	if status >= http.StatusInternalServerError || appErr.Kind == apperr.KindUpstream {
		logger.Error("Request failed",
			zap.String("trace_id", traceID),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	}
	_ = c.Error(err)

	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if development && appErr.Err != nil {
		body["message"] = appErr.Err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
