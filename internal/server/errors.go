package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
	gatewaydomain "github.com/camphq/camppay/internal/gateway/domain"
	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return &registrationdomain.ValidationError{
		Fields: []registrationdomain.FieldError{
			{Field: "request", Code: "invalid_request", Message: "invalid request"},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *registrationdomain.ValidationError
	if errors.As(err, &vErr) && vErr != nil {
		fields := make([]ValidationError, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			fields = append(fields, ValidationError{Field: f.Field, Code: f.Code, Message: f.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fields,
		}
	}

	var closed *registrationdomain.ClosedError
	if errors.As(err, &closed) {
		return http.StatusConflict, errorPayload{
			Type:    "registration_closed",
			Message: closed.Reason,
		}
	}

	switch {
	case errors.Is(err, catalogdomain.ErrUnknownTrack),
		errors.Is(err, registrationdomain.ErrNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, gatewaydomain.ErrInvalidSignature),
		errors.Is(err, gatewaydomain.ErrInvalidPayload):
		// Never reveal which part of a callback failed verification.
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_callback",
			Message: "callback rejected",
		}
	case errors.Is(err, registrationdomain.ErrDuplicateOrderRef):
		// A fresh submission draws a new order reference.
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_submission",
			Message: "submission collided with an existing one, please retry",
		}
	case errors.Is(err, registrationdomain.ErrGatewaySession):
		// The applicant cannot fix this; details stay in the server log.
		return http.StatusBadGateway, errorPayload{
			Type:    "payment_unavailable",
			Message: "payment service temporarily unavailable, try again later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	var vErr *registrationdomain.ValidationError
	var closed *registrationdomain.ClosedError
	switch {
	case errors.As(err, &vErr):
		return "validation", "validation_error"
	case errors.As(err, &closed):
		return "domain", "registration_closed"
	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		return "security", "invalid_signature"
	case errors.Is(err, registrationdomain.ErrGatewaySession):
		return "upstream", "gateway_session"
	case errors.Is(err, registrationdomain.ErrDuplicateOrderRef):
		return "domain", "duplicate_order_ref"
	default:
		return "internal", "error"
	}
}
