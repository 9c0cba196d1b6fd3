package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// rateLimitedError carries the retry hint through the gin error chain.
type rateLimitedError struct {
	retryAfterSeconds int
}

func (e *rateLimitedError) Error() string { return "rate limited" }

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

		var limited *rateLimitedError
		if errors.As(lastErr.Err, &limited) && limited.retryAfterSeconds > 0 {
			c.Header("Retry-After", strconv.Itoa(limited.retryAfterSeconds))
		}

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

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: field, Code: code, Message: message},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var limited *rateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many generation requests, slow down",
		}
	}

	switch {
	case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_funds",
			Message: "not enough credits for this generation",
		}
	case errors.Is(err, ledgerdomain.ErrAccountNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "credit account not found",
		}
	case errors.Is(err, generationdomain.ErrGenerationNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "generation not found",
		}
	case errors.Is(err, routerdomain.ErrModelNotConfigured):
		return http.StatusConflict, errorPayload{
			Type:    "model_not_configured",
			Message: "no model is configured for this capability and tier",
		}
	case errors.Is(err, routerdomain.ErrUnknownTier),
		errors.Is(err, capabilitydomain.ErrUnknownCapability),
		errors.Is(err, generationdomain.ErrEmptyPrompt),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidKind):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	return asValidationErrors(err) != nil
}

func errorIs(err, target error) bool {
	return errors.Is(err, target)
}
