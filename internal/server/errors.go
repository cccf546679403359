package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
	quotedomain "github.com/smallbiznis/quotepilot/internal/quote/domain"
	subscriptiondomain "github.com/smallbiznis/quotepilot/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/quotepilot/internal/webhook/domain"
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
	Type         string            `json:"type"`
	Message      string            `json:"message"`
	Errors       []ValidationError `json:"errors,omitempty"`
	QuoteID      string            `json:"quote_id,omitempty"`
	DashboardURL string            `json:"dashboard_url,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrMethodNotAllowed = errors.New("method_not_allowed")
	ErrRateLimited      = errors.New("rate_limited")
)

// validationSentinels are reported as 400 with the field taken from the code.
var validationSentinels = []error{
	ErrInvalidRequest,
	identitydomain.ErrInvalidEmail,
	identitydomain.ErrInvalidIdentity,
	catalogdomain.ErrInvalidPack,
	catalogdomain.ErrInvalidTeamSize,
	promotiondomain.ErrInvalidCode,
	subscriptiondomain.ErrInvalidCustomer,
	subscriptiondomain.ErrInvalidTrialStart,
}

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
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var incomplete *quotedomain.IncompleteQuoteError
	var cfgErr *config.ConfigurationError
	var providerErr *billingdomain.ProviderError

	switch {
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature verification failed",
		}
	case errors.Is(err, webhookdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "webhook payload could not be read",
		}
	case errors.As(err, &incomplete):
		message := "quote created but its public link is not available yet"
		if incomplete.Stage == quotedomain.StageDraft {
			message = "quote created but could not be finalized"
		}
		return http.StatusBadGateway, errorPayload{
			Type:         "quote_incomplete",
			Message:      message,
			QuoteID:      incomplete.QuoteID,
			DashboardURL: incomplete.DashboardURL,
		}
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: cfgErr.Error(),
		}
	case errors.As(err, &providerErr):
		message := providerErr.Message
		if message == "" {
			message = "payment provider request failed"
		}
		return http.StatusInternalServerError, errorPayload{
			Type:    "provider_error",
			Message: message,
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, errorPayload{
			Type:    "method_not_allowed",
			Message: "method not allowed",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := ""
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_email":
		return "a valid email is required"
	case "invalid_pack":
		return "unknown pack"
	case "invalid_code":
		return "code is required"
	case "invalid_customer_id":
		return "customerId is required"
	case "invalid_trial_start_iso":
		return "trial_start_iso must be an ISO 8601 date"
	default:
		return "invalid value"
	}
}
