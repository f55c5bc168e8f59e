package middleware

import (
	"context"
	"errors"

	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlingConfig holds configuration for the app-level error handler
type ErrorHandlingConfig struct {
	// EnableDetailedErrors includes the underlying error text in responses
	EnableDetailedErrors bool
	// Logger for error logging
	Logger *utils.Logger
}

// DefaultErrorHandlingConfig returns default configuration
func DefaultErrorHandlingConfig() *ErrorHandlingConfig {
	return &ErrorHandlingConfig{
		EnableDetailedErrors: false,
		Logger:               utils.GetLogger(),
	}
}

// NewErrorHandler creates the Fiber app error handler: the last stop for
// errors that escaped route handlers.
func NewErrorHandler(config ...*ErrorHandlingConfig) fiber.ErrorHandler {
	cfg := DefaultErrorHandlingConfig()
	if len(config) > 0 && config[0] != nil {
		cfg = config[0]
	}

	return func(c *fiber.Ctx, err error) error {
		statusCode, errorCode, message := categorizeError(err)

		traceID := utils.GetTraceID(c)
		logContext := map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"ip":          c.IP(),
			"status_code": statusCode,
			"error_code":  errorCode,
		}

		log := cfg.Logger.WithTraceID(traceID).WithSource("error_handler")
		if statusCode >= 500 {
			log.Error("Request error", err, logContext)
		} else {
			log.Warn("Request failed: "+message, logContext)
		}

		var details map[string]string
		if cfg.EnableDetailedErrors {
			details = map[string]string{"original_error": err.Error()}
		}

		return utils.ErrorResponse(c, statusCode, errorCode, message, details)
	}
}

// categorizeError maps errors that escaped handlers to status codes
func categorizeError(err error) (statusCode int, errorCode, message string) {
	if utils.IsCircuitBreakerError(err) {
		return fiber.StatusServiceUnavailable, "CIRCUIT_BREAKER_OPEN", "Service temporarily unavailable"
	}
	if utils.IsRetryableError(err) {
		return fiber.StatusServiceUnavailable, "RETRY_EXHAUSTED", "Service temporarily unavailable after retry attempts"
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, mapFiberErrorCode(fiberErr.Code), fiberErr.Message
	}

	if errors.Is(err, context.Canceled) {
		return fiber.StatusRequestTimeout, "REQUEST_CANCELLED", "Request was cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusRequestTimeout, "REQUEST_TIMEOUT", "Request timeout exceeded"
	}

	return fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal error occurred"
}

// mapFiberErrorCode maps Fiber status codes to error codes
func mapFiberErrorCode(statusCode int) string {
	switch statusCode {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "REQUEST_ERROR"
	}
}
