package middleware

import (
	"time"

	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	Logger    *utils.Logger
	SkipPaths []string
}

// DefaultLoggingConfig returns default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:    utils.GetLogger(),
		SkipPaths: []string{"/health"},
	}
}

// CorrelationID creates a middleware that ensures correlation IDs are present
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set("X-Trace-ID", traceID)

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("X-Request-ID", requestID)

		utils.SetTraceID(c, traceID)
		c.Locals("request_id", requestID)

		return c.Next()
	}
}

// RequestLogging creates a request logging middleware with correlation IDs.
// Request bodies are never logged; archive uploads are large and binary.
func RequestLogging(config ...LoggingConfig) fiber.Handler {
	cfg := DefaultLoggingConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if shouldSkipPath(c.Path(), cfg.SkipPaths) {
			return c.Next()
		}

		traceID := utils.GetTraceID(c)
		requestID := getRequestID(c)
		startTime := time.Now()

		err := c.Next()

		duration := time.Since(startTime)
		statusCode := c.Response().StatusCode()

		context := map[string]interface{}{
			"method":       c.Method(),
			"path":         c.Path(),
			"status_code":  statusCode,
			"duration_ms":  duration.Milliseconds(),
			"ip":           c.IP(),
			"request_id":   requestID,
			"content_type": c.Get("Content-Type"),
		}
		if len(c.Queries()) > 0 {
			context["query_params"] = c.Queries()
		}
		if err != nil {
			context["error"] = err.Error()
		}

		log := cfg.Logger.WithTraceID(traceID).WithSource("http")
		if statusCode >= 500 {
			log.Error("Request completed with server error", err, context)
		} else if statusCode >= 400 {
			log.Warn("Request completed with client error", context)
		} else {
			log.Info("Request completed successfully", context)
		}

		return err
	}
}

// ErrorLogging creates an error logging middleware
func ErrorLogging(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if err != nil {
			logger.WithTraceID(utils.GetTraceID(c)).WithSource("error").Error(
				"Request processing error", err, map[string]interface{}{
					"method":     c.Method(),
					"path":       c.Path(),
					"ip":         c.IP(),
					"request_id": getRequestID(c),
				})
		}

		return err
	}
}

// shouldSkipPath checks if a path should be skipped from logging
func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}

// getRequestID gets request ID from context
func getRequestID(c *fiber.Ctx) string {
	if requestID := c.Locals("request_id"); requestID != nil {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// GetLoggerFromContext gets a request-scoped logger from fiber context
func GetLoggerFromContext(c *fiber.Ctx) *utils.Logger {
	return utils.GetLogger().WithTraceID(utils.GetTraceID(c)).WithSource("http").WithContext(map[string]interface{}{
		"request_id": getRequestID(c),
	})
}
