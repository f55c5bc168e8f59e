package middleware

import (
	"fmt"
	"strings"

	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// ValidationConfig holds validation middleware configuration
type ValidationConfig struct {
	MaxBodySize    int64
	AllowedMethods []string
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxBodySize: 100 * 1024 * 1024, // matches the default archive upload limit
		AllowedMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodOptions,
			fiber.MethodHead,
		},
	}
}

// RequestValidation creates a request validation middleware. JSON bodies
// are syntax-checked up front; multipart bodies pass through untouched so
// archive uploads reach the handler intact.
func RequestValidation(config ...ValidationConfig) fiber.Handler {
	cfg := DefaultValidationConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if !isMethodAllowed(c.Method(), cfg.AllowedMethods) {
			return utils.ErrorResponse(c, fiber.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
				fmt.Sprintf("Method %s is not allowed", c.Method()), nil)
		}

		if len(c.Body()) > int(cfg.MaxBodySize) {
			return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", cfg.MaxBodySize), nil)
		}

		if c.Method() == fiber.MethodPost && strings.Contains(c.Get("Content-Type"), "application/json") {
			if len(c.Body()) > 0 && !utils.IsValidJSON(string(c.Body())) {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_JSON",
					"Request body contains invalid JSON", nil)
			}
		}

		return c.Next()
	}
}

// ContentTypeValidation validates content type for specific endpoints
func ContentTypeValidation(allowedTypes []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_CONTENT_TYPE",
				"Content-Type header is required", nil)
		}

		for _, allowedType := range allowedTypes {
			if strings.Contains(contentType, allowedType) {
				return c.Next()
			}
		}

		return utils.ErrorResponse(c, fiber.StatusUnsupportedMediaType, "INVALID_CONTENT_TYPE",
			fmt.Sprintf("Content-Type must be one of: %s", strings.Join(allowedTypes, ", ")), nil)
	}
}

// isMethodAllowed checks if HTTP method is allowed
func isMethodAllowed(method string, allowedMethods []string) bool {
	for _, allowed := range allowedMethods {
		if method == allowed {
			return true
		}
	}
	return false
}
