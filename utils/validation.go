package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool                       `json:"is_valid"`
	Errors  map[string]ValidationError `json:"errors,omitempty"`
}

// Validator represents a field validator
type Validator struct {
	errors map[string]ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{errors: make(map[string]ValidationError)}
}

// ValidateStruct validates a struct using reflection and validation tags
func (v *Validator) ValidateStruct(s interface{}) *ValidationResult {
	v.errors = make(map[string]ValidationError)

	val := reflect.ValueOf(s)
	typ := reflect.TypeOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	if val.Kind() != reflect.Struct {
		v.addError("_root", "Value must be a struct", "")
		return v.getResult()
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanInterface() {
			continue
		}

		fieldName := fieldType.Name
		if jsonTag := fieldType.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
			if commaIdx := strings.Index(jsonTag, ","); commaIdx != -1 {
				fieldName = jsonTag[:commaIdx]
			} else {
				fieldName = jsonTag
			}
		}

		validateTag := fieldType.Tag.Get("validate")
		if validateTag == "" {
			continue
		}
		v.validateField(fieldName, field.Interface(), validateTag)
	}

	return v.getResult()
}

// validateField validates a single field based on validation rules
func (v *Validator) validateField(fieldName string, value interface{}, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}

		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		var ruleParam string
		if len(parts) > 1 {
			ruleParam = parts[1]
		}

		if !v.applyRule(fieldName, value, ruleName, ruleParam) {
			break // Stop on first error for this field
		}
	}
}

// applyRule applies a specific validation rule
func (v *Validator) applyRule(fieldName string, value interface{}, ruleName, param string) bool {
	switch ruleName {
	case "required":
		return v.validateRequired(fieldName, value)
	case "min":
		return v.validateMin(fieldName, value, param)
	case "max":
		return v.validateMax(fieldName, value, param)
	case "oneof":
		return v.validateOneOf(fieldName, value, param)
	case "url":
		return v.validateURL(fieldName, value)
	case "hex":
		return v.validateHex(fieldName, value)
	default:
		// Unknown rule, skip
		return true
	}
}

// validateRequired validates that a field is not empty
func (v *Validator) validateRequired(fieldName string, value interface{}) bool {
	if value == nil {
		v.addError(fieldName, "Field is required", "")
		return false
	}

	switch val := value.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			v.addError(fieldName, "Field is required", val)
			return false
		}
	default:
		rv := reflect.ValueOf(value)
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.Len() == 0 {
			v.addError(fieldName, "Field is required", "")
			return false
		}
	}
	return true
}

// validateMin validates minimum value/length
func (v *Validator) validateMin(fieldName string, value interface{}, param string) bool {
	minVal, err := strconv.Atoi(param)
	if err != nil {
		return true // Invalid parameter, skip validation
	}

	switch val := value.(type) {
	case string:
		if len(val) < minVal {
			v.addError(fieldName, fmt.Sprintf("Field must be at least %d characters long", minVal), val)
			return false
		}
	case int, int32, int64:
		intVal := reflect.ValueOf(val).Int()
		if intVal < int64(minVal) {
			v.addError(fieldName, fmt.Sprintf("Field must be at least %d", minVal), fmt.Sprintf("%d", intVal))
			return false
		}
	}
	return true
}

// validateMax validates maximum value/length
func (v *Validator) validateMax(fieldName string, value interface{}, param string) bool {
	maxVal, err := strconv.Atoi(param)
	if err != nil {
		return true
	}

	switch val := value.(type) {
	case string:
		if len(val) > maxVal {
			v.addError(fieldName, fmt.Sprintf("Field must be at most %d characters long", maxVal), val)
			return false
		}
	case int, int32, int64:
		intVal := reflect.ValueOf(val).Int()
		if intVal > int64(maxVal) {
			v.addError(fieldName, fmt.Sprintf("Field must be at most %d", maxVal), fmt.Sprintf("%d", intVal))
			return false
		}
	}
	return true
}

// validateOneOf validates that field value is one of the specified options
func (v *Validator) validateOneOf(fieldName string, value interface{}, param string) bool {
	str, ok := value.(string)
	if !ok {
		v.addError(fieldName, "Field must be a string", fmt.Sprintf("%v", value))
		return false
	}

	options := strings.Split(param, " ")
	for _, option := range options {
		if str == option {
			return true
		}
	}

	v.addError(fieldName, fmt.Sprintf("Field must be one of: %s", strings.Join(options, ", ")), str)
	return false
}

// validateURL validates URL format
func (v *Validator) validateURL(fieldName string, value interface{}) bool {
	str, ok := value.(string)
	if !ok {
		v.addError(fieldName, "Field must be a string", fmt.Sprintf("%v", value))
		return false
	}
	if _, err := url.ParseRequestURI(str); err != nil {
		v.addError(fieldName, "Field must be a valid URL", str)
		return false
	}
	return true
}

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]*$`)

// validateHex validates that a field contains only hexadecimal characters.
// An empty string passes; combine with required when the field is mandatory.
func (v *Validator) validateHex(fieldName string, value interface{}) bool {
	str, ok := value.(string)
	if !ok {
		v.addError(fieldName, "Field must be a string", fmt.Sprintf("%v", value))
		return false
	}
	if !hexPattern.MatchString(str) {
		v.addError(fieldName, "Field must be a hexadecimal string", str)
		return false
	}
	return true
}

// addError adds a validation error
func (v *Validator) addError(field, message, value string) {
	v.errors[field] = ValidationError{Field: field, Message: message, Value: value}
}

// getResult returns the validation result
func (v *Validator) getResult() *ValidationResult {
	return &ValidationResult{
		IsValid: len(v.errors) == 0,
		Errors:  v.errors,
	}
}

// ValidateJSON validates JSON request body against a struct
func ValidateJSON(c *fiber.Ctx, target interface{}) *ValidationResult {
	if err := c.BodyParser(target); err != nil {
		validator := NewValidator()
		validator.addError("_body", "Invalid JSON format", "")
		return validator.getResult()
	}
	return NewValidator().ValidateStruct(target)
}

// HandleValidationErrors handles validation errors and returns appropriate response
func HandleValidationErrors(c *fiber.Ctx, result *ValidationResult) error {
	if result.IsValid {
		return nil
	}

	errorDetails := make(map[string]string)
	for field, validationError := range result.Errors {
		errorDetails[field] = validationError.Message
	}
	return ValidationErrorResponse(c, errorDetails)
}

// ValidateStruct is a convenience function that validates a struct and returns an error
func ValidateStruct(s interface{}) error {
	result := NewValidator().ValidateStruct(s)
	if !result.IsValid {
		for _, validationError := range result.Errors {
			return fmt.Errorf("validation failed for field '%s': %s", validationError.Field, validationError.Message)
		}
	}
	return nil
}

// IsValidJSON checks if a string is valid JSON
func IsValidJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}

// JSONMarshal is a custom JSON marshal function for Fiber
func JSONMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// JSONUnmarshal is a custom JSON unmarshal function for Fiber
func JSONUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
