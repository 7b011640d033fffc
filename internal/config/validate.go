package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-silentcmd/internal/source"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// validate is the shared validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string // Dotted JSON path to the field (e.g., "detection.threshold_db")
	Message string // Human-readable error message
	Value   any    // The invalid value
}

// ValidationError collects multiple field validation errors.
type ValidationError struct {
	Errors []FieldError
}

// Add adds a field error to the collection.
func (v *ValidationError) Add(field, message string, value any) {
	v.Errors = append(v.Errors, FieldError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// Error implements error.
func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value))
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks all configuration fields and cross-field constraints.
// It returns a *ValidationError listing every problem found.
func (c *Config) Validate() error {
	verr := &ValidationError{}

	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, e := range validationErrors {
			verr.Add(fieldPath(e.Namespace()), formatValidationMessage(e), e.Value())
		}
	}

	if source.Backend(c.Source.Backend).IsFile() && c.Source.Path == "" {
		verr.Add("source.path", "is required for file backends", c.Source.Path)
	}
	if c.Source.Channels > 0 {
		for _, ch := range c.Detection.Channels {
			if ch > c.Source.Channels {
				verr.Add("detection.channels", fmt.Sprintf("must not exceed source.channels (%d)", c.Source.Channels), ch)
				break
			}
		}
	}
	if c.EventLog != "" {
		if err := util.ValidatePath(c.EventLog); err != nil {
			verr.Add("event_log", err.Error(), c.EventLog)
		}
	}
	if !c.Analyze {
		if strings.TrimSpace(c.Commands.On) == "" {
			verr.Add("commands.on", "is required", c.Commands.On)
		}
		if strings.TrimSpace(c.Commands.Off) == "" {
			verr.Add("commands.off", "is required", c.Commands.Off)
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// fieldPath strips the root type name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
