package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate

	// emailRegex is a simple email validation regex
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// vinRegex matches 17 letters or digits.
	vinRegex = regexp.MustCompile(`^[A-Z0-9]{17}$`)
)

func init() {
	validate = validator.New()

	// Report json names so field errors line up with the request body.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	mustRegister("vin", func(fl validator.FieldLevel) bool {
		return IsVIN(fl.Field().String())
	})
	mustRegister("role", func(fl validator.FieldLevel) bool {
		_, err := auth.ParseRole(fl.Field().String())
		return err == nil
	})
	mustRegister("vehicle_status", func(fl validator.FieldLevel) bool {
		return models.VehicleStatus(fl.Field().String()).IsValid()
	})
	mustRegister("body_type", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || contains(models.BodyTypes, v)
	})
	mustRegister("fuel_type", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || contains(models.FuelTypes, v)
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// IsVIN reports whether s is 17 letters or digits, ignoring case.
func IsVIN(s string) bool {
	return vinRegex.MatchString(strings.ToUpper(s))
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		tag := err.Tag()

		switch tag {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "uuid":
			fields[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "lte":
			fields[field] = fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "vin":
			fields[field] = fmt.Sprintf("%s must be 17 letters or digits", field)
		case "role":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, strings.Join(roleNames(), ", "))
		case "vehicle_status":
			fields[field] = fmt.Sprintf("%s is not a known vehicle status", field)
		case "body_type", "fuel_type":
			fields[field] = fmt.Sprintf("%s is not a recognised value", field)
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, tag)
		}
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

func roleNames() []string {
	roles := auth.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// ParseUUID parses s, naming fieldName in the error.
func ParseUUID(s, fieldName string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q is not a UUID", fieldName, s)
	}
	return id, nil
}

// ValidateEmail validates that a string is a valid email
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateOneOf validates that a value is one of the allowed values
func ValidateOneOf(value string, fieldName string, allowed []string) error {
	if contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of: %v", fieldName, allowed)
}
