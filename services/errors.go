package services

import (
	"errors"
	"fmt"

	"github.com/rtauto/dealer-admin/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeUnavailable  ErrorType = "unavailable"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrVehicleNotFound    = NewDomainError(ErrorTypeNotFound, "vehicle not found", nil)
	ErrPhotoNotFound      = NewDomainError(ErrorTypeNotFound, "photo not found", nil)
	ErrProfileNotFound    = NewDomainError(ErrorTypeNotFound, "profile not found", nil)
	ErrDealershipNotFound = NewDomainError(ErrorTypeNotFound, "dealership not found", nil)

	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidVIN   = NewDomainError(ErrorTypeValidation, "VIN must be 17 letters or digits", nil)

	ErrUnauthorized       = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthorized, "invalid email or password", nil)
	ErrSessionExpired     = NewDomainError(ErrorTypeUnauthorized, "session expired", nil)

	ErrForbidden         = NewDomainError(ErrorTypeForbidden, "not permitted", nil)
	ErrDealershipScope   = NewDomainError(ErrorTypeForbidden, "dealership mismatch", nil)
	ErrRoleAboveOwnLevel = NewDomainError(ErrorTypeForbidden, "cannot grant a role above your own", nil)

	ErrDuplicateVIN = NewDomainError(ErrorTypeConflict, "a vehicle with this VIN already exists", nil)

	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)

	ErrDecoderUnavailable = NewDomainError(ErrorTypeExternal, "VIN decoder unavailable", nil)
	ErrStorageUnavailable = NewDomainError(ErrorTypeUnavailable, "photo storage is not configured", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

func IsNotFoundError(err error) bool     { return hasType(err, ErrorTypeNotFound) }
func IsValidationError(err error) bool   { return hasType(err, ErrorTypeValidation) }
func IsUnauthorizedError(err error) bool { return hasType(err, ErrorTypeUnauthorized) }
func IsForbiddenError(err error) bool    { return hasType(err, ErrorTypeForbidden) }
func IsConflictError(err error) bool     { return hasType(err, ErrorTypeConflict) }
func IsInternalError(err error) bool     { return hasType(err, ErrorTypeInternal) }
func IsExternalError(err error) bool     { return hasType(err, ErrorTypeExternal) }
func IsUnavailableError(err error) bool  { return hasType(err, ErrorTypeUnavailable) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an upstream service error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// FromRepository turns a repository error into a domain error. notFound is
// returned, wrapping err, when the row was missing.
func FromRepository(err error, notFound *DomainError, message string) error {
	if err == nil {
		return nil
	}
	if repositories.IsNotFound(err) {
		return NewDomainError(notFound.Type, notFound.Message, err)
	}
	return WrapInternal(message, err)
}
