// Package validation provides input validation utilities.
package validation

import (
	"encoding/json"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/geo"
)

// Password length bounds in bytes. bcrypt rejects passwords longer than 72
// bytes.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 72
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names for error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidations(validate)
	})

	return validate
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("latitude", validateLatitude)
	v.RegisterValidation("longitude", validateLongitude)
	v.RegisterValidation("password", validatePassword)
}

func validateLatitude(fl validator.FieldLevel) bool {
	return geo.ValidLatitude(fl.Field().Float())
}

func validateLongitude(fl validator.FieldLevel) bool {
	return geo.ValidLongitude(fl.Field().Float())
}

func validatePassword(fl validator.FieldLevel) bool {
	n := len(fl.Field().String())
	return n >= MinPasswordLen && n <= MaxPasswordLen
}

// Validate validates a struct and returns validation errors.
func Validate(s interface{}) error {
	return GetValidator().Struct(s)
}

// ValidateVar validates a single variable.
func ValidateVar(field interface{}, tag string) error {
	return GetValidator().Var(field, tag)
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Field)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// Details returns the errors keyed by field.
func (ve ValidationErrors) Details() map[string]string {
	details := make(map[string]string, len(ve))
	for _, e := range ve {
		details[e.Field] = e.Message
	}
	return details
}

// ParseValidationErrors converts validator.ValidationErrors to our format.
func ParseValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, e := range ve {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "latitude":
		return "must be a valid latitude (-90 to 90)"
	case "longitude":
		return "must be a valid longitude (-180 to 180)"
	case "password":
		return "must be between 8 and 72 bytes"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// AsAppError converts a validator error into an *errors.AppError. A failed
// latitude or longitude rule becomes InvalidCoordinate, anything else a
// validation error carrying every field message.
func AsAppError(err error) *errors.AppError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error())
	}

	for _, fe := range ve {
		if fe.Tag() != "latitude" && fe.Tag() != "longitude" {
			continue
		}
		if v, ok := fe.Value().(float64); ok {
			return errors.InvalidCoordinate(fe.Field(), v)
		}
		if v, ok := fe.Value().(*float64); ok && v != nil {
			return errors.InvalidCoordinate(fe.Field(), *v)
		}
	}

	return errors.ValidationWithDetails("validation failed", ParseValidationErrors(err).Details())
}

// DecodeAndValidate decodes a JSON body into dst and validates it. On
// failure it writes the error response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType != "application/json" {
		errors.WriteErrorWithStatus(w, http.StatusUnsupportedMediaType,
			errors.CodeBadRequest, "Content-Type must be application/json")
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		errors.WriteError(w, errors.BadRequest("invalid JSON body"), middleware.GetReqID(r.Context()))
		return false
	}

	if err := Validate(dst); err != nil {
		errors.WriteError(w, AsAppError(err), middleware.GetReqID(r.Context()))
		return false
	}

	return true
}
