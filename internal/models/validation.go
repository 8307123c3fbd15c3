package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation matches every *ValidationError through errors.Is
var ErrValidation = errors.New("validation failed")

// Validation reasons reported to callers
const (
	ReasonRequired        = "field required"
	ReasonPhonePrefix     = "Phone number must start with +"
	ReasonImportanceRange = "Importance score must be between 0 and 1"
)

// ValidationError describes the first field that failed validation
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

// now is the clock used for default timestamps
var now = func() time.Time {
	return time.Now().UTC()
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Report wire names so the field in a ValidationError matches the payload
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("phoneprefix", isPhonePrefixed); err != nil {
		panic(err)
	}

	return v
}

func isPhonePrefixed(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "+")
}

// validateStruct runs the struct tags of v and converts the first failure
// into a *ValidationError
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Field:  fe.Field(),
		Reason: reasonFor(fe),
	}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return ReasonRequired
	case "phoneprefix":
		return ReasonPhonePrefix
	case "gte", "lte":
		return ReasonImportanceRange
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// String returns a pointer to s, for optional text fields
func String(s string) *string {
	return &s
}

// Float returns a pointer to f, for optional score fields
func Float(f float64) *float64 {
	return &f
}

// Int64 returns a pointer to i, for optional identifiers
func Int64(i int64) *int64 {
	return &i
}
