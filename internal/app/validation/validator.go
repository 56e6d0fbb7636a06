package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/middleware"
	domainmessaging "marketplace/internal/domain/messaging"
	domainuser "marketplace/internal/domain/user"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, "content", func(fl validator.FieldLevel) bool {
		_, err := domainmessaging.NormalizeContent(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "msgtype", func(fl validator.FieldLevel) bool {
		_, err := domainmessaging.ParseMessageType(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		_, err := domainuser.ParseRole(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct validates v against its `validate` tags and converts failures into
// an apperr validation error listing every offending field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return apperr.Internal(err)
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Internal(err)
	}
	fields := make([]apperr.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, apperr.FieldError{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Message: describe(fe),
		})
	}
	return apperr.Validation(fields...)
}

// StructValidator plugs Struct into the bus pipelines.
type StructValidator struct{}

func (StructValidator) Validate(_ context.Context, message any) error {
	if message == nil {
		return nil
	}
	rv := reflect.ValueOf(message)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return Struct(message)
}

var _ middleware.Validator = StructValidator{}

// fieldPath drops the top-level struct name and embedded struct names from
// the namespace, leaving the wire path ("attachments[0].url").
func fieldPath(fe validator.FieldError) string {
	segments := strings.Split(fe.Namespace(), ".")
	if len(segments) <= 1 {
		return fe.Field()
	}
	segments = segments[1:]
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		if i < len(segments)-1 && seg != "" && unicode.IsUpper([]rune(seg)[0]) {
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, ".")
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "content":
		return fmt.Sprintf("%s must be between %d and %d characters", field, domainmessaging.MinContentLength, domainmessaging.MaxContentLength)
	case "msgtype":
		return field + " must be one of text, image, file, system"
	case "role":
		return field + " must be individual or provider"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	case "url":
		return field + " must be an absolute url"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
