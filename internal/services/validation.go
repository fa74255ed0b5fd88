package services

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("gender", oneOf(types.Genders))
	_ = v.RegisterValidation("profession", oneOf(types.Professions))
	return v
}

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(values, fl.Field().String())
	}
}

// validateStruct runs the struct tags of s and reports the first failure
// as a ValidationError with a message meant for end users.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	return apperr.Validation(fieldMessage(ve[0]))
}

func fieldMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required field", field)
	case "email":
		return "Please provide a valid email!"
	case "eqfield":
		return "Incorrect match!"
	case "gender":
		return "this gender does not exist in the world!"
	case "profession":
		return "This profession does not exist here"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be less than %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be greater than %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s cannot be greater than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
