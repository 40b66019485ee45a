// Package validator wraps go-playground struct validation for the board API.
// Board clients match failures by JSON field name, so errors report the json
// tag instead of the Go field name.
package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	setupOnce sync.Once
	validate  *validator.Validate
)

// ValidationError is one failed rule on one request field.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors aggregates every failed rule for a request payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, failure := range v {
		rule := failure.Tag
		if failure.Param != "" {
			rule += "=" + failure.Param
		}
		parts[i] = fmt.Sprintf("%s violates %s", failure.Field, rule)
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct checks s against its validate tags and returns
// ValidationErrors keyed by JSON field name when any rule fails.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// RegisterRule installs a named custom rule, such as the retro phase check
// the HTTP handlers add for phase-change requests.
func RegisterRule(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func getValidator() *validator.Validate {
	setupOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name := fld.Tag.Get("json")
	if comma := strings.Index(name, ","); comma != -1 {
		name = name[:comma]
	}
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
