// Package validation plugs go-playground/validator into echo. Every failure
// becomes a 422 carrying one message per offending JSON field.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Rule registers a string-valued custom tag, e.g. the appointment status
// labels accepted on input.
type Rule struct {
	Tag   string
	Valid func(string) bool
}

type Validator struct {
	v *validator.Validate
}

func New(rules ...Rule) (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	for _, r := range rules {
		valid := r.Valid
		err := v.RegisterValidation(r.Tag, func(fl validator.FieldLevel) bool {
			field := fl.Field()
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					return true
				}
				field = field.Elem()
			}
			return field.Kind() == reflect.String && valid(field.String())
		})
		if err != nil {
			return nil, fmt.Errorf("register rule %s: %w", r.Tag, err)
		}
	}
	return &Validator{v: v}, nil
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "données invalides").SetInternal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = message(fe)
		}
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
		"error":  "données invalides",
		"fields": fields,
	})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "champ obligatoire"
	case "max":
		return fmt.Sprintf("%s caractères maximum", fe.Param())
	case "email":
		return "adresse email invalide"
	case "oneof":
		return fmt.Sprintf("valeurs acceptées: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("format attendu %s", fe.Param())
	case "gt":
		return fmt.Sprintf("doit être strictement supérieur à %s", fe.Param())
	case "gte":
		return fmt.Sprintf("doit être supérieur ou égal à %s", fe.Param())
	case "lt":
		return fmt.Sprintf("doit être strictement inférieur à %s", fe.Param())
	case "lte":
		return fmt.Sprintf("doit être inférieur ou égal à %s", fe.Param())
	default:
		return "valeur invalide"
	}
}

// BindAndValidate decodes the request body into req and validates it.
// Malformed JSON is a 400, a well-formed but invalid body a 422.
func BindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "corps de requête invalide").SetInternal(err)
	}
	return c.Validate(req)
}
