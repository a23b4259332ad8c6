package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks submissions against a fixed set of Rules. It is safe for
// concurrent use.
type Validator struct {
	rules    Rules
	validate *validator.Validate
}

func NewValidator(rules Rules) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s: %v", tag, err))
		}
	}
	must("personname", func(fl validator.FieldLevel) bool {
		return personNameRegex.MatchString(fl.Field().String())
	})
	must("noterms", func(fl validator.FieldLevel) bool {
		name := strings.ToLower(fl.Field().String())
		for _, term := range rules.RestrictedTerms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" && strings.Contains(name, term) {
				return false
			}
		}
		return true
	})
	must("notdomain", func(fl validator.FieldLevel) bool {
		return !HasDomainSuffix(fl.Field().String(), rules.BlockedDomains)
	})
	must("nourl", func(fl validator.FieldLevel) bool {
		return !ContainsURL(fl.Field().String())
	})
	must("maxurls", func(fl validator.FieldLevel) bool {
		return CountURLs(fl.Field().String()) <= rules.MaxMessageURLs
	})

	return &Validator{rules: rules, validate: v}
}

// Validate returns nil when s passes every rule. Otherwise every offending
// field is reported once, with the first rule it failed.
func (v *Validator) Validate(s Submission) FieldErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": "invalid submission"}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = v.describe(fe)
	}
	return out
}

func (v *Validator) describe(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "personname":
		return "Name can only contain letters, spaces, hyphens and apostrophes"
	case "noterms":
		return "Name contains a restricted term"
	case "email":
		return "Please enter a valid email address"
	case "notdomain":
		return "Please use a real email address"
	case "nourl":
		return "Subject cannot contain links"
	case "maxurls":
		return fmt.Sprintf("Message cannot contain more than %d links", v.rules.MaxMessageURLs)
	default:
		return label + " is invalid"
	}
}

func fieldLabel(field string) string {
	if field == "" {
		return "Field"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}
