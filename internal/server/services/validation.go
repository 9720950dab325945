package services

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/go-playground/validator/v10"
)

// usernamePattern is the character set accepted in usernames.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-._@+]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags of in and folds every field error into
// a *common.ValidationError.
func validateStruct(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &common.ValidationError{Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return &common.ValidationError{Problems: problems}
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", name, fe.Param())
	case "email":
		return fmt.Sprintf("%s is not a valid email address.", name)
	case "username":
		return fmt.Sprintf("%s may only contain letters, digits and the characters -._@+", name)
	default:
		return fmt.Sprintf("%s is invalid.", name)
	}
}
