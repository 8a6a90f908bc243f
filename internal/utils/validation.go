package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail reports whether an email address passes validator's email rule.
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}
