// Package validation checks request payloads and account fields.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	PasswordMinLength = 5
	PasswordMaxLength = 128
	UsernameMaxLength = 150
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator. Field names in errors follow json tags,
// and "username" and "password" are available as tags.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// FieldError is one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors lists every failed field of a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Struct validates v. Failures come back as Errors.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. Letters, digits and @/./+/-/_ only."
	case "password":
		return fmt.Sprintf("Ensure this field has between %d and %d characters.", PasswordMinLength, PasswordMaxLength)
	case "min":
		if e.Kind() == reflect.String {
			return "Ensure this field has at least " + e.Param() + " characters."
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Ensure this field has no more than " + e.Param() + " characters."
		}
		return "Must be at most " + e.Param()
	case "eqfield":
		return "Password fields didn't match."
	case "gt":
		return "Must be greater than " + e.Param()
	default:
		return "Invalid value."
	}
}

// ValidatePassword enforces the length bounds on a new password.
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters long", PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return fmt.Errorf("password must not exceed %d characters", PasswordMaxLength)
	}
	return nil
}

// ValidateUsername accepts up to 150 letters, digits and @ . + - _.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if len(username) > UsernameMaxLength {
		return fmt.Errorf("username must not exceed %d characters", UsernameMaxLength)
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username can only contain letters, digits and @/./+/-/_")
	}
	return nil
}

// ValidateEmail checks address syntax and the 254 character limit.
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return errors.New("email must not exceed 254 characters")
	}
	if err := Validator().Var(email, "required,email"); err != nil {
		return errors.New("invalid email format")
	}
	return nil
}
