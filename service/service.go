// Package service holds the forum's business rules: the user directory, the
// post store and the message store. Services validate input, call the
// repositories and translate storage failures into apperr kinds.
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"offerland/apperr"

	"github.com/go-playground/validator/v10"
)

// Services groups the three domain services wired in main.
type Services struct {
	Users    *UserService
	Posts    *PostService
	Messages *MessageService
}

var validate = validator.New()

// checkLength counts code points, not bytes. max <= 0 means unbounded.
func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	switch {
	case max <= 0:
		if n < min {
			return apperr.Validation(fmt.Sprintf("%s must be at least %d characters", field, min))
		}
	case min <= 0:
		if n > max {
			return apperr.Validation(fmt.Sprintf("%s cannot exceed %d characters", field, max))
		}
	case n < min || n > max:
		return apperr.Validation(fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return nil
}

func isEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func isURL(s string) bool {
	return validate.Var(s, "required,url") == nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
