// Package validation checks identifiers taken from request paths before they
// reach the engine.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxAreaIDLength bounds an area ID in runes.
const MaxAreaIDLength = 64

// ErrAreaIDEmpty is returned when the ID is empty or whitespace-only after trim.
var ErrAreaIDEmpty = errors.New("area id is required")

// ErrAreaIDTooLong is returned when the ID exceeds MaxAreaIDLength.
var ErrAreaIDTooLong = errors.New("area id too long")

// ErrAreaIDInvalidChars is returned when the ID contains disallowed characters.
var ErrAreaIDInvalidChars = errors.New("area id contains invalid characters")

// ValidateAreaID trims input and restricts it to letters, digits, underscore
// and hyphen. Returns the trimmed ID or an error suitable for a 400
// INVALID_AREA response. Catalog membership is checked by the engine.
func ValidateAreaID(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrAreaIDEmpty
	}
	if len(r) > MaxAreaIDLength {
		return "", ErrAreaIDTooLong
	}
	for _, c := range r {
		if !isAllowedIDRune(c) {
			return "", ErrAreaIDInvalidChars
		}
	}
	return s, nil
}

func isAllowedIDRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return r == '_' || r == '-'
}
