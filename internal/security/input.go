// Package security validates user-supplied text and keeps it and secrets
// out of places they do not belong: the summarizer prompt and the logs.
package security

import (
	"unicode"
	"unicode/utf8"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxNotesLength       = 1000

	maxRepetition = 50
)

// ValidateText checks one free-text field. Newlines and tabs are allowed,
// other control characters are not.
func ValidateText(field, input string, maxLen int) error {
	if !utf8.ValidString(input) {
		return apperrors.ErrInvalidInput.Withf("%s is not valid UTF-8", field)
	}
	if maxLen > 0 && utf8.RuneCountInString(input) > maxLen {
		return apperrors.ErrInvalidInput.Withf("%s exceeds %d characters", field, maxLen)
	}

	for _, r := range input {
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return apperrors.ErrInvalidInput.Withf("%s contains control characters", field)
		}
	}

	if hasExcessiveRepetition(input, maxRepetition) {
		return apperrors.ErrInvalidInput.Withf("%s has excessive repetition", field)
	}
	return nil
}

func hasExcessiveRepetition(input string, maxLen int) bool {
	if len(input) <= maxLen {
		return false
	}

	var prev rune
	count := 0
	for _, r := range input {
		if r == prev {
			count++
			if count > maxLen {
				return true
			}
			continue
		}
		prev, count = r, 1
	}
	return false
}
