package security

import (
	"regexp"
	"strings"
	"unicode"
)

const maxPromptField = 80

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|above)\s+(instructions?|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+\w+`),
	regexp.MustCompile(`(?i)(pretend|act|simulate)\s+(that\s+)?you\s+are`),
	regexp.MustCompile(`(?i)(override|bypass)\s+(all\s+)?(rules?|restrictions?|filters?)`),
	regexp.MustCompile(`(?i)system:\s*you\s+must`),
	regexp.MustCompile(`<\|[^|]*\|>`),
	regexp.MustCompile(`(?i)\[/?system\]`),
	regexp.MustCompile(`(?i)###\s*(instruction|system)`),
}

// DetectPromptInjection reports whether input looks like an attempt to
// steer the summarizer.
func DetectPromptInjection(input string) bool {
	for _, re := range injectionPatterns {
		if re.MatchString(input) {
			return true
		}
	}
	return false
}

// PromptSafe flattens a user-supplied value for embedding in a prompt:
// one line, no control characters, no instruction-like phrases and at
// most a short label's length.
func PromptSafe(input string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	for _, re := range injectionPatterns {
		s = re.ReplaceAllString(s, "[removed]")
	}

	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxPromptField {
		s = string(r[:maxPromptField]) + "..."
	}
	return s
}
