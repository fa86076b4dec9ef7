package security

import "regexp"

type secretPattern struct {
	regex      *regexp.Regexp
	redactWith string
}

var secretPatterns = []secretPattern{
	{regexp.MustCompile(`eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+`), "eyJ****"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.=]{8,}`), "Bearer ****"},
	{regexp.MustCompile(`\b(sk|gsk|pk)[-_][a-zA-Z0-9\-_]{16,}`), "sk-****"},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "AIza****"},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|access[_-]?key)['"]?\s*[:=]\s*['"]?[0-9a-zA-Z\-_]{16,}['"]?`), "API_KEY****"},
	{regexp.MustCompile(`(?i)(secret|password|passwd|token)['"]?\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`), "SECRET****"},
}

// RedactSecrets masks credentials that upstream services sometimes echo
// back in error bodies.
func RedactSecrets(input string) string {
	for _, p := range secretPatterns {
		input = p.regex.ReplaceAllString(input, p.redactWith)
	}
	return input
}

// HasSecrets reports whether RedactSecrets would change input.
func HasSecrets(input string) bool {
	for _, p := range secretPatterns {
		if p.regex.MatchString(input) {
			return true
		}
	}
	return false
}
