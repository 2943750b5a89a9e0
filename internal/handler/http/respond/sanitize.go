package respond

import "regexp"

// Credential shapes that must never reach logs. Bearer tokens go first so the
// broader api_key pattern does not clip them.
var credentialPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/-]{8,}=*`), "Bearer ****"},
	{regexp.MustCompile(`(?i)(api[_-]?key["'=: ]+)[a-zA-Z0-9._-]{8,}`), "${1}****"},
	{regexp.MustCompile(`://([^:]+):([^@]+)@`), "://$1:****@"}, // DSN passwords
}

// SanitizeError masks credentials embedded in an error message.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, p := range credentialPatterns {
		msg = p.re.ReplaceAllString(msg, p.repl)
	}
	return msg
}
