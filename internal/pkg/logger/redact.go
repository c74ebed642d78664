package logger

import "strings"

// RedactEmail masks an address for safe logging:
// "john.doe@example.com" → "jo***@example.com". Local parts of two
// characters or fewer are fully masked, and values that do not look like
// an address at all come back as "***@***".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
