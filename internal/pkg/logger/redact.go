package logger

import "strings"

// RedactEmail masks an email address for logging: "mario.rossi@example.com"
// becomes "ma***@example.com" and local parts of one or two characters are
// fully masked. Import cells and submission payload values reach the logger
// uncleaned, so surrounding whitespace and quotes are dropped first.
func RedactEmail(email string) string {
	email = strings.Trim(strings.TrimSpace(email), `"'`)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
