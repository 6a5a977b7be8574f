package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// ForLog masks candidate contact details before they reach a log line.
// Email local parts keep their first letter so different candidates stay
// distinguishable in the logs.
func ForLog(s string) string {
	s = emailPattern.ReplaceAllStringFunc(s, maskEmail)
	// Cards first, a long digit run would otherwise read as a phone number.
	s = cardPattern.ReplaceAllString(s, "[REDACTED_CARD]")
	return phonePattern.ReplaceAllString(s, "[REDACTED_PHONE]")
}

// ErrForLog is ForLog applied to an error message. Downstream replies are
// echoed into errors and may carry candidate details.
func ErrForLog(err error) string {
	if err == nil {
		return "<nil>"
	}
	return ForLog(err.Error())
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "[REDACTED_EMAIL]"
	}
	return email[:1] + "***" + email[at:]
}
