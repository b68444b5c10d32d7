package payment

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// authPatterns match credentials that may be echoed back in upstream errors.
var authPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]{8,}=*`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
}

// Redactor scrubs configured secrets out of messages that leave the service.
type Redactor struct {
	secrets []string
}

// NewRedactor returns a Redactor for the given secrets. Empty strings are
// ignored.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// Redact replaces configured secrets and authorization credentials in msg
// with [REDACTED].
func (r *Redactor) Redact(msg string) string {
	if r != nil {
		for _, s := range r.secrets {
			msg = strings.ReplaceAll(msg, s, redacted)
		}
	}
	for _, re := range authPatterns {
		msg = re.ReplaceAllString(msg, redacted)
	}
	return msg
}
