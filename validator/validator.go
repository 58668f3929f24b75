// Package validator holds the submission checks that run before any
// sanitization or mail transport call. They are pure functions of the
// decoded request body.
package validator

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/topea/contact-backend/models"
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// ValidEmail reports whether addr matches the accepted address
// pattern. The raw string is tested as-is; internationalized domains
// must arrive already punycoded to pass.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// ASCIIEmail returns addr with its domain part converted to ASCII,
// for use in SMTP envelope fields. If the address has no domain or
// the conversion fails, addr is returned unchanged.
func ASCIIEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr
	}
	ascii, err := idna.ToASCII(addr[at+1:])
	if err != nil {
		return addr
	}
	return addr[:at+1] + ascii
}

// MissingRequired lists the required fields absent from the
// submission, in form order. An empty result means the submission has
// everything a genuine contact needs.
func MissingRequired(sub models.ContactSubmission) []string {
	var missing []string
	if sub.Name == "" {
		missing = append(missing, "name")
	}
	if sub.Email == "" {
		missing = append(missing, "email")
	}
	if sub.Message == "" {
		missing = append(missing, "message")
	}
	return missing
}
