// Package sanitizer normalizes and scrubs the user-supplied strings that
// flow through the OAuth pipeline: emails from providers, display names
// derived from them, and error text surfaced to browsers.
package sanitizer

import (
	"regexp"
	"strings"
)

var (
	dotRegex    = regexp.MustCompile(`\.{2,}`)
	markupChars = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "")
)

// NormalizeEmail lowercases the address, trims whitespace, and collapses
// consecutive dots in the local part.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := dotRegex.ReplaceAllString(parts[0], ".")
	local = strings.Trim(local, ".")

	return local + "@" + parts[1]
}

// EmailDomain returns the lowercased domain part of an address, or "" when
// the input is not an email.
func EmailDomain(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// EmailLocalPart returns the part before the "@", used as a fallback display
// name when a provider profile carries no name.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	return email[:at]
}

// ScrubMessage strips markup-significant characters from text that is
// interpolated into an HTML callback page. The output is plain text only.
func ScrubMessage(s string) string {
	return strings.TrimSpace(markupChars.Replace(s))
}
