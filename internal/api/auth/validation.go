package auth

import (
	"regexp"
	"strings"
	"unicode"
)

// passwordSymbols is the punctuation set that satisfies the symbol rule.
const passwordSymbols = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~\\"

// emailShape checks the simple local@domain.tld form. Full RFC 5322
// validation is deliberately out of scope.
var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether email has the expected shape.
func ValidEmail(email string) bool {
	return emailShape.MatchString(email)
}

// ValidatePassword returns every rule the candidate password violates, not
// just the first. An empty slice means the password is acceptable.
func ValidatePassword(password string) []string {
	var failures []string

	if len(password) < 8 {
		failures = append(failures, "password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		failures = append(failures, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		failures = append(failures, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		failures = append(failures, "password must contain at least one digit")
	}
	if !hasSymbol {
		failures = append(failures, "password must contain at least one symbol")
	}

	return failures
}
