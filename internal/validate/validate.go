package validate

import (
	"regexp"
	"strings"
)

var (
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reLocale = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)
)

// MaxQty caps a single add so one request cannot drain a variant.
const MaxQty = 50

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Qty normalizes a requested quantity: anything below 1 becomes 1.
func Qty(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxQty {
		return MaxQty
	} // clamp to avoid abuse
	return n
}

func VariantID(id int64) bool { return id > 0 }

// ID validates an opaque identifier such as a user id or a client-held guest id.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Locale accepts "en" or "en-US" style tags; empty falls back to def.
func Locale(s, def string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, true
	}
	return s, reLocale.MatchString(s)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
