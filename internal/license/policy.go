package license

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

const (
	minCustomKeyLen = 8
	maxCustomKeyLen = 64
	minKeyScore     = 2
)

// ValidateCustomKey applies the policy for user-supplied key text and returns
// the trimmed key.
func ValidateCustomKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	n := utf8.RuneCountInString(key)
	if n < minCustomKeyLen {
		return "", errors.New("key must be at least 8 characters long")
	}
	if n > maxCustomKeyLen {
		return "", errors.New("key must be at most 64 characters long")
	}
	if hasSpaceOrControl(key) {
		return "", errors.New("key must not contain whitespace or control characters")
	}
	if Valid(key) {
		return key, nil
	}
	if zxcvbn.PasswordStrength(key, nil).Score < minKeyScore {
		return "", errors.New("key is too easy to guess")
	}
	return key, nil
}

func hasSpaceOrControl(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return true
		}
	}
	return false
}
