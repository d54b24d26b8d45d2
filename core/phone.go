package core

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPhoneNumber = errors.New("core: invalid phone number")

const (
	phoneMinDigits = 8
	phoneMaxDigits = 15
)

// NormalizePhone canonicalizes a raw phone number into the +<digits> form
// used as the only equality key across the relay. Formatting characters
// (spaces, dashes, dots, parentheses) are stripped; bare 10-digit numbers
// are assumed NANP and prefixed with +1; 11-digit numbers must lead with 1.
// Anything else fails closed with ErrInvalidPhoneNumber. The function is
// idempotent: its output normalizes to itself.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPhoneNumber)
	}

	hasPlus := strings.HasPrefix(trimmed, "+")
	if hasPlus {
		trimmed = trimmed[1:]
	}

	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			continue
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidPhoneNumber, r, raw)
		}
	}

	n := digits.String()
	if hasPlus {
		if len(n) < phoneMinDigits || len(n) > phoneMaxDigits {
			return "", fmt.Errorf("%w: %d digits in %q", ErrInvalidPhoneNumber, len(n), raw)
		}
		return "+" + n, nil
	}

	switch len(n) {
	case 10:
		return "+1" + n, nil
	case 11:
		if n[0] != '1' {
			return "", fmt.Errorf("%w: 11 digits without leading 1 in %q", ErrInvalidPhoneNumber, raw)
		}
		return "+" + n, nil
	default:
		return "", fmt.Errorf("%w: %d digits without country prefix in %q", ErrInvalidPhoneNumber, len(n), raw)
	}
}

// SamePhone compares two raw numbers by canonical form. Unparseable input
// never matches anything, including itself.
func SamePhone(a, b string) bool {
	na, errA := NormalizePhone(a)
	nb, errB := NormalizePhone(b)
	if errA != nil || errB != nil {
		return false
	}
	return na == nb
}
