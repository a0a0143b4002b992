package mpesa

import (
	"errors"
	"strings"
)

// ErrInvalidPhone means the number cannot be normalized to a Kenyan MSISDN
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a user-entered phone number into the canonical
// 254XXXXXXXXX form the Daraja API expects. It accepts local (07XX...),
// bare (7XX...), international (2547XX...) and formatted inputs.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()

	if len(s) < 9 || len(s) > 12 {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(s, "254"):
		// Already carries the country prefix; pass through unchanged
		return s, nil
	case strings.HasPrefix(s, "0"):
		if len(s) != 10 {
			return "", ErrInvalidPhone
		}
		return "254" + s[1:], nil
	case len(s) == 9:
		return "254" + s, nil
	default:
		return "", ErrInvalidPhone
	}
}
