package carrier

import (
	"strings"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const minPhoneLength = 11

// NormalizePhone converts raw input to international format: every character
// other than digits and '+' is dropped, a leading '+' is added when missing and
// the result must be at least 11 characters long.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}

	number := b.String()
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}

	if len(number) < minPhoneLength {
		return "", &domain.InvalidRecipientError{Number: raw}
	}

	return number, nil
}

// msisdn strips the leading '+' for providers that expect bare MSISDNs.
func msisdn(number string) string {
	return strings.TrimPrefix(number, "+")
}
