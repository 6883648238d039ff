package mpesa

import (
	"regexp"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidPhone is returned for numbers that are not Kenyan mobile
// numbers.
var ErrInvalidPhone = errors.New("invalid Kenyan phone number")

// Accepted after normalization: 254 followed by a 7xx or 1xx mobile prefix
// and eight more digits.
var phonePattern = regexp.MustCompile(`^254(7|1)\d{8}$`)

// NormalizePhone converts common Kenyan phone formats (07XXXXXXXX,
// +2547XXXXXXXX, 2547XXXXXXXX, 01XXXXXXXX) to the canonical 254XXXXXXXXX
// form the gateway expects.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")

	switch {
	case strings.HasPrefix(p, "254"):
		// already canonical form, validated below
	case strings.HasPrefix(p, "0") && len(p) == 10:
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}

	if !phonePattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}
