package payment

import (
	"strings"

	"github.com/safisha/laundry-api/internal/pricing"
)

// NormalizeMSISDN rewrites a payer phone number into the international form
// the provider expects: local 0XXXXXXXXX becomes 254XXXXXXXXX, a leading +
// is stripped, any other prefix passes through unchanged.
func NormalizeMSISDN(phone string) (string, error) {
	msisdn := strings.TrimSpace(phone)
	msisdn = strings.ReplaceAll(msisdn, " ", "")
	msisdn = strings.TrimPrefix(msisdn, "+")

	if msisdn == "" {
		return "", &pricing.ValidationError{Field: "phone_number", Message: "phone number is required"}
	}
	for _, r := range msisdn {
		if r < '0' || r > '9' {
			return "", &pricing.ValidationError{Field: "phone_number", Message: "phone number must contain only digits"}
		}
	}

	if strings.HasPrefix(msisdn, "0") && len(msisdn) == 10 {
		msisdn = "254" + msisdn[1:]
	}

	if len(msisdn) < 9 || len(msisdn) > 15 {
		return "", &pricing.ValidationError{Field: "phone_number", Message: "phone number length is invalid"}
	}

	return msisdn, nil
}
