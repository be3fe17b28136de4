package payment

import (
	"strings"

	"storefront/internal/domain"
)

type Brand string

const (
	BrandVisa       Brand = "Visa"
	BrandMastercard Brand = "Mastercard"
	BrandAmex       Brand = "Amex"
	BrandDiscover   Brand = "Discover"
	BrandUnknown    Brand = "Unknown"
)

// Card is the raw card data supplied at checkout. It is only ever held in
// memory for the duration of a charge.
type Card struct {
	Number   string `json:"number"`
	Name     string `json:"name"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
	CVC      string `json:"cvc"`
}

// Digits keeps only the ASCII digits of a card number.
func Digits(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize strips spaces and dashes from a card number and rejects any
// other character, including non-ASCII digits.
func Normalize(number string) (string, error) {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", domain.Invalid(domain.ErrInvalidCheckout, "card number may only contain digits, spaces and dashes")
		}
	}
	return b.String(), nil
}

// DetectBrand infers the card network from the IIN prefix.
func DetectBrand(number string) Brand {
	n := Digits(number)
	switch {
	case strings.HasPrefix(n, "4"):
		return BrandVisa
	case hasRangePrefix(n, 2, 51, 55), hasRangePrefix(n, 4, 2221, 2720):
		return BrandMastercard
	case strings.HasPrefix(n, "34"), strings.HasPrefix(n, "37"):
		return BrandAmex
	case strings.HasPrefix(n, "6011"), strings.HasPrefix(n, "65"), hasRangePrefix(n, 3, 644, 649):
		return BrandDiscover
	}
	return BrandUnknown
}

// Last4 returns the last four digits of the card number.
func Last4(number string) string {
	n := Digits(number)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// Summary is the only card information that may be persisted.
type Summary struct {
	Brand Brand
	Last4 string
}

func Summarize(number string) Summary {
	return Summary{Brand: DetectBrand(number), Last4: Last4(number)}
}

func hasRangePrefix(n string, width, lo, hi int) bool {
	if len(n) < width {
		return false
	}
	v := 0
	for _, r := range n[:width] {
		v = v*10 + int(r-'0')
	}
	return v >= lo && v <= hi
}
