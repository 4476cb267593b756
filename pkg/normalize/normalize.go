// Package normalize maps raw inquiry form strings onto canonical contact and
// booking values. Every function is pure; invalid input yields ok=false rather
// than an error so callers can keep a degraded record.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultCountryCode is prefixed to ten-digit domestic numbers.
const DefaultCountryCode = "1"

// Budget bands.
const (
	BudgetUnder3k  = "under_3k"
	Budget3kTo5k   = "3k_5k"
	Budget5kTo10k  = "5k_10k"
	Budget10kTo20k = "10k_20k"
	Budget20kPlus  = "20k_plus"
)

const isoDate = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// integer with optional thousands separators, an optional short decimal
	// part and an optional k suffix
	budgetPattern = regexp.MustCompile(`(\d{1,3}(?:[,.]\d{3})+|\d+)(?:[.,](\d{1,2}))?\s*([kK])?`)

	dateLayouts = []string{
		isoDate,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
	}
)

// Email lowercases and trims the address and checks a local@domain.tld shape.
func Email(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !emailPattern.MatchString(email) {
		return "", false
	}
	return email, true
}

// Phone is a best-effort E.164 heuristic, not telecom validation:
//   - fewer than 10 digits is rejected
//   - an explicit '+' with 10-15 digits passes through
//   - 10 digits is treated as domestic and gets countryCode
//   - 11 digits starting with the trunk digit (countryCode) is already qualified
//   - other 11-15 digit inputs are assumed to be missing their '+'
//   - more than 15 digits is rejected
func Phone(raw, countryCode string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	explicitPlus := strings.HasPrefix(trimmed, "+")

	digits := digitsOnly(trimmed)
	n := len(digits)
	switch {
	case n < 10 || n > 15:
		return "", false
	case explicitPlus:
		return "+" + digits, true
	case n == 10:
		return "+" + countryCode + digits, true
	case n == 11 && strings.HasPrefix(digits, countryCode):
		return "+" + digits, true
	default:
		return "+" + digits, true
	}
}

// Name splits a full name on whitespace. Empty input yields two empty strings.
func Name(raw string) (first, last string) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// BudgetBucket classifies the first amount in free text into a fixed band.
func BudgetBucket(raw string) (string, bool) {
	amount, ok := firstAmount(raw)
	if !ok {
		return "", false
	}
	switch {
	case amount < 3000:
		return BudgetUnder3k, true
	case amount < 5000:
		return Budget3kTo5k, true
	case amount < 10000:
		return Budget5kTo10k, true
	case amount < 20000:
		return Budget10kTo20k, true
	default:
		return Budget20kPlus, true
	}
}

func firstAmount(raw string) (int, bool) {
	loc := budgetPattern.FindStringSubmatchIndex(raw)
	if loc == nil {
		return 0, false
	}
	number := strings.NewReplacer(",", "", ".", "").Replace(raw[loc[2]:loc[3]])
	amount, err := strconv.Atoi(number)
	if err != nil {
		return 0, false
	}
	// a trailing k only counts as a multiplier when it is not the start of a word ("5 kids")
	if loc[6] >= 0 && (loc[7] == len(raw) || !unicode.IsLetter(rune(raw[loc[7]]))) {
		amount *= 1000
		if loc[4] >= 0 {
			fraction := raw[loc[4]:loc[5]]
			// "12.5k" is 12500, "12.25k" is 12250
			part, _ := strconv.Atoi((fraction + "00")[:3])
			amount += part
		}
	}
	return amount, true
}

// Date converts a handful of common form formats to YYYY-MM-DD.
func Date(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

// Guests accepts positive integers only.
func Guests(n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// Text trims and collapses internal whitespace; empty results report false.
func Text(raw string) (string, bool) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	return collapsed, collapsed != ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
