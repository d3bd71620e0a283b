package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPrice renders a display price as "<amount> <CODE>" with two
// decimal places, e.g. "19.90 USD". The Admin API returns amounts as
// decimal strings with varying precision ("19.9", "19.90", "19.9000").
// Returns false when the amount is unparseable or the currency is
// missing, so callers can omit the field instead of showing garbage.
//
// Examples: ("19.9", "usd") → "19.90 USD", ("", "USD") → ("", false)
func FormatPrice(amount, currency string) (string, bool) {
	amount = strings.TrimSpace(amount)
	currency = strings.TrimSpace(currency)
	if amount == "" || currency == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%.2f %s", f, strings.ToUpper(currency)), true
}
