// Package gid normalizes platform global identifiers (gid:// URIs).
// Order data arrives with product references in many shapes: canonical
// gids, variant gids, bare numeric ids, or decorated strings. Funnel
// triggers are stored canonically, so matching requires a single
// canonical form.
package gid

import (
	"strconv"
	"strings"
)

// ProductPrefix is the canonical product gid prefix.
const ProductPrefix = "gid://shopify/Product/"

// ToProductGID converts any product reference to its canonical gid form.
// The numeric id is the trailing run of digits in the input, so variant
// gids, URLs, and decorated ids all resolve to a product gid.
// Returns false when the input contains no digits.
//
// Examples:
//   - "gid://shopify/Product/123" → "gid://shopify/Product/123"
//   - "123"                       → "gid://shopify/Product/123"
//   - "product-123"               → "gid://shopify/Product/123"
//   - "abc"                       → "" (false)
func ToProductGID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, ProductPrefix) && isDigits(raw[len(ProductPrefix):]) {
		return raw, true
	}
	digits := trailingDigits(raw)
	if digits == "" {
		return "", false
	}
	return ProductPrefix + digits, true
}

// NormalizeSet canonicalizes a batch of product references.
// Inputs with no digits are dropped. Duplicates collapse to the first
// occurrence, preserving input order.
func NormalizeSet(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		g, ok := ToProductGID(r)
		if !ok {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// NumericIDs extracts the numeric id portion of each reference.
// Used to build REST listing queries, which take bare ids.
func NumericIDs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if d := trailingDigits(strings.TrimSpace(r)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// TrailingNumericID parses the trailing digit run as an integer.
// The change-set wire format wants variant ids as numbers, not gids.
func TrailingNumericID(raw string) (int64, bool) {
	digits := trailingDigits(strings.TrimSpace(raw))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// trailingDigits returns the last contiguous run of ASCII digits in s.
func trailingDigits(s string) string {
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] >= '0' && s[i] <= '9' {
			end = i
			break
		}
	}
	if end == -1 {
		return ""
	}
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	return s[start : end+1]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
