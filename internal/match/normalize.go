package match

import (
	"strings"
	"unicode"
)

// NormalizeIdent folds an identifier to its comparable form: camel-case and
// separators are dropped and the result is lower case.
//   - "OrderID", "order_id", "order-id" -> "orderid"
func NormalizeIdent(s string) string {
	return strings.ToLower(strings.Join(Tokens(s), ""))
}

// identSuffixes are stripped by NormalizeIdentWithSuffixStrip, longest first.
var identSuffixes = []string{"timestamp", "ids", "utc", "id", "at"}

// NormalizeIdentWithSuffixStrip normalizes s and drops one trailing suffix
// token such as "id" or "at", so "CustomerID" compares equal to "Customer".
func NormalizeIdentWithSuffixStrip(s string) string {
	normalized := NormalizeIdent(s)

	for _, suffix := range identSuffixes {
		if len(normalized) > len(suffix) && strings.HasSuffix(normalized, suffix) {
			return strings.TrimSuffix(normalized, suffix)
		}
	}

	return normalized
}

// Tokens splits a CamelCase, camelCase or snake_case identifier into its words,
// keeping their case. Acronyms stay together.
//   - "OrderID" -> ["Order", "ID"]
//   - "XMLParser" -> ["XML", "Parser"]
//   - "customer_address_city" -> ["customer", "address", "city"]
func Tokens(s string) []string {
	if s == "" {
		return nil
	}

	var (
		tokens  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}

		if i > 0 && startsToken(runes, i) {
			flush()
		}

		current.WriteRune(r)
	}

	flush()

	return tokens
}

// TokenizeIdent splits an identifier into lower-case tokens.
func TokenizeIdent(s string) []string {
	tokens := Tokens(s)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}

	return tokens
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}

func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]

	if isSeparator(prev) || !unicode.IsUpper(r) {
		return false
	}

	// "orderID": lower to upper
	if !unicode.IsUpper(prev) {
		return true
	}

	// "XMLParser": the last capital of an acronym opens the next word
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
