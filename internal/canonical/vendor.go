package canonical

import (
	"strings"
	"unicode"
)

// vendorAliases canonicalizes tokens that different data sources spell
// differently for the same kind of party.
var vendorAliases = map[string]string{
	"tankstelle":  "fuelstation",
	"tanken":      "fuelstation",
	"gasstation":  "fuelstation",
	"apotheke":    "pharmacy",
	"pharmacie":   "pharmacy",
	"supermarkt":  "supermarket",
	"lebensmittel": "supermarket",
	"versicherung": "insurance",
	"assekuranz":  "insurance",
	"telekom":     "telecom",
	"telefonica":  "telecom",
}

// genericVendorWords never count as the sole shared token between two
// party names; they appear in too many unrelated labels.
var genericVendorWords = map[string]bool{
	"karte": true, "card": true, "shop": true, "store": true,
	"service": true, "services": true, "online": true, "payment": true,
	"zahlung": true, "kauf": true, "markt": true, "center": true,
	"gruppe": true, "group": true, "holding": true, "international": true,
}

// VendorCompatible decides fuzzy equivalence between two party names.
// Exact equality after normalization always matches. Otherwise both names
// are tokenized and alias-canonicalized: two shared tokens suffice; a
// single shared token suffices only when one side is a short label (at
// most two tokens) and the token itself is specific enough (non-numeric,
// at least three characters, not a generic word). As a last resort, raw
// substring containment of one normalized name in the other matches.
//
// Short bank-statement fragments need the relaxed single-token branch, but
// generic words must never be the only evidence of a match.
func VendorCompatible(a, b string) bool {
	na := NormalizeVendor(a)
	nb := NormalizeVendor(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	tokensA := aliasTokens(na)
	tokensB := aliasTokens(nb)

	shared := sharedTokens(tokensA, tokensB)
	if len(shared) >= 2 {
		return true
	}

	if len(shared) == 1 && (len(tokensA) <= 2 || len(tokensB) <= 2) {
		tok := shared[0]
		if !isNumericToken(tok) && len(tok) >= 3 && !genericVendorWords[tok] {
			return true
		}
	}

	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func aliasTokens(normalized string) []string {
	tokens := strings.Fields(normalized)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if alias, ok := vendorAliases[tok]; ok {
			tok = alias
		}
		out = append(out, tok)
	}
	return out
}

func sharedTokens(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, tok := range b {
		if set[tok] && !seen[tok] {
			seen[tok] = true
			shared = append(shared, tok)
		}
	}
	return shared
}

func isNumericToken(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(tok) > 0
}
