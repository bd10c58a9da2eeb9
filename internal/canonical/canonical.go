// Package canonical normalizes the noisy text and identifier fields of
// documents and bank transactions into the canonical forms every matching
// component compares on.
//
// The package deals with three different classes of input:
//   - Free text (booking purposes, OCR output): lowercased, diacritics
//     stripped, punctuation collapsed.
//   - Party names: additionally tokenized with legal-form suffixes and
//     stop-words removed.
//   - Identifiers (IBAN, end-to-end id): uppercased and compacted; equality
//     on these is exact, never fuzzy.
//
// All functions are pure and total: empty input yields empty output, and
// normalization is idempotent.
package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFKD and removes combining marks, turning
// "ü" into "u" and "é" into "e".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// legalForms are company suffixes dropped during vendor normalization.
var legalForms = map[string]bool{
	"gmbh": true, "ag": true, "ug": true, "kg": true, "ohg": true,
	"gbr": true, "mbh": true, "co": true, "se": true, "ev": true,
	"ltd": true, "llc": true, "inc": true, "corp": true, "plc": true,
	"sarl": true, "bv": true, "nv": true, "oy": true, "ab": true,
	"sa": true, "spa": true, "srl": true,
}

// vendorStopwords are filler words that carry no identity in party names.
var vendorStopwords = map[string]bool{
	"und": true, "and": true, "the": true, "der": true, "die": true,
	"das": true, "von": true, "of": true, "for": true, "fuer": true,
}

// NormalizeText lowercases, strips diacritics and collapses every run of
// non-alphanumeric characters to a single space. The result is trimmed.
// NormalizeText(NormalizeText(x)) == NormalizeText(x) for all x.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	lowered := strings.ToLower(s)
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		// Transform failures fall back to the lowered input; the
		// collapse below still yields a usable form.
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}

// NormalizeVendor normalizes a party name and drops legal-form suffixes and
// stop-words. Returns the empty string when nothing identifying remains.
func NormalizeVendor(s string) string {
	normalized := NormalizeText(s)
	if normalized == "" {
		return ""
	}

	tokens := strings.Fields(normalized)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if legalForms[tok] || vendorStopwords[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		// A name made solely of legal forms still identifies better
		// than nothing; keep the normalized form.
		return normalized
	}
	return strings.Join(kept, " ")
}

// CanonID trims, uppercases and removes internal whitespace. Used for IBAN
// and end-to-end identifiers, which must compare exactly after
// canonicalization.
func CanonID(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if !strings.ContainsFunc(upper, unicode.IsSpace) {
		return upper
	}
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CanonCompact uppercases and keeps only letters and digits. Used when an
// identifier must be located inside free text regardless of separators.
func CanonCompact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
