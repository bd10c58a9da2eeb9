package canonical

import (
	"strings"
	"unicode"
)

// invoiceTriggers are nouns that announce an invoice number in free text.
var invoiceTriggers = map[string]bool{
	"rechnung": true, "rechnungsnr": true, "rechnungsnummer": true,
	"invoice": true, "beleg": true, "belegnr": true, "ref": true,
	"reference": true, "referenz": true, "bill": true, "faktura": true,
	"rg": true, "re": true,
}

// invoiceSeparators are tokens skipped between a trigger and the number.
var invoiceSeparators = map[string]bool{
	"nr": true, "no": true, "num": true, "nummer": true, "number": true,
	"#": true, ":": true, "-": true,
}

// ExtractInvoiceNo scans noisy free text for an invoice number. The
// extraction is precision-biased: a token following an invoice noun is
// accepted when it looks strong (alphanumeric, 4-26 characters, contains a
// digit, not all letters). Without a trigger, a lone weak token (at least
// two digits, 5-20 characters) is accepted only so real numbers are not
// missed entirely. Returns the empty string rather than a doubtful guess.
func ExtractInvoiceNo(text string) string {
	if text == "" {
		return ""
	}
	tokens := invoiceTokens(text)

	for i, tok := range tokens {
		if !invoiceTriggers[strings.ToLower(tok)] {
			continue
		}
		for j := i + 1; j < len(tokens); j++ {
			next := tokens[j]
			if invoiceSeparators[strings.ToLower(next)] {
				continue
			}
			if isStrongInvoiceToken(next) {
				return CanonID(next)
			}
			break
		}
	}

	// Fallback: accept a single weak candidate, never more than one.
	var weak string
	for _, tok := range tokens {
		if !isWeakInvoiceToken(tok) {
			continue
		}
		if weak != "" {
			return ""
		}
		weak = tok
	}
	return CanonID(weak)
}

// invoiceTokens splits raw text on whitespace, keeping alphanumerics plus
// the separator characters (-/._) that frequently appear inside numbers.
func invoiceTokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == '-' || r == '/' || r == '.' || r == '_' || r == '#' || r == ':':
			return r
		default:
			return ' '
		}
	}, text)
	return strings.Fields(cleaned)
}

func isStrongInvoiceToken(tok string) bool {
	tok = strings.Trim(tok, ".:,;")
	n := len(tok)
	if n < 4 || n > 26 {
		return false
	}
	digits := 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
		case r == '-' || r == '/' || r == '.' || r == '_':
		default:
			return false
		}
	}
	return digits > 0
}

func isWeakInvoiceToken(tok string) bool {
	tok = strings.Trim(tok, ".:,;")
	n := len(tok)
	if n < 5 || n > 20 {
		return false
	}
	digits := 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
		case r == '-' || r == '/':
		default:
			return false
		}
	}
	return digits >= 2
}

// MatchInvoiceNoInText reports whether the invoice number appears in the
// text. Purely numeric needles must match on a non-digit boundary so "1234"
// never matches inside "91234567"; alphanumeric needles need at least four
// canonical characters and are located as a compacted substring.
func MatchInvoiceNoInText(invoiceNo, text string) bool {
	needle := CanonCompact(invoiceNo)
	if needle == "" {
		return false
	}

	if isAllDigits(needle) {
		return matchNumericBounded(needle, text)
	}

	if len(needle) < 4 {
		return false
	}
	return strings.Contains(CanonCompact(text), needle)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// matchNumericBounded locates needle in text requiring non-digit (or edge)
// boundaries on both sides. The haystack keeps digits in place so runs of
// digits are never merged across separators that the bank kept spaces in.
func matchNumericBounded(needle, text string) bool {
	hay := strings.ToUpper(text)
	for i := 0; i+len(needle) <= len(hay); i++ {
		if hay[i:i+len(needle)] != needle {
			continue
		}
		if i > 0 && hay[i-1] >= '0' && hay[i-1] <= '9' {
			continue
		}
		end := i + len(needle)
		if end < len(hay) && hay[end] >= '0' && hay[end] <= '9' {
			continue
		}
		return true
	}
	return false
}
