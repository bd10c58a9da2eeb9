package engine

import (
	"strings"

	"github.com/FloHo800101/belegcockpit/internal/canonical"
	"github.com/FloHo800101/belegcockpit/internal/models"
)

// containsAnyKeyword reports whether any keyword of the list occurs in the
// normalized text.
func containsAnyKeyword(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	normalized := canonical.NormalizeText(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// txHasKeyword checks the transaction text and vendor label.
func txHasKeyword(tx *models.Transaction, keywords []string) bool {
	return containsAnyKeyword(tx.Text, keywords) || containsAnyKeyword(tx.Vendor, keywords)
}

// docHasKeyword checks the document free text.
func docHasKeyword(doc *models.Document, keywords []string) bool {
	return containsAnyKeyword(doc.Text, keywords)
}

// invoiceNoMatches checks the document's invoice number against the
// transaction text, and conversely a number extracted from the transaction
// text against the document's.
func invoiceNoMatches(doc *models.Document, tx *models.Transaction) bool {
	if doc.InvoiceNo != "" && canonical.MatchInvoiceNoInText(doc.InvoiceNo, tx.Text) {
		return true
	}
	if doc.InvoiceNo != "" {
		if extracted := canonical.ExtractInvoiceNo(tx.Text); extracted != "" {
			return canonical.CanonCompact(extracted) == canonical.CanonCompact(doc.InvoiceNo)
		}
	}
	return false
}

// vendorsCompatible compares the transaction counterparty against the
// document's vendor, falling back to the buyer for incoming payments.
func vendorsCompatible(doc *models.Document, tx *models.Transaction) bool {
	if canonical.VendorCompatible(doc.Vendor, tx.Vendor) {
		return true
	}
	if tx.Direction == models.DirectionIn && doc.Buyer != "" {
		return canonical.VendorCompatible(doc.Buyer, tx.Vendor)
	}
	return false
}

// BuildFeatures computes the feature vector of one document/transaction
// pairing. The vector is computed once and never mutated afterwards.
func BuildFeatures(doc *models.Document, tx *models.Transaction, cfg *Config) models.FeatureVector {
	window := DocDateWindow(doc, cfg)

	fv := models.FeatureVector{
		DayDelta:         window.DayDelta(tx.BookingDate),
		InWindow:         window.Contains(tx.BookingDate),
		IBANMatch:        identityEqual(doc.IBAN, tx.IBAN),
		EndToEndMatch:    identityEqual(doc.EndToEnd, tx.EndToEnd),
		InvoiceNoMatch:   invoiceNoMatches(doc, tx),
		PartialKeyword:   txHasKeyword(tx, cfg.Keywords.Partial) || docHasKeyword(doc, cfg.Keywords.Partial),
		BatchKeyword:     txHasKeyword(tx, cfg.Keywords.Batch),
		VendorCompatible: vendorsCompatible(doc, tx),
	}

	target := doc.TargetAmount()
	if value := TxAmountForCurrency(tx, doc.Currency); value != nil {
		fv.AmountDelta = value.Sub(target).Abs()
		if match, ok := ResolveDocAmountMatch(doc, *value, cfg); ok {
			fv.AmountResolved = true
			fv.ViaCandidate = match.ViaCandidate
		}
	} else {
		// No common currency: the delta is the full target.
		fv.AmountDelta = target
	}

	return fv
}

// identityEqual compares two identifiers after canonicalization; empty
// values never match.
func identityEqual(a, b string) bool {
	ca := canonical.CanonID(a)
	cb := canonical.CanonID(b)
	return ca != "" && ca == cb
}
