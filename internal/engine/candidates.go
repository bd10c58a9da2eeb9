package engine

import (
	"sort"
	"strings"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// CandidateOptions tunes candidate generation for special passes.
type CandidateOptions struct {
	// IncludeLinked also considers fully linked documents; only the
	// recurring-transaction reuse pass sets this.
	IncludeLinked bool
}

// CandidatesForTransaction filters and scores the documents that may settle
// the given transaction. A document qualifies when it shares the tenant,
// is in a matchable link state, supports the transaction's currency, and
// either lies inside its date window or carries signals strong enough to
// override an out-of-window booking. Each surviving pairing gets exactly
// one feature vector.
func CandidatesForTransaction(tx *models.Transaction, docs []*models.Document, cfg *Config, opts CandidateOptions) []*models.DocCandidate {
	var out []*models.DocCandidate

	for _, doc := range docs {
		if !sameTenant(doc.TenantID, tx.TenantID) {
			continue
		}
		if !doc.LinkState.IsMatchable() && !(opts.IncludeLinked && doc.LinkState == models.LinkStateLinked) {
			continue
		}
		if TxAmountForCurrency(tx, doc.Currency) == nil {
			continue
		}

		fv := BuildFeatures(doc, tx, cfg)
		if !fv.InWindow && !strongOutOfWindow(doc, tx, fv, cfg) {
			continue
		}

		out = append(out, &models.DocCandidate{Doc: doc, Features: fv})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Doc.ID < out[j].Doc.ID
	})
	return out
}

// strongOutOfWindow decides whether an out-of-window document is retained
// anyway. A candidate survives when it shows an invoice-number textual
// match or amount-plus-direction compatibility, combined with vendor
// compatibility (the invoice-number signal alone also suffices), and its
// amount actually resolves. Genuinely strong signals override a merely
// too-old booking date.
func strongOutOfWindow(doc *models.Document, tx *models.Transaction, fv models.FeatureVector, cfg *Config) bool {
	amountDirection := fv.AmountResolved && directionCompatible(doc, tx)
	if !fv.InvoiceNoMatch && !amountDirection {
		return false
	}
	if !fv.VendorCompatible && !fv.InvoiceNoMatch {
		return false
	}
	return fv.AmountResolved
}

// CandidatesForDocument is the document-centric counterpart: it filters the
// transactions that may settle the given document. The conditions mirror
// CandidatesForTransaction, with the override relaxed to identity-or-amount
// signals (this path deliberately skips the direction check).
func CandidatesForDocument(doc *models.Document, txs []*models.Transaction, cfg *Config) []*models.TxCandidate {
	var out []*models.TxCandidate
	window := DocDateWindow(doc, cfg)

	for _, tx := range txs {
		if !sameTenant(doc.TenantID, tx.TenantID) {
			continue
		}
		if !tx.LinkState.IsMatchable() {
			continue
		}
		if TxAmountForCurrency(tx, doc.Currency) == nil {
			continue
		}

		fv := BuildFeatures(doc, tx, cfg)
		if !window.Contains(tx.BookingDate) {
			if !(fv.InvoiceNoMatch || fv.AmountResolved) {
				continue
			}
			if !fv.VendorCompatible && !fv.InvoiceNoMatch {
				continue
			}
		}

		out = append(out, &models.TxCandidate{Tx: tx, Features: fv})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Tx.ID < out[j].Tx.ID
	})
	return out
}

func sameTenant(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) && strings.TrimSpace(a) != ""
}
