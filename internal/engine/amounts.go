package engine

import (
	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// AmountCompatible reports whether two amounts are equal under the
// configured tolerance: |a-b| <= max(absTol, pctTol * max(|a|,|b|)).
func AmountCompatible(a, b decimal.Decimal, cfg *Config) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(amountTolerance(a, b, cfg))
}

func amountTolerance(a, b decimal.Decimal, cfg *Config) decimal.Decimal {
	larger := a.Abs()
	if b.Abs().GreaterThan(larger) {
		larger = b.Abs()
	}
	pct := larger.Mul(cfg.Tolerance.Percent).Div(decimal.NewFromInt(100))
	if pct.GreaterThan(cfg.Tolerance.Absolute) {
		return pct
	}
	return cfg.Tolerance.Absolute
}

// AmountMatch is the result of resolving a document amount against a target.
type AmountMatch struct {
	Amount decimal.Decimal
	// ViaCandidate is set when the resolution went through a declared
	// non-nominal amount candidate; it gates the line-item reason code
	// and confidence tier downstream.
	ViaCandidate bool
}

// DocAmountCandidates returns the ordered, de-duplicated list of monetary
// values a payment may settle for this document: the open amount first,
// then the nominal amount, then any declared alternative candidates. All
// values are rounded to cents; non-positive values are dropped.
func DocAmountCandidates(doc *models.Document) []decimal.Decimal {
	var raw []decimal.Decimal
	if doc.OpenAmount != nil {
		raw = append(raw, doc.OpenAmount.Round(2))
	}
	raw = append(raw, doc.NominalAmount.Abs().Round(2))
	for _, c := range doc.AmountCandidates {
		raw = append(raw, c.Abs().Round(2))
	}

	seen := make(map[string]bool, len(raw))
	out := make([]decimal.Decimal, 0, len(raw))
	for _, v := range raw {
		if !v.IsPositive() {
			continue
		}
		key := v.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// ResolveDocAmountMatch resolves the document's amount candidates against a
// target value. The first compatible candidate in declaration order wins;
// the match is flagged when it came from a declared candidate rather than
// the open or nominal amount.
func ResolveDocAmountMatch(doc *models.Document, target decimal.Decimal, cfg *Config) (AmountMatch, bool) {
	nominal := doc.NominalAmount.Abs().Round(2)
	var open decimal.Decimal
	if doc.OpenAmount != nil {
		open = doc.OpenAmount.Round(2)
	}

	for _, cand := range DocAmountCandidates(doc) {
		if !AmountCompatible(cand, target, cfg) {
			continue
		}
		via := !cand.Equal(nominal) && (doc.OpenAmount == nil || !cand.Equal(open))
		return AmountMatch{Amount: cand, ViaCandidate: via}, true
	}
	return AmountMatch{}, false
}

// TxAmountForCurrency returns the transaction's value in the requested
// currency, considering both the booking side and, when present, the
// foreign side of an FX conversion. Nil when the transaction does not
// carry the currency at all.
func TxAmountForCurrency(tx *models.Transaction, currency string) *decimal.Decimal {
	if currency == "" {
		return nil
	}
	if tx.Currency == currency {
		v := tx.Amount.Round(2)
		return &v
	}
	if tx.ForeignAmount != nil && tx.ForeignCurrency == currency {
		v := tx.ForeignAmount.Abs().Round(2)
		return &v
	}
	return nil
}

// directionCompatible checks that the money flow of the transaction fits
// the sign of the document: positive documents (claims we pay or get paid
// for) against outgoing payments, negative documents (credit notes)
// against incoming ones.
func directionCompatible(doc *models.Document, tx *models.Transaction) bool {
	if doc.NominalAmount.IsNegative() {
		return tx.Direction == models.DirectionIn
	}
	return tx.Direction == models.DirectionOut || tx.Direction == models.DirectionIn
}
