package engine

import (
	"fmt"
	"math"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// RuleContext is the evaluation context handed to every rule of a cascade.
type RuleContext struct {
	Cfg       *Config
	Tx        *models.Transaction
	Candidate *models.DocCandidate
	Relation  models.Relation
}

// Rule is one step of a decision cascade: a named, pure predicate that
// either produces a decision or passes. Cascades are ordered slices of
// rules evaluated short-circuit; earlier rules pre-empt later ones, and
// the ordering is tested independently of the dispatch loop.
type Rule struct {
	Name  string
	Apply func(*RuleContext) *models.MatchDecision
}

// runCascade evaluates the rules in order and returns the first decision.
func runCascade(rules []Rule, ctx *RuleContext) *models.MatchDecision {
	for _, rule := range rules {
		if decision := rule.Apply(ctx); decision != nil {
			decision.Normalize()
			return decision
		}
	}
	return nil
}

// oneToOneCascade is the ordered rule list for one-to-one relations.
var oneToOneCascade = []Rule{
	{Name: "hard_key", Apply: hardKeyRule},
	{Name: "subscription_reuse", Apply: subscriptionReuseRule},
	{Name: "line_item_net", Apply: lineItemNetRule},
	{Name: "soft_invoice_no_out_of_window", Apply: softInvoiceOutOfWindowRule},
	{Name: "weighted_score", Apply: weightedScoreRule},
}

// DecideOneToOne runs the one-to-one cascade for a single relation.
func DecideOneToOne(rel models.Relation, cfg *Config) *models.MatchDecision {
	ctx := &RuleContext{Cfg: cfg, Tx: rel.Seed, Candidate: rel.Candidate, Relation: rel}
	return runCascade(oneToOneCascade, ctx)
}

// hardKeyRule finalizes on identity-level signals: IBAN equality,
// end-to-end-id equality, or an invoice-number match inside the date
// window, each combined with a resolvable amount and the absence of
// partial-payment keywords. Linked documents are the subscription rule's
// territory and are skipped here.
func hardKeyRule(ctx *RuleContext) *models.MatchDecision {
	fv := ctx.Candidate.Features
	doc := ctx.Candidate.Doc

	if doc.LinkState == models.LinkStateLinked {
		return nil
	}
	if !fv.AmountResolved || fv.PartialKeyword {
		return nil
	}

	var reason string
	switch {
	case fv.IBANMatch:
		reason = ReasonHardIBANAmount
	case fv.EndToEndMatch:
		reason = ReasonHardE2EAmount
	case fv.InvoiceNoMatch && fv.InWindow:
		reason = ReasonHardInvoiceNo
	default:
		return nil
	}

	reasons := []string{reason}
	if fv.ViaCandidate {
		reasons = append(reasons, ReasonLineItemNetMatch)
	}

	return newDecision(models.DecisionFinal, models.RelationOneToOne,
		[]string{ctx.Tx.ID}, []string{doc.ID}, 1.0, reasons, ctx)
}

// subscriptionReuseRule matches recurring bookings against a document that
// is already linked, for vendors billing the same amount every period.
// Recurrence comes from the upstream hint flag or keyword heuristics.
func subscriptionReuseRule(ctx *RuleContext) *models.MatchDecision {
	fv := ctx.Candidate.Features
	doc := ctx.Candidate.Doc

	if doc.LinkState != models.LinkStateLinked {
		return nil
	}
	recurring := ctx.Tx.RecurringHint || txHasKeyword(ctx.Tx, ctx.Cfg.Keywords.Subscription)
	if !recurring || !fv.VendorCompatible || !fv.AmountResolved {
		return nil
	}

	return newDecision(models.DecisionFinal, models.RelationOneToOne,
		[]string{ctx.Tx.ID}, []string{doc.ID}, 0.96,
		[]string{ReasonSubscriptionReuse}, ctx)
}

// lineItemNetRule finalizes when the amount resolved through a declared
// non-nominal candidate, the booking is in window, the vendor fits and no
// partial keyword interferes.
func lineItemNetRule(ctx *RuleContext) *models.MatchDecision {
	fv := ctx.Candidate.Features
	doc := ctx.Candidate.Doc

	if doc.LinkState == models.LinkStateLinked {
		return nil
	}
	if !fv.AmountResolved || !fv.ViaCandidate {
		return nil
	}
	if !fv.InWindow || !fv.VendorCompatible || fv.PartialKeyword {
		return nil
	}

	return newDecision(models.DecisionFinal, models.RelationOneToOne,
		[]string{ctx.Tx.ID}, []string{doc.ID}, 0.98,
		[]string{ReasonLineItemNetMatch}, ctx)
}

// softInvoiceOutOfWindowRule suggests a pairing whose amount and invoice
// number agree while the booking date falls outside the window.
func softInvoiceOutOfWindowRule(ctx *RuleContext) *models.MatchDecision {
	fv := ctx.Candidate.Features
	doc := ctx.Candidate.Doc

	if doc.LinkState == models.LinkStateLinked {
		return nil
	}
	if !fv.AmountResolved || !fv.InvoiceNoMatch || fv.InWindow || fv.PartialKeyword {
		return nil
	}

	return newDecision(models.DecisionSuggested, models.RelationOneToOne,
		[]string{ctx.Tx.ID}, []string{doc.ID}, 0.8,
		[]string{ReasonSoftInvoiceNoOutOfWindow}, ctx)
}

// weightedScoreRule is the terminal soft rule: a weighted combination of
// the amount, date, vendor and identity signals, dampened when partial
// keywords are present, compared against the minimum suggestion score.
func weightedScoreRule(ctx *RuleContext) *models.MatchDecision {
	fv := ctx.Candidate.Features
	doc := ctx.Candidate.Doc
	cfg := ctx.Cfg

	if doc.LinkState == models.LinkStateLinked {
		return nil
	}

	score := 0.0
	if fv.AmountResolved {
		score += cfg.Scoring.AmountWeight
	}
	if fv.InWindow && !fv.Unanchored() {
		score += cfg.Scoring.DateWeight
	}
	if fv.VendorCompatible {
		score += cfg.Scoring.VendorWeight
	}
	if fv.HasIdentity() {
		score += cfg.Scoring.IdentityWeight
	}
	if fv.PartialKeyword {
		score *= cfg.Scoring.PartialPenalty
	}
	score = math.Min(1.0, math.Max(0.0, score))

	if score < cfg.Scoring.MinSuggestScore {
		return nil
	}

	reason := ReasonScoreOnly
	switch {
	case fv.AmountResolved && fv.InWindow && !fv.Unanchored():
		reason = ReasonSoftAmountDate
	case fv.AmountResolved && fv.VendorCompatible && !fv.InWindow:
		reason = ReasonSoftAmountVendorOOW
	}

	decision := newDecision(models.DecisionSuggested, models.RelationOneToOne,
		[]string{ctx.Tx.ID}, []string{doc.ID}, score, []string{reason}, ctx)
	decision.Inputs["score"] = models.InputValue{Num: score}
	return decision
}

// newDecision assembles a decision with the shared diagnostic inputs.
func newDecision(state models.DecisionState, relation models.RelationType, txIDs, docIDs []string, confidence float64, reasons []string, ctx *RuleContext) *models.MatchDecision {
	inputs := map[string]models.InputValue{}
	if ctx != nil && ctx.Candidate != nil {
		fv := ctx.Candidate.Features
		inputs["amount_delta"] = models.InputValue{Str: fv.AmountDelta.String()}
		if !fv.Unanchored() {
			inputs["day_delta"] = models.InputValue{Num: fv.DayDelta}
		}
	}

	return &models.MatchDecision{
		State:      state,
		Relation:   relation,
		TxIDs:      txIDs,
		DocIDs:     docIDs,
		Confidence: confidence,
		Reasons:    reasons,
		Inputs:     inputs,
		Actor:      models.ActorSystem,
	}
}

// CascadeRuleNames exposes the ordering of a relation type's cascade for
// tests and diagnostics.
func CascadeRuleNames(relation models.RelationType) []string {
	var rules []Rule
	switch relation {
	case models.RelationOneToOne:
		rules = oneToOneCascade
	case models.RelationManyToOne:
		rules = manyToOneCascade
	case models.RelationOneToMany:
		rules = oneToManyCascade
	case models.RelationManyToMany:
		rules = manyToManyCascade
	default:
		return nil
	}
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

// describeSolution renders a subset-sum solution as a stable string for
// the diagnostics bag.
func describeSolution(solution []*models.DocCandidate) string {
	ids := make([]string, len(solution))
	for i, cand := range solution {
		ids[i] = cand.Doc.ID
	}
	return fmt.Sprintf("%v", models.SortedUniqueIDs(ids))
}
