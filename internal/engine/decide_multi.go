package engine

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// matchGroupNamespace seeds deterministic match-group ids: the same
// participant set always produces the same group id across runs.
var matchGroupNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("belegcockpit/match-group"))

// MatchGroupID derives the stable group id for a multi-entity decision.
func MatchGroupID(txIDs, docIDs []string) string {
	key := "tx:" + strings.Join(models.SortedUniqueIDs(txIDs), ",") +
		"|doc:" + strings.Join(models.SortedUniqueIDs(docIDs), ",")
	return uuid.NewSHA1(matchGroupNamespace, []byte(key)).String()
}

// manyToOneCascade is the ordered rule list for many-to-one relations.
var manyToOneCascade = []Rule{
	{Name: "candidate_bound", Apply: manyToOneBoundRule},
	{Name: "subset_sum", Apply: subsetSumRule},
}

// DecideManyToOne runs the many-to-one cascade.
func DecideManyToOne(rel models.Relation, cfg *Config) *models.MatchDecision {
	ctx := &RuleContext{Cfg: cfg, Tx: rel.Seed, Relation: rel}
	return runCascade(manyToOneCascade, ctx)
}

// sameCurrencyCandidates keeps the candidates whose documents share the
// currency of the first candidate; the solver only sums one currency.
func sameCurrencyCandidates(candidates []*models.DocCandidate) []*models.DocCandidate {
	if len(candidates) == 0 {
		return nil
	}
	currency := candidates[0].Doc.Currency
	out := make([]*models.DocCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Doc.Currency == currency {
			out = append(out, cand)
		}
	}
	return out
}

// manyToOneBoundRule surfaces oversized candidate sets as ambiguity
// without running the solver.
func manyToOneBoundRule(ctx *RuleContext) *models.MatchDecision {
	candidates := sameCurrencyCandidates(ctx.Relation.Candidates)
	if len(candidates) <= ctx.Cfg.SubsetSum.MaxCandidates {
		return nil
	}

	docIDs := candidateDocIDs(candidates)
	decision := newDecision(models.DecisionAmbiguous, models.RelationManyToOne,
		[]string{ctx.Tx.ID}, docIDs, 0.4,
		[]string{ReasonAmbiguousMultipleSolutions}, nil)
	decision.Inputs["candidate_count"] = models.InputValue{Num: float64(len(candidates))}
	return decision
}

// subsetSumRule runs the bounded solver: zero solutions means no decision,
// more than one means ambiguity, exactly one finalizes (or suggests, when
// a selected document hints at partial payments).
func subsetSumRule(ctx *RuleContext) *models.MatchDecision {
	candidates := sameCurrencyCandidates(ctx.Relation.Candidates)
	if len(candidates) < 2 {
		return nil
	}

	currency := candidates[0].Doc.Currency
	target := TxAmountForCurrency(ctx.Tx, currency)
	if target == nil {
		return nil
	}

	solutions := SubsetSumDocsToAmount(candidates, *target, ctx.Cfg)
	if len(solutions) == 0 {
		return nil
	}

	if len(solutions) > 1 {
		docIDs := candidateDocIDs(candidates)
		decision := newDecision(models.DecisionAmbiguous, models.RelationManyToOne,
			[]string{ctx.Tx.ID}, docIDs, 0.4,
			[]string{ReasonAmbiguousMultipleSolutions}, nil)
		descriptions := make([]string, len(solutions))
		for i, sol := range solutions {
			descriptions[i] = describeSolution(sol)
		}
		decision.Inputs["solutions"] = models.InputValue{Strings: descriptions}
		return decision
	}

	solution := solutions[0]
	docIDs := candidateDocIDs(solution)
	state := models.DecisionFinal
	confidence := 1.0
	for _, cand := range solution {
		if cand.Features.PartialKeyword {
			state = models.DecisionSuggested
			confidence = 0.8
			break
		}
	}

	decision := newDecision(state, models.RelationManyToOne,
		[]string{ctx.Tx.ID}, docIDs, confidence,
		[]string{ReasonSubsetSumExact}, nil)
	decision.MatchGroupID = MatchGroupID([]string{ctx.Tx.ID}, docIDs)
	decision.Inputs["solutions"] = models.InputValue{Strings: []string{describeSolution(solution)}}
	return decision
}

func candidateDocIDs(candidates []*models.DocCandidate) []string {
	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.Doc.ID
	}
	return ids
}

// oneToManyCascade is the ordered rule list for one-to-many relations.
var oneToManyCascade = []Rule{
	{Name: "payment_sum", Apply: paymentSumRule},
}

// DecideOneToMany runs the one-to-many cascade.
func DecideOneToMany(rel models.Relation, cfg *Config) *models.MatchDecision {
	ctx := &RuleContext{Cfg: cfg, Relation: rel}
	return runCascade(oneToManyCascade, ctx)
}

// paymentSumRule compares the sum of the participating transactions to the
// document's remaining claim. An exact sum settles the document; a smaller
// sum is a partial settlement carrying the new open amount; a larger sum
// is ambiguous and goes to review.
func paymentSumRule(ctx *RuleContext) *models.MatchDecision {
	rel := ctx.Relation
	doc := rel.Doc
	if doc == nil || len(rel.Transactions) == 0 {
		return nil
	}

	target := doc.TargetAmount()

	sum := decimal.Zero
	txIDs := make([]string, 0, len(rel.Transactions))
	batch := false
	for _, tx := range rel.Transactions {
		value := TxAmountForCurrency(tx, doc.Currency)
		if value == nil {
			// Every participant must resolve in the document's
			// currency; otherwise the hypothesis is void.
			return nil
		}
		sum = sum.Add(*value)
		txIDs = append(txIDs, tx.ID)
		if txHasKeyword(tx, ctx.Cfg.Keywords.Batch) {
			batch = true
		}
	}

	docIDs := []string{doc.ID}

	if AmountCompatible(sum, target, ctx.Cfg) {
		state := models.DecisionFinal
		confidence := 1.0
		if batch {
			state = models.DecisionSuggested
			confidence = 0.7
		}
		reasons := []string{ReasonPartialPaymentSum}
		if match, ok := ResolveDocAmountMatch(doc, sum, ctx.Cfg); ok && match.ViaCandidate {
			reasons = append(reasons, ReasonLineItemNetMatch)
		}
		decision := newDecision(state, models.RelationOneToMany, txIDs, docIDs, confidence, reasons, nil)
		if len(txIDs) > 1 {
			decision.MatchGroupID = MatchGroupID(txIDs, docIDs)
		}
		zero := decimal.Zero
		decision.OpenAmountAfter = &zero
		return decision
	}

	if sum.LessThan(target) {
		remaining := target.Sub(sum).Round(2)
		decision := newDecision(models.DecisionPartial, models.RelationOneToMany,
			txIDs, docIDs, 0.9, []string{ReasonPartialPaymentSum}, nil)
		if len(txIDs) > 1 {
			decision.MatchGroupID = MatchGroupID(txIDs, docIDs)
		}
		decision.OpenAmountAfter = &remaining
		return decision
	}

	// Overpayment: the sum exceeds the claim without being compatible.
	decision := newDecision(models.DecisionAmbiguous, models.RelationOneToMany,
		txIDs, docIDs, 0.4, []string{ReasonPartialPaymentSum}, nil)
	decision.Inputs["overpaid_by"] = models.InputValue{Str: sum.Sub(target).Round(2).String()}
	return decision
}

// manyToManyCascade is the ordered rule list for many-to-many clusters.
var manyToManyCascade = []Rule{
	{Name: "exact_sum", Apply: manyToManyExactRule},
	{Name: "cluster_wizard", Apply: clusterWizardRule},
}

// DecideManyToMany runs the many-to-many cascade. Clusters always yield a
// decision: either the exact-sum settlement or the review fallback.
func DecideManyToMany(rel models.Relation, cfg *Config) *models.MatchDecision {
	ctx := &RuleContext{Cfg: cfg, Relation: rel}
	return runCascade(manyToManyCascade, ctx)
}

// manyToManyExactRule settles a cluster when every document shares one
// currency, every transaction resolves in it, the sums balance, every
// transaction is vendor-compatible with at least one document and no
// partial keyword appears anywhere. Even then the projection only writes
// a group record; cluster decisions never mutate per-entity link states.
func manyToManyExactRule(ctx *RuleContext) *models.MatchDecision {
	rel := ctx.Relation
	if len(rel.ClusterDocs) == 0 || len(rel.ClusterTxs) == 0 {
		return nil
	}

	currency := rel.ClusterDocs[0].Currency
	docSum := decimal.Zero
	for _, doc := range rel.ClusterDocs {
		if doc.Currency != currency {
			return nil
		}
		if docHasKeyword(doc, ctx.Cfg.Keywords.Partial) {
			return nil
		}
		docSum = docSum.Add(doc.TargetAmount())
	}

	txSum := decimal.Zero
	for _, tx := range rel.ClusterTxs {
		value := TxAmountForCurrency(tx, currency)
		if value == nil {
			return nil
		}
		if txHasKeyword(tx, ctx.Cfg.Keywords.Partial) {
			return nil
		}
		compatible := false
		for _, doc := range rel.ClusterDocs {
			if vendorsCompatible(doc, tx) {
				compatible = true
				break
			}
		}
		if !compatible {
			return nil
		}
		txSum = txSum.Add(*value)
	}

	if !AmountCompatible(docSum, txSum, ctx.Cfg) {
		return nil
	}

	txIDs := clusterTxIDs(rel)
	docIDs := clusterDocIDs(rel)
	decision := newDecision(models.DecisionFinal, models.RelationManyToMany,
		txIDs, docIDs, 0.9, []string{ReasonManyToManyExact}, nil)
	decision.MatchGroupID = MatchGroupID(txIDs, docIDs)
	return decision
}

// clusterWizardRule is the terminal fallback: hand the cluster with its
// hypothesis to human review.
func clusterWizardRule(ctx *RuleContext) *models.MatchDecision {
	rel := ctx.Relation
	txIDs := clusterTxIDs(rel)
	docIDs := clusterDocIDs(rel)

	decision := newDecision(models.DecisionAmbiguous, models.RelationManyToMany,
		txIDs, docIDs, 0.4, []string{ReasonClusterNNWizard}, nil)
	decision.MatchGroupID = MatchGroupID(txIDs, docIDs)
	if rel.Hypothesis != "" {
		decision.Inputs["hypothesis"] = models.InputValue{Str: rel.Hypothesis}
	}
	return decision
}

func clusterTxIDs(rel models.Relation) []string {
	ids := make([]string, len(rel.ClusterTxs))
	for i, tx := range rel.ClusterTxs {
		ids[i] = tx.ID
	}
	return ids
}

func clusterDocIDs(rel models.Relation) []string {
	ids := make([]string, len(rel.ClusterDocs))
	for i, doc := range rel.ClusterDocs {
		ids[i] = doc.ID
	}
	return ids
}
