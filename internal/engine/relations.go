package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// RelationSet is the typed grouping output for one seed transaction.
// Ambiguity triggers demote everything to a single many-to-many cluster;
// many_to_many is the deliberate fallback, never a primary relation.
type RelationSet struct {
	OneToOne   []models.Relation
	ManyToOne  *models.Relation
	OneToMany  []models.Relation
	ManyToMany *models.Relation
}

// All returns the relations in decision order.
func (rs *RelationSet) All() []models.Relation {
	var out []models.Relation
	out = append(out, rs.OneToOne...)
	if rs.ManyToOne != nil {
		out = append(out, *rs.ManyToOne)
	}
	out = append(out, rs.OneToMany...)
	if rs.ManyToMany != nil {
		out = append(out, *rs.ManyToMany)
	}
	return out
}

// DetectRelations groups the candidate set of one seed transaction into
// typed relations. allTxs is the full tenant snapshot used to recruit
// co-payers for one-to-many hypotheses.
func DetectRelations(tx *models.Transaction, candidates []*models.DocCandidate, allTxs []*models.Transaction, cfg *Config) RelationSet {
	var rs RelationSet

	for _, cand := range candidates {
		if isOneToOnePlausible(cand) {
			rs.OneToOne = append(rs.OneToOne, models.Relation{
				Type:      models.RelationOneToOne,
				Seed:      tx,
				Candidate: cand,
			})
		}
	}

	manyToOnePool, oversized := manyToOneCandidates(candidates, cfg)
	if len(manyToOnePool) >= 2 && !oversized {
		rel := models.Relation{
			Type:       models.RelationManyToOne,
			Seed:       tx,
			Candidates: manyToOnePool,
		}
		rs.ManyToOne = &rel
	}

	rs.OneToMany = oneToManyRelations(tx, candidates, allTxs, cfg)

	// Ambiguity triggers: an oversized many-to-one pool, coexisting
	// multi-relations, or more than one plausible one-to-one pairing.
	ambiguous := oversized ||
		(rs.ManyToOne != nil && len(rs.OneToMany) > 0) ||
		len(rs.OneToOne) > 1

	if ambiguous {
		cluster := buildCluster(tx, candidates, rs.OneToMany, cfg)
		rs = RelationSet{ManyToMany: &cluster}
	}

	return rs
}

// isOneToOnePlausible accepts a candidate whose amount resolves and that
// carries at least one of: an identity signal, an in-window booking, or
// the strong out-of-window override. Candidate generation already verified
// the override for every retained out-of-window pairing, so only the
// amount-resolution leg remains to check for those.
func isOneToOnePlausible(cand *models.DocCandidate) bool {
	fv := cand.Features
	if !fv.AmountResolved {
		return false
	}
	if fv.HasIdentity() || fv.InWindow {
		return true
	}
	// Out-of-window survivor of the strong override.
	return fv.VendorCompatible || fv.InvoiceNoMatch
}

// manyToOneCandidates selects the pool for the subset-sum hypothesis:
// candidates whose amounts do not individually resolve the transaction
// value. When any pool member shows an invoice-number signal, only
// invoice-number-matching candidates are kept; otherwise the pool is
// restricted to vendor-compatible candidates. The second return value
// reports a pool above the configured solver bound.
func manyToOneCandidates(candidates []*models.DocCandidate, cfg *Config) ([]*models.DocCandidate, bool) {
	var unresolved []*models.DocCandidate
	anyInvoiceNo := false
	for _, cand := range candidates {
		if cand.Features.AmountResolved {
			continue
		}
		unresolved = append(unresolved, cand)
		if cand.Features.InvoiceNoMatch {
			anyInvoiceNo = true
		}
	}

	var pool []*models.DocCandidate
	for _, cand := range unresolved {
		if anyInvoiceNo {
			if cand.Features.InvoiceNoMatch {
				pool = append(pool, cand)
			}
			continue
		}
		if cand.Features.VendorCompatible {
			pool = append(pool, cand)
		}
	}

	if len(pool) > cfg.SubsetSum.MaxCandidates {
		return pool, true
	}
	return pool, false
}

// oneToManyRelations seeds partial-payment hypotheses: a candidate looks
// like a partial payment when it carries a partial keyword, shows an
// identity match without amount resolution, or the transaction is smaller
// than the document's target. A vendor-compatible seed recruits further
// same-tenant, same-currency, in-window, identity-or-vendor-compatible
// transactions up to the configured bound.
func oneToManyRelations(tx *models.Transaction, candidates []*models.DocCandidate, allTxs []*models.Transaction, cfg *Config) []models.Relation {
	var out []models.Relation

	for _, cand := range candidates {
		fv := cand.Features
		if !fv.VendorCompatible && !fv.HasIdentity() {
			continue
		}

		partialLook := fv.PartialKeyword ||
			(fv.HasIdentity() && !fv.AmountResolved) ||
			txSmallerThanDoc(tx, cand.Doc)
		if !partialLook {
			continue
		}

		rel := models.Relation{
			Type:         models.RelationOneToMany,
			Doc:          cand.Doc,
			Seed:         tx,
			Transactions: append([]*models.Transaction{tx}, recruitCoPayers(tx, cand.Doc, allTxs, cfg)...),
		}
		out = append(out, rel)
	}

	return out
}

func txSmallerThanDoc(tx *models.Transaction, doc *models.Document) bool {
	value := TxAmountForCurrency(tx, doc.Currency)
	if value == nil {
		return false
	}
	return value.LessThan(doc.TargetAmount())
}

// recruitCoPayers collects additional transactions plausibly belonging to
// the same partial-payment series.
func recruitCoPayers(seed *models.Transaction, doc *models.Document, allTxs []*models.Transaction, cfg *Config) []*models.Transaction {
	window := DocDateWindow(doc, cfg)
	docIBAN := doc.IBAN
	docE2E := doc.EndToEnd

	sorted := append([]*models.Transaction(nil), allTxs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var recruits []*models.Transaction
	for _, tx := range sorted {
		if len(recruits) >= cfg.OneToManyMaxRecruits {
			break
		}
		if tx.ID == seed.ID || !sameTenant(tx.TenantID, seed.TenantID) {
			continue
		}
		if !tx.LinkState.IsMatchable() {
			continue
		}
		if TxAmountForCurrency(tx, doc.Currency) == nil {
			continue
		}
		if !window.Contains(tx.BookingDate) {
			continue
		}
		if !identityEqual(docIBAN, tx.IBAN) && !identityEqual(docE2E, tx.EndToEnd) && !vendorsCompatible(doc, tx) {
			continue
		}
		recruits = append(recruits, tx)
	}
	return recruits
}

// buildCluster assembles the bounded diagnostic cluster raised for genuine
// ambiguity. When the vendor-filtered documents share one currency and
// their total exactly balances the gathered transaction set, the cluster
// carries the exact-sum hypothesis; otherwise it is a plain ambiguity
// cluster for human review.
func buildCluster(tx *models.Transaction, candidates []*models.DocCandidate, oneToMany []models.Relation, cfg *Config) models.Relation {
	docSeen := make(map[string]bool)
	var docs []*models.Document
	for _, cand := range candidates {
		if len(docs) >= cfg.ClusterMaxEntities {
			break
		}
		if docSeen[cand.Doc.ID] {
			continue
		}
		docSeen[cand.Doc.ID] = true
		docs = append(docs, cand.Doc)
	}

	txSeen := map[string]bool{tx.ID: true}
	txs := []*models.Transaction{tx}
	for _, rel := range oneToMany {
		for _, t := range rel.Transactions {
			if len(txs) >= cfg.ClusterMaxEntities {
				break
			}
			if txSeen[t.ID] {
				continue
			}
			txSeen[t.ID] = true
			txs = append(txs, t)
		}
	}

	hypothesis := "ambiguity_cluster"
	if clusterSumsBalance(docs, txs, cfg) {
		hypothesis = "exact_sum"
	}

	return models.Relation{
		Type:        models.RelationManyToMany,
		ClusterDocs: docs,
		ClusterTxs:  txs,
		Hypothesis:  hypothesis,
	}
}

// clusterSumsBalance checks the exact-sum hypothesis: all documents share
// one currency, every transaction resolves a value in it, and the two
// totals are tolerance-compatible. This path intentionally repeats the
// vendor/window filtering with its own, slightly looser parameter set; it
// does not consult direction compatibility.
func clusterSumsBalance(docs []*models.Document, txs []*models.Transaction, cfg *Config) bool {
	if len(docs) == 0 || len(txs) == 0 {
		return false
	}

	currency := docs[0].Currency
	docSum := decimal.Zero
	for _, doc := range docs {
		if doc.Currency != currency {
			return false
		}
		docSum = docSum.Add(doc.TargetAmount())
	}

	txSum := decimal.Zero
	for _, tx := range txs {
		value := TxAmountForCurrency(tx, currency)
		if value == nil {
			return false
		}
		txSum = txSum.Add(*value)
	}

	return AmountCompatible(docSum, txSum, cfg)
}
