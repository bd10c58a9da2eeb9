package engine

import (
	"sort"

	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/pkg/logger"
)

// Engine runs the full reconciliation decision pipeline over one immutable
// snapshot of documents and transactions. The computation is pure and
// synchronous; determinism is guaranteed by processing seeds in sorted id
// order and breaking every tie on entity ids.
type Engine struct {
	cfg *Config
	log logger.Logger
}

// New creates an engine with the given configuration. A nil configuration
// selects the defaults.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg: cfg,
		log: logger.GetGlobalLogger().WithComponent("engine"),
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// Reconcile decides which transactions settle which documents. The
// snapshot is never mutated; decisions are pure outputs projected into
// storage operations elsewhere. Entities with missing currency or amount
// are silently excluded (input data defects are not errors).
func (e *Engine) Reconcile(docs []*models.Document, txs []*models.Transaction) []models.MatchDecision {
	usableDocs := e.usableDocuments(docs)
	usableTxs := e.usableTransactions(txs)

	e.log.WithFields(logger.Fields{
		"documents":    len(usableDocs),
		"transactions": len(usableTxs),
	}).Debug("Starting reconciliation pass")

	seeds := append([]*models.Transaction(nil), usableTxs...)
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].ID < seeds[j].ID })

	consumedDocs := make(map[string]bool)
	consumedTxs := make(map[string]bool)

	var decisions []models.MatchDecision
	for _, tx := range seeds {
		if consumedTxs[tx.ID] || !tx.LinkState.IsMatchable() {
			continue
		}

		available := availableDocs(usableDocs, consumedDocs)
		opts := CandidateOptions{
			IncludeLinked: tx.RecurringHint || txHasKeyword(tx, e.cfg.Keywords.Subscription),
		}
		candidates := CandidatesForTransaction(tx, available, e.cfg, opts)
		if len(candidates) == 0 {
			continue
		}

		rs := DetectRelations(tx, candidates, availableTxs(usableTxs, consumedTxs), e.cfg)

		decision := e.decide(rs)
		if decision == nil {
			continue
		}

		decisions = append(decisions, *decision)
		e.consume(decision, consumedDocs, consumedTxs)
	}

	e.log.WithField("decisions", len(decisions)).Debug("Reconciliation pass complete")
	return decisions
}

// decide applies the per-relation cascades in priority order: a cluster
// pre-empts everything (it is the ambiguity fallback), then the single
// one-to-one relation, then many-to-one, then one-to-many hypotheses.
func (e *Engine) decide(rs RelationSet) *models.MatchDecision {
	if rs.ManyToMany != nil {
		return DecideManyToMany(*rs.ManyToMany, e.cfg)
	}

	if len(rs.OneToOne) == 1 {
		if decision := DecideOneToOne(rs.OneToOne[0], e.cfg); decision != nil {
			return decision
		}
	}

	if rs.ManyToOne != nil {
		if decision := DecideManyToOne(*rs.ManyToOne, e.cfg); decision != nil {
			return decision
		}
	}

	for _, rel := range rs.OneToMany {
		if decision := DecideOneToMany(rel, e.cfg); decision != nil {
			return decision
		}
	}

	return nil
}

// consume reserves the participants of settling decisions so later seeds
// cannot claim them again within the same pass. Partial one-to-many
// settlements reserve the transactions but leave the document matchable
// for a later pass against its reduced open amount. Cluster decisions
// never consume; they only diagnose.
func (e *Engine) consume(decision *models.MatchDecision, consumedDocs, consumedTxs map[string]bool) {
	switch decision.State {
	case models.DecisionFinal:
		if decision.Relation == models.RelationManyToMany {
			return
		}
		for _, id := range decision.DocIDs {
			consumedDocs[id] = true
		}
		for _, id := range decision.TxIDs {
			consumedTxs[id] = true
		}
	case models.DecisionPartial:
		for _, id := range decision.TxIDs {
			consumedTxs[id] = true
		}
	}
}

// FindCandidatesForDocument exposes the document-centric candidate view
// used by review surfaces: the transactions that may settle one document.
func (e *Engine) FindCandidatesForDocument(doc *models.Document, txs []*models.Transaction) []*models.TxCandidate {
	if doc == nil || doc.Validate() != nil {
		return nil
	}
	return CandidatesForDocument(doc, e.usableTransactions(txs), e.cfg)
}

// usableDocuments drops documents the engine cannot reason about: missing
// currency, tenant or id. Defective rows are logged, never raised.
func (e *Engine) usableDocuments(docs []*models.Document) []*models.Document {
	out := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if err := doc.Validate(); err != nil {
			e.log.WithError(err).WithField("document_id", doc.ID).Debug("Excluding defective document")
			continue
		}
		out = append(out, doc)
	}
	return out
}

// usableTransactions drops transactions with missing currency, amount,
// tenant or id.
func (e *Engine) usableTransactions(txs []*models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if err := tx.Validate(); err != nil {
			e.log.WithError(err).WithField("transaction_id", tx.ID).Debug("Excluding defective transaction")
			continue
		}
		out = append(out, tx)
	}
	return out
}

func availableDocs(docs []*models.Document, consumed map[string]bool) []*models.Document {
	if len(consumed) == 0 {
		return docs
	}
	out := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		if !consumed[doc.ID] {
			out = append(out, doc)
		}
	}
	return out
}

func availableTxs(txs []*models.Transaction, consumed map[string]bool) []*models.Transaction {
	if len(consumed) == 0 {
		return txs
	}
	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !consumed[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}
