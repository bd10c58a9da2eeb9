// Package service wires the pure matching engine to its collaborators:
// history loading, persistence and the audit trail. This is the supported
// asynchronous surface; everything below it is synchronous and pure.
package service

import (
	"context"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/canonical"
	"github.com/FloHo800101/belegcockpit/internal/engine"
	"github.com/FloHo800101/belegcockpit/internal/lifecycle"
	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/internal/projection"
	"github.com/FloHo800101/belegcockpit/internal/repository"
	"github.com/FloHo800101/belegcockpit/pkg/logger"
)

// historyLookbackDays bounds the transaction history consulted for
// subscription detection.
const historyLookbackDays = 365

// RunResult is the outcome of one matching pass.
type RunResult struct {
	// Decisions holds every decision of the run in engine order.
	Decisions []models.MatchDecision `json:"decisions"`

	// Applied and Suggested count how many decisions went to each
	// repository call.
	Applied   int `json:"applied"`
	Suggested int `json:"suggested"`

	// DocResults and TxResults carry the per-entity lifecycle outcomes.
	DocResults []lifecycle.Result `json:"doc_results"`
	TxResults  []lifecycle.Result `json:"tx_results"`
}

// MatchingService orchestrates one pass: run the engine over a snapshot,
// split the decisions, persist them and evaluate lifecycles.
type MatchingService struct {
	engine *engine.Engine
	repo   repository.Repository
	log    logger.Logger
}

// New creates a matching service. A nil config selects the defaults.
func New(cfg *engine.Config, repo repository.Repository) *MatchingService {
	return &MatchingService{
		engine: engine.New(cfg),
		repo:   repo,
		log:    logger.GetGlobalLogger().WithComponent("service"),
	}
}

// Run executes one matching pass over the snapshot. The now timestamp
// anchors lifecycle evaluation and the audit clock; pass the zero value for
// a clockless (fully reproducible) audit trail.
func (s *MatchingService) Run(ctx context.Context, docs []*models.Document, txs []*models.Transaction, now time.Time) (*RunResult, error) {
	log := s.log
	if tenant := snapshotTenant(docs, txs); tenant != "" {
		log = log.WithTenant(tenant)
	}
	op := logger.NewOperationLogger("matching_pass", log).WithFields(logger.Fields{
		"documents":    len(docs),
		"transactions": len(txs),
	})

	decisions := s.engine.Reconcile(docs, txs)
	op.Step("reconcile")

	applySet, suggestSet := splitDecisions(decisions)

	if len(applySet) > 0 {
		if err := s.repo.ApplyMatches(ctx, applySet); err != nil {
			op.Error(err, "Applying matches failed")
			return nil, err
		}
	}
	if len(suggestSet) > 0 {
		if err := s.repo.SaveSuggestions(ctx, suggestSet); err != nil {
			op.Error(err, "Saving suggestions failed")
			return nil, err
		}
	}

	records := make([]projection.AuditRecord, 0, len(decisions))
	var clock *time.Time
	if !now.IsZero() {
		clock = &now
	}
	for i := range decisions {
		records = append(records, projection.ToAuditRecord(&decisions[i], clock))
	}
	if len(records) > 0 {
		if err := s.repo.Audit(ctx, records); err != nil {
			op.Error(err, "Writing audit records failed")
			return nil, err
		}
	}
	op.Step("persist")

	result := &RunResult{
		Decisions: decisions,
		Applied:   len(applySet),
		Suggested: len(suggestSet),
	}

	evalNow := now
	if evalNow.IsZero() {
		evalNow = time.Now()
	}
	cfg := s.engine.Config()
	for _, doc := range docs {
		result.DocResults = append(result.DocResults, lifecycle.EvaluateDocument(doc, cfg, evalNow))
	}

	occurrences := s.vendorOccurrences(ctx, txs, evalNow)
	for _, tx := range txs {
		history := lifecycle.TxHistory{VendorOccurrences: occurrences[vendorKey(tx)]}
		result.TxResults = append(result.TxResults, lifecycle.EvaluateTransaction(tx, cfg, history))
	}

	op.WithFields(logger.Fields{
		"decisions": len(decisions),
		"applied":   result.Applied,
		"suggested": result.Suggested,
	}).Success("Matching pass complete")

	return result, nil
}

// splitDecisions separates decisions the repository may apply from those
// stored as suggestions. Final many_to_many never mutates entities, so it
// is routed to the suggestion store alongside the non-final states.
func splitDecisions(decisions []models.MatchDecision) (applySet, suggestSet []models.MatchDecision) {
	for _, decision := range decisions {
		applicable := decision.State == models.DecisionFinal || decision.State == models.DecisionPartial
		if applicable && decision.Relation != models.RelationManyToMany {
			applySet = append(applySet, decision)
		} else {
			suggestSet = append(suggestSet, decision)
		}
	}
	return applySet, suggestSet
}

// vendorOccurrences counts historic bookings per vendor for the snapshot's
// tenant. A failed history load degrades to zero counts; subscription
// detection then relies on hints and keywords alone.
func (s *MatchingService) vendorOccurrences(ctx context.Context, txs []*models.Transaction, asOf time.Time) map[string]int {
	counts := make(map[string]int)
	if len(txs) == 0 {
		return counts
	}

	tenantID := txs[0].TenantID
	history, err := s.repo.LoadTxHistory(ctx, tenantID, repository.HistoryQuery{
		LookbackDays: historyLookbackDays,
		AsOf:         asOf,
	})
	if err != nil {
		s.log.WithError(err).Warn("Transaction history unavailable")
		return counts
	}

	for _, tx := range history {
		if key := vendorKey(tx); key != "" {
			counts[key]++
		}
	}
	return counts
}

func vendorKey(tx *models.Transaction) string {
	return canonical.NormalizeVendor(tx.Vendor)
}

func snapshotTenant(docs []*models.Document, txs []*models.Transaction) string {
	if len(docs) > 0 {
		return docs[0].TenantID
	}
	if len(txs) > 0 {
		return txs[0].TenantID
	}
	return ""
}
