package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/canonical"
	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/internal/projection"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"
)

// Edge is one persisted document/transaction link.
type Edge struct {
	DocID string
	TxID  string
}

// Group is one persisted match group record.
type Group struct {
	GroupID  string
	DocIDs   []string
	TxIDs    []string
	Relation string
	State    string
}

// MemoryRepository is an in-process Repository used by tests and the CLI.
// It applies projection ops against its own entity maps, which makes it a
// faithful model of the idempotency the remote store guarantees.
type MemoryRepository struct {
	mu sync.RWMutex

	docs map[string]*models.Document
	txs  map[string]*models.Transaction

	edges       map[Edge]bool
	groups      map[string]Group
	suggestions map[string]models.MatchDecision
	audits      map[string]projection.AuditRecord
	auditOrder  []string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:        make(map[string]*models.Document),
		txs:         make(map[string]*models.Transaction),
		edges:       make(map[Edge]bool),
		groups:      make(map[string]Group),
		suggestions: make(map[string]models.MatchDecision),
		audits:      make(map[string]projection.AuditRecord),
	}
}

// Seed loads the entity snapshot the repository serves. Copies are stored;
// the caller's slices stay untouched by later mutations.
func (r *MemoryRepository) Seed(docs []*models.Document, txs []*models.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range docs {
		copied := *doc
		r.docs[doc.ID] = &copied
	}
	for _, tx := range txs {
		copied := *tx
		r.txs[tx.ID] = &copied
	}
}

// Document returns the stored document with the given id, or nil.
func (r *MemoryRepository) Document(id string) *models.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[id]
}

// Transaction returns the stored transaction with the given id, or nil.
func (r *MemoryRepository) Transaction(id string) *models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.txs[id]
}

// Edges returns all persisted links, sorted for stable inspection.
func (r *MemoryRepository) Edges() []Edge {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Edge, 0, len(r.edges))
	for edge := range r.edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		return out[i].TxID < out[j].TxID
	})
	return out
}

// Groups returns all persisted group records keyed by group id.
func (r *MemoryRepository) Groups() map[string]Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Group, len(r.groups))
	for id, group := range r.groups {
		out[id] = group
	}
	return out
}

// Suggestions returns the stored non-final decisions keyed by decision key.
func (r *MemoryRepository) Suggestions() map[string]models.MatchDecision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.MatchDecision, len(r.suggestions))
	for key, decision := range r.suggestions {
		out[key] = decision
	}
	return out
}

// AuditRecords returns the audit trail in insertion order.
func (r *MemoryRepository) AuditRecords() []projection.AuditRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]projection.AuditRecord, 0, len(r.auditOrder))
	for _, key := range r.auditOrder {
		out = append(out, r.audits[key])
	}
	return out
}

// ApplyMatches projects each decision into ops and applies them. A decision
// failing the persistability check aborts the batch before any write.
func (r *MemoryRepository) ApplyMatches(ctx context.Context, decisions []models.MatchDecision) error {
	if err := ctx.Err(); err != nil {
		return apperrors.PersistenceError(apperrors.CodeApplyFailed, "apply_matches", err)
	}

	var batches [][]projection.ApplyOp
	for i := range decisions {
		ops, err := projection.ToApplyOps(&decisions[i])
		if err != nil {
			return err
		}
		batches = append(batches, ops)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ops := range batches {
		for _, op := range ops {
			r.applyOp(op)
		}
	}
	return nil
}

func (r *MemoryRepository) applyOp(op projection.ApplyOp) {
	switch op.Type {
	case projection.OpUpsertEdge:
		r.edges[Edge{DocID: op.DocID, TxID: op.TxID}] = true

	case projection.OpUpsertGroup:
		r.groups[op.GroupID] = Group{
			GroupID:  op.GroupID,
			DocIDs:   append([]string(nil), op.DocIDs...),
			TxIDs:    append([]string(nil), op.TxIDs...),
			Relation: op.Relation,
			State:    op.State,
		}

	case projection.OpUpdateDoc:
		if doc, ok := r.docs[op.EntityID]; ok {
			doc.LinkState = op.LinkState
			if op.OpenAmount != nil {
				amount := *op.OpenAmount
				doc.OpenAmount = &amount
			}
		}

	case projection.OpUpdateTx:
		if tx, ok := r.txs[op.EntityID]; ok {
			tx.LinkState = op.LinkState
		}
	}
}

// SaveSuggestions stores non-final decisions keyed by their decision key,
// so re-running a pass over unchanged input never duplicates a suggestion.
func (r *MemoryRepository) SaveSuggestions(ctx context.Context, decisions []models.MatchDecision) error {
	if err := ctx.Err(); err != nil {
		return apperrors.PersistenceError(apperrors.CodeApplyFailed, "save_suggestions", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range decisions {
		key := projection.DecisionKey(&decisions[i])
		if _, exists := r.suggestions[key]; exists {
			continue
		}
		r.suggestions[key] = decisions[i]
	}
	return nil
}

// Audit appends records, skipping keys already present.
func (r *MemoryRepository) Audit(ctx context.Context, records []projection.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.PersistenceError(apperrors.CodeAuditFailed, "audit", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		if _, exists := r.audits[record.Key]; exists {
			continue
		}
		r.audits[record.Key] = record
		r.auditOrder = append(r.auditOrder, record.Key)
	}
	return nil
}

// LoadTxHistory returns the tenant's transactions inside the lookback
// window, newest first, optionally filtered to one vendor.
func (r *MemoryRepository) LoadTxHistory(ctx context.Context, tenantID string, query HistoryQuery) ([]*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeApplyFailed, "load_tx_history", err)
	}

	asOf := query.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	var cutoff time.Time
	if query.LookbackDays > 0 {
		cutoff = asOf.AddDate(0, 0, -query.LookbackDays)
	}

	vendorKey := canonical.NormalizeVendor(query.VendorKey)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Transaction
	for _, tx := range r.txs {
		if tx.TenantID != tenantID {
			continue
		}
		if tx.BookingDate.After(asOf) {
			continue
		}
		if !cutoff.IsZero() && tx.BookingDate.Before(cutoff) {
			continue
		}
		if vendorKey != "" && canonical.NormalizeVendor(tx.Vendor) != vendorKey {
			continue
		}
		copied := *tx
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID < out[j].ID
	})

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}
