// Package projection converts match decisions into idempotent storage
// operations and replayable audit records. Decisions are pure values; this
// package is the only place that derives entity mutations from them, so the
// persistability rules live here and nowhere else.
package projection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"
)

// OpType identifies one kind of storage operation.
type OpType string

const (
	// OpUpsertEdge links one document to one transaction.
	OpUpsertEdge OpType = "upsert_edge"
	// OpUpsertGroup records a match group spanning several entities.
	OpUpsertGroup OpType = "upsert_group"
	// OpUpdateDoc mutates a document's link state and open amount.
	OpUpdateDoc OpType = "update_doc"
	// OpUpdateTx mutates a transaction's link state.
	OpUpdateTx OpType = "update_tx"
)

// ApplyOp is one idempotent storage operation. Replaying the same op is a
// no-op for the store: edges and groups are keyed by their ids, updates set
// absolute values rather than deltas.
type ApplyOp struct {
	Type OpType `json:"type"`

	// Edge fields, set for upsert_edge.
	DocID string `json:"doc_id,omitempty"`
	TxID  string `json:"tx_id,omitempty"`

	// Group fields, set for upsert_group.
	GroupID  string   `json:"group_id,omitempty"`
	DocIDs   []string `json:"doc_ids,omitempty"`
	TxIDs    []string `json:"tx_ids,omitempty"`
	Relation string   `json:"relation,omitempty"`
	State    string   `json:"state,omitempty"`

	// Update fields, set for update_doc and update_tx. EntityID names the
	// entity, LinkState the absolute new state. OpenAmount is only set on
	// update_doc when the decision carries a remaining claim.
	EntityID   string           `json:"entity_id,omitempty"`
	LinkState  models.LinkState `json:"link_state,omitempty"`
	OpenAmount *decimal.Decimal `json:"open_amount,omitempty"`
}

// AuditRecord is a flattened, deterministic trace of one decision. Two runs
// over the same input produce byte-identical records unless a clock is
// supplied.
type AuditRecord struct {
	Key          string                       `json:"key"`
	State        models.DecisionState         `json:"state"`
	Relation     models.RelationType          `json:"relation"`
	TxIDs        []string                     `json:"tx_ids"`
	DocIDs       []string                     `json:"doc_ids"`
	Confidence   float64                      `json:"confidence"`
	Reasons      []string                     `json:"reasons"`
	Inputs       map[string]models.InputValue `json:"inputs,omitempty"`
	Actor        models.Actor                 `json:"actor"`
	MatchGroupID string                       `json:"match_group_id,omitempty"`
	RecordedAt   *time.Time                   `json:"recorded_at,omitempty"`
}

// AssertDecisionPersistable validates the invariants a decision must satisfy
// before any storage operation may be derived from it. Violations are
// policy errors, never coerced into a partial write.
func AssertDecisionPersistable(md *models.MatchDecision) error {
	if md == nil {
		return apperrors.PolicyError(apperrors.CodeEmptyDecision, "nil decision")
	}

	if len(md.TxIDs) == 0 && len(md.DocIDs) == 0 {
		return apperrors.PolicyError(apperrors.CodeEmptyDecision,
			fmt.Sprintf("%s %s decision references no entities", md.State, md.Relation))
	}

	if md.Relation == models.RelationManyToMany {
		if md.State == models.DecisionFinal || md.State == models.DecisionPartial {
			return apperrors.PolicyError(apperrors.CodeRelationBarred,
				fmt.Sprintf("many_to_many decision marked %s", md.State))
		}
		return nil
	}

	if md.State == models.DecisionFinal || md.State == models.DecisionPartial {
		if len(md.DocIDs) == 0 || len(md.TxIDs) == 0 {
			return apperrors.PolicyError(apperrors.CodeNotPersistable,
				fmt.Sprintf("%s %s decision needs at least one document and one transaction", md.State, md.Relation))
		}
	}

	return nil
}

// ToApplyOps projects a decision into its minimal operation set: one edge
// per implied (doc, tx) pair, a group record when a match group id exists,
// and entity updates only for final and partial states. Many-to-many
// clusters yield at most a group record.
func ToApplyOps(md *models.MatchDecision) ([]ApplyOp, error) {
	if err := AssertDecisionPersistable(md); err != nil {
		return nil, err
	}

	docIDs := models.SortedUniqueIDs(md.DocIDs)
	txIDs := models.SortedUniqueIDs(md.TxIDs)

	var ops []ApplyOp

	if md.Relation != models.RelationManyToMany {
		ops = append(ops, edgeOps(md.Relation, docIDs, txIDs)...)
	}

	if md.MatchGroupID != "" {
		ops = append(ops, ApplyOp{
			Type:     OpUpsertGroup,
			GroupID:  md.MatchGroupID,
			DocIDs:   docIDs,
			TxIDs:    txIDs,
			Relation: md.Relation.String(),
			State:    md.State.String(),
		})
	}

	if md.State != models.DecisionFinal && md.State != models.DecisionPartial {
		return ops, nil
	}

	linkState := inferLinkState(md)
	for _, docID := range docIDs {
		op := ApplyOp{
			Type:      OpUpdateDoc,
			EntityID:  docID,
			LinkState: linkState,
		}
		if md.OpenAmountAfter != nil {
			amount := *md.OpenAmountAfter
			op.OpenAmount = &amount
		}
		ops = append(ops, op)
	}
	for _, txID := range txIDs {
		ops = append(ops, ApplyOp{
			Type:      OpUpdateTx,
			EntityID:  txID,
			LinkState: linkState,
		})
	}

	return ops, nil
}

// edgeOps emits one upsert_edge per (doc, tx) pair the relation implies.
func edgeOps(relation models.RelationType, docIDs, txIDs []string) []ApplyOp {
	var ops []ApplyOp

	switch relation {
	case models.RelationOneToOne:
		if len(docIDs) > 0 && len(txIDs) > 0 {
			ops = append(ops, ApplyOp{Type: OpUpsertEdge, DocID: docIDs[0], TxID: txIDs[0]})
		}
	case models.RelationManyToOne:
		if len(txIDs) > 0 {
			for _, docID := range docIDs {
				ops = append(ops, ApplyOp{Type: OpUpsertEdge, DocID: docID, TxID: txIDs[0]})
			}
		}
	case models.RelationOneToMany:
		if len(docIDs) > 0 {
			for _, txID := range txIDs {
				ops = append(ops, ApplyOp{Type: OpUpsertEdge, DocID: docIDs[0], TxID: txID})
			}
		}
	}

	return ops
}

// inferLinkState maps the decision state to the link state written to the
// participating entities. An explicit override on the decision wins.
func inferLinkState(md *models.MatchDecision) models.LinkState {
	if md.LinkStateOverride != "" {
		return md.LinkStateOverride
	}

	switch md.State {
	case models.DecisionFinal:
		return models.LinkStateLinked
	case models.DecisionPartial:
		return models.LinkStatePartial
	default:
		return models.LinkStateSuggested
	}
}

// ToAuditRecord flattens a decision into a deterministic audit record. The
// ids are sorted and deduplicated so identical decisions always serialize
// identically; the timestamp is only set when the caller supplies a clock.
func ToAuditRecord(md *models.MatchDecision, recordedAt *time.Time) AuditRecord {
	record := AuditRecord{
		Key:          DecisionKey(md),
		State:        md.State,
		Relation:     md.Relation,
		TxIDs:        models.SortedUniqueIDs(md.TxIDs),
		DocIDs:       models.SortedUniqueIDs(md.DocIDs),
		Confidence:   md.Confidence,
		Actor:        md.Actor,
		MatchGroupID: md.MatchGroupID,
	}

	if len(md.Reasons) > 0 {
		record.Reasons = append([]string(nil), md.Reasons...)
	}
	if len(md.Inputs) > 0 {
		record.Inputs = make(map[string]models.InputValue, len(md.Inputs))
		for k, v := range md.Inputs {
			record.Inputs[k] = v
		}
	}
	if recordedAt != nil {
		t := recordedAt.UTC()
		record.RecordedAt = &t
	}

	return record
}

// DecisionKey builds a stable deduplication key for a decision. Repeated
// runs over identical input yield identical keys.
func DecisionKey(md *models.MatchDecision) string {
	txIDs := models.SortedUniqueIDs(md.TxIDs)
	docIDs := models.SortedUniqueIDs(md.DocIDs)

	parts := []string{
		md.State.String(),
		md.Relation.String(),
		"tx:" + strings.Join(txIDs, ","),
		"doc:" + strings.Join(docIDs, ","),
	}
	if md.MatchGroupID != "" {
		parts = append(parts, "grp:"+md.MatchGroupID)
	}

	return strings.Join(parts, "|")
}

// SortOps orders an operation list deterministically: edges first, then the
// group record, then document updates, then transaction updates, each block
// sorted by id. ToApplyOps already emits this order; SortOps restores it
// after a caller merged op lists from several decisions.
func SortOps(ops []ApplyOp) {
	rank := map[OpType]int{
		OpUpsertEdge:  0,
		OpUpsertGroup: 1,
		OpUpdateDoc:   2,
		OpUpdateTx:    3,
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if rank[ops[i].Type] != rank[ops[j].Type] {
			return rank[ops[i].Type] < rank[ops[j].Type]
		}
		ki := ops[i].DocID + "|" + ops[i].TxID + "|" + ops[i].GroupID + "|" + ops[i].EntityID
		kj := ops[j].DocID + "|" + ops[j].TxID + "|" + ops[j].GroupID + "|" + ops[j].EntityID
		return ki < kj
	})
}
