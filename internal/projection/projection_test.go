package projection

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"
)

func countOps(ops []ApplyOp, opType OpType) int {
	count := 0
	for _, op := range ops {
		if op.Type == opType {
			count++
		}
	}
	return count
}

func TestToApplyOpsFinalOneToOne(t *testing.T) {
	decision := &models.MatchDecision{
		State:      models.DecisionFinal,
		Relation:   models.RelationOneToOne,
		TxIDs:      []string{"tx-1"},
		DocIDs:     []string{"doc-1"},
		Confidence: 1.0,
		Actor:      models.ActorSystem,
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := countOps(ops, OpUpsertEdge); got != 1 {
		t.Errorf("Expected exactly 1 upsert_edge, got %d", got)
	}
	if got := countOps(ops, OpUpdateDoc); got != 1 {
		t.Errorf("Expected exactly 1 update_doc, got %d", got)
	}
	if got := countOps(ops, OpUpdateTx); got != 1 {
		t.Errorf("Expected exactly 1 update_tx, got %d", got)
	}
	if got := countOps(ops, OpUpsertGroup); got != 0 {
		t.Errorf("Expected no group op without a group id, got %d", got)
	}

	for _, op := range ops {
		switch op.Type {
		case OpUpsertEdge:
			if op.DocID != "doc-1" || op.TxID != "tx-1" {
				t.Errorf("Edge references wrong entities: %+v", op)
			}
		case OpUpdateDoc, OpUpdateTx:
			if op.LinkState != models.LinkStateLinked {
				t.Errorf("Expected linked state on %s, got %s", op.Type, op.LinkState)
			}
		}
	}
}

func TestToApplyOpsAmbiguousManyToMany(t *testing.T) {
	decision := &models.MatchDecision{
		State:        models.DecisionAmbiguous,
		Relation:     models.RelationManyToMany,
		TxIDs:        []string{"tx-1", "tx-2"},
		DocIDs:       []string{"doc-1", "doc-2"},
		Confidence:   0.4,
		Actor:        models.ActorSystem,
		MatchGroupID: "grp-1",
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := countOps(ops, OpUpsertGroup); got != 1 {
		t.Errorf("Expected exactly 1 upsert_group, got %d", got)
	}
	if got := countOps(ops, OpUpsertEdge); got != 0 {
		t.Errorf("Expected no edges for many_to_many, got %d", got)
	}
	if got := countOps(ops, OpUpdateDoc) + countOps(ops, OpUpdateTx); got != 0 {
		t.Errorf("Expected no entity updates for many_to_many, got %d", got)
	}
}

func TestToApplyOpsManyToOneEdges(t *testing.T) {
	decision := &models.MatchDecision{
		State:        models.DecisionFinal,
		Relation:     models.RelationManyToOne,
		TxIDs:        []string{"tx-1"},
		DocIDs:       []string{"doc-2", "doc-1", "doc-3"},
		Confidence:   1.0,
		Actor:        models.ActorSystem,
		MatchGroupID: "grp-1",
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := countOps(ops, OpUpsertEdge); got != 3 {
		t.Errorf("Expected one edge per document, got %d", got)
	}
	if got := countOps(ops, OpUpsertGroup); got != 1 {
		t.Errorf("Expected 1 group op, got %d", got)
	}

	// Edges come out sorted by document id.
	var edgeDocs []string
	for _, op := range ops {
		if op.Type == OpUpsertEdge {
			edgeDocs = append(edgeDocs, op.DocID)
			if op.TxID != "tx-1" {
				t.Errorf("Expected all edges to reference tx-1, got %s", op.TxID)
			}
		}
	}
	expected := []string{"doc-1", "doc-2", "doc-3"}
	if !reflect.DeepEqual(edgeDocs, expected) {
		t.Errorf("Expected edges sorted by doc id %v, got %v", expected, edgeDocs)
	}
}

func TestToApplyOpsPartialOneToMany(t *testing.T) {
	remaining := decimal.NewFromFloat(9.00)
	decision := &models.MatchDecision{
		State:           models.DecisionPartial,
		Relation:        models.RelationOneToMany,
		TxIDs:           []string{"tx-1"},
		DocIDs:          []string{"doc-1"},
		Confidence:      0.9,
		Actor:           models.ActorSystem,
		OpenAmountAfter: &remaining,
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var docUpdate *ApplyOp
	for i := range ops {
		if ops[i].Type == OpUpdateDoc {
			docUpdate = &ops[i]
		}
	}
	if docUpdate == nil {
		t.Fatal("Expected an update_doc op")
	}
	if docUpdate.LinkState != models.LinkStatePartial {
		t.Errorf("Expected partial link state, got %s", docUpdate.LinkState)
	}
	if docUpdate.OpenAmount == nil || !docUpdate.OpenAmount.Equal(remaining) {
		t.Errorf("Expected open amount 9.00 carried, got %v", docUpdate.OpenAmount)
	}

	for _, op := range ops {
		if op.Type == OpUpdateTx && op.LinkState != models.LinkStatePartial {
			t.Errorf("Expected partial link state on tx update, got %s", op.LinkState)
		}
	}
}

func TestToApplyOpsSuggestedLeavesEntitiesAlone(t *testing.T) {
	decision := &models.MatchDecision{
		State:      models.DecisionSuggested,
		Relation:   models.RelationOneToOne,
		TxIDs:      []string{"tx-1"},
		DocIDs:     []string{"doc-1"},
		Confidence: 0.8,
		Actor:      models.ActorSystem,
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := countOps(ops, OpUpsertEdge); got != 1 {
		t.Errorf("Expected 1 edge for a suggestion, got %d", got)
	}
	if got := countOps(ops, OpUpdateDoc) + countOps(ops, OpUpdateTx); got != 0 {
		t.Errorf("Expected no entity updates for a suggestion, got %d", got)
	}
}

func TestToApplyOpsLinkStateOverride(t *testing.T) {
	decision := &models.MatchDecision{
		State:             models.DecisionFinal,
		Relation:          models.RelationOneToOne,
		TxIDs:             []string{"tx-1"},
		DocIDs:            []string{"doc-1"},
		Confidence:        1.0,
		Actor:             models.ActorUser,
		LinkStateOverride: models.LinkStatePartial,
	}

	ops, err := ToApplyOps(decision)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, op := range ops {
		if op.Type == OpUpdateDoc && op.LinkState != models.LinkStatePartial {
			t.Errorf("Expected the override to win, got %s", op.LinkState)
		}
	}
}

func TestAssertDecisionPersistableRejections(t *testing.T) {
	tests := []struct {
		name     string
		decision *models.MatchDecision
		code     apperrors.ErrorCode
	}{
		{
			name: "final many_to_many",
			decision: &models.MatchDecision{
				State:    models.DecisionFinal,
				Relation: models.RelationManyToMany,
				TxIDs:    []string{"tx-1"},
				DocIDs:   []string{"doc-1"},
			},
			code: apperrors.CodeRelationBarred,
		},
		{
			name: "partial many_to_many",
			decision: &models.MatchDecision{
				State:    models.DecisionPartial,
				Relation: models.RelationManyToMany,
				TxIDs:    []string{"tx-1"},
				DocIDs:   []string{"doc-1"},
			},
			code: apperrors.CodeRelationBarred,
		},
		{
			name: "final without documents",
			decision: &models.MatchDecision{
				State:    models.DecisionFinal,
				Relation: models.RelationOneToOne,
				TxIDs:    []string{"tx-1"},
			},
			code: apperrors.CodeNotPersistable,
		},
		{
			name: "partial without transactions",
			decision: &models.MatchDecision{
				State:    models.DecisionPartial,
				Relation: models.RelationOneToMany,
				DocIDs:   []string{"doc-1"},
			},
			code: apperrors.CodeNotPersistable,
		},
		{
			name: "no entities at all",
			decision: &models.MatchDecision{
				State:    models.DecisionSuggested,
				Relation: models.RelationOneToOne,
			},
			code: apperrors.CodeEmptyDecision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertDecisionPersistable(tt.decision)
			if err == nil {
				t.Fatal("Expected a policy error")
			}
			matchErr, ok := apperrors.AsMatchError(err)
			if !ok {
				t.Fatalf("Expected a typed error, got %T", err)
			}
			if matchErr.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, matchErr.Code)
			}

			ops, opErr := ToApplyOps(tt.decision)
			if opErr == nil {
				t.Error("Expected ToApplyOps to reject the decision")
			}
			if len(ops) != 0 {
				t.Errorf("Expected zero ops from a rejected decision, got %d", len(ops))
			}
		})
	}
}

func TestToAuditRecordDeterminism(t *testing.T) {
	decision := &models.MatchDecision{
		State:      models.DecisionFinal,
		Relation:   models.RelationManyToOne,
		TxIDs:      []string{"tx-1", "tx-1"},
		DocIDs:     []string{"doc-2", "doc-1", "doc-2"},
		Confidence: 1.0,
		Reasons:    []string{"SUBSET_SUM_EXACT"},
		Actor:      models.ActorSystem,
	}

	first := ToAuditRecord(decision, nil)
	second := ToAuditRecord(decision, nil)

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical records for identical input")
	}
	if !reflect.DeepEqual(first.DocIDs, []string{"doc-1", "doc-2"}) {
		t.Errorf("Expected sorted deduplicated doc ids, got %v", first.DocIDs)
	}
	if !reflect.DeepEqual(first.TxIDs, []string{"tx-1"}) {
		t.Errorf("Expected deduplicated tx ids, got %v", first.TxIDs)
	}
	if first.RecordedAt != nil {
		t.Error("Expected no timestamp without a supplied clock")
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	timed := ToAuditRecord(decision, &now)
	if timed.RecordedAt == nil || !timed.RecordedAt.Equal(now) {
		t.Errorf("Expected the supplied clock to be recorded, got %v", timed.RecordedAt)
	}
}

func TestDecisionKey(t *testing.T) {
	decision := &models.MatchDecision{
		State:    models.DecisionFinal,
		Relation: models.RelationManyToOne,
		TxIDs:    []string{"tx-1"},
		DocIDs:   []string{"doc-2", "doc-1"},
	}

	key := DecisionKey(decision)
	expected := "final|many_to_one|tx:tx-1|doc:doc-1,doc-2"
	if key != expected {
		t.Errorf("Expected key %q, got %q", expected, key)
	}

	decision.MatchGroupID = "grp-9"
	withGroup := DecisionKey(decision)
	expected = "final|many_to_one|tx:tx-1|doc:doc-1,doc-2|grp:grp-9"
	if withGroup != expected {
		t.Errorf("Expected key %q, got %q", expected, withGroup)
	}

	// Id order must not affect the key.
	reordered := &models.MatchDecision{
		State:        decision.State,
		Relation:     decision.Relation,
		TxIDs:        []string{"tx-1"},
		DocIDs:       []string{"doc-1", "doc-2"},
		MatchGroupID: "grp-9",
	}
	if DecisionKey(reordered) != withGroup {
		t.Error("Expected id order not to change the key")
	}
}

func TestSortOps(t *testing.T) {
	ops := []ApplyOp{
		{Type: OpUpdateTx, EntityID: "tx-2"},
		{Type: OpUpsertEdge, DocID: "doc-2", TxID: "tx-1"},
		{Type: OpUpdateDoc, EntityID: "doc-1"},
		{Type: OpUpsertEdge, DocID: "doc-1", TxID: "tx-1"},
		{Type: OpUpsertGroup, GroupID: "grp-1"},
	}

	SortOps(ops)

	expectedTypes := []OpType{OpUpsertEdge, OpUpsertEdge, OpUpsertGroup, OpUpdateDoc, OpUpdateTx}
	for i, op := range ops {
		if op.Type != expectedTypes[i] {
			t.Fatalf("Expected op %d to be %s, got %s", i, expectedTypes[i], op.Type)
		}
	}
	if ops[0].DocID != "doc-1" {
		t.Errorf("Expected edges sorted by doc id, got %s first", ops[0].DocID)
	}
}
