package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

func oneToOneRelation(fv models.FeatureVector, docState models.LinkState) models.Relation {
	return models.Relation{
		Type: models.RelationOneToOne,
		Seed: &models.Transaction{ID: "tx-1", TenantID: "t", Currency: "EUR", Amount: decimal.NewFromFloat(100)},
		Candidate: &models.DocCandidate{
			Doc: &models.Document{
				ID:            "doc-1",
				TenantID:      "t",
				Currency:      "EUR",
				NominalAmount: decimal.NewFromFloat(100),
				LinkState:     docState,
			},
			Features: fv,
		},
	}
}

func TestCascadeRuleNames(t *testing.T) {
	tests := []struct {
		relation models.RelationType
		expected []string
	}{
		{
			relation: models.RelationOneToOne,
			expected: []string{"hard_key", "subscription_reuse", "line_item_net", "soft_invoice_no_out_of_window", "weighted_score"},
		},
		{
			relation: models.RelationManyToOne,
			expected: []string{"candidate_bound", "subset_sum"},
		},
		{
			relation: models.RelationOneToMany,
			expected: []string{"payment_sum"},
		},
		{
			relation: models.RelationManyToMany,
			expected: []string{"exact_sum", "cluster_wizard"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.relation), func(t *testing.T) {
			names := CascadeRuleNames(tt.relation)
			if len(names) != len(tt.expected) {
				t.Fatalf("Expected %d rules, got %v", len(tt.expected), names)
			}
			for i, want := range tt.expected {
				if names[i] != want {
					t.Errorf("Rule %d: expected %q, got %q", i, want, names[i])
				}
			}
		})
	}
}

func TestHardKeyRule(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name           string
		features       models.FeatureVector
		expectedReason string
	}{
		{
			name:           "iban plus amount",
			features:       models.FeatureVector{AmountResolved: true, IBANMatch: true, InWindow: true},
			expectedReason: ReasonHardIBANAmount,
		},
		{
			name:           "end-to-end plus amount",
			features:       models.FeatureVector{AmountResolved: true, EndToEndMatch: true, InWindow: true},
			expectedReason: ReasonHardE2EAmount,
		},
		{
			name:           "invoice number in window",
			features:       models.FeatureVector{AmountResolved: true, InvoiceNoMatch: true, InWindow: true},
			expectedReason: ReasonHardInvoiceNo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := DecideOneToOne(oneToOneRelation(tt.features, models.LinkStateUnlinked), cfg)
			if decision == nil {
				t.Fatal("Expected a decision, got nil")
			}
			if decision.State != models.DecisionFinal {
				t.Errorf("Expected final state, got %s", decision.State)
			}
			if decision.Confidence != 1.0 {
				t.Errorf("Expected confidence 1.0, got %f", decision.Confidence)
			}
			if decision.Reasons[0] != tt.expectedReason {
				t.Errorf("Expected reason %s, got %v", tt.expectedReason, decision.Reasons)
			}
		})
	}
}

func TestHardKeyRuleCarriesLineItemReason(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, ViaCandidate: true, IBANMatch: true, InWindow: true}
	decision := DecideOneToOne(oneToOneRelation(fv, models.LinkStateUnlinked), DefaultConfig())

	if decision == nil || decision.State != models.DecisionFinal {
		t.Fatalf("Expected final decision, got %+v", decision)
	}
	if len(decision.Reasons) != 2 || decision.Reasons[1] != ReasonLineItemNetMatch {
		t.Errorf("Expected candidate resolution appended to reasons, got %v", decision.Reasons)
	}
}

func TestPartialKeywordBlocksHardKey(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, IBANMatch: true, InWindow: true, PartialKeyword: true}
	decision := DecideOneToOne(oneToOneRelation(fv, models.LinkStateUnlinked), DefaultConfig())

	// The dampened weighted score falls below the suggestion threshold.
	if decision != nil {
		t.Errorf("Expected no decision for keyword-dampened pairing, got %+v", decision)
	}
}

func TestSubscriptionReuseRule(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, VendorCompatible: true, InWindow: true}
	rel := oneToOneRelation(fv, models.LinkStateLinked)
	rel.Seed.RecurringHint = true

	decision := DecideOneToOne(rel, DefaultConfig())
	if decision == nil {
		t.Fatal("Expected a decision, got nil")
	}
	if decision.State != models.DecisionFinal || decision.Reasons[0] != ReasonSubscriptionReuse {
		t.Errorf("Expected final subscription reuse, got %s %v", decision.State, decision.Reasons)
	}
}

func TestLinkedDocWithoutRecurrenceYieldsNothing(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, VendorCompatible: true, InWindow: true, IBANMatch: true}
	decision := DecideOneToOne(oneToOneRelation(fv, models.LinkStateLinked), DefaultConfig())

	if decision != nil {
		t.Errorf("Expected linked document to be untouchable outside recurrence, got %+v", decision)
	}
}

func TestLineItemNetRule(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, ViaCandidate: true, InWindow: true, VendorCompatible: true}
	decision := DecideOneToOne(oneToOneRelation(fv, models.LinkStateUnlinked), DefaultConfig())

	if decision == nil {
		t.Fatal("Expected a decision, got nil")
	}
	if decision.State != models.DecisionFinal || decision.Reasons[0] != ReasonLineItemNetMatch {
		t.Errorf("Expected final line-item match, got %s %v", decision.State, decision.Reasons)
	}
}

func TestSoftInvoiceOutOfWindowRule(t *testing.T) {
	fv := models.FeatureVector{AmountResolved: true, InvoiceNoMatch: true, InWindow: false, DayDelta: 40}
	decision := DecideOneToOne(oneToOneRelation(fv, models.LinkStateUnlinked), DefaultConfig())

	if decision == nil {
		t.Fatal("Expected a decision, got nil")
	}
	if decision.State != models.DecisionSuggested || decision.Reasons[0] != ReasonSoftInvoiceNoOutOfWindow {
		t.Errorf("Expected out-of-window suggestion, got %s %v", decision.State, decision.Reasons)
	}
}

func TestWeightedScoreRule(t *testing.T) {
	tests := []struct {
		name           string
		features       models.FeatureVector
		expectDecision bool
		expectedReason string
	}{
		{
			name:           "amount and date in window",
			features:       models.FeatureVector{AmountResolved: true, InWindow: true, VendorCompatible: true},
			expectDecision: true,
			expectedReason: ReasonSoftAmountDate,
		},
		{
			name:           "amount and vendor out of window",
			features:       models.FeatureVector{AmountResolved: true, VendorCompatible: true, DayDelta: 40},
			expectDecision: true,
			expectedReason: ReasonSoftAmountVendorOOW,
		},
		{
			name:           "vendor alone below threshold",
			features:       models.FeatureVector{VendorCompatible: true, InWindow: true},
			expectDecision: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := DecideOneToOne(oneToOneRelation(tt.features, models.LinkStateUnlinked), DefaultConfig())

			if !tt.expectDecision {
				if decision != nil {
					t.Errorf("Expected no decision, got %+v", decision)
				}
				return
			}
			if decision == nil {
				t.Fatal("Expected a decision, got nil")
			}
			if decision.State != models.DecisionSuggested {
				t.Errorf("Expected suggested state, got %s", decision.State)
			}
			if decision.Reasons[0] != tt.expectedReason {
				t.Errorf("Expected reason %s, got %v", tt.expectedReason, decision.Reasons)
			}
		})
	}
}

func TestMatchGroupIDDeterministic(t *testing.T) {
	a := MatchGroupID([]string{"tx-2", "tx-1"}, []string{"doc-1"})
	b := MatchGroupID([]string{"tx-1", "tx-2"}, []string{"doc-1"})
	if a != b {
		t.Errorf("Expected order-insensitive group id, got %s and %s", a, b)
	}

	c := MatchGroupID([]string{"tx-1"}, []string{"doc-1"})
	if a == c {
		t.Error("Expected different participant sets to produce different ids")
	}
}
