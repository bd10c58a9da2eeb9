package models

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func createValidDocument() *Document {
	invoiceDate := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	return &Document{
		ID:            "doc-1",
		TenantID:      "tenant-1",
		NominalAmount: decimal.NewFromFloat(119.00),
		Currency:      "EUR",
		LinkState:     LinkStateUnlinked,
		InvoiceDate:   &invoiceDate,
		Vendor:        "acme",
	}
}

func createValidTransaction() *Transaction {
	return &Transaction{
		ID:          "tx-1",
		TenantID:    "tenant-1",
		Amount:      decimal.NewFromFloat(119.00),
		Direction:   DirectionOut,
		Currency:    "EUR",
		BookingDate: time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
		LinkState:   LinkStateUnlinked,
	}
}

func TestLinkStateIsMatchable(t *testing.T) {
	tests := []struct {
		state     LinkState
		matchable bool
	}{
		{LinkStateUnlinked, true},
		{LinkStateSuggested, true},
		{LinkStatePartial, true},
		{LinkStateLinked, false},
		{LinkState("archived"), false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsMatchable(); got != tt.matchable {
				t.Errorf("IsMatchable() = %v, want %v", got, tt.matchable)
			}
		})
	}
}

func TestLinkStateIsValid(t *testing.T) {
	for _, state := range []LinkState{LinkStateUnlinked, LinkStateSuggested, LinkStatePartial, LinkStateLinked} {
		if !state.IsValid() {
			t.Errorf("Expected %s to be valid", state)
		}
	}
	if LinkState("open").IsValid() {
		t.Error("Expected unknown state to be invalid")
	}
}

func TestDirectionIsValid(t *testing.T) {
	if !DirectionIn.IsValid() || !DirectionOut.IsValid() {
		t.Error("Expected in/out to be valid directions")
	}
	if Direction("sideways").IsValid() {
		t.Error("Expected unknown direction to be invalid")
	}
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr bool
	}{
		{"valid document", func(d *Document) {}, false},
		{"empty ID", func(d *Document) { d.ID = " " }, true},
		{"empty tenant", func(d *Document) { d.TenantID = "" }, true},
		{"empty currency", func(d *Document) { d.Currency = "" }, true},
		{"unknown link state", func(d *Document) { d.LinkState = "gone" }, true},
		{"negative nominal amount is allowed", func(d *Document) {
			d.NominalAmount = decimal.NewFromFloat(-80.00)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := createValidDocument()
			tt.mutate(doc)
			err := doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{"valid transaction", func(tx *Transaction) {}, false},
		{"empty ID", func(tx *Transaction) { tx.ID = "" }, true},
		{"empty tenant", func(tx *Transaction) { tx.TenantID = " " }, true},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromFloat(-1.00) }, true},
		{"unknown direction", func(tx *Transaction) { tx.Direction = "sideways" }, true},
		{"empty currency", func(tx *Transaction) { tx.Currency = "" }, true},
		{"unknown link state", func(tx *Transaction) { tx.LinkState = "gone" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := createValidTransaction()
			tt.mutate(tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentTargetAmount(t *testing.T) {
	doc := createValidDocument()
	if !doc.TargetAmount().Equal(decimal.NewFromFloat(119.00)) {
		t.Errorf("Expected nominal amount as target, got %s", doc.TargetAmount())
	}

	open := decimal.NewFromFloat(50.00)
	doc.OpenAmount = &open
	if !doc.TargetAmount().Equal(decimal.NewFromFloat(50.00)) {
		t.Errorf("Expected open amount to govern, got %s", doc.TargetAmount())
	}

	exhausted := decimal.Zero
	doc.OpenAmount = &exhausted
	if !doc.TargetAmount().Equal(decimal.NewFromFloat(119.00)) {
		t.Errorf("Expected non-positive open amount to fall back to nominal, got %s", doc.TargetAmount())
	}

	doc.OpenAmount = nil
	doc.NominalAmount = decimal.NewFromFloat(-80.00)
	if !doc.TargetAmount().Equal(decimal.NewFromFloat(80.00)) {
		t.Errorf("Expected absolute nominal for credit notes, got %s", doc.TargetAmount())
	}
}

func TestFeatureVectorHasIdentity(t *testing.T) {
	fv := &FeatureVector{}
	if fv.HasIdentity() {
		t.Error("Expected no identity signal on empty vector")
	}
	for _, set := range []func(*FeatureVector){
		func(fv *FeatureVector) { fv.IBANMatch = true },
		func(fv *FeatureVector) { fv.InvoiceNoMatch = true },
		func(fv *FeatureVector) { fv.EndToEndMatch = true },
	} {
		fv := &FeatureVector{}
		set(fv)
		if !fv.HasIdentity() {
			t.Error("Expected identity signal after setting a field")
		}
	}
}

func TestFeatureVectorUnanchored(t *testing.T) {
	fv := &FeatureVector{DayDelta: math.Inf(1)}
	if !fv.Unanchored() {
		t.Error("Expected infinite day delta to mean unanchored")
	}
	fv.DayDelta = 3
	if fv.Unanchored() {
		t.Error("Expected finite day delta to mean anchored")
	}
}

func TestSortedUniqueIDs(t *testing.T) {
	got := SortedUniqueIDs([]string{"tx-2", "tx-1", "tx-2", "", "tx-3"})
	want := []string{"tx-1", "tx-2", "tx-3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortedUniqueIDs() = %v, want %v", got, want)
	}

	if got := SortedUniqueIDs(nil); len(got) != 0 {
		t.Errorf("Expected empty result for nil input, got %v", got)
	}
}

func TestMatchDecisionNormalize(t *testing.T) {
	decision := &MatchDecision{
		TxIDs:  []string{"tx-2", "tx-1", "tx-1"},
		DocIDs: []string{"doc-b", "doc-a"},
	}
	decision.Normalize()

	if !reflect.DeepEqual(decision.TxIDs, []string{"tx-1", "tx-2"}) {
		t.Errorf("Expected normalized tx ids, got %v", decision.TxIDs)
	}
	if !reflect.DeepEqual(decision.DocIDs, []string{"doc-a", "doc-b"}) {
		t.Errorf("Expected normalized doc ids, got %v", decision.DocIDs)
	}
}

func TestMatchDecisionHasReason(t *testing.T) {
	decision := &MatchDecision{Reasons: []string{"HARD_IBAN_AMOUNT", "LINE_ITEM_NET_MATCH"}}
	if !decision.HasReason("LINE_ITEM_NET_MATCH") {
		t.Error("Expected reason to be found")
	}
	if decision.HasReason("SCORE_ONLY") {
		t.Error("Expected missing reason to be reported absent")
	}
}
