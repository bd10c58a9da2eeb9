package models

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// FeatureVector captures the comparison signals of one document/transaction
// pairing. It is computed once during candidate generation and never
// mutated afterwards.
type FeatureVector struct {
	// AmountDelta is the absolute difference between the transaction value
	// and the resolved document amount.
	AmountDelta decimal.Decimal `json:"amount_delta"`

	// DayDelta is the distance in days between the booking date and the
	// document's window anchor. Positive infinity when the document has
	// no usable date anchor.
	DayDelta float64 `json:"day_delta"`

	IBANMatch      bool `json:"iban_match"`
	InvoiceNoMatch bool `json:"invoice_no_match"`
	EndToEndMatch  bool `json:"end_to_end_match"`
	PartialKeyword bool `json:"partial_keyword"`
	BatchKeyword   bool `json:"batch_keyword"`

	// InWindow reports whether the booking date falls inside the
	// document's date window (always true for unanchored documents).
	InWindow bool `json:"in_window"`

	// AmountResolved reports whether any document amount candidate is
	// tolerance-compatible with the transaction value; ViaCandidate marks
	// a resolution through a declared non-nominal candidate.
	AmountResolved bool `json:"amount_resolved"`
	ViaCandidate   bool `json:"via_candidate"`

	VendorCompatible bool `json:"vendor_compatible"`
}

// HasIdentity reports whether any identity-level signal is set.
func (fv *FeatureVector) HasIdentity() bool {
	return fv.IBANMatch || fv.InvoiceNoMatch || fv.EndToEndMatch
}

// Unanchored reports whether the pairing has no usable date anchor.
func (fv *FeatureVector) Unanchored() bool {
	return math.IsInf(fv.DayDelta, 1)
}

// DocCandidate pairs a document with the feature vector computed against
// one seed transaction.
type DocCandidate struct {
	Doc      *Document
	Features FeatureVector
}

// TxCandidate pairs a transaction with the feature vector computed against
// one seed document.
type TxCandidate struct {
	Tx       *Transaction
	Features FeatureVector
}

// RelationType classifies how documents and transactions relate in a decision.
type RelationType string

const (
	// RelationOneToOne links one transaction to one document
	RelationOneToOne RelationType = "one_to_one"
	// RelationOneToMany links several transactions to one document
	RelationOneToMany RelationType = "one_to_many"
	// RelationManyToOne links one transaction to several documents
	RelationManyToOne RelationType = "many_to_one"
	// RelationManyToMany marks an ambiguous cluster of both sides
	RelationManyToMany RelationType = "many_to_many"
)

// String returns the string representation of RelationType
func (rt RelationType) String() string {
	return string(rt)
}

// Relation is one typed grouping hypothesis produced by relation detection.
// Exactly the fields matching Type are populated.
type Relation struct {
	Type RelationType

	// One-to-one: Seed transaction plus a single candidate.
	Seed      *Transaction
	Candidate *DocCandidate

	// Many-to-one: Seed transaction plus the bounded candidate set.
	Candidates []*DocCandidate

	// One-to-many: the target document, the seeding transaction and the
	// recruited co-payers (seed included).
	Doc          *Document
	Transactions []*Transaction

	// Many-to-many: cluster members plus an opaque hypothesis label used
	// only for diagnostics.
	ClusterDocs []*Document
	ClusterTxs  []*Transaction
	Hypothesis  string
}

// DecisionState classifies the outcome of a matcher cascade.
type DecisionState string

const (
	// DecisionFinal is an automatically bookable settlement
	DecisionFinal DecisionState = "final"
	// DecisionSuggested needs user confirmation
	DecisionSuggested DecisionState = "suggested"
	// DecisionAmbiguous needs human disambiguation
	DecisionAmbiguous DecisionState = "ambiguous"
	// DecisionPartial settles part of a document's open amount
	DecisionPartial DecisionState = "partial"
)

// String returns the string representation of DecisionState
func (ds DecisionState) String() string {
	return string(ds)
}

// Actor identifies who produced a decision.
type Actor string

const (
	// ActorSystem marks engine-produced decisions
	ActorSystem Actor = "system"
	// ActorUser marks manually confirmed decisions
	ActorUser Actor = "user"
)

// InputValue is one entry of the diagnostic inputs bag. The bag is
// serializable context for human review; downstream logic must not branch
// on it except for the documented keys "matched_item_refs" and "solutions".
type InputValue struct {
	Str     string   `json:"str,omitempty"`
	Num     float64  `json:"num,omitempty"`
	Strings []string `json:"strings,omitempty"`
}

// MatchDecision is the pure output of a decision matcher. Decisions never
// mutate the source entities; the persistence projection derives the
// storage operations.
type MatchDecision struct {
	State        DecisionState         `json:"state"`
	Relation     RelationType          `json:"relation"`
	TxIDs        []string              `json:"tx_ids"`
	DocIDs       []string              `json:"doc_ids"`
	Confidence   float64               `json:"confidence"`
	Reasons      []string              `json:"reasons"`
	Inputs       map[string]InputValue `json:"inputs,omitempty"`
	Actor        Actor                 `json:"actor"`
	MatchGroupID string                `json:"match_group_id,omitempty"`

	// LinkStateOverride, when set, replaces the link state the projection
	// would infer from State.
	LinkStateOverride LinkState `json:"link_state_override,omitempty"`

	// OpenAmountAfter carries the remaining claim of a partially settled
	// one-to-many document.
	OpenAmountAfter *decimal.Decimal `json:"open_amount_after,omitempty"`
}

// SortedUniqueIDs returns a sorted copy of ids with duplicates removed.
func SortedUniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Normalize sorts and dedupes the id lists in place. Matchers call this
// before handing a decision out so identical inputs always produce
// byte-identical decisions.
func (md *MatchDecision) Normalize() {
	md.TxIDs = SortedUniqueIDs(md.TxIDs)
	md.DocIDs = SortedUniqueIDs(md.DocIDs)
}

// HasReason reports whether the decision carries the given reason code.
func (md *MatchDecision) HasReason(code string) bool {
	for _, r := range md.Reasons {
		if r == code {
			return true
		}
	}
	return false
}
