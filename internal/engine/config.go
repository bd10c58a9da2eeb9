// Package engine implements the reconciliation decision engine: candidate
// generation, relation detection, the bounded subset-sum solver, the
// hard/soft decision cascades and the pipeline entry point.
//
// The engine is a pure, synchronous computation over an immutable snapshot
// of documents and transactions. All I/O (history lookups, persistence,
// audit) lives behind the repository boundary; the engine never suspends.
//
// Example usage:
//
//	cfg := engine.DefaultConfig()
//	eng := engine.New(cfg)
//	result, err := eng.Reconcile(docs, txs, time.Now())
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToleranceConfig controls when two monetary amounts count as equal.
// The effective tolerance is max(Absolute, Percent/100 * max(|a|,|b|)).
type ToleranceConfig struct {
	// Absolute is the flat tolerance in currency units (not cents).
	Absolute decimal.Decimal `json:"absolute"`
	// Percent is the relative tolerance in percent of the larger amount.
	Percent decimal.Decimal `json:"percent"`
}

// WindowConfig controls the booking-date windows around document anchors.
type WindowConfig struct {
	// DateWindowDays extends the window symmetrically around the anchor.
	DateWindowDays int `json:"date_window_days"`
	// DueDateExtendDays pushes the upper bound past the due date.
	DueDateExtendDays int `json:"due_date_extend_days"`
	// GraceDays delays overdue classification after the due date.
	GraceDays int `json:"grace_days"`
}

// SubsetSumConfig bounds the many-to-one solver.
type SubsetSumConfig struct {
	// MaxCandidates caps the document set the solver searches over.
	// Larger sets are routed to ambiguity handling instead.
	MaxCandidates int `json:"max_candidates"`
	// MaxSolutions stops the search once exceeded; the caller only needs
	// to distinguish zero, one and more than one solution.
	MaxSolutions int `json:"max_solutions"`
}

// ScoringConfig controls the weighted soft-match score.
type ScoringConfig struct {
	MinSuggestScore float64 `json:"min_suggest_score"`
	AmountWeight    float64 `json:"amount_weight"`
	DateWeight      float64 `json:"date_weight"`
	VendorWeight    float64 `json:"vendor_weight"`
	IdentityWeight  float64 `json:"identity_weight"`
	// PartialPenalty scales the score down when partial-payment keywords
	// are present.
	PartialPenalty float64 `json:"partial_penalty"`
}

// KeywordConfig is the single home of every keyword table the engine
// consults. No component keeps a private fallback copy.
type KeywordConfig struct {
	Partial      []string `json:"partial"`
	Batch        []string `json:"batch"`
	Fee          []string `json:"fee"`
	Technical    []string `json:"technical"`
	Prepayment   []string `json:"prepayment"`
	Subscription []string `json:"subscription"`
	Private      []string `json:"private"`
}

// LifecycleConfig carries the thresholds of the lifecycle evaluators.
type LifecycleConfig struct {
	// OverdueRematchDays is the width of the rematch window proposed for
	// overdue documents.
	OverdueRematchDays int `json:"overdue_rematch_days"`
	// EigenbelegMaxAmount is the upper bound for eigenbeleg candidates.
	EigenbelegMaxAmount decimal.Decimal `json:"eigenbeleg_max_amount"`
	// FeeMaxAmount is the upper bound for fee classification.
	FeeMaxAmount decimal.Decimal `json:"fee_max_amount"`
	// SubscriptionMinOccurrences is how often a vendor must recur in the
	// history before a booking counts as a subscription.
	SubscriptionMinOccurrences int `json:"subscription_min_occurrences"`
}

// Config is the immutable policy bundle shared by every engine component.
// Resolve one per run by merging a partial override onto the defaults.
type Config struct {
	Tolerance ToleranceConfig `json:"tolerance"`
	Window    WindowConfig    `json:"window"`
	SubsetSum SubsetSumConfig `json:"subset_sum"`
	Scoring   ScoringConfig   `json:"scoring"`
	Keywords  KeywordConfig   `json:"keywords"`
	Lifecycle LifecycleConfig `json:"lifecycle"`

	// OneToManyMaxRecruits caps how many co-payer transactions a partial
	// seed may recruit.
	OneToManyMaxRecruits int `json:"one_to_many_max_recruits"`
	// ClusterMaxEntities caps each side of a diagnostic cluster.
	ClusterMaxEntities int `json:"cluster_max_entities"`

	// RequiredDocFields lists document fields the lifecycle evaluator
	// treats as mandatory ("vendor", "invoice_date", "invoice_no").
	RequiredDocFields []string `json:"required_doc_fields"`
}

// DefaultConfig returns the hard-coded policy defaults.
func DefaultConfig() *Config {
	return &Config{
		Tolerance: ToleranceConfig{
			Absolute: decimal.NewFromFloat(0.02),
			Percent:  decimal.NewFromFloat(0.1),
		},
		Window: WindowConfig{
			DateWindowDays:    30,
			DueDateExtendDays: 14,
			GraceDays:         5,
		},
		SubsetSum: SubsetSumConfig{
			MaxCandidates: 12,
			MaxSolutions:  3,
		},
		Scoring: ScoringConfig{
			MinSuggestScore: 0.62,
			AmountWeight:    0.5,
			DateWeight:      0.2,
			VendorWeight:    0.2,
			IdentityWeight:  0.1,
			PartialPenalty:  0.7,
		},
		Keywords: KeywordConfig{
			Partial:      []string{"teilzahlung", "anzahlung", "abschlag", "rate", "ratenzahlung", "partial", "installment", "1 von", "teil"},
			Batch:        []string{"sammelueberweisung", "sammelzahlung", "sammler", "batch", "collective"},
			Fee:          []string{"entgelt", "gebuehr", "gebuhr", "kontofuehrung", "fee", "charge", "bank charge"},
			Technical:    []string{"test", "testbuchung", "storno", "chargeback", "ruecklastschrift", "verification"},
			Prepayment:   []string{"vorauszahlung", "vorkasse", "prepayment", "advance", "proforma"},
			Subscription: []string{"abo", "abonnement", "subscription", "monatlich", "monthly", "mitgliedsbeitrag", "membership"},
			Private:      []string{"privat", "private", "personal"},
		},
		Lifecycle: LifecycleConfig{
			OverdueRematchDays:         21,
			EigenbelegMaxAmount:        decimal.NewFromInt(250),
			FeeMaxAmount:               decimal.NewFromInt(25),
			SubscriptionMinOccurrences: 3,
		},
		OneToManyMaxRecruits: 10,
		ClusterMaxEntities:   20,
		RequiredDocFields:    []string{"vendor", "invoice_date"},
	}
}

// Override is a partial configuration merged onto the defaults. Nil
// pointers and empty slices leave the corresponding group untouched;
// merging is deep per nested policy group.
type Override struct {
	Tolerance *ToleranceConfig `json:"tolerance,omitempty"`
	Window    *WindowConfig    `json:"window,omitempty"`
	SubsetSum *SubsetSumConfig `json:"subset_sum,omitempty"`
	Scoring   *ScoringConfig   `json:"scoring,omitempty"`
	Keywords  *KeywordConfig   `json:"keywords,omitempty"`
	Lifecycle *LifecycleConfig `json:"lifecycle,omitempty"`

	OneToManyMaxRecruits *int     `json:"one_to_many_max_recruits,omitempty"`
	ClusterMaxEntities   *int     `json:"cluster_max_entities,omitempty"`
	RequiredDocFields    []string `json:"required_doc_fields,omitempty"`
}

// Resolve merges the override onto the defaults and validates the result.
func Resolve(override *Override) (*Config, error) {
	cfg := DefaultConfig()
	if override != nil {
		if override.Tolerance != nil {
			cfg.Tolerance = *override.Tolerance
		}
		if override.Window != nil {
			cfg.Window = *override.Window
		}
		if override.SubsetSum != nil {
			cfg.SubsetSum = *override.SubsetSum
		}
		if override.Scoring != nil {
			cfg.Scoring = *override.Scoring
		}
		if override.Keywords != nil {
			cfg.Keywords = mergeKeywords(cfg.Keywords, *override.Keywords)
		}
		if override.Lifecycle != nil {
			cfg.Lifecycle = *override.Lifecycle
		}
		if override.OneToManyMaxRecruits != nil {
			cfg.OneToManyMaxRecruits = *override.OneToManyMaxRecruits
		}
		if override.ClusterMaxEntities != nil {
			cfg.ClusterMaxEntities = *override.ClusterMaxEntities
		}
		if len(override.RequiredDocFields) > 0 {
			cfg.RequiredDocFields = append([]string(nil), override.RequiredDocFields...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeKeywords replaces only the lists the override actually sets, so a
// caller tuning the partial keywords keeps the default fee list.
func mergeKeywords(base, override KeywordConfig) KeywordConfig {
	if len(override.Partial) > 0 {
		base.Partial = override.Partial
	}
	if len(override.Batch) > 0 {
		base.Batch = override.Batch
	}
	if len(override.Fee) > 0 {
		base.Fee = override.Fee
	}
	if len(override.Technical) > 0 {
		base.Technical = override.Technical
	}
	if len(override.Prepayment) > 0 {
		base.Prepayment = override.Prepayment
	}
	if len(override.Subscription) > 0 {
		base.Subscription = override.Subscription
	}
	if len(override.Private) > 0 {
		base.Private = override.Private
	}
	return base
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Tolerance.Absolute.IsNegative() {
		return fmt.Errorf("absolute tolerance cannot be negative: %s", c.Tolerance.Absolute)
	}
	if c.Tolerance.Percent.IsNegative() || c.Tolerance.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("percent tolerance must be between 0 and 100: %s", c.Tolerance.Percent)
	}
	if c.Window.DateWindowDays < 0 {
		return fmt.Errorf("date window days cannot be negative: %d", c.Window.DateWindowDays)
	}
	if c.Window.DueDateExtendDays < 0 {
		return fmt.Errorf("due date extension days cannot be negative: %d", c.Window.DueDateExtendDays)
	}
	if c.SubsetSum.MaxCandidates < 2 {
		return fmt.Errorf("subset-sum max candidates must be at least 2: %d", c.SubsetSum.MaxCandidates)
	}
	if c.SubsetSum.MaxSolutions < 1 {
		return fmt.Errorf("subset-sum max solutions must be positive: %d", c.SubsetSum.MaxSolutions)
	}
	if c.Scoring.MinSuggestScore < 0 || c.Scoring.MinSuggestScore > 1 {
		return fmt.Errorf("minimum suggest score must be between 0.0 and 1.0: %f", c.Scoring.MinSuggestScore)
	}
	total := c.Scoring.AmountWeight + c.Scoring.DateWeight + c.Scoring.VendorWeight + c.Scoring.IdentityWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("score weights should sum to approximately 1.0, got %f", total)
	}
	if c.OneToManyMaxRecruits < 0 {
		return fmt.Errorf("one-to-many max recruits cannot be negative: %d", c.OneToManyMaxRecruits)
	}
	if c.ClusterMaxEntities < 1 {
		return fmt.Errorf("cluster max entities must be positive: %d", c.ClusterMaxEntities)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Keywords = KeywordConfig{
		Partial:      append([]string(nil), c.Keywords.Partial...),
		Batch:        append([]string(nil), c.Keywords.Batch...),
		Fee:          append([]string(nil), c.Keywords.Fee...),
		Technical:    append([]string(nil), c.Keywords.Technical...),
		Prepayment:   append([]string(nil), c.Keywords.Prepayment...),
		Subscription: append([]string(nil), c.Keywords.Subscription...),
		Private:      append([]string(nil), c.Keywords.Private...),
	}
	out.RequiredDocFields = append([]string(nil), c.RequiredDocFields...)
	return &out
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{AbsTol: %s, PctTol: %s%%, Window: %dd, SubsetSum: %d/%d, MinSuggest: %.2f}",
		c.Tolerance.Absolute, c.Tolerance.Percent, c.Window.DateWindowDays,
		c.SubsetSum.MaxCandidates, c.SubsetSum.MaxSolutions, c.Scoring.MinSuggestScore)
}
