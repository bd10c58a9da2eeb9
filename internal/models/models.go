package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LinkState represents how far a document or transaction has been settled.
type LinkState string

const (
	// LinkStateUnlinked marks an entity with no settlement at all.
	LinkStateUnlinked LinkState = "unlinked"
	// LinkStateSuggested marks an entity referenced by a non-final decision.
	LinkStateSuggested LinkState = "suggested"
	// LinkStatePartial marks an entity with a remaining open amount.
	LinkStatePartial LinkState = "partial"
	// LinkStateLinked marks a fully settled entity.
	LinkStateLinked LinkState = "linked"
)

// String returns the string representation of LinkState
func (ls LinkState) String() string {
	return string(ls)
}

// IsValid checks if the link state is one of the known states
func (ls LinkState) IsValid() bool {
	switch ls {
	case LinkStateUnlinked, LinkStateSuggested, LinkStatePartial, LinkStateLinked:
		return true
	}
	return false
}

// IsMatchable reports whether an entity in this state may still participate
// in candidate generation. Linked entities are only considered when the
// caller explicitly asks for them (recurring-transaction reuse).
func (ls LinkState) IsMatchable() bool {
	return ls == LinkStateUnlinked || ls == LinkStateSuggested || ls == LinkStatePartial
}

// Direction represents the flow of a bank transaction.
type Direction string

const (
	// DirectionIn represents money received on the account
	DirectionIn Direction = "in"
	// DirectionOut represents money paid from the account
	DirectionOut Direction = "out"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// LineItem is a single position of a document. Amount is signed the same way
// as the document nominal amount; OpenAmount, when set, is the remaining
// claim of this position only.
type LineItem struct {
	ID         string           `json:"id"`
	Amount     decimal.Decimal  `json:"amount"`
	LinkState  LinkState        `json:"link_state"`
	OpenAmount *decimal.Decimal `json:"open_amount,omitempty"`
}

// Document represents an accounting document (invoice, receipt, contract)
// after ingestion. All free-text fields are already normalized; identity
// fields are canonicalized. Documents are never mutated by the engine,
// only by the persistence projection downstream.
type Document struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// NominalAmount is the signed face value of the document. Positive
	// amounts are claims settled by outgoing payments, negative amounts
	// (credit notes) by incoming ones.
	NominalAmount decimal.Decimal `json:"nominal_amount"`
	Currency      string          `json:"currency"`

	// OpenAmount, when present, is the authoritative remaining claim
	// after partial settlements. Absent, the nominal amount governs.
	OpenAmount *decimal.Decimal `json:"open_amount,omitempty"`

	// AmountCandidates lists alternative target values (line-item nets,
	// gross/net variants) a payment may legitimately settle.
	AmountCandidates []decimal.Decimal `json:"amount_candidates,omitempty"`

	LinkState   LinkState  `json:"link_state"`
	InvoiceDate *time.Time `json:"invoice_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	LineItems []LineItem `json:"line_items,omitempty"`

	// Identity fields, canonical form (upper case, no whitespace).
	IBAN      string `json:"iban,omitempty"`
	InvoiceNo string `json:"invoice_no,omitempty"`
	EndToEnd  string `json:"end_to_end,omitempty"`

	// Normalized names and text.
	Vendor string `json:"vendor,omitempty"`
	Buyer  string `json:"buyer,omitempty"`
	Text   string `json:"text,omitempty"`

	// Lifecycle hints supplied by upstream extraction.
	Private     bool   `json:"private,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// Validate performs basic validation on the Document
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if strings.TrimSpace(d.TenantID) == "" {
		return fmt.Errorf("document tenant ID cannot be empty")
	}
	if strings.TrimSpace(d.Currency) == "" {
		return fmt.Errorf("document currency cannot be empty")
	}
	if !d.LinkState.IsValid() {
		return fmt.Errorf("invalid document link state: %s", d.LinkState)
	}
	return nil
}

// TargetAmount returns the authoritative remaining claim of the document:
// the open amount when present and positive, otherwise the absolute
// nominal amount.
func (d *Document) TargetAmount() decimal.Decimal {
	if d.OpenAmount != nil && d.OpenAmount.IsPositive() {
		return d.OpenAmount.Round(2)
	}
	return d.NominalAmount.Abs().Round(2)
}

// String returns a string representation of the Document
func (d *Document) String() string {
	return fmt.Sprintf("Document{ID: %s, Amount: %s %s, State: %s}",
		d.ID, d.NominalAmount.String(), d.Currency, d.LinkState)
}

// Transaction represents a bank booking after ingestion. The amount is
// unsigned; Direction carries the flow. A transaction may express its value
// in a second currency when the bank applied an FX conversion.
type Transaction struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Amount    decimal.Decimal `json:"amount"`
	Direction Direction       `json:"direction"`
	Currency  string          `json:"currency"`

	// ForeignAmount/ForeignCurrency carry the pre-conversion side of an
	// FX booking; Rate is informational.
	ForeignAmount   *decimal.Decimal `json:"foreign_amount,omitempty"`
	ForeignCurrency string           `json:"foreign_currency,omitempty"`
	Rate            *decimal.Decimal `json:"rate,omitempty"`

	BookingDate time.Time `json:"booking_date"`
	LinkState   LinkState `json:"link_state"`

	IBAN     string `json:"iban,omitempty"`
	EndToEnd string `json:"end_to_end,omitempty"`

	Vendor string `json:"vendor,omitempty"`
	Text   string `json:"text,omitempty"`

	// RecurringHint marks a booking flagged upstream as part of a
	// recurring series (standing order, card subscription).
	RecurringHint bool `json:"recurring_hint,omitempty"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if strings.TrimSpace(t.TenantID) == "" {
		return fmt.Errorf("transaction tenant ID cannot be empty")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount cannot be negative: %s", t.Amount)
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("invalid transaction direction: %s", t.Direction)
	}
	if strings.TrimSpace(t.Currency) == "" {
		return fmt.Errorf("transaction currency cannot be empty")
	}
	if !t.LinkState.IsValid() {
		return fmt.Errorf("invalid transaction link state: %s", t.LinkState)
	}
	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s %s %s, Date: %s}",
		t.ID, t.Amount.String(), t.Currency, t.Direction, t.BookingDate.Format("2006-01-02"))
}
