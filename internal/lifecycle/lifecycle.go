// Package lifecycle classifies documents and transactions outside the
// matching cascade: entities that did not (or cannot) participate in a
// decision still need a state readable by the user - overdue, private,
// fee, subscription, duplicate, eigenbeleg candidate. Evaluators are pure
// functions over the entity's own fields and the config thresholds.
package lifecycle

import (
	"strings"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/canonical"
	"github.com/FloHo800101/belegcockpit/internal/engine"
	"github.com/FloHo800101/belegcockpit/internal/models"
)

// Severity grades how urgently a lifecycle result needs attention.
type Severity string

const (
	// SeverityInfo marks states needing no user action
	SeverityInfo Severity = "info"
	// SeverityNotice marks states worth reviewing
	SeverityNotice Severity = "notice"
	// SeverityAction marks states blocked until the user acts
	SeverityAction Severity = "action"
)

// NextAction is the suggested follow-up for a lifecycle result.
type NextAction string

const (
	ActionNone            NextAction = "none"
	ActionAwaitTx         NextAction = "await_transaction"
	ActionAwaitDoc        NextAction = "await_document"
	ActionReviewDuplicate NextAction = "review_duplicate"
	ActionCompleteFields  NextAction = "complete_fields"
	ActionExcludePrivate  NextAction = "exclude_private"
	ActionExcludeTech     NextAction = "exclude_technical"
	ActionSplitDocument   NextAction = "split_document"
	ActionRematch         NextAction = "rematch"
	ActionBookFee         NextAction = "book_fee"
	ActionReviewPrepay    NextAction = "review_prepayment"
	ActionLinkSeries      NextAction = "link_subscription"
	ActionCreateEigenbeleg NextAction = "create_eigenbeleg"
)

// Explanation codes. Machine-checkable; the UI maps them to copy.
const (
	CodeDocSettled      = "DOC_SETTLED"
	CodeDocDuplicate    = "DOC_DUPLICATE"
	CodeDocPrivate      = "DOC_PRIVATE"
	CodeDocMissingField = "DOC_MISSING_FIELD"
	CodeDocNeedsSplit   = "DOC_NEEDS_SPLIT"
	CodeDocOverdue      = "DOC_OVERDUE"
	CodeDocEigenbeleg   = "DOC_EIGENBELEG_CANDIDATE"
	CodeDocAwaitingTx   = "DOC_AWAITING_TX"

	CodeTxSettled        = "TX_SETTLED"
	CodeTxTechnical      = "TX_TECHNICAL"
	CodeTxPrivate        = "TX_PRIVATE"
	CodeTxFee            = "TX_FEE"
	CodeTxPrepayment     = "TX_PREPAYMENT"
	CodeTxSubscription   = "TX_SUBSCRIPTION"
	CodeTxNeedsEigenbeleg = "TX_NEEDS_EIGENBELEG"
	CodeTxMissingDoc     = "TX_MISSING_DOC"
)

// RematchWindow proposes the period in which an overdue document should be
// retried against fresh transactions.
type RematchWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Result is the outcome of one lifecycle evaluation.
type Result struct {
	EntityID   string         `json:"entity_id"`
	Severity   Severity       `json:"severity"`
	NextAction NextAction     `json:"next_action"`
	Codes      []string       `json:"codes"`
	Rematch    *RematchWindow `json:"rematch,omitempty"`
}

// TxHistory carries the aggregate a transaction evaluator may consult in
// addition to the transaction's own fields. Zero value means no history.
type TxHistory struct {
	// VendorOccurrences counts bookings of the same vendor inside the
	// history lookback.
	VendorOccurrences int
}

// EvaluateDocument classifies one document. The first matching state wins;
// the order encodes precedence (a duplicate stays a duplicate even when it
// is also overdue).
func EvaluateDocument(doc *models.Document, cfg *engine.Config, now time.Time) Result {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}

	if doc.LinkState == models.LinkStateLinked {
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityInfo,
			NextAction: ActionNone,
			Codes:      []string{CodeDocSettled},
		}
	}

	if doc.DuplicateOf != "" {
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityAction,
			NextAction: ActionReviewDuplicate,
			Codes:      []string{CodeDocDuplicate},
		}
	}

	if doc.Private || docHasKeyword(doc, cfg.Keywords.Private) {
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityNotice,
			NextAction: ActionExcludePrivate,
			Codes:      []string{CodeDocPrivate},
		}
	}

	// Checked before required fields: a small receipt without any vendor
	// identification is better served by an eigenbeleg proposal than by a
	// complete-your-fields demand.
	if eigenbelegCandidate(doc, cfg) {
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityNotice,
			NextAction: ActionCreateEigenbeleg,
			Codes:      []string{CodeDocEigenbeleg},
		}
	}

	if missing := missingRequiredFields(doc, cfg.RequiredDocFields); len(missing) > 0 {
		codes := []string{CodeDocMissingField}
		codes = append(codes, missing...)
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityAction,
			NextAction: ActionCompleteFields,
			Codes:      codes,
		}
	}

	if needsSplit(doc) {
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityAction,
			NextAction: ActionSplitDocument,
			Codes:      []string{CodeDocNeedsSplit},
		}
	}

	if overdue(doc, cfg, now) {
		window := &RematchWindow{
			From: now,
			To:   now.AddDate(0, 0, cfg.Lifecycle.OverdueRematchDays),
		}
		return Result{
			EntityID:   doc.ID,
			Severity:   SeverityNotice,
			NextAction: ActionRematch,
			Codes:      []string{CodeDocOverdue},
			Rematch:    window,
		}
	}

	return Result{
		EntityID:   doc.ID,
		Severity:   SeverityInfo,
		NextAction: ActionAwaitTx,
		Codes:      []string{CodeDocAwaitingTx},
	}
}

// EvaluateTransaction classifies one transaction. History is optional; pass
// the zero value when no lookback was loaded.
func EvaluateTransaction(tx *models.Transaction, cfg *engine.Config, history TxHistory) Result {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}

	if tx.LinkState == models.LinkStateLinked {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityInfo,
			NextAction: ActionNone,
			Codes:      []string{CodeTxSettled},
		}
	}

	if txHasKeyword(tx, cfg.Keywords.Technical) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityNotice,
			NextAction: ActionExcludeTech,
			Codes:      []string{CodeTxTechnical},
		}
	}

	if txHasKeyword(tx, cfg.Keywords.Private) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityNotice,
			NextAction: ActionExcludePrivate,
			Codes:      []string{CodeTxPrivate},
		}
	}

	if txHasKeyword(tx, cfg.Keywords.Fee) && tx.Amount.LessThanOrEqual(cfg.Lifecycle.FeeMaxAmount) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityNotice,
			NextAction: ActionBookFee,
			Codes:      []string{CodeTxFee},
		}
	}

	if txHasKeyword(tx, cfg.Keywords.Prepayment) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityAction,
			NextAction: ActionReviewPrepay,
			Codes:      []string{CodeTxPrepayment},
		}
	}

	if subscription(tx, cfg, history) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityNotice,
			NextAction: ActionLinkSeries,
			Codes:      []string{CodeTxSubscription},
		}
	}

	if tx.Direction == models.DirectionOut && tx.Amount.LessThanOrEqual(cfg.Lifecycle.EigenbelegMaxAmount) {
		return Result{
			EntityID:   tx.ID,
			Severity:   SeverityAction,
			NextAction: ActionCreateEigenbeleg,
			Codes:      []string{CodeTxNeedsEigenbeleg},
		}
	}

	return Result{
		EntityID:   tx.ID,
		Severity:   SeverityAction,
		NextAction: ActionAwaitDoc,
		Codes:      []string{CodeTxMissingDoc},
	}
}

// missingRequiredFields returns one MISSING_<FIELD> code per required field
// the document does not carry.
func missingRequiredFields(doc *models.Document, required []string) []string {
	var missing []string
	for _, field := range required {
		present := true
		switch field {
		case "vendor":
			present = doc.Vendor != ""
		case "invoice_date":
			present = doc.InvoiceDate != nil
		case "due_date":
			present = doc.DueDate != nil
		case "invoice_no":
			present = doc.InvoiceNo != ""
		case "iban":
			present = doc.IBAN != ""
		}
		if !present {
			missing = append(missing, "MISSING_"+strings.ToUpper(field))
		}
	}
	return missing
}

// needsSplit reports whether the document's line items have diverged: at
// least one position settled while another is still open means the document
// can no longer be matched as a whole.
func needsSplit(doc *models.Document) bool {
	if len(doc.LineItems) < 2 {
		return false
	}
	settled, open := false, false
	for _, item := range doc.LineItems {
		if item.LinkState == models.LinkStateLinked {
			settled = true
		} else {
			open = true
		}
	}
	return settled && open
}

// overdue reports whether the document's payment deadline plus grace has
// passed. Documents without any date anchor are never overdue.
func overdue(doc *models.Document, cfg *engine.Config, now time.Time) bool {
	deadline := doc.DueDate
	if deadline == nil {
		if doc.InvoiceDate == nil {
			return false
		}
		d := doc.InvoiceDate.AddDate(0, 0, cfg.Window.DateWindowDays)
		deadline = &d
	}
	return now.After(deadline.AddDate(0, 0, cfg.Window.GraceDays))
}

// eigenbelegCandidate reports whether a small document lacking vendor
// identification could be replaced by a self-issued receipt.
func eigenbelegCandidate(doc *models.Document, cfg *engine.Config) bool {
	if doc.Vendor != "" || doc.InvoiceNo != "" {
		return false
	}
	return doc.TargetAmount().LessThanOrEqual(cfg.Lifecycle.EigenbelegMaxAmount)
}

// subscription reports whether a transaction belongs to a recurring series:
// flagged upstream, keyword-marked, or seen often enough in the history.
func subscription(tx *models.Transaction, cfg *engine.Config, history TxHistory) bool {
	if tx.RecurringHint {
		return true
	}
	if txHasKeyword(tx, cfg.Keywords.Subscription) {
		return true
	}
	return history.VendorOccurrences >= cfg.Lifecycle.SubscriptionMinOccurrences &&
		cfg.Lifecycle.SubscriptionMinOccurrences > 0
}

func txHasKeyword(tx *models.Transaction, words []string) bool {
	return hasKeyword(tx.Text, words) || hasKeyword(tx.Vendor, words)
}

func docHasKeyword(doc *models.Document, words []string) bool {
	return hasKeyword(doc.Text, words) || hasKeyword(doc.Vendor, words)
}

func hasKeyword(text string, words []string) bool {
	if text == "" {
		return false
	}
	normalized := canonical.NormalizeText(text)
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(normalized, canonical.NormalizeText(word)) {
			return true
		}
	}
	return false
}
