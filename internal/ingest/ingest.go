// Package ingest reads document and transaction snapshots from JSON. The
// upstream exporters disagree on field casing (due_date vs dueDate), so the
// boundary collapses keys before decoding. Records missing an amount or a
// currency are logged and excluded rather than failing the run; unparseable
// dates degrade to unknown.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/canonical"
	"github.com/FloHo800101/belegcockpit/internal/models"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"
	"github.com/FloHo800101/belegcockpit/pkg/logger"
)

// Stats summarizes one ingestion pass.
type Stats struct {
	Total   int                     `json:"total"`
	Parsed  int                     `json:"parsed"`
	Skipped int                     `json:"skipped"`
	Errors  []*apperrors.MatchError `json:"errors,omitempty"`
}

// dateFormats lists the date layouts the exporters emit, most common first.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006", // German date
	"02.01.06",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate attempts the known layouts in order. An empty string is an
// error; callers decide whether unknown dates are fatal.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// ParseAmount reads a decimal from a JSON string value. German formatting
// ("1.234,56") is accepted alongside the plain form.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// German format: comma is the decimal separator, dot groups thousands.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	return decimal.NewFromString(s)
}

// record is one raw JSON object with its keys collapsed to snake_case.
type record map[string]json.RawMessage

// collapseKeys folds camelCase keys onto their snake_case twins. When both
// casings are present the snake_case value wins.
func collapseKeys(raw map[string]json.RawMessage) record {
	out := make(record, len(raw))
	for key, value := range raw {
		folded := toSnakeCase(key)
		if folded != key {
			if _, exists := raw[folded]; exists {
				continue
			}
		}
		out[folded] = value
	}
	return out
}

func toSnakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (r record) str(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (r record) boolean(key string) bool {
	raw, ok := r[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// amount reads a decimal that may arrive as a JSON number or a string.
func (r record) amount(key string) (decimal.Decimal, bool) {
	raw, ok := r[key]
	if !ok {
		return decimal.Zero, false
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if d, err := decimal.NewFromString(num.String()); err == nil {
			return d, true
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if d, err := ParseAmount(s); err == nil {
			return d, true
		}
	}

	return decimal.Zero, false
}

// date reads an optional date field. Unparseable values degrade to nil.
func (r record) date(key string) *time.Time {
	s := r.str(key)
	if s == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

func (r record) linkState(key string) models.LinkState {
	state := models.LinkState(r.str(key))
	if !state.IsValid() {
		return models.LinkStateUnlinked
	}
	return state
}

// ParseDocuments reads a JSON array of documents. Defective records are
// skipped and reported through the stats, never as a hard error.
func ParseDocuments(reader io.Reader) ([]*models.Document, *Stats, error) {
	var raws []map[string]json.RawMessage
	if err := json.NewDecoder(reader).Decode(&raws); err != nil {
		return nil, nil, apperrors.IngestError(apperrors.CodeInvalidFormat, "documents", err)
	}

	log := logger.GetGlobalLogger().WithComponent("ingest")
	stats := &Stats{Total: len(raws)}
	var docs []*models.Document

	for i, raw := range raws {
		doc, err := parseDocument(collapseKeys(raw))
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, err.WithContext("index", i))
			log.WithFields(logger.Fields{"index": i, "reason": err.Message}).Debug("Skipping document")
			continue
		}
		stats.Parsed++
		docs = append(docs, doc)
	}

	return docs, stats, nil
}

func parseDocument(rec record) (*models.Document, *apperrors.MatchError) {
	doc := &models.Document{
		ID:       strings.TrimSpace(rec.str("id")),
		TenantID: strings.TrimSpace(rec.str("tenant_id")),
		Currency: strings.ToUpper(strings.TrimSpace(rec.str("currency"))),
	}

	if doc.ID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "id", "", nil)
	}
	if doc.TenantID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "tenant_id", "", nil)
	}
	if doc.Currency == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "currency", "", nil)
	}

	nominal, ok := rec.amount("nominal_amount")
	if !ok {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidAmount, "nominal_amount", rec.str("nominal_amount"), nil)
	}
	doc.NominalAmount = nominal

	if open, ok := rec.amount("open_amount"); ok {
		doc.OpenAmount = &open
	}
	if raw, exists := rec["amount_candidates"]; exists {
		var values []json.Number
		if err := json.Unmarshal(raw, &values); err == nil {
			for _, v := range values {
				if d, err := decimal.NewFromString(v.String()); err == nil {
					doc.AmountCandidates = append(doc.AmountCandidates, d)
				}
			}
		}
	}

	doc.LinkState = rec.linkState("link_state")
	doc.InvoiceDate = rec.date("invoice_date")
	doc.DueDate = rec.date("due_date")

	doc.IBAN = canonical.CanonCompact(rec.str("iban"))
	doc.InvoiceNo = canonical.CanonID(rec.str("invoice_no"))
	doc.EndToEnd = canonical.CanonID(rec.str("end_to_end"))

	doc.Vendor = canonical.NormalizeVendor(rec.str("vendor"))
	doc.Buyer = canonical.NormalizeVendor(rec.str("buyer"))
	doc.Text = canonical.NormalizeText(rec.str("text"))

	doc.Private = rec.boolean("private")
	doc.DuplicateOf = strings.TrimSpace(rec.str("duplicate_of"))

	if raw, exists := rec["line_items"]; exists {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			for _, rawItem := range items {
				item := collapseKeys(rawItem)
				lineItem := models.LineItem{
					ID:        strings.TrimSpace(item.str("id")),
					LinkState: item.linkState("link_state"),
				}
				if amount, ok := item.amount("amount"); ok {
					lineItem.Amount = amount
				}
				if open, ok := item.amount("open_amount"); ok {
					lineItem.OpenAmount = &open
				}
				doc.LineItems = append(doc.LineItems, lineItem)
			}
		}
	}

	return doc, nil
}

// ParseTransactions reads a JSON array of bank transactions with the same
// defect handling as ParseDocuments.
func ParseTransactions(reader io.Reader) ([]*models.Transaction, *Stats, error) {
	var raws []map[string]json.RawMessage
	if err := json.NewDecoder(reader).Decode(&raws); err != nil {
		return nil, nil, apperrors.IngestError(apperrors.CodeInvalidFormat, "transactions", err)
	}

	log := logger.GetGlobalLogger().WithComponent("ingest")
	stats := &Stats{Total: len(raws)}
	var txs []*models.Transaction

	for i, raw := range raws {
		tx, err := parseTransaction(collapseKeys(raw))
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, err.WithContext("index", i))
			log.WithFields(logger.Fields{"index": i, "reason": err.Message}).Debug("Skipping transaction")
			continue
		}
		stats.Parsed++
		txs = append(txs, tx)
	}

	return txs, stats, nil
}

func parseTransaction(rec record) (*models.Transaction, *apperrors.MatchError) {
	tx := &models.Transaction{
		ID:       strings.TrimSpace(rec.str("id")),
		TenantID: strings.TrimSpace(rec.str("tenant_id")),
		Currency: strings.ToUpper(strings.TrimSpace(rec.str("currency"))),
	}

	if tx.ID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "id", "", nil)
	}
	if tx.TenantID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "tenant_id", "", nil)
	}
	if tx.Currency == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "currency", "", nil)
	}

	amount, ok := rec.amount("amount")
	if !ok || amount.IsNegative() {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidAmount, "amount", rec.str("amount"), nil)
	}
	tx.Amount = amount

	tx.Direction = models.Direction(strings.ToLower(strings.TrimSpace(rec.str("direction"))))
	if !tx.Direction.IsValid() {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "direction", rec.str("direction"), nil)
	}

	if foreign, ok := rec.amount("foreign_amount"); ok {
		tx.ForeignAmount = &foreign
		tx.ForeignCurrency = strings.ToUpper(strings.TrimSpace(rec.str("foreign_currency")))
	}
	if rate, ok := rec.amount("rate"); ok {
		tx.Rate = &rate
	}

	bookingDate := rec.date("booking_date")
	if bookingDate == nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, "booking_date", rec.str("booking_date"), nil)
	}
	tx.BookingDate = *bookingDate

	tx.LinkState = rec.linkState("link_state")

	tx.IBAN = canonical.CanonCompact(rec.str("iban"))
	tx.EndToEnd = canonical.CanonID(rec.str("end_to_end"))
	tx.Vendor = canonical.NormalizeVendor(rec.str("vendor"))
	tx.Text = canonical.NormalizeText(rec.str("text"))
	tx.RecurringHint = rec.boolean("recurring_hint")

	return tx, nil
}
