// Package repository defines the storage collaborator the matching service
// talks to. The engine never inspects storage internals; it hands decisions
// over this boundary and receives transaction history back.
package repository

import (
	"context"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/internal/projection"
)

// HistoryQuery scopes a transaction history lookup.
type HistoryQuery struct {
	// LookbackDays bounds how far back from AsOf the history reaches.
	// Zero means unbounded.
	LookbackDays int

	// Limit caps the number of returned transactions. Zero means no cap.
	Limit int

	// VendorKey, when set, restricts the history to bookings of one
	// normalized vendor.
	VendorKey string

	// AsOf anchors the lookback window. Zero means "now".
	AsOf time.Time
}

// Repository is the persistence collaborator of the matching service. All
// operations are context-bound; implementations talk to remote storage.
type Repository interface {
	// ApplyMatches persists final and partial decisions: their edges,
	// groups and entity mutations.
	ApplyMatches(ctx context.Context, decisions []models.MatchDecision) error

	// SaveSuggestions stores non-final decisions for user review. Saving
	// the same decision twice is a no-op.
	SaveSuggestions(ctx context.Context, decisions []models.MatchDecision) error

	// Audit appends the audit records of a run. Records with a key already
	// present are skipped.
	Audit(ctx context.Context, records []projection.AuditRecord) error

	// LoadTxHistory returns past transactions of a tenant, newest first.
	LoadTxHistory(ctx context.Context, tenantID string, query HistoryQuery) ([]*models.Transaction, error)
}
