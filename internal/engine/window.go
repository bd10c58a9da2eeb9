package engine

import (
	"math"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

const day = 24 * time.Hour

// DateWindow is the booking-date interval a document accepts payments in.
// Unanchored windows (documents without any usable date) are permissive:
// every booking date is inside, and the day delta is +Inf.
type DateWindow struct {
	Lower    time.Time
	Upper    time.Time
	Anchor   time.Time
	Anchored bool
}

// DocDateWindow derives the window of a document. The anchor is the
// invoice date when present, otherwise the due date. The window extends
// symmetrically by DateWindowDays; when a due date exists, the upper bound
// is pushed out to due date + DueDateExtendDays if that is later.
func DocDateWindow(doc *models.Document, cfg *Config) DateWindow {
	var anchor time.Time
	switch {
	case doc.InvoiceDate != nil && !doc.InvoiceDate.IsZero():
		anchor = *doc.InvoiceDate
	case doc.DueDate != nil && !doc.DueDate.IsZero():
		anchor = *doc.DueDate
	default:
		return DateWindow{}
	}

	span := time.Duration(cfg.Window.DateWindowDays) * day
	w := DateWindow{
		Lower:    anchor.Add(-span),
		Upper:    anchor.Add(span),
		Anchor:   anchor,
		Anchored: true,
	}

	if doc.DueDate != nil && !doc.DueDate.IsZero() {
		extended := doc.DueDate.Add(time.Duration(cfg.Window.DueDateExtendDays) * day)
		if extended.After(w.Upper) {
			w.Upper = extended
		}
	}
	return w
}

// Contains reports whether the booking date lies inside the window.
// Unanchored windows contain every date.
func (w DateWindow) Contains(t time.Time) bool {
	if !w.Anchored {
		return true
	}
	return !t.Before(w.Lower) && !t.After(w.Upper)
}

// DayDelta returns the distance in whole days between the booking date and
// the anchor, or +Inf for unanchored windows.
func (w DateWindow) DayDelta(t time.Time) float64 {
	if !w.Anchored {
		return math.Inf(1)
	}
	diff := t.Sub(w.Anchor)
	if diff < 0 {
		diff = -diff
	}
	return math.Floor(diff.Hours() / 24)
}
