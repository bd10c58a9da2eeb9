package engine

import (
	"math"
	"testing"
	"time"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDocDateWindowAnchoredOnInvoiceDate(t *testing.T) {
	invoiceDate := date(2025, 2, 10)
	doc := &models.Document{InvoiceDate: &invoiceDate}
	cfg := DefaultConfig()

	window := DocDateWindow(doc, cfg)
	if !window.Anchored {
		t.Fatal("Expected window to be anchored")
	}
	if !window.Anchor.Equal(invoiceDate) {
		t.Errorf("Expected anchor %v, got %v", invoiceDate, window.Anchor)
	}
	if !window.Contains(date(2025, 2, 10)) {
		t.Error("Expected anchor date inside window")
	}
	if !window.Contains(date(2025, 3, 12)) {
		t.Error("Expected date 30 days out inside window")
	}
	if window.Contains(date(2025, 3, 13)) {
		t.Error("Expected date 31 days out outside window")
	}
	if window.Contains(date(2025, 1, 10)) {
		t.Error("Expected date 31 days before outside window")
	}
}

func TestDocDateWindowDueDateExtension(t *testing.T) {
	invoiceDate := date(2025, 2, 10)
	dueDate := date(2025, 3, 20)
	doc := &models.Document{InvoiceDate: &invoiceDate, DueDate: &dueDate}
	cfg := DefaultConfig()

	window := DocDateWindow(doc, cfg)
	// Upper bound pushed to due date + 14 days, past invoice date + 30.
	if !window.Contains(date(2025, 4, 3)) {
		t.Error("Expected due-date extension to cover 2025-04-03")
	}
	if window.Contains(date(2025, 4, 4)) {
		t.Error("Expected 2025-04-04 past the extended bound")
	}
}

func TestDocDateWindowDueDateOnlyAnchor(t *testing.T) {
	dueDate := date(2025, 3, 1)
	doc := &models.Document{DueDate: &dueDate}

	window := DocDateWindow(doc, DefaultConfig())
	if !window.Anchored {
		t.Fatal("Expected due-date-only document to be anchored")
	}
	if !window.Anchor.Equal(dueDate) {
		t.Errorf("Expected due date anchor, got %v", window.Anchor)
	}
}

func TestDocDateWindowUnanchored(t *testing.T) {
	doc := &models.Document{}

	window := DocDateWindow(doc, DefaultConfig())
	if window.Anchored {
		t.Fatal("Expected dateless document to be unanchored")
	}
	if !window.Contains(date(1999, 1, 1)) || !window.Contains(date(2099, 12, 31)) {
		t.Error("Expected unanchored window to contain every date")
	}
	if !math.IsInf(window.DayDelta(date(2025, 2, 10)), 1) {
		t.Error("Expected +Inf day delta for unanchored window")
	}
}

func TestDayDelta(t *testing.T) {
	invoiceDate := date(2025, 2, 10)
	doc := &models.Document{InvoiceDate: &invoiceDate}
	window := DocDateWindow(doc, DefaultConfig())

	tests := []struct {
		booking  time.Time
		expected float64
	}{
		{booking: date(2025, 2, 10), expected: 0},
		{booking: date(2025, 2, 12), expected: 2},
		{booking: date(2025, 2, 5), expected: 5},
	}

	for _, tt := range tests {
		if got := window.DayDelta(tt.booking); got != tt.expected {
			t.Errorf("DayDelta(%v) = %v, expected %v", tt.booking, got, tt.expected)
		}
	}
}
