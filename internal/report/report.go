// Package report renders matching-run results for the CLI.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per decision for spreadsheet review
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/lifecycle"
	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/internal/service"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Summary aggregates one matching run.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`

	Documents    int `json:"documents"`
	Transactions int `json:"transactions"`
	Decisions    int `json:"decisions"`
	Applied      int `json:"applied"`
	Suggested    int `json:"suggested"`

	ByState    map[string]int `json:"by_state"`
	ByRelation map[string]int `json:"by_relation"`

	// SettledAmount sums the transaction amounts of final decisions.
	SettledAmount decimal.Decimal `json:"settled_amount"`

	// FinalRate is the share of transactions settled by a final decision.
	FinalRate float64 `json:"final_rate"`

	DocActions map[string]int `json:"doc_actions"`
	TxActions  map[string]int `json:"tx_actions"`
}

// Report is the full serializable run report.
type Report struct {
	Summary    Summary                `json:"summary"`
	Decisions  []models.MatchDecision `json:"decisions,omitempty"`
	DocResults []lifecycle.Result     `json:"doc_results,omitempty"`
	TxResults  []lifecycle.Result     `json:"tx_results,omitempty"`
}

// BuildSummary aggregates a run result into a summary.
func BuildSummary(result *service.RunResult, docs []*models.Document, txs []*models.Transaction, generatedAt time.Time) Summary {
	summary := Summary{
		GeneratedAt:   generatedAt,
		Documents:     len(docs),
		Transactions:  len(txs),
		Decisions:     len(result.Decisions),
		Applied:       result.Applied,
		Suggested:     result.Suggested,
		ByState:       make(map[string]int),
		ByRelation:    make(map[string]int),
		SettledAmount: decimal.Zero,
		DocActions:    make(map[string]int),
		TxActions:     make(map[string]int),
	}

	txAmounts := make(map[string]decimal.Decimal, len(txs))
	for _, tx := range txs {
		txAmounts[tx.ID] = tx.Amount
	}

	finalTxs := make(map[string]bool)
	for _, decision := range result.Decisions {
		summary.ByState[decision.State.String()]++
		summary.ByRelation[decision.Relation.String()]++

		if decision.State == models.DecisionFinal && decision.Relation != models.RelationManyToMany {
			for _, txID := range decision.TxIDs {
				if finalTxs[txID] {
					continue
				}
				finalTxs[txID] = true
				summary.SettledAmount = summary.SettledAmount.Add(txAmounts[txID])
			}
		}
	}

	if len(txs) > 0 {
		summary.FinalRate = float64(len(finalTxs)) / float64(len(txs))
	}

	for _, res := range result.DocResults {
		summary.DocActions[string(res.NextAction)]++
	}
	for _, res := range result.TxResults {
		summary.TxActions[string(res.NextAction)]++
	}

	return summary
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeDecisions        bool `json:"include_decisions"`
	IncludeLifecycleResults bool `json:"include_lifecycle_results"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                  FormatConsole,
		IncludeDecisions:        true,
		IncludeLifecycleResults: false,
		CSVDelimiter:            ',',
		CSVHeaders:              true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// Generator renders run reports in the configured format.
type Generator struct {
	config *ReportConfig
}

// NewGenerator creates a report generator with the given configuration.
func NewGenerator(config *ReportConfig) (*Generator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &Generator{config: config}, nil
}

// Generate renders the report for one run to the writer.
func (g *Generator) Generate(report *Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsole(report, writer)
	case FormatJSON:
		return g.generateJSON(report, writer)
	case FormatCSV:
		return g.generateCSV(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateConsole(report *Report, writer io.Writer) error {
	summary := report.Summary

	fmt.Fprintf(writer, "MATCHING REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", summary.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "%-25s %d\n", "Documents:", summary.Documents)
	fmt.Fprintf(writer, "%-25s %d\n", "Transactions:", summary.Transactions)
	fmt.Fprintf(writer, "%-25s %d\n", "Decisions:", summary.Decisions)
	fmt.Fprintf(writer, "%-25s %d\n", "Applied:", summary.Applied)
	fmt.Fprintf(writer, "%-25s %d\n", "Suggested:", summary.Suggested)
	fmt.Fprintf(writer, "%-25s %s\n", "Settled amount:", summary.SettledAmount.StringFixed(2))
	fmt.Fprintf(writer, "%-25s %.1f%%\n\n", "Final rate:", summary.FinalRate*100)

	fmt.Fprintf(writer, "=== DECISIONS BY STATE ===\n")
	printCountTable(writer, summary.ByState)
	fmt.Fprintf(writer, "\n=== DECISIONS BY RELATION ===\n")
	printCountTable(writer, summary.ByRelation)

	if g.config.IncludeDecisions && len(report.Decisions) > 0 {
		fmt.Fprintf(writer, "\n=== DECISIONS ===\n")
		for _, decision := range report.Decisions {
			fmt.Fprintf(writer, "%-10s %-12s conf=%.2f tx=[%s] doc=[%s] %s\n",
				decision.State, decision.Relation, decision.Confidence,
				strings.Join(decision.TxIDs, " "), strings.Join(decision.DocIDs, " "),
				strings.Join(decision.Reasons, ","))
		}
	}

	if len(summary.DocActions) > 0 {
		fmt.Fprintf(writer, "\n=== DOCUMENT ACTIONS ===\n")
		printCountTable(writer, summary.DocActions)
	}
	if len(summary.TxActions) > 0 {
		fmt.Fprintf(writer, "\n=== TRANSACTION ACTIONS ===\n")
		printCountTable(writer, summary.TxActions)
	}

	return nil
}

func printCountTable(writer io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(writer, "%-25s %d\n", key+":", counts[key])
	}
}

func (g *Generator) generateJSON(report *Report, writer io.Writer) error {
	filtered := *report
	if !g.config.IncludeDecisions {
		filtered.Decisions = nil
	}
	if !g.config.IncludeLifecycleResults {
		filtered.DocResults = nil
		filtered.TxResults = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(filtered)
}

func (g *Generator) generateCSV(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = g.config.CSVDelimiter
	defer csvWriter.Flush()

	if g.config.CSVHeaders {
		header := []string{"state", "relation", "confidence", "tx_ids", "doc_ids", "reasons", "match_group_id"}
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, decision := range report.Decisions {
		row := []string{
			decision.State.String(),
			decision.Relation.String(),
			fmt.Sprintf("%.2f", decision.Confidence),
			strings.Join(decision.TxIDs, ";"),
			strings.Join(decision.DocIDs, ";"),
			strings.Join(decision.Reasons, ";"),
			decision.MatchGroupID,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return csvWriter.Error()
}
