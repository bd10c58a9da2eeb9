package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FloHo800101/belegcockpit/cmd/belegmatch/config"
	"github.com/FloHo800101/belegcockpit/internal/ingest"
	"github.com/FloHo800101/belegcockpit/internal/models"
	"github.com/FloHo800101/belegcockpit/internal/report"
	"github.com/FloHo800101/belegcockpit/internal/repository"
	"github.com/FloHo800101/belegcockpit/internal/service"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the match command
var (
	docsFile     string
	txFile       string
	outputFormat string
	outputFile   string
	asOfDate     string

	amountTolerance    float64
	amountTolerancePct float64
	dateWindowDays     int
	maxCandidates      int
	minSuggestScore    float64

	includeLifecycle bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match bank transactions against accounting documents",
	Long: `Match reads a document file and a bank transaction file (JSON),
runs the matching engine, applies final and partial decisions to the
in-memory store, and reports decisions plus lifecycle follow-up actions.

Examples:
  # Basic matching run
  belegmatch match --docs documents.json --transactions bank.json

  # JSON report to a file, with lifecycle results included
  belegmatch match --docs docs.json --transactions tx.json \
    --output-format json --output-file report.json --include-lifecycle

  # Looser tolerances and wider date window
  belegmatch match --docs docs.json --transactions tx.json \
    --amount-tolerance 0.05 --date-window 45

  # Evaluate overdue and rematch windows against a fixed date
  belegmatch match --docs docs.json --transactions tx.json --as-of 2025-03-01`,

	PreRunE: validateMatchFlags,
	RunE:    runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	defaults := config.DefaultEngineOptions()

	// Required flags
	matchCmd.Flags().StringVarP(&docsFile, "docs", "d", "", "path to document JSON file (required)")
	matchCmd.Flags().StringVarP(&txFile, "transactions", "t", "", "path to bank transaction JSON file (required)")

	// Output flags
	matchCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	matchCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	matchCmd.Flags().BoolVar(&includeLifecycle, "include-lifecycle", false, "include lifecycle results in JSON output")

	// Lifecycle reference date
	matchCmd.Flags().StringVar(&asOfDate, "as-of", "", "reference date for overdue evaluation (YYYY-MM-DD, default: today)")

	// Matching configuration flags
	matchCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", defaults.AmountTolerance, "absolute amount tolerance")
	matchCmd.Flags().Float64Var(&amountTolerancePct, "amount-tolerance-percent", defaults.AmountTolerancePercent, "relative amount tolerance in percent")
	matchCmd.Flags().IntVarP(&dateWindowDays, "date-window", "w", defaults.DateWindowDays, "date window in days around the invoice date")
	matchCmd.Flags().IntVar(&maxCandidates, "max-candidates", defaults.MaxCandidates, "candidate cap for multi-entity search")
	matchCmd.Flags().Float64Var(&minSuggestScore, "min-suggest-score", defaults.MinSuggestScore, "minimum score for suggested matches")

	// Mark required flags
	matchCmd.MarkFlagRequired("docs")
	matchCmd.MarkFlagRequired("transactions")

	// Bind flags to viper
	viper.BindPFlag("docs", matchCmd.Flags().Lookup("docs"))
	viper.BindPFlag("transactions", matchCmd.Flags().Lookup("transactions"))
	viper.BindPFlag("output-format", matchCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", matchCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("include-lifecycle", matchCmd.Flags().Lookup("include-lifecycle"))
	viper.BindPFlag("as-of", matchCmd.Flags().Lookup("as-of"))
	viper.BindPFlag("amount-tolerance", matchCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("amount-tolerance-percent", matchCmd.Flags().Lookup("amount-tolerance-percent"))
	viper.BindPFlag("date-window", matchCmd.Flags().Lookup("date-window"))
	viper.BindPFlag("max-candidates", matchCmd.Flags().Lookup("max-candidates"))
	viper.BindPFlag("min-suggest-score", matchCmd.Flags().Lookup("min-suggest-score"))
}

func validateMatchFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	docsFile = viper.GetString("docs")
	txFile = viper.GetString("transactions")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	includeLifecycle = viper.GetBool("include-lifecycle")
	asOfDate = viper.GetString("as-of")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	amountTolerancePct = viper.GetFloat64("amount-tolerance-percent")
	dateWindowDays = viper.GetInt("date-window")
	maxCandidates = viper.GetInt("max-candidates")
	minSuggestScore = viper.GetFloat64("min-suggest-score")

	if docsFile == "" {
		return fmt.Errorf("docs file is required")
	}
	if txFile == "" {
		return fmt.Errorf("transactions file is required")
	}

	if err := validateFileExists(docsFile, "document file"); err != nil {
		return err
	}
	if err := validateFileExists(txFile, "transaction file"); err != nil {
		return err
	}

	if !report.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if asOfDate != "" {
		if _, err := time.Parse("2006-01-02", asOfDate); err != nil {
			return fmt.Errorf("invalid as-of date format. Use YYYY-MM-DD: %w", err)
		}
	}

	if amountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	if amountTolerancePct < 0 || amountTolerancePct > 100 {
		return fmt.Errorf("amount tolerance percent must be between 0 and 100")
	}
	if dateWindowDays < 0 {
		return fmt.Errorf("date window cannot be negative")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting matching run...\n")
		fmt.Fprintf(os.Stderr, "Document file: %s\n", docsFile)
		fmt.Fprintf(os.Stderr, "Transaction file: %s\n", txFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	docs, docStats, err := loadDocuments(docsFile)
	if err != nil {
		return err
	}
	txs, txStats, err := loadTransactions(txFile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Parsed %d documents (%d skipped), %d transactions (%d skipped)\n",
			docStats.Parsed, docStats.Skipped, txStats.Parsed, txStats.Skipped)
	}

	engineConfig, err := config.CreateEngineConfig(config.EngineOptions{
		AmountTolerance:        amountTolerance,
		AmountTolerancePercent: amountTolerancePct,
		DateWindowDays:         dateWindowDays,
		MaxCandidates:          maxCandidates,
		MinSuggestScore:        minSuggestScore,
	})
	if err != nil {
		return err
	}

	var now time.Time
	if asOfDate != "" {
		now, _ = time.Parse("2006-01-02", asOfDate)
	}

	repo := repository.NewMemoryRepository()
	repo.Seed(docs, txs)

	matchingService := service.New(engineConfig, repo)
	result, err := matchingService.Run(ctx, docs, txs, now)
	if err != nil {
		return err
	}

	return writeReport(result, docs, txs)
}

func loadDocuments(path string) ([]*models.Document, *ingest.Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.IngestError(apperrors.CodeFileNotFound, path, err)
	}
	defer file.Close()

	return ingest.ParseDocuments(file)
}

func loadTransactions(path string) ([]*models.Transaction, *ingest.Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.IngestError(apperrors.CodeFileNotFound, path, err)
	}
	defer file.Close()

	return ingest.ParseTransactions(file)
}

func writeReport(result *service.RunResult, docs []*models.Document, txs []*models.Transaction) error {
	reportConfig, err := config.CreateReportConfig(outputFormat, includeLifecycle)
	if err != nil {
		return err
	}

	generator, err := report.NewGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	runReport := &report.Report{
		Summary:    report.BuildSummary(result, docs, txs, time.Now()),
		Decisions:  result.Decisions,
		DocResults: result.DocResults,
		TxResults:  result.TxResults,
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := generator.Generate(runReport, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nMatching completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Decisions: %d (applied %d, suggested %d)\n",
			len(result.Decisions), result.Applied, result.Suggested)
	}

	return nil
}
