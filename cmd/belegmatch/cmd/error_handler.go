package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/FloHo800101/belegcockpit/pkg/errors"
	"github.com/FloHo800101/belegcockpit/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if matchErr, ok := errors.AsMatchError(err); ok {
		return h.handleMatchError(matchErr)
	}

	return h.handleGenericError(err)
}

// handleMatchError handles MatchError with detailed context
func (h *CLIErrorHandler) handleMatchError(err *errors.MatchError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-MatchError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, run with --verbose\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryIngest:
		return `Ingest error help:
• Check if the file exists and is readable
• Verify the file contains a JSON array of records
• Ensure the file uses UTF-8 encoding
• Use 'belegmatch match --help' for examples of correct file formats`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify dates use YYYY-MM-DD or DD.MM.YYYY
• Ensure amounts are decimal numbers, German comma notation is accepted
• Check that currency codes and directions are valid`

	case errors.CategoryConfig:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'belegmatch match --help' to see all available options
• Try running with default settings first`

	case errors.CategoryMatching:
		return `Matching error help:
• Check data quality in your input files
• Try adjusting tolerances (--amount-tolerance, --date-window)
• Verify that documents and transactions belong to the same tenant`

	case errors.CategoryPolicy, errors.CategoryPersistence:
		return `Persistence error help:
• A decision in the batch could not be applied
• Check the reported decision for missing documents or transactions
• Re-run with --verbose to see the offending decision`

	default:
		return `For more help:
• Use 'belegmatch --help' for general help
• Use 'belegmatch match --help' for command-specific help
• Report bugs or ask for help on the project repository`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
