// Package config translates CLI flags into engine and report configurations.
package config

import (
	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/engine"
	"github.com/FloHo800101/belegcockpit/internal/report"
	apperrors "github.com/FloHo800101/belegcockpit/pkg/errors"
)

// EngineOptions carries the matching knobs the CLI exposes. Everything
// not listed here keeps its engine default.
type EngineOptions struct {
	AmountTolerance        float64
	AmountTolerancePercent float64
	DateWindowDays         int
	MaxCandidates          int
	MinSuggestScore        float64
}

// DefaultEngineOptions mirrors the engine defaults so unchanged flags
// resolve to the same configuration as no flags at all.
func DefaultEngineOptions() EngineOptions {
	defaults := engine.DefaultConfig()
	abs, _ := defaults.Tolerance.Absolute.Float64()
	pct, _ := defaults.Tolerance.Percent.Float64()
	return EngineOptions{
		AmountTolerance:        abs,
		AmountTolerancePercent: pct,
		DateWindowDays:         defaults.Window.DateWindowDays,
		MaxCandidates:          defaults.SubsetSum.MaxCandidates,
		MinSuggestScore:        defaults.Scoring.MinSuggestScore,
	}
}

// CreateEngineConfig applies the CLI options on top of the engine
// defaults and validates the result.
func CreateEngineConfig(opts EngineOptions) (*engine.Config, error) {
	defaults := engine.DefaultConfig()

	tolerance := defaults.Tolerance
	tolerance.Absolute = decimal.NewFromFloat(opts.AmountTolerance)
	tolerance.Percent = decimal.NewFromFloat(opts.AmountTolerancePercent)

	window := defaults.Window
	window.DateWindowDays = opts.DateWindowDays

	subsetSum := defaults.SubsetSum
	subsetSum.MaxCandidates = opts.MaxCandidates

	scoring := defaults.Scoring
	scoring.MinSuggestScore = opts.MinSuggestScore

	cfg, err := engine.Resolve(&engine.Override{
		Tolerance: &tolerance,
		Window:    &window,
		SubsetSum: &subsetSum,
		Scoring:   &scoring,
	})
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig, "matching", opts, err)
	}
	return cfg, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, includeLifecycle bool) (*report.ReportConfig, error) {
	config := report.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = report.FormatConsole
		config.IncludeDecisions = true
	case "json":
		config.Format = report.FormatJSON
		config.IncludeDecisions = true
	case "csv":
		config.Format = report.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig, "output-format", format, nil)
	}

	config.IncludeLifecycleResults = includeLifecycle
	return config, nil
}
