package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

// SubsetSumDocsToAmount searches for subsets of the candidate documents
// whose resolved amounts sum to the target under tolerance. Only subsets
// with at least two documents qualify; a single covering document is a
// one-to-one concern. Candidates are sorted descending by amount with the
// document id as tie-break, so identical inputs always explore (and
// return) solutions in the same order.
//
// The search is exhaustive include/exclude backtracking over the bounded
// candidate set and stops early once more than maxSolutions solutions have
// been found: the caller only distinguishes zero, one and more-than-one.
func SubsetSumDocsToAmount(candidates []*models.DocCandidate, target decimal.Decimal, cfg *Config) [][]*models.DocCandidate {
	if len(candidates) < 2 || len(candidates) > cfg.SubsetSum.MaxCandidates {
		return nil
	}

	sorted := append([]*models.DocCandidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		ai := sorted[i].Doc.TargetAmount()
		aj := sorted[j].Doc.TargetAmount()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return sorted[i].Doc.ID < sorted[j].Doc.ID
	})

	search := subsetSearch{
		candidates:   sorted,
		target:       target,
		cfg:          cfg,
		maxSolutions: cfg.SubsetSum.MaxSolutions,
	}
	search.run(0, decimal.Zero, nil)
	return search.solutions
}

type subsetSearch struct {
	candidates   []*models.DocCandidate
	target       decimal.Decimal
	cfg          *Config
	maxSolutions int
	solutions    [][]*models.DocCandidate
	done         bool
}

func (s *subsetSearch) run(idx int, sum decimal.Decimal, picked []*models.DocCandidate) {
	if s.done {
		return
	}

	if len(picked) >= 2 && AmountCompatible(sum, s.target, s.cfg) {
		s.solutions = append(s.solutions, append([]*models.DocCandidate(nil), picked...))
		if len(s.solutions) > s.maxSolutions {
			s.done = true
		}
		return
	}

	if idx >= len(s.candidates) {
		return
	}

	// Amounts are positive; once past the target plus tolerance no
	// further includes can recover.
	if sum.Sub(s.target).GreaterThan(amountTolerance(sum, s.target, s.cfg)) {
		return
	}

	amount := s.candidates[idx].Doc.TargetAmount()
	s.run(idx+1, sum.Add(amount), append(picked, s.candidates[idx]))
	s.run(idx+1, sum, picked)
}
