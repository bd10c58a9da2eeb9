package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FloHo800101/belegcockpit/internal/models"
)

func subsetCandidate(id string, amount float64) *models.DocCandidate {
	return &models.DocCandidate{
		Doc: &models.Document{
			ID:            id,
			NominalAmount: decimal.NewFromFloat(amount),
			Currency:      "EUR",
		},
	}
}

func solutionIDs(solution []*models.DocCandidate) []string {
	ids := make([]string, len(solution))
	for i, cand := range solution {
		ids[i] = cand.Doc.ID
	}
	return ids
}

func TestSubsetSumSingleSolution(t *testing.T) {
	candidates := []*models.DocCandidate{
		subsetCandidate("doc-a", 9.38),
		subsetCandidate("doc-b", 9.00),
		subsetCandidate("doc-c", 3.50),
	}

	solutions := SubsetSumDocsToAmount(candidates, decimal.NewFromFloat(18.38), DefaultConfig())
	if len(solutions) != 1 {
		t.Fatalf("Expected exactly one solution, got %d", len(solutions))
	}

	ids := models.SortedUniqueIDs(solutionIDs(solutions[0]))
	if len(ids) != 2 || ids[0] != "doc-a" || ids[1] != "doc-b" {
		t.Errorf("Expected solution {doc-a, doc-b}, got %v", ids)
	}
}

func TestSubsetSumNoSolution(t *testing.T) {
	candidates := []*models.DocCandidate{
		subsetCandidate("doc-a", 5.00),
		subsetCandidate("doc-b", 6.00),
	}

	solutions := SubsetSumDocsToAmount(candidates, decimal.NewFromFloat(100.00), DefaultConfig())
	if len(solutions) != 0 {
		t.Errorf("Expected no solutions, got %d", len(solutions))
	}
}

func TestSubsetSumSingleCoveringDocExcluded(t *testing.T) {
	// A single covering document is a one-to-one concern, not a subset.
	candidates := []*models.DocCandidate{
		subsetCandidate("doc-a", 18.38),
		subsetCandidate("doc-b", 3.00),
	}

	solutions := SubsetSumDocsToAmount(candidates, decimal.NewFromFloat(18.38), DefaultConfig())
	if len(solutions) != 0 {
		t.Errorf("Expected no multi-document solutions, got %d", len(solutions))
	}
}

func TestSubsetSumMultipleSolutions(t *testing.T) {
	candidates := []*models.DocCandidate{
		subsetCandidate("doc-a", 10.00),
		subsetCandidate("doc-b", 8.00),
		subsetCandidate("doc-c", 12.00),
		subsetCandidate("doc-d", 6.00),
	}

	// 10+8 and 12+6 both hit 18.00.
	solutions := SubsetSumDocsToAmount(candidates, decimal.NewFromFloat(18.00), DefaultConfig())
	if len(solutions) < 2 {
		t.Errorf("Expected multiple solutions, got %d", len(solutions))
	}
}

func TestSubsetSumRespectsCandidateBound(t *testing.T) {
	cfg := DefaultConfig()
	var candidates []*models.DocCandidate
	for i := 0; i <= cfg.SubsetSum.MaxCandidates; i++ {
		candidates = append(candidates, subsetCandidate(string(rune('a'+i)), 1.00))
	}

	solutions := SubsetSumDocsToAmount(candidates, decimal.NewFromFloat(2.00), cfg)
	if solutions != nil {
		t.Errorf("Expected oversized candidate set to be refused, got %d solutions", len(solutions))
	}
}

func TestSubsetSumDeterministicOrder(t *testing.T) {
	build := func() []*models.DocCandidate {
		return []*models.DocCandidate{
			subsetCandidate("doc-c", 6.00),
			subsetCandidate("doc-a", 10.00),
			subsetCandidate("doc-d", 12.00),
			subsetCandidate("doc-b", 8.00),
		}
	}

	first := SubsetSumDocsToAmount(build(), decimal.NewFromFloat(18.00), DefaultConfig())
	second := SubsetSumDocsToAmount(build(), decimal.NewFromFloat(18.00), DefaultConfig())

	if len(first) != len(second) {
		t.Fatalf("Expected identical solution counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		a := models.SortedUniqueIDs(solutionIDs(first[i]))
		b := models.SortedUniqueIDs(solutionIDs(second[i]))
		if len(a) != len(b) {
			t.Fatalf("Solution %d differs in size between runs", i)
		}
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("Solution %d differs between runs: %v vs %v", i, a, b)
			}
		}
	}
}
