package replacement

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/chem-advisor/internal/model"
)

// Factor weights for chemical similarity.
const (
	casWeight          = 0.4
	chemicalNameWeight = 0.3
	categoryWeight     = 0.2
	nameTokenWeight    = 0.1
)

// ChemicalSimilarityEngine scores identity similarity between two products
// from CAS numbers, chemical names, categories and product names.
type ChemicalSimilarityEngine struct{}

// Similarity returns 0-100. A factor only counts when both products carry
// the field; weights are renormalized over the factors that counted.
func (ChemicalSimilarityEngine) Similarity(original, candidate model.Product) float64 {
	var total, weights float64

	if original.CASNumber != "" && candidate.CASNumber != "" {
		total += casSimilarity(original.CASNumber, candidate.CASNumber) * casWeight
		weights += casWeight
	}
	if original.ChemicalName != "" && candidate.ChemicalName != "" {
		total += chemicalNameSimilarity(original.ChemicalName, candidate.ChemicalName) * chemicalNameWeight
		weights += chemicalNameWeight
	}
	if original.Category != "" && candidate.Category != "" {
		total += categorySimilarity(original.Category, candidate.Category) * categoryWeight
		weights += categoryWeight
	}

	// Name overlap is always part of the blend.
	total += nameTokenOverlap(original.Name, candidate.Name) * nameTokenWeight
	weights += nameTokenWeight

	if weights == 0 {
		return 0
	}
	return clamp100(total / weights * 100)
}

// casSimilarity returns 0.0-1.0 for two CAS registry numbers.
func casSimilarity(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return 1.0
	}

	pa, pb := casPrefix(a), casPrefix(b)
	if pa == pb {
		return 0.8
	}

	if diff := len(pa) - len(pb); diff < -1 || diff > 1 {
		return 0
	}

	var matches int
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			matches++
		}
	}
	longest := max(len(pa), len(pb))
	if longest == 0 {
		return 0
	}
	return math.Min(float64(matches)/float64(longest), 0.6)
}

// casPrefix returns the segment before the first hyphen.
func casPrefix(cas string) string {
	if i := strings.Index(cas, "-"); i >= 0 {
		return cas[:i]
	}
	return cas
}

// chemicalNameSimilarity returns 0.0-1.0 for two chemical names.
func chemicalNameSimilarity(a, b string) float64 {
	na, nb := normalizeChemicalName(a), normalizeChemicalName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	var shared int
	for _, w := range functionalGroupWords {
		if strings.Contains(na, w) && strings.Contains(nb, w) {
			shared++
		}
	}
	return math.Min(float64(shared)*0.3, 0.9)
}

// normalizeChemicalName lowercases and drops everything but letters and digits.
func normalizeChemicalName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// categorySimilarity never returns 0: a differing category still earns half credit.
func categorySimilarity(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}
	return 0.5
}

// nameTokenOverlap is the share of common lowercase words over the larger word count.
func nameTokenOverlap(a, b string) float64 {
	ta := strings.Fields(strings.ToLower(a))
	tb := strings.Fields(strings.ToLower(b))
	longest := max(len(ta), len(tb))
	if longest == 0 {
		return 0
	}

	set := make(map[string]bool, len(tb))
	for _, t := range tb {
		set[t] = true
	}
	var shared int
	seen := make(map[string]bool, len(ta))
	for _, t := range ta {
		if set[t] && !seen[t] {
			shared++
			seen[t] = true
		}
	}
	return float64(shared) / float64(longest)
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
