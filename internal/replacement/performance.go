package replacement

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/chem-advisor/internal/model"
)

const (
	requirementsWeight = 0.6
	qualityWeight      = 0.4

	defaultPerformance = 60.0
)

// PerformanceMatchingEngine scores technical fit from manufacturer
// reputation and data completeness.
type PerformanceMatchingEngine struct{}

// Match returns 0-100.
func (PerformanceMatchingEngine) Match(criteria model.ReplacementCriteria, candidate model.Product) float64 {
	var total, weights float64

	if len(criteria.PerformanceRequirements) > 0 {
		total += requirementsProxy(candidate.Manufacturer) * requirementsWeight
		weights += requirementsWeight
	}

	total += qualityIndicator(candidate) * qualityWeight
	weights += qualityWeight

	if weights == 0 {
		return defaultPerformance
	}
	return clamp100(total / weights * 100)
}

// requirementsProxy returns 0.8 for a reputable manufacturer, else 0.6.
func requirementsProxy(manufacturer string) float64 {
	if isReputable(manufacturer) {
		return 0.8
	}
	return 0.6
}

// isReputable matches manufacturer words against the reputable list so that
// "The Dow Chemical Company" matches while "Meadowbrook" does not.
func isReputable(manufacturer string) bool {
	words := strings.FieldsFunc(strings.ToLower(manufacturer), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, m := range reputableManufacturers {
			if w == m {
				return true
			}
		}
	}
	return false
}

// qualityIndicator returns 0.5-1.0 based on how complete the product record is.
func qualityIndicator(p model.Product) float64 {
	score := 0.5
	if p.ProductNumber != "" {
		score += 0.2
	}
	if p.CASNumber != "" && p.ChemicalName != "" {
		score += 0.2
	}
	if len(p.Description) > 50 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}
