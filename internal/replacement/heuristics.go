package replacement

import (
	"math"
	"strings"

	"github.com/sells-group/chem-advisor/internal/model"
)

// availabilityScore returns 0-100 from the candidate's catalog status.
func availabilityScore(p model.Product) float64 {
	score := 60.0
	if p.IsActive {
		score += 20
	}
	if p.ProductNumber != "" {
		score += 15
	}
	if p.Manufacturer != "" {
		score += 5
	}
	return math.Min(score, 100)
}

// costScore returns 0-100. Industrial-grade candidates earn a bonus when the
// request prefers lower cost.
func costScore(criteria model.ReplacementCriteria, p model.Product) float64 {
	score := 70.0
	if criteria.CostConstraints.PreferLowerCost && strings.Contains(strings.ToLower(p.Category), "industrial") {
		score += 15
	}
	return math.Min(score, 100)
}

// sustainabilityScore returns 0-100 from green keywords in name or description.
func sustainabilityScore(p model.Product) float64 {
	score := 50.0
	text := strings.ToLower(p.Name + " " + p.Description)
	for _, kw := range sustainabilityKeywords {
		if strings.Contains(text, kw) {
			score += 15
			break
		}
	}
	return math.Min(score, 100)
}

// confidence returns 0.5-1.0 from how much identifying data both sides carry.
func confidence(original, candidate model.Product) float64 {
	c := 0.5
	if original.CASNumber != "" && candidate.CASNumber != "" {
		c += 0.2
	}
	if original.ChemicalName != "" && candidate.ChemicalName != "" {
		c += 0.1
	}
	if len(candidate.Description) > 30 {
		c += 0.1
	}
	if candidate.Manufacturer != "" {
		c += 0.1
	}
	return math.Min(math.Round(c*100)/100, 1.0)
}

// isExcluded reports whether any excluded substance appears in the
// candidate's name, chemical name or description.
func isExcluded(p model.Product, excluded []string) bool {
	if len(excluded) == 0 {
		return false
	}
	text := strings.ToLower(p.Name + " " + p.ChemicalName + " " + p.Description)
	for _, s := range excluded {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}
