package replacement

import (
	"strings"

	"github.com/sells-group/chem-advisor/internal/model"
)

const (
	applicationWeight        = 0.4
	functionalGroupWeight    = 0.3
	physicalPropertiesWeight = 0.3

	// defaultFunctional applies when the criteria name no functional dimension.
	defaultFunctional = 70.0

	// physicalPropertiesScore is a fixed placeholder; properties are not compared.
	physicalPropertiesScore = 0.6
)

// FunctionalCompatibilityEngine scores how well a candidate covers the
// requested applications and functional groups.
type FunctionalCompatibilityEngine struct{}

// Compatibility returns 0-100, or 70 when no criteria dimension is supplied.
func (FunctionalCompatibilityEngine) Compatibility(criteria model.ReplacementCriteria, candidate model.Product) float64 {
	var total, weights float64

	if len(criteria.Applications) > 0 {
		total += applicationCoverage(criteria.Applications, inferApplications(candidate)) * applicationWeight
		weights += applicationWeight
	}
	if len(criteria.FunctionalGroups) > 0 {
		total += groupCoverage(criteria.FunctionalGroups, extractFunctionalGroups(candidate.ChemicalName)) * functionalGroupWeight
		weights += functionalGroupWeight
	}
	if len(criteria.PhysicalProperties) > 0 {
		total += physicalPropertiesScore * physicalPropertiesWeight
		weights += physicalPropertiesWeight
	}

	if weights == 0 {
		return defaultFunctional
	}
	return clamp100(total / weights * 100)
}

// inferApplications returns the application keywords found in the
// description plus the candidate's own category.
func inferApplications(p model.Product) []string {
	desc := strings.ToLower(p.Description)
	var apps []string
	for _, kw := range applicationKeywords {
		if strings.Contains(desc, kw) {
			apps = append(apps, kw)
		}
	}
	if c := strings.ToLower(strings.TrimSpace(p.Category)); c != "" {
		apps = append(apps, c)
	}
	return apps
}

// extractFunctionalGroups returns the vocabulary words present in a chemical name.
func extractFunctionalGroups(chemicalName string) []string {
	name := strings.ToLower(chemicalName)
	var groups []string
	for _, w := range functionalGroupWords {
		if strings.Contains(name, w) {
			groups = append(groups, w)
		}
	}
	return groups
}

// applicationCoverage is the fraction of required applications that match an
// inferred application by substring in either direction.
func applicationCoverage(required, inferred []string) float64 {
	if len(required) == 0 {
		return 0
	}
	var hits int
	for _, r := range required {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		for _, a := range inferred {
			if strings.Contains(a, r) || strings.Contains(r, a) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(required))
}

// groupCoverage is the fraction of required groups present in the extracted set.
func groupCoverage(required, present []string) float64 {
	if len(required) == 0 {
		return 0
	}
	set := make(map[string]bool, len(present))
	for _, g := range present {
		set[g] = true
	}
	var hits int
	for _, r := range required {
		if set[strings.ToLower(strings.TrimSpace(r))] {
			hits++
		}
	}
	return float64(hits) / float64(len(required))
}
