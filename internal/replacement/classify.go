package replacement

import (
	"fmt"

	"github.com/sells-group/chem-advisor/internal/model"
)

// buildReasoning returns the ordered explanation lines for a breakdown.
func buildReasoning(b model.ScoreBreakdown) []string {
	var reasons []string

	switch {
	case b.ChemicalSimilarity > 80:
		reasons = append(reasons, fmt.Sprintf("High chemical similarity (%.0f%%) to the original product", b.ChemicalSimilarity))
	case b.ChemicalSimilarity > 60:
		reasons = append(reasons, fmt.Sprintf("Good chemical similarity (%.0f%%) with comparable composition", b.ChemicalSimilarity))
	}
	if b.FunctionalCompatibility > 80 {
		reasons = append(reasons, "Strong functional compatibility with the required applications")
	}
	if b.PerformanceMatch > 80 {
		reasons = append(reasons, "Performance profile meets the technical requirements")
	}
	if b.Availability > 80 {
		reasons = append(reasons, "Readily available from an active supplier")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Moderate compatibility; review technical data sheets before switching")
	}
	return reasons
}

// deriveMetadata classifies a score. It reads nothing but the score.
func deriveMetadata(s model.ReplacementScore) model.CandidateMetadata {
	var mt model.MatchType
	switch {
	case s.Breakdown.ChemicalSimilarity > 90:
		mt = model.MatchExact
	case s.Breakdown.ChemicalSimilarity > 70:
		mt = model.MatchSimilar
	case s.Breakdown.FunctionalCompatibility > 80:
		mt = model.MatchFunctional
	default:
		mt = model.MatchAlternative
	}

	var risk model.RiskLevel
	switch {
	case s.Overall > 80:
		risk = model.RiskLow
	case s.Overall > 60:
		risk = model.RiskMedium
	default:
		risk = model.RiskHigh
	}

	var complexity model.Complexity
	switch mt {
	case model.MatchExact:
		complexity = model.ComplexitySimple
	case model.MatchSimilar:
		complexity = model.ComplexityModerate
	default:
		complexity = model.ComplexityComplex
	}

	return model.CandidateMetadata{
		MatchType:                mt,
		RiskLevel:                risk,
		ImplementationComplexity: complexity,
		RegulatoryStatus:         model.RegulatoryApproved,
	}
}
