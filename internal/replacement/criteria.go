package replacement

import (
	"maps"
	"strings"

	"github.com/sells-group/chem-advisor/internal/model"
)

// BuildCriteria turns a request into the read-only criteria used for one
// scoring pass. reasonExclusions maps a reason code to substances that must
// not appear in any candidate.
func BuildCriteria(req model.ReplacementRequest, reasonExclusions map[string][]string) model.ReplacementCriteria {
	c := req.Constraints

	excluded := append([]string(nil), c.ExcludedSubstances...)
	prefersLower := c.PreferLowerCost
	for _, code := range req.ReasonCodes {
		excluded = append(excluded, reasonExclusions[string(code)]...)
		if code == model.ReasonCost {
			prefersLower = true
		}
	}

	return model.ReplacementCriteria{
		ChemicalClass:      strings.TrimSpace(c.ChemicalClass),
		Applications:       cleanList(c.Applications),
		FunctionalGroups:   cleanList(c.FunctionalGroups),
		ExcludedSubstances: cleanList(excluded),
		CostConstraints: model.CostConstraints{
			MaxPriceIncrease: c.MaxPriceIncrease,
			PreferLowerCost:  prefersLower,
		},
		SupplyChainRequirements: cleanList(c.SupplyChainRequirements),
		PhysicalProperties:      maps.Clone(c.PhysicalProperties),
		PerformanceRequirements: maps.Clone(c.PerformanceRequirements),
	}
}

// cleanList trims entries, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling.
func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
