package model

import "time"

// ReasonCode is a user-entered reason for requesting a replacement.
type ReasonCode string

const (
	ReasonDiscontinued ReasonCode = "discontinued"
	ReasonRegulatory   ReasonCode = "regulatory"
	ReasonCost         ReasonCode = "cost"
	ReasonSupply       ReasonCode = "supply"
	ReasonPerformance  ReasonCode = "performance"
	ReasonSustainable  ReasonCode = "sustainability"
)

// RequestConstraints carries the user-entered constraints of a replacement request.
type RequestConstraints struct {
	Notes                   string            `json:"notes,omitempty"`
	ChemicalClass           string            `json:"chemical_class,omitempty"`
	Applications            []string          `json:"applications,omitempty"`
	FunctionalGroups        []string          `json:"functional_groups,omitempty"`
	ExcludedSubstances      []string          `json:"excluded_substances,omitempty"`
	MaxPriceIncrease        *float64          `json:"max_price_increase,omitempty"`
	PreferLowerCost         bool              `json:"prefer_lower_cost,omitempty"`
	SupplyChainRequirements []string          `json:"supply_chain_requirements,omitempty"`
	PhysicalProperties      map[string]string `json:"physical_properties,omitempty"`
	PerformanceRequirements map[string]string `json:"performance_requirements,omitempty"`
}

// ReplacementRequest asks for replacements of one original product.
type ReplacementRequest struct {
	ID                string             `json:"id"`
	OriginalProductID string             `json:"original_product_id"`
	ReasonCodes       []ReasonCode       `json:"reason_codes,omitempty"`
	Constraints       RequestConstraints `json:"constraints"`
	RequestedBy       string             `json:"requested_by,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// CostConstraints limits the cost profile of acceptable replacements.
type CostConstraints struct {
	MaxPriceIncrease *float64 `json:"max_price_increase,omitempty"`
	PreferLowerCost  bool     `json:"prefer_lower_cost,omitempty"`
}

// ReplacementCriteria is the request-scoped scoring configuration. It is
// built once per discovery run and treated as read-only afterwards.
type ReplacementCriteria struct {
	ChemicalClass           string            `json:"chemical_class,omitempty"`
	Applications            []string          `json:"applications,omitempty"`
	FunctionalGroups        []string          `json:"functional_groups,omitempty"`
	ExcludedSubstances      []string          `json:"excluded_substances,omitempty"`
	CostConstraints         CostConstraints   `json:"cost_constraints"`
	SupplyChainRequirements []string          `json:"supply_chain_requirements,omitempty"`
	PhysicalProperties      map[string]string `json:"physical_properties,omitempty"`
	PerformanceRequirements map[string]string `json:"performance_requirements,omitempty"`
}

// ScoreBreakdown holds the six 0-100 sub-scores of a candidate.
type ScoreBreakdown struct {
	ChemicalSimilarity      float64 `json:"chemical_similarity"`
	FunctionalCompatibility float64 `json:"functional_compatibility"`
	PerformanceMatch        float64 `json:"performance_match"`
	Availability            float64 `json:"availability"`
	CostEffectiveness       float64 `json:"cost_effectiveness"`
	Sustainability          float64 `json:"sustainability"`
}

// ReplacementScore is the computed score for one candidate.
type ReplacementScore struct {
	Overall    int            `json:"overall"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Confidence float64        `json:"confidence"`
	Reasoning  []string       `json:"reasoning"`
}

// MatchType classifies how closely a candidate matches the original.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchSimilar     MatchType = "similar"
	MatchFunctional  MatchType = "functional"
	MatchAlternative MatchType = "alternative"
)

// RiskLevel classifies the switching risk of a candidate.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Complexity classifies the implementation effort of switching.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// RegulatoryApproved is the only regulatory status currently produced.
const RegulatoryApproved = "approved"

// CandidateMetadata is derived from a ReplacementScore and never set independently.
type CandidateMetadata struct {
	MatchType                MatchType  `json:"match_type"`
	RiskLevel                RiskLevel  `json:"risk_level"`
	ImplementationComplexity Complexity `json:"implementation_complexity"`
	RegulatoryStatus         string     `json:"regulatory_status"`
}

// ReplacementCandidate pairs a candidate product with its score.
type ReplacementCandidate struct {
	Product  Product           `json:"product"`
	Score    ReplacementScore  `json:"score"`
	Metadata CandidateMetadata `json:"metadata"`
}
