package model

// QueryComplexity is a display-only classification of a search phrase.
type QueryComplexity string

const (
	QuerySimple   QueryComplexity = "simple"
	QueryModerate QueryComplexity = "moderate"
	QueryComplex  QueryComplexity = "complex"
)

// ProductOption is one selectable product parsed from an ambiguous search response.
type ProductOption struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Company        string  `json:"company,omitempty"`
	Description    string  `json:"description,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	Category       string  `json:"category,omitempty"`
}

// SearchMetadata describes the parsed option set.
type SearchMetadata struct {
	TotalMatches    int             `json:"total_matches"`
	QueryComplexity QueryComplexity `json:"query_complexity"`
	SearchTime      int64           `json:"search_time_ms"`
	Confidence      float64         `json:"confidence"`
	Categories      []string        `json:"categories"`
}

// QueryRefinements suggests ways to narrow an ambiguous query.
type QueryRefinements struct {
	SuggestedFilters  []string       `json:"suggested_filters"`
	RelatedTerms      []string       `json:"related_terms"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
}

// DisambiguationData is handed to the chat layer to render a selection list.
// Detected is always true once parsing ran; zero options means the trigger
// was found but nothing could be extracted.
type DisambiguationData struct {
	Detected         bool              `json:"detected"`
	Options          []ProductOption   `json:"options"`
	OriginalQuery    string            `json:"original_query"`
	Instructions     string            `json:"instructions"`
	SearchMetadata   *SearchMetadata   `json:"search_metadata,omitempty"`
	QueryRefinements *QueryRefinements `json:"query_refinements,omitempty"`
}
