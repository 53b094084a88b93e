package disambiguation

import (
	"strings"
	"unicode"

	"github.com/sells-group/chem-advisor/internal/model"
)

var complexTerms = []string{
	"specification", "properties", "application", "compatible",
	"alternative", "similar", "compare", "versus",
}

var conjunctions = map[string]bool{"and": true, "or": true, "with": true}

// Complexity classifies a search query. Complex wins over simple when a
// short query contains a complex term.
func Complexity(query string) model.QueryComplexity {
	words := strings.Fields(strings.ToLower(query))

	var conj int
	for _, w := range words {
		if conjunctions[strings.TrimFunc(w, isPunct)] {
			conj++
		}
	}

	lower := strings.ToLower(query)
	hasComplex := false
	for _, t := range complexTerms {
		if strings.Contains(lower, t) {
			hasComplex = true
			break
		}
	}

	switch {
	case len(words) > 6 || hasComplex || conj > 1:
		return model.QueryComplex
	case len(words) <= 3:
		return model.QuerySimple
	default:
		return model.QueryModerate
	}
}

// refinements suggests follow-up filters and terms from the options.
func refinements(options []model.ProductOption, query string) *model.QueryRefinements {
	r := &model.QueryRefinements{
		SuggestedFilters:  []string{},
		RelatedTerms:      []string{},
		CategoryBreakdown: make(map[string]int),
	}

	queryTerms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryTerms[strings.TrimFunc(w, isPunct)] = true
	}

	seenFilter := make(map[string]bool)
	seenTerm := make(map[string]bool)
	addFilter := func(f string) {
		if !seenFilter[f] {
			seenFilter[f] = true
			r.SuggestedFilters = append(r.SuggestedFilters, f)
		}
	}

	for _, o := range options {
		if o.Company != "" {
			addFilter("company:" + o.Company)
		}
		if o.Category != "" {
			addFilter("category:" + o.Category)
			r.CategoryBreakdown[o.Category]++
		}

		for _, w := range strings.Fields(strings.ToLower(o.Name)) {
			w = strings.TrimFunc(w, isPunct)
			if len(w) < 3 || queryTerms[w] || seenTerm[w] || isNumeric(w) {
				continue
			}
			if len(r.RelatedTerms) >= maxRelatedTerms {
				break
			}
			seenTerm[w] = true
			r.RelatedTerms = append(r.RelatedTerms, w)
		}
	}
	return r
}

func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
