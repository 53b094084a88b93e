// Package disambiguation turns an upstream "several product matches"
// search response into selectable product options.
package disambiguation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
)

const (
	defaultInstructions = "Please select the product you are interested in."
	defaultCategory     = "Chemical Products"
	maxRelatedTerms     = 10
)

// Detect reports whether a serialized upstream payload carries the
// ambiguity trigger. Parse is only meaningful when Detect is true.
func Detect(raw []byte) bool {
	return bytes.Contains(raw, []byte(Trigger))
}

// Parser extracts product options from ambiguous search responses.
// It is safe for concurrent use.
type Parser struct {
	instructions string
	categories   []string
	extractor    func(text string) []candidate

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Parser.
type Option func(*Parser)

// WithRand sets the random source used for relevance scores.
func WithRand(r *rand.Rand) Option {
	return func(p *Parser) { p.rng = r }
}

// NewParser creates a Parser. A zero cfg.Seed seeds from the clock.
func NewParser(cfg config.DisambiguationConfig, opts ...Option) *Parser {
	p := &Parser{
		instructions: cfg.DefaultInstructions,
		categories:   cfg.Categories,
		extractor:    extractCandidates,
	}
	if p.instructions == "" {
		p.instructions = defaultInstructions
	}
	if len(p.categories) == 0 {
		p.categories = []string{defaultCategory}
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	p.rng = rand.New(rand.NewPCG(seed, seed>>1|1))

	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse builds DisambiguationData from a raw upstream payload. It never
// fails: extraction problems yield zero options and default instructions.
func (p *Parser) Parse(raw json.RawMessage, originalQuery string) *model.DisambiguationData {
	text := Flatten(raw)

	found, instructions := p.extract(text)
	if instructions == "" {
		instructions = p.instructions
	}

	options := make([]model.ProductOption, 0, len(found))
	for i, c := range found {
		options = append(options, model.ProductOption{
			ID:             fmt.Sprintf("%s-%d", slugify(c.name), i),
			Name:           c.name,
			Company:        c.company,
			Description:    c.description,
			RelevanceScore: p.relevance(),
			Category:       p.categories[i%len(p.categories)],
		})
	}

	return &model.DisambiguationData{
		Detected:      true,
		Options:       options,
		OriginalQuery: originalQuery,
		Instructions:  instructions,
		SearchMetadata: &model.SearchMetadata{
			TotalMatches:    len(options),
			QueryComplexity: Complexity(originalQuery),
			Confidence:      confidenceFor(len(options)),
			Categories:      distinctCategories(options),
		},
		QueryRefinements: refinements(options, originalQuery),
	}
}

// extract runs the pattern chain, recovering from any panic inside it.
func (p *Parser) extract(text string) (found []candidate, instructions string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("disambiguation: extraction failed", zap.Any("panic", r))
			found, instructions = nil, ""
		}
	}()
	return p.extractor(text), extractInstructions(text)
}

// relevance returns a simulated score in [0.6, 1.0).
func (p *Parser) relevance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0.6 + p.rng.Float64()*0.4
}

// Flatten reduces an upstream payload to plain text.
func Flatten(raw json.RawMessage) string {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}

	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		switch result := v["result"].(type) {
		case []any:
			parts := make([]string, 0, len(result))
			for _, item := range result {
				if m, ok := item.(map[string]any); ok {
					if s, ok := m["content"].(string); ok {
						parts = append(parts, s)
					}
				}
			}
			return strings.Join(parts, "\n")
		case map[string]any:
			if s, ok := result["content"].(string); ok {
				return s
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// confidenceFor returns 0.8 when anything was extracted, else 0.3.
func confidenceFor(options int) float64 {
	c := 0.3
	if options > 0 {
		c = 0.8
	}
	return min(0.95, max(0.3, c))
}

// slugify lowercases, strips accents and joins alphanumeric runs with hyphens.
func slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func distinctCategories(options []model.ProductOption) []string {
	var out []string
	seen := make(map[string]bool)
	for _, o := range options {
		if o.Category != "" && !seen[o.Category] {
			seen[o.Category] = true
			out = append(out, o.Category)
		}
	}
	return out
}
