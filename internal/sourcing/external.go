package sourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/pkg/jina"
	"github.com/sells-group/chem-advisor/pkg/perplexity"
)

const maxDescriptionLen = 500

// fromJina searches the web for alternatives and turns each hit into a
// candidate product named after the page title.
func (s *Sourcer) fromJina(ctx context.Context, original model.Product) ([]model.Product, error) {
	var opts []jina.SearchOption
	if s.cfg.JinaSite != "" {
		opts = append(opts, jina.WithSiteFilter(s.cfg.JinaSite))
	}
	resp, err := s.jina.Search(ctx, jinaQuery(original), opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	out := make([]model.Product, 0, min(len(resp.Data), s.cfg.ExternalLimit))
	for _, r := range resp.Data {
		if len(out) >= s.cfg.ExternalLimit {
			break
		}
		name := cleanTitle(r.Title)
		if name == "" {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = r.Content
		}
		out = append(out, model.Product{
			Name:         name,
			Manufacturer: hostLabel(r.URL),
			Category:     original.Category,
			Description:  truncate(strings.TrimSpace(desc), maxDescriptionLen),
			IsActive:     true,
			Source:       model.SourceJina,
		})
	}
	return out, nil
}

func jinaQuery(p model.Product) string {
	parts := []string{fmt.Sprintf("%q", p.Name)}
	if p.ChemicalName != "" {
		parts = append(parts, p.ChemicalName)
	}
	if p.Category != "" {
		parts = append(parts, p.Category)
	}
	parts = append(parts, "alternative substitute product")
	return strings.Join(parts, " ")
}

// cleanTitle drops the site suffix from titles like "Product X | Acme Corp".
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - ", " – "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return strings.TrimSpace(title)
}

// hostLabel turns "https://www.acme-chem.com/p/1" into "acme-chem.com".
func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type suggestion struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	CASNumber    string `json:"cas_number"`
	ChemicalName string `json:"chemical_name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
}

const suggestionPrompt = `Suggest up to %d commercially available replacement products for the chemical product below.
Product: %s
Manufacturer: %s
Chemical name: %s
CAS number: %s
Category: %s
%s
Respond with only a JSON array. Each element must have the keys "name", "manufacturer", "cas_number", "chemical_name", "category" and "description". Use "" for unknown values.`

// fromPerplexity asks Perplexity for alternatives as a JSON array.
func (s *Sourcer) fromPerplexity(ctx context.Context, original model.Product, criteria model.ReplacementCriteria) ([]model.Product, error) {
	var avoid string
	if len(criteria.ExcludedSubstances) > 0 {
		avoid = "Do not suggest products containing: " + strings.Join(criteria.ExcludedSubstances, ", ") + "."
	}
	prompt := fmt.Sprintf(suggestionPrompt, s.cfg.ExternalLimit,
		original.Name, original.Manufacturer, original.ChemicalName, original.CASNumber, original.Category, avoid)

	resp, err := s.perplexity.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "You are a chemical product sourcing assistant. Reply with JSON only."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseSuggestions(resp.Content(), original.Category, s.cfg.ExternalLimit)
}

// parseSuggestions decodes a JSON array of suggestions, tolerating code
// fences and surrounding prose. Malformed CAS numbers are cleared.
func parseSuggestions(text, fallbackCategory string, limit int) ([]model.Product, error) {
	text = cleanJSONArray(text)
	if text == "" {
		return nil, nil
	}
	var raw []suggestion
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrap(err, "sourcing: parse perplexity suggestions")
	}

	out := make([]model.Product, 0, len(raw))
	for _, r := range raw {
		if limit > 0 && len(out) >= limit {
			break
		}
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		cas := strings.TrimSpace(r.CASNumber)
		if !model.ValidCAS(cas) {
			cas = ""
		}
		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = fallbackCategory
		}
		out = append(out, model.Product{
			Name:         name,
			Manufacturer: strings.TrimSpace(r.Manufacturer),
			CASNumber:    cas,
			ChemicalName: strings.TrimSpace(r.ChemicalName),
			Category:     category,
			Description:  truncate(strings.TrimSpace(r.Description), maxDescriptionLen),
			IsActive:     true,
			Source:       model.SourcePerplexity,
		})
	}
	return out, nil
}

// cleanJSONArray strips markdown fences and extracts the outermost array.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
