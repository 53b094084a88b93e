package disambiguation

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Trigger is the upstream sentence that marks an ambiguous search.
const Trigger = "There are several product matches for your query."

var (
	// "SIPERNAT 22 (from query: silica)" lines from the Knowde catalog.
	knowdePattern = regexp.MustCompile(`(?m)^[ \t]*(?:[-•*][ \t]*)?([^\n(]+?)[ \t]*\(from query:[^)\n]*\)`)

	// "1. " heads; an item runs to the next head or newline.
	numberedHead = regexp.MustCompile(`(?m)(?:^|\s)\d+\.\s+`)
	// "Name by Company" with an optional " - Description" tail.
	numberedItem = regexp.MustCompile(`^(.+?)\s+by\s+(.+?)(?:\s+-\s+(.*))?$`)

	// "• Name (Company) - Description", inline or one per line. "*" and "-"
	// only mark a bullet at the start of a line.
	bulletPattern = regexp.MustCompile(`(?:•|(?m:^)[ \t]*[*-])[ \t]*([^\n•(]+?)[ \t]*\(([^)\n]+)\)(?:[ \t]+-[ \t]+([^\n•]+))?`)

	// "\"Name\" by Company" or "\"Name\" from Company". Words after the
	// first must be capitalized to stop at running prose.
	quotedPattern = regexp.MustCompile(`"([^"\n]+)"\s+(?:by|from)\s+([A-Za-z][A-Za-z0-9&]*(?:[ \t]+[A-Z][A-Za-z0-9&.]*)*)`)

	// "Product: Name, Company: X"; records may share a line.
	labeledHead = regexp.MustCompile(`Product:`)
	labeledItem = regexp.MustCompile(`^Product:\s*([^,\n]+?)\s*,\s*Company:\s*([^,\n]+)`)
)

var instructionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)please\s+(?:specify|select|choose|clarify)[^.?!\n]*[.?!]?`),
	regexp.MustCompile(`(?i)which\s+(?:product|one)[^.?!\n]*\??`),
	regexp.MustCompile(`(?i)there\s+are\s+several\s+product\s+matches[^.?!\n]*[.?!]?`),
}

var rejectedPhrases = []string{"pick the products", "several product matches"}

// candidate is a raw extraction before ids, relevance and categories are assigned.
type candidate struct {
	name        string
	company     string
	description string
}

// extractCandidates runs every pattern over text and returns the union in
// pattern order, de-duplicated on lowercase (name, company).
func extractCandidates(text string) []candidate {
	var out []candidate
	seen := make(map[string]bool)

	add := func(name, company, desc string) {
		name = strings.TrimSpace(name)
		company = strings.TrimSpace(company)
		if !validName(name) {
			return
		}
		key := strings.ToLower(name) + "\x00" + strings.ToLower(company)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, candidate{name: name, company: company, description: strings.TrimSpace(desc)})
	}

	for _, m := range knowdePattern.FindAllStringSubmatch(text, -1) {
		name, company := m[1], ""
		if i := strings.LastIndex(name, " by "); i > 0 {
			name, company = name[:i], name[i+len(" by "):]
		}
		add(name, company, "")
	}

	for _, item := range segments(text, numberedHead, true) {
		if m := numberedItem.FindStringSubmatch(strings.TrimSpace(item)); m != nil {
			add(m[1], m[2], m[3])
		}
	}

	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		if strings.HasPrefix(strings.ToLower(m[2]), "from query") {
			continue
		}
		add(m[1], m[2], m[3])
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2], "")
	}

	for _, item := range segments(text, labeledHead, false) {
		if m := labeledItem.FindStringSubmatch(item); m != nil {
			add(m[1], m[2], "")
		}
	}

	return out
}

// segments splits text at each match of head, each piece ending where the
// next head starts or at the first newline. skipHead drops the head itself.
func segments(text string, head *regexp.Regexp, skipHead bool) []string {
	locs := head.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		start, end := loc[0], len(text)
		if skipHead {
			start = loc[1]
		}
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		seg := text[start:end]
		if nl := strings.IndexByte(seg, '\n'); nl >= 0 {
			seg = seg[:nl]
		}
		out = append(out, seg)
	}
	return out
}

func validName(name string) bool {
	if utf8.RuneCountInString(name) < 3 {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range rejectedPhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// extractInstructions joins the instruction matches in text order.
func extractInstructions(text string) string {
	var hits [][]int
	for _, re := range instructionPatterns {
		hits = append(hits, re.FindAllStringIndex(text, -1)...)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i][0] < hits[j][0] })

	parts := make([]string, 0, len(hits))
	end := -1
	for _, h := range hits {
		// Overlapping matches are reported once.
		if h[0] < end {
			continue
		}
		parts = append(parts, strings.TrimSpace(text[h[0]:h[1]]))
		end = h[1]
	}
	return strings.Join(parts, " ")
}
