package sourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/model"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"EcoDegrease 200 | Omega Chemicals", "EcoDegrease 200"},
		{"Citra Solv - Official Site", "Citra Solv"},
		{"  Plain Name  ", "Plain Name"},
		{"| leading separator", "| leading separator"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanTitle(tt.in))
		})
	}
}

func TestHostLabel(t *testing.T) {
	assert.Equal(t, "acme-chem.com", hostLabel("https://www.acme-chem.com/p/1"))
	assert.Equal(t, "shop.example.org", hostLabel("http://shop.example.org:8080/x"))
	assert.Empty(t, hostLabel("not a url"))
	assert.Empty(t, hostLabel(""))
}

func TestCleanJSONArray(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, cleanJSONArray("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[1,2]`, cleanJSONArray("Here you go:\n[1,2]\nThanks"))
	assert.Empty(t, cleanJSONArray(`{"not":"array"}`))
	assert.Empty(t, cleanJSONArray(""))
}

func TestParseSuggestions(t *testing.T) {
	text := `[
		{"name": "Green Strip", "manufacturer": "Zeta", "cas_number": "5989-27-5", "chemical_name": "d-limonene", "category": "solvent"},
		{"name": "", "manufacturer": "Nobody"},
		{"name": "Safe Clean", "cas_number": "n/a"},
		{"name": "Third"}
	]`

	got, err := parseSuggestions(text, "degreaser", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Green Strip", got[0].Name)
	assert.Equal(t, "5989-27-5", got[0].CASNumber)
	assert.Equal(t, "solvent", got[0].Category)
	assert.True(t, got[0].IsActive)
	assert.Equal(t, model.SourcePerplexity, got[0].Source)

	assert.Equal(t, "Safe Clean", got[1].Name)
	assert.Empty(t, got[1].CASNumber)
	assert.Equal(t, "degreaser", got[1].Category)
}

func TestParseSuggestions_Malformed(t *testing.T) {
	_, err := parseSuggestions(`[{"name": "broken",]`, "", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sourcing: parse perplexity suggestions")
}

func TestParseSuggestions_NoArray(t *testing.T) {
	got, err := parseSuggestions("I could not find any alternatives.", "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJinaQuery(t *testing.T) {
	q := jinaQuery(model.Product{Name: "Klenz-All", ChemicalName: "sodium hydroxide", Category: "degreaser"})
	assert.Equal(t, `"Klenz-All" sodium hydroxide degreaser alternative substitute product`, q)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "hé", truncate("héllo", 2))
}
