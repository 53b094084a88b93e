package disambiguation

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
)

const sipernatText = "There are several product matches for your query. 1. SIPERNAT 45 S by Evonik - silica additive 2. SIPERNAT 50 by Evonik - silica additive"

func resultPayload(t *testing.T, contents ...string) json.RawMessage {
	t.Helper()
	items := make([]map[string]string, 0, len(contents))
	for _, c := range contents {
		items = append(items, map[string]string{"content": c})
	}
	raw, err := json.Marshal(map[string]any{"result": items})
	require.NoError(t, err)
	return raw
}

func testParser(cfg config.DisambiguationConfig) *Parser {
	return NewParser(cfg, WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestDetect(t *testing.T) {
	assert.True(t, Detect([]byte(`{"result":"`+Trigger+` 1. A by B - c"}`)))
	assert.False(t, Detect([]byte(`{"result":"There are several matches."}`)))
	assert.False(t, Detect(nil))
}

func TestParse_SipernatRoundTrip(t *testing.T) {
	raw := resultPayload(t, sipernatText)
	require.True(t, Detect(raw))

	data := testParser(config.DisambiguationConfig{}).Parse(raw, "sipernat")

	assert.True(t, data.Detected)
	assert.Equal(t, "sipernat", data.OriginalQuery)
	require.Len(t, data.Options, 2)

	assert.Equal(t, "SIPERNAT 45 S", data.Options[0].Name)
	assert.Equal(t, "sipernat-45-s-0", data.Options[0].ID)
	assert.Equal(t, "SIPERNAT 50", data.Options[1].Name)
	assert.Equal(t, "sipernat-50-1", data.Options[1].ID)
	for _, o := range data.Options {
		assert.Equal(t, "Evonik", o.Company)
		assert.Equal(t, "silica additive", o.Description)
		assert.Equal(t, "Chemical Products", o.Category)
		assert.GreaterOrEqual(t, o.RelevanceScore, 0.6)
		assert.Less(t, o.RelevanceScore, 1.0)
	}

	assert.Equal(t, Trigger, data.Instructions)

	require.NotNil(t, data.SearchMetadata)
	assert.Equal(t, 2, data.SearchMetadata.TotalMatches)
	assert.Equal(t, model.QuerySimple, data.SearchMetadata.QueryComplexity)
	assert.Equal(t, 0.8, data.SearchMetadata.Confidence)
	assert.Equal(t, []string{"Chemical Products"}, data.SearchMetadata.Categories)

	require.NotNil(t, data.QueryRefinements)
	assert.Equal(t, []string{"company:Evonik", "category:Chemical Products"}, data.QueryRefinements.SuggestedFilters)
	assert.Empty(t, data.QueryRefinements.RelatedTerms)
	assert.Equal(t, map[string]int{"Chemical Products": 2}, data.QueryRefinements.CategoryBreakdown)
}

func TestParse_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantNames []string
		wantCos   []string
	}{
		{
			"knowde lines",
			"Pick the products you mean:\nSIPERNAT 22 (from query: sipernat)\nSIPERNAT 22 S by Evonik (from query: sipernat)\n",
			[]string{"SIPERNAT 22", "SIPERNAT 22 S"},
			[]string{"", "Evonik"},
		},
		{
			"bulleted",
			"• Aerosil 200 (Evonik) - fumed silica\n• Cab-O-Sil M5 (Cabot)\n",
			[]string{"Aerosil 200", "Cab-O-Sil M5"},
			[]string{"Evonik", "Cabot"},
		},
		{
			"inline bullets",
			Trigger + " • Aerosil 200 (Evonik) - fumed silica • Cab-O-Sil M5 (Cabot) - fumed silica",
			[]string{"Aerosil 200", "Cab-O-Sil M5"},
			[]string{"Evonik", "Cabot"},
		},
		{
			"numbered without descriptions",
			"\n1. SIPERNAT 22 by Evonik\n2. Zeosil 1165MP by Solvay\n",
			[]string{"SIPERNAT 22", "Zeosil 1165MP"},
			[]string{"Evonik", "Solvay"},
		},
		{
			"numbered inline with and without descriptions",
			Trigger + " 1. SIPERNAT 22 by Evonik 2. Zeosil 1165MP by Solvay - precipitated silica",
			[]string{"SIPERNAT 22", "Zeosil 1165MP"},
			[]string{"Evonik", "Solvay"},
		},
		{
			"quoted lowercase company",
			`Did you mean "Aerosil 200" from evonik?`,
			[]string{"Aerosil 200"},
			[]string{"evonik"},
		},
		{
			"labeled records on one line",
			"Product: Ultrasil VN3, Company: Evonik Product: Zeosil 1165MP, Company: Solvay",
			[]string{"Ultrasil VN3", "Zeosil 1165MP"},
			[]string{"Evonik", "Solvay"},
		},
		{
			"quoted",
			`Did you mean "Aerosil 200" by Evonik Industries and "Cab-O-Sil" from Cabot.`,
			[]string{"Aerosil 200", "Cab-O-Sil"},
			[]string{"Evonik Industries", "Cabot"},
		},
		{
			"labeled",
			"Product: Ultrasil VN3, Company: Evonik\nProduct: Zeosil 1165MP, Company: Solvay",
			[]string{"Ultrasil VN3", "Zeosil 1165MP"},
			[]string{"Evonik", "Solvay"},
		},
		{
			"union with de-dup across patterns",
			"1. SIPERNAT 50 by Evonik - silica\n\"sipernat 50\" by EVONIK\nProduct: Ultrasil VN3, Company: Evonik",
			[]string{"SIPERNAT 50", "Ultrasil VN3"},
			[]string{"Evonik", "Evonik"},
		},
		{
			"short and instruction names rejected",
			"1. AB by Acme - short\nProduct: Pick the products below, Company: Acme",
			nil,
			nil,
		},
	}

	p := testParser(config.DisambiguationConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.text)
			require.NoError(t, err)

			data := p.Parse(raw, "query")

			var names, cos []string
			for _, o := range data.Options {
				names = append(names, o.Name)
				cos = append(cos, o.Company)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantCos, cos)
		})
	}
}

func TestParse_NothingExtracted(t *testing.T) {
	p := testParser(config.DisambiguationConfig{DefaultInstructions: "Choose one."})
	data := p.Parse(json.RawMessage(`{"status":"ok"}`), "x")

	assert.True(t, data.Detected)
	assert.Empty(t, data.Options)
	assert.NotNil(t, data.Options)
	assert.Equal(t, "Choose one.", data.Instructions)
	assert.Equal(t, 0.3, data.SearchMetadata.Confidence)
}

func TestParse_CategoriesCycle(t *testing.T) {
	p := testParser(config.DisambiguationConfig{Categories: []string{"Silica", "Additives"}})
	data := p.Parse(resultPayload(t, "Product: Alpha One, Company: A\nProduct: Beta Two, Company: B\nProduct: Gamma Three, Company: C"), "q")

	require.Len(t, data.Options, 3)
	assert.Equal(t, "Silica", data.Options[0].Category)
	assert.Equal(t, "Additives", data.Options[1].Category)
	assert.Equal(t, "Silica", data.Options[2].Category)
	assert.Equal(t, map[string]int{"Silica": 2, "Additives": 1}, data.QueryRefinements.CategoryBreakdown)
	assert.Equal(t, []string{"alpha", "one", "beta", "two", "gamma", "three"}, data.QueryRefinements.RelatedTerms)
}

func TestParse_SeededRelevanceIsReproducible(t *testing.T) {
	raw := resultPayload(t, sipernatText)
	a := NewParser(config.DisambiguationConfig{Seed: 42}).Parse(raw, "q")
	b := NewParser(config.DisambiguationConfig{Seed: 42}).Parse(raw, "q")
	assert.Equal(t, a.Options, b.Options)
}

func TestExtractInstructions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"none", "Here are some products.", ""},
		{"overlap reported once", "Please specify which product you mean.", "Please specify which product you mean."},
		{"in text order", "Which product do you need? There are several product matches for your query.",
			"Which product do you need? There are several product matches for your query."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractInstructions(tt.text))
		})
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"result array", `{"result":[{"content":"a"},{"content":"b"},{"other":1}]}`, "a\nb"},
		{"result content", `{"result":{"content":"single"}}`, "single"},
		{"plain string", `"just text"`, "just text"},
		{"other object", `{ "answer" : "x" }`, `{"answer":"x"}`},
		{"not json", `There are several`, "There are several"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(json.RawMessage(tt.raw)))
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "sipernat-45-s", slugify("SIPERNAT 45 S"))
	assert.Equal(t, "cafe-creme", slugify("Café  Crème!"))
	assert.Equal(t, "a-b", slugify("--A & B--"))
}

func TestParse_InlineBulletDescriptions(t *testing.T) {
	raw, err := json.Marshal(Trigger + " • Aerosil 200 (Evonik) - fumed silica • Cab-O-Sil M5 (Cabot) - treated silica")
	require.NoError(t, err)

	data := testParser(config.DisambiguationConfig{}).Parse(raw, "fumed silica")
	require.Len(t, data.Options, 2)
	assert.Equal(t, "fumed silica", data.Options[0].Description)
	assert.Equal(t, "treated silica", data.Options[1].Description)
}

func TestParse_ExtractionPanicDegrades(t *testing.T) {
	p := testParser(config.DisambiguationConfig{DefaultInstructions: "Choose one."})
	p.extractor = func(string) []candidate { panic("bad pattern") }

	raw, err := json.Marshal(sipernatText)
	require.NoError(t, err)

	var data *model.DisambiguationData
	require.NotPanics(t, func() { data = p.Parse(raw, "sipernat") })

	assert.True(t, data.Detected)
	assert.Empty(t, data.Options)
	assert.Equal(t, "Choose one.", data.Instructions)
	require.NotNil(t, data.SearchMetadata)
	assert.Equal(t, 0, data.SearchMetadata.TotalMatches)
	assert.Equal(t, 0.3, data.SearchMetadata.Confidence)
}
