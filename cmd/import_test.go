package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/catalog"
	"github.com/sells-group/chem-advisor/internal/store"
)

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import [source...]", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)
	require.NotNil(t, importCmd.Flags().Lookup("notion"))
	require.NotNil(t, importCmd.Flags().Lookup("active-only"))
}

func TestImportCmd_NoSources(t *testing.T) {
	cfg = testConfig(t)
	importNotion = false

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one source or --notion is required")
}

func TestImportCmd_NotionNeedsToken(t *testing.T) {
	cfg = testConfig(t)
	importNotion = true
	defer func() { importNotion = false }()

	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
}

func TestImportCmd_CSVAndTSV(t *testing.T) {
	cfg = testConfig(t)
	importNotion = false

	csvPath := writeFile(t, "products.csv",
		"Product Name,Supplier,CAS No,Type\n"+
			"SIPERNAT 22,Evonik,7631-86-9,silica\n"+
			"Caustic Pro,Delta,1310-73-2,degreaser\n"+
			",Nameless Co,,degreaser\n")
	tsvPath := writeFile(t, "more.tsv",
		"name\tmanufacturer\tcategory\n"+
			"Citra Clean\tGamma\tdegreaser\n")

	importCmd.SetContext(context.Background())
	err := importCmd.RunE(importCmd, []string{csvPath, tsvPath})
	require.NoError(t, err)

	withStore(t, func(st store.Store) {
		products, err := st.ListProducts(context.Background(), store.ProductFilter{})
		require.NoError(t, err)
		assert.Len(t, products, 3)

		degreasers, err := st.ListProducts(context.Background(), store.ProductFilter{Category: "degreaser"})
		require.NoError(t, err)
		assert.Len(t, degreasers, 2)
	})
}

func TestImportCmd_MissingFile(t *testing.T) {
	cfg = testConfig(t)
	importNotion = false

	importCmd.SetContext(context.Background())
	err := importCmd.RunE(importCmd, []string{"/nonexistent/products.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import /nonexistent/products.csv")
}

func TestNewImporter_WithNotion(t *testing.T) {
	cfg = testConfig(t)
	cfg.Notion.Token = "secret"

	withStore(t, func(st store.Store) {
		assert.NotNil(t, newImporter(st))
	})
}

func TestFormatImportStats(t *testing.T) {
	var buf bytes.Buffer
	formatImportStats(&buf, []*catalog.ImportStats{
		{Source: "products.csv", Rows: 4, Imported: 2, MissingName: 1, InvalidCAS: 1, Duration: 1500 * time.Microsecond},
		{Source: "notion:abc", Rows: 10, Imported: 10},
	})

	out := buf.String()
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "INVALID_CAS")
	assert.Contains(t, out, "products.csv")
	assert.Contains(t, out, "notion:abc")
	assert.Contains(t, out, "2ms")
}
