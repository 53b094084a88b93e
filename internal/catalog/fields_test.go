package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/model"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Name", "name"},
		{"  CAS No. ", "cas_no"},
		{"cas-no", "cas_no"},
		{"Product  Number", "product_number"},
		{"Chemical_Name", "chemical_name"},
		{"(SKU)", "sku"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHeader(tt.in))
		})
	}
}

func TestNewRowMapper_Aliases(t *testing.T) {
	m, err := NewRowMapper([]string{"Product Name", "Supplier", "CAS No.", "Substance", "Type", "Notes", "Status", "SKU", "Unused"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		colName, colManufacturer, colCAS, colChemicalName, colCategory, colDescription, colActive, colProductNumber,
	}, m.Columns())

	p := m.Product([]string{" Klenz-All ", "Acme", "7732-18-5", "water", "cleaner", "general purpose", "discontinued", "KA-100", "x"})
	assert.Equal(t, "Klenz-All", p.Name)
	assert.Equal(t, "Acme", p.Manufacturer)
	assert.Equal(t, "7732-18-5", p.CASNumber)
	assert.Equal(t, "water", p.ChemicalName)
	assert.Equal(t, "cleaner", p.Category)
	assert.Equal(t, "general purpose", p.Description)
	assert.False(t, p.IsActive)
	assert.Equal(t, "KA-100", p.ProductNumber)
	assert.Equal(t, model.SourceCatalog, p.Source)
}

func TestNewRowMapper_FirstColumnWins(t *testing.T) {
	m, err := NewRowMapper([]string{"name", "product", "manufacturer"})
	require.NoError(t, err)

	p := m.Product([]string{"first", "second", "Acme"})
	assert.Equal(t, "first", p.Name)
}

func TestNewRowMapper_NoNameColumn(t *testing.T) {
	_, err := NewRowMapper([]string{"manufacturer", "cas"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no product name column")
}

func TestRowMapper_ShortRow(t *testing.T) {
	m, err := NewRowMapper([]string{"name", "manufacturer", "cas"})
	require.NoError(t, err)

	p := m.Product([]string{"Solo"})
	assert.Equal(t, "Solo", p.Name)
	assert.Empty(t, p.Manufacturer)
	assert.Empty(t, p.CASNumber)
	assert.True(t, p.IsActive)
}

func TestProductFromFields_ExactNameBeatsAlias(t *testing.T) {
	p := ProductFromFields(map[string]string{
		"Product":      "alias value",
		"Name":         "Degreaser 9",
		"Manufacturer": "ChemCo",
		"CAS":          "64-17-5",
		"Active":       "false",
	}, model.SourceNotion)

	assert.Equal(t, "Degreaser 9", p.Name)
	assert.Equal(t, "ChemCo", p.Manufacturer)
	assert.Equal(t, "64-17-5", p.CASNumber)
	assert.False(t, p.IsActive)
	assert.Equal(t, model.SourceNotion, p.Source)
}

func TestProductFromFields_IgnoresUnknown(t *testing.T) {
	p := ProductFromFields(map[string]string{"Trade Name": "Foamy", "Owner": "someone"}, model.SourceNotion)
	assert.Equal(t, "Foamy", p.Name)
	assert.Empty(t, p.Manufacturer)
}

func TestParseActive(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"yes", true},
		{"Y", true},
		{"TRUE", true},
		{"1", true},
		{"no", false},
		{"Inactive", false},
		{"obsolete", false},
		{"0", false},
		{"false", false},
		{"something else", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseActive(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(model.Product{Name: "A"}))
	assert.NoError(t, Validate(model.Product{Name: "A", CASNumber: "50-00-0"}))
	assert.ErrorIs(t, Validate(model.Product{CASNumber: "50-00-0"}), ErrMissingName)
	assert.ErrorIs(t, Validate(model.Product{Name: "A", CASNumber: "not-a-cas"}), ErrInvalidCAS)
}
