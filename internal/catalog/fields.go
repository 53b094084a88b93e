// Package catalog loads product catalogs from CSV, XLSX, remote files, and
// Notion databases into the product store.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chem-advisor/internal/model"
)

// Canonical column names.
const (
	colName          = "name"
	colManufacturer  = "manufacturer"
	colCAS           = "cas_number"
	colChemicalName  = "chemical_name"
	colCategory      = "category"
	colDescription   = "description"
	colActive        = "active"
	colProductNumber = "product_number"
)

// aliases maps normalized header spellings onto canonical columns.
var aliases = map[string]string{
	"name":             colName,
	"product":          colName,
	"product_name":     colName,
	"trade_name":       colName,
	"manufacturer":     colManufacturer,
	"mfr":              colManufacturer,
	"supplier":         colManufacturer,
	"vendor":           colManufacturer,
	"brand":            colManufacturer,
	"cas":              colCAS,
	"cas_number":       colCAS,
	"cas_no":           colCAS,
	"cas_num":          colCAS,
	"cas_rn":           colCAS,
	"chemical_name":    colChemicalName,
	"chemical":         colChemicalName,
	"substance":        colChemicalName,
	"active_substance": colChemicalName,
	"category":         colCategory,
	"product_category": colCategory,
	"type":             colCategory,
	"product_type":     colCategory,
	"description":      colDescription,
	"desc":             colDescription,
	"notes":            colDescription,
	"active":           colActive,
	"is_active":        colActive,
	"status":           colActive,
	"product_number":   colProductNumber,
	"product_no":       colProductNumber,
	"sku":              colProductNumber,
	"part_number":      colProductNumber,
	"item_number":      colProductNumber,
}

// Validation failures reported per skipped row.
var (
	ErrMissingName = eris.New("catalog: missing product name")
	ErrInvalidCAS  = eris.New("catalog: malformed CAS number")
)

// normalizeHeader lowercases a header and folds separators to underscores,
// so "CAS No.", "cas-no" and "Cas No" all become "cas_no".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// canonicalColumn resolves a raw header to its canonical column, or "".
func canonicalColumn(h string) string {
	return aliases[normalizeHeader(h)]
}

// RowMapper maps positional rows onto products using a header row.
type RowMapper struct {
	index map[string]int
}

// NewRowMapper resolves the header row. The first occurrence of each
// canonical column wins. A header without a name column is rejected.
func NewRowMapper(header []string) (*RowMapper, error) {
	idx := make(map[string]int)
	for i, h := range header {
		col := canonicalColumn(h)
		if col == "" {
			continue
		}
		if _, seen := idx[col]; !seen {
			idx[col] = i
		}
	}
	if _, ok := idx[colName]; !ok {
		return nil, eris.Errorf("catalog: header has no product name column (got %v)", header)
	}
	return &RowMapper{index: idx}, nil
}

// Columns reports which canonical columns the header provided.
func (m *RowMapper) Columns() []string {
	out := make([]string, 0, len(m.index))
	for _, col := range []string{colName, colManufacturer, colCAS, colChemicalName, colCategory, colDescription, colActive, colProductNumber} {
		if _, ok := m.index[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

// Product builds a catalog product from a row. Short rows yield empty fields.
func (m *RowMapper) Product(row []string) model.Product {
	fields := make(map[string]string, len(m.index))
	for col, i := range m.index {
		if i < len(row) {
			fields[col] = row[i]
		}
	}
	return productFromCanonical(fields, model.SourceCatalog)
}

// ProductFromFields builds a product from named fields such as flattened
// Notion properties. Field names go through the same alias table as headers;
// an exact canonical name beats an alias for the same column.
func ProductFromFields(fields map[string]string, source model.ProductSource) model.Product {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canon := make(map[string]string, len(fields))
	exact := make(map[string]bool, len(fields))
	for _, k := range keys {
		col := canonicalColumn(k)
		if col == "" || exact[col] {
			continue
		}
		isExact := normalizeHeader(k) == col
		if _, seen := canon[col]; seen && !isExact {
			continue
		}
		canon[col] = fields[k]
		exact[col] = isExact
	}
	return productFromCanonical(canon, source)
}

func productFromCanonical(f map[string]string, source model.ProductSource) model.Product {
	get := func(col string) string { return strings.TrimSpace(f[col]) }
	return model.Product{
		Name:          get(colName),
		Manufacturer:  get(colManufacturer),
		CASNumber:     get(colCAS),
		ChemicalName:  get(colChemicalName),
		Category:      get(colCategory),
		Description:   get(colDescription),
		IsActive:      parseActive(get(colActive)),
		ProductNumber: get(colProductNumber),
		Source:        source,
	}
}

// parseActive treats an empty value as active.
func parseActive(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "y", "yes", "active", "current", "available", "x":
		return true
	case "n", "no", "inactive", "discontinued", "obsolete", "retired":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return true
}

// Validate reports why a product cannot be imported, or nil.
func Validate(p model.Product) error {
	if p.Name == "" {
		return ErrMissingName
	}
	if p.CASNumber != "" && !model.ValidCAS(p.CASNumber) {
		return ErrInvalidCAS
	}
	return nil
}
