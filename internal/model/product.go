package model

import (
	"regexp"
	"strings"
	"time"
)

// ProductSource records where a product record came from.
type ProductSource string

const (
	SourceCatalog    ProductSource = "catalog"
	SourceNotion     ProductSource = "notion"
	SourceJina       ProductSource = "jina"
	SourcePerplexity ProductSource = "perplexity"
)

// casPattern matches the digits-digits-digit layout of a CAS registry number.
var casPattern = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)

// Product is a chemical product as stored in the catalog or sourced externally.
type Product struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Manufacturer  string        `json:"manufacturer,omitempty"`
	CASNumber     string        `json:"cas_number,omitempty"`
	ChemicalName  string        `json:"chemical_name,omitempty"`
	Category      string        `json:"category,omitempty"`
	Description   string        `json:"description,omitempty"`
	IsActive      bool          `json:"is_active"`
	ProductNumber string        `json:"product_number,omitempty"`
	Source        ProductSource `json:"source,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ValidCAS reports whether s looks like a CAS registry number.
func ValidCAS(s string) bool {
	return casPattern.MatchString(strings.TrimSpace(s))
}

// Key returns the lowercase (name, manufacturer) identity used for de-duplication.
func (p Product) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.ToLower(strings.TrimSpace(p.Manufacturer))
}
