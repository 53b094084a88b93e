// Package store persists products, replacement runs and cached search answers.
package store

import (
	"context"
	"time"

	"github.com/sells-group/chem-advisor/internal/model"
)

// ProductFilter specifies criteria for listing products.
type ProductFilter struct {
	Category     string `json:"category,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Source       string `json:"source,omitempty"`
	ActiveOnly   bool   `json:"active_only,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing replacement runs.
type RunFilter struct {
	Status            model.RunStatus `json:"status,omitempty"`
	OriginalProductID string          `json:"original_product_id,omitempty"`
	Limit             int             `json:"limit,omitempty"`
	Offset            int             `json:"offset,omitempty"`
}

const defaultListLimit = 100

// Store defines the persistence interface. Getters return nil and no error
// when the row does not exist.
type Store interface {
	// Products
	UpsertProduct(ctx context.Context, p *model.Product) error
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)

	// Replacement runs
	CreateRun(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, run *model.ReplacementRun) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.ReplacementRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ReplacementRun, error)

	// Search cache
	GetCachedSearch(ctx context.Context, key string) (*model.SearchResult, error)
	SetCachedSearch(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error
	DeleteExpiredSearches(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
