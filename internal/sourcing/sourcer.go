// Package sourcing gathers the candidate pool for a replacement run from the
// internal catalog and external search providers.
package sourcing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/resilience"
	"github.com/sells-group/chem-advisor/internal/store"
	"github.com/sells-group/chem-advisor/pkg/jina"
	"github.com/sells-group/chem-advisor/pkg/perplexity"
)

const (
	defaultMaxCandidates = 50
	defaultInternalLimit = 40
	defaultExternalLimit = 5
)

// Catalog is the product lookup the sourcer reads from. Satisfied by store.Store.
type Catalog interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
}

// Sourcer gathers candidates from the catalog plus the enabled external providers.
type Sourcer struct {
	catalog    Catalog
	jina       jina.Client
	perplexity perplexity.Client
	breakers   *resilience.ServiceBreakers
	cfg        config.SourcingConfig
}

// Option configures a Sourcer.
type Option func(*Sourcer)

// WithJina enables Jina web search as a candidate source.
func WithJina(c jina.Client) Option {
	return func(s *Sourcer) { s.jina = c }
}

// WithPerplexity enables Perplexity-suggested alternatives.
func WithPerplexity(c perplexity.Client) Option {
	return func(s *Sourcer) { s.perplexity = c }
}

// WithBreakers routes external calls through per-service circuit breakers.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(s *Sourcer) { s.breakers = sb }
}

// New creates a Sourcer. Zero limits fall back to defaults.
func New(catalog Catalog, cfg config.SourcingConfig, opts ...Option) *Sourcer {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	if cfg.InternalLimit <= 0 {
		cfg.InternalLimit = defaultInternalLimit
	}
	if cfg.ExternalLimit <= 0 {
		cfg.ExternalLimit = defaultExternalLimit
	}
	s := &Sourcer{catalog: catalog, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gather returns the de-duplicated candidate pool for original. Catalog
// errors fail the call; external provider errors are logged and skipped.
func (s *Sourcer) Gather(ctx context.Context, original model.Product, criteria model.ReplacementCriteria) ([]model.Product, error) {
	log := zap.L().With(zap.String("original", original.Name))

	var (
		internal, web, suggested []model.Product
		mu                       sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		products, err := s.fromCatalog(gctx, original, criteria)
		if err != nil {
			return err
		}
		mu.Lock()
		internal = products
		mu.Unlock()
		return nil
	})

	if s.cfg.EnableJina && s.jina != nil {
		g.Go(func() error {
			products, err := s.external(gctx, "jina", func(ctx context.Context) ([]model.Product, error) {
				return s.fromJina(ctx, original)
			})
			if err != nil {
				log.Warn("sourcing: jina search failed, skipping", zap.Error(err))
				return nil
			}
			mu.Lock()
			web = products
			mu.Unlock()
			return nil
		})
	}

	if s.cfg.EnablePerplexity && s.perplexity != nil {
		g.Go(func() error {
			products, err := s.external(gctx, "perplexity", func(ctx context.Context) ([]model.Product, error) {
				return s.fromPerplexity(ctx, original, criteria)
			})
			if err != nil {
				log.Warn("sourcing: perplexity suggestions failed, skipping", zap.Error(err))
				return nil
			}
			mu.Lock()
			suggested = products
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := merge(original, s.cfg.MaxCandidates, internal, web, suggested)
	log.Info("sourcing: candidate pool gathered",
		zap.Int("internal", len(internal)),
		zap.Int("jina", len(web)),
		zap.Int("perplexity", len(suggested)),
		zap.Int("pool", len(pool)),
	)
	return pool, nil
}

// external applies the provider timeout and circuit breaker.
func (s *Sourcer) external(ctx context.Context, service string, fn func(context.Context) ([]model.Product, error)) ([]model.Product, error) {
	if s.cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSecs)*time.Second)
		defer cancel()
	}
	if s.breakers == nil {
		return fn(ctx)
	}
	return resilience.ExecuteVal(ctx, s.breakers.Get(service), fn)
}

// fromCatalog pulls same-category products and chemical-name matches.
func (s *Sourcer) fromCatalog(ctx context.Context, original model.Product, criteria model.ReplacementCriteria) ([]model.Product, error) {
	var out []model.Product
	if original.Category != "" {
		products, err := s.catalog.ListProducts(ctx, store.ProductFilter{
			Category:   original.Category,
			ActiveOnly: true,
			Limit:      s.cfg.InternalLimit,
		})
		if err != nil {
			return nil, eris.Wrap(err, "sourcing: list catalog by category")
		}
		out = append(out, products...)
	}

	seen := map[string]bool{}
	for _, q := range []string{original.ChemicalName, criteria.ChemicalClass} {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		products, err := s.catalog.SearchProducts(ctx, q, s.cfg.InternalLimit)
		if err != nil {
			return nil, eris.Wrapf(err, "sourcing: search catalog for %q", q)
		}
		out = append(out, products...)
	}
	return out, nil
}

// merge de-duplicates by (name, manufacturer), drops the original and
// nameless entries, and caps the pool. Earlier sources win.
func merge(original model.Product, limit int, sources ...[]model.Product) []model.Product {
	origKey := original.Key()
	seen := map[string]bool{origKey: true}
	var pool []model.Product
	for _, products := range sources {
		for _, p := range products {
			if strings.TrimSpace(p.Name) == "" {
				continue
			}
			if original.ID != "" && p.ID == original.ID {
				continue
			}
			k := p.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			pool = append(pool, p)
			if limit > 0 && len(pool) >= limit {
				return pool
			}
		}
	}
	return pool
}
