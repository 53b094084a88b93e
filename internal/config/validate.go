package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the fields a command mode depends on.
// Modes: "serve", "discover", "search", "ask", "import", "notion".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateReplacement()...)
	case "discover":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateReplacement()...)
		if c.Sourcing.EnableJina && c.Jina.Key == "" {
			errs = append(errs, "jina.key is required when sourcing.enable_jina is set")
		}
		if c.Sourcing.EnablePerplexity && c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required when sourcing.enable_perplexity is set")
		}
	case "search", "ask":
		if c.RAG.BaseURL == "" {
			errs = append(errs, "rag.base_url is required")
		}
		errs = append(errs, c.validateCache()...)
	case "import":
		errs = append(errs, c.validateStore()...)
	case "notion":
		errs = append(errs, c.validateStore()...)
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.ProductDB == "" {
			errs = append(errs, "notion.product_db is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateCache() []string {
	switch c.Cache.Backend {
	case "memory", "store", "off", "":
		return nil
	case "redis":
		if c.Cache.RedisURL == "" {
			return []string{"cache.redis_url is required for the redis backend"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("cache.backend must be memory, redis, store or off, got %q", c.Cache.Backend)}
	}
}

func (c *Config) validateReplacement() []string {
	var errs []string
	w := c.Replacement.Weights
	for name, v := range map[string]float64{
		"chemical":       w.Chemical,
		"functional":     w.Functional,
		"performance":    w.Performance,
		"availability":   w.Availability,
		"cost":           w.Cost,
		"sustainability": w.Sustainability,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("replacement.weights.%s must be >= 0", name))
		}
	}
	sum := w.Chemical + w.Functional + w.Performance + w.Availability + w.Cost + w.Sustainability
	if math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("replacement.weights should sum to 1, got %.2f", sum))
	}
	if c.Replacement.MaxConcurrency < 1 || c.Replacement.MaxConcurrency > 64 {
		errs = append(errs, "replacement.max_concurrency must be between 1 and 64")
	}
	return errs
}
