// Package api exposes products, replacement runs, search and chat over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/store"
)

// Store is the read side of persistence the API serves. Satisfied by store.Store.
type Store interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
	GetRun(ctx context.Context, id string) (*model.ReplacementRun, error)
	ListRuns(ctx context.Context, f store.RunFilter) ([]model.ReplacementRun, error)
}

// Discoverer runs replacement discovery. Satisfied by *replacement.Service.
type Discoverer interface {
	Discover(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error)
}

// Scorer scores a supplied pool. Satisfied by *replacement.Engine.
type Scorer interface {
	GenerateCandidates(ctx context.Context, original model.Product, candidates []model.Product, criteria model.ReplacementCriteria, req model.ReplacementRequest) ([]model.ReplacementCandidate, error)
}

// Disambiguator parses ambiguous search payloads. Satisfied by *disambiguation.Parser.
type Disambiguator interface {
	Parse(raw json.RawMessage, originalQuery string) *model.DisambiguationData
}

// Searcher runs a RAG search. Satisfied by *rag.Service.
type Searcher interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
}

// Asker answers chat questions. Satisfied by *chat.Service.
type Asker interface {
	Ask(ctx context.Context, question string) (*model.ChatAnswer, error)
}

// Deps wires the handlers. Nil services leave their routes answering 503.
type Deps struct {
	Store            Store
	Discoverer       Discoverer
	Scorer           Scorer
	Parser           Disambiguator
	Search           Searcher
	Chat             Asker
	Breakers         BreakerStates
	ReasonExclusions map[string][]string
	AllowedOrigins   []string
	RequestTimeout   time.Duration
}

// BreakerStates reports circuit breaker states. Satisfied by *resilience.ServiceBreakers.
type BreakerStates interface {
	States() map[string]string
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	h := &handlers{deps: d}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Post("/replacements", h.discover)
		r.Post("/replacements/score", h.score)
		r.Get("/replacements", h.listRuns)
		r.Get("/replacements/{id}", h.getRun)

		r.Post("/disambiguate", h.disambiguate)
		r.Post("/search", h.search)
		r.Post("/chat", h.chat)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
