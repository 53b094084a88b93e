package rag

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/chem-advisor/internal/disambiguation"
	"github.com/sells-group/chem-advisor/internal/model"
)

// Service answers search queries through the cache and the upstream RAG
// service. Concurrent identical queries share one upstream call.
type Service struct {
	upstream Upstream
	cache    Cache
	parser   *disambiguation.Parser
	ttl      time.Duration

	group singleflight.Group
}

// NewService creates a Service. A nil cache disables caching.
func NewService(upstream Upstream, cache Cache, parser *disambiguation.Parser, ttl time.Duration) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{upstream: upstream, cache: cache, parser: parser, ttl: ttl}
}

// Search returns the answer for query, from cache when possible.
func (s *Service) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if NormalizeQuery(query) == "" {
		return nil, eris.New("rag: query is empty")
	}
	key := cacheKey(query)
	log := zap.L().With(zap.String("query", query))

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("rag: cache lookup failed", zap.Error(err))
	}
	if cached != nil {
		log.Debug("rag: cache hit")
		out := *cached
		out.Cached = true
		return &out, nil
	}

	// The shared fetch outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetch(fetchCtx, key, query)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "rag: search")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("rag: shared in-flight search")
		}
		out := *res.Val.(*model.SearchResult)
		return &out, nil
	}
}

func (s *Service) fetch(ctx context.Context, key, query string) (*model.SearchResult, error) {
	start := time.Now()
	raw, err := s.upstream.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "rag: search")
	}
	elapsed := time.Since(start)

	result := &model.SearchResult{
		Query:    query,
		Content:  disambiguation.Flatten(raw),
		Sources:  parseSources(raw),
		Raw:      raw,
		Duration: elapsed,
	}

	if disambiguation.Detect(raw) && s.parser != nil {
		data := s.parser.Parse(raw, query)
		data.SearchMetadata.SearchTime = elapsed.Milliseconds()
		result.DisambiguationDetected = true
		result.Disambiguation = data
		zap.L().Info("rag: disambiguation detected",
			zap.String("query", query),
			zap.Int("options", len(data.Options)),
		)
	}

	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		zap.L().Warn("rag: cache store failed", zap.Error(err))
	}
	return result, nil
}

type upstreamItem struct {
	Title  string  `json:"title"`
	Source string  `json:"source"`
	URL    string  `json:"url"`
	Score  float64 `json:"score"`
}

// parseSources reads citations from a top-level "sources" array, falling
// back to the items of a "result" array.
func parseSources(raw json.RawMessage) []model.SearchSource {
	var payload struct {
		Sources []upstreamItem  `json:"sources"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	items := payload.Sources
	if len(items) == 0 && len(payload.Result) > 0 && payload.Result[0] == '[' {
		_ = json.Unmarshal(payload.Result, &items)
	}

	var out []model.SearchSource
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = it.Source
		}
		if title == "" && it.URL == "" {
			continue
		}
		out = append(out, model.SearchSource{Title: title, URL: it.URL, Score: it.Score})
	}
	return out
}
