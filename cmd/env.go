package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/chat"
	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/disambiguation"
	"github.com/sells-group/chem-advisor/internal/rag"
	"github.com/sells-group/chem-advisor/internal/replacement"
	"github.com/sells-group/chem-advisor/internal/resilience"
	"github.com/sells-group/chem-advisor/internal/sourcing"
	"github.com/sells-group/chem-advisor/internal/store"
	anthropicpkg "github.com/sells-group/chem-advisor/pkg/anthropic"
	"github.com/sells-group/chem-advisor/pkg/jina"
	"github.com/sells-group/chem-advisor/pkg/perplexity"
)

// appEnv holds the initialized store, clients and services shared by the
// serve, discover, search and ask commands.
type appEnv struct {
	Store       store.Store // nil when the command runs without persistence
	Breakers    *resilience.ServiceBreakers
	Parser      *disambiguation.Parser
	Cache       rag.Cache
	Search      *rag.Service // nil when rag.base_url is unset
	Chat        *chat.Service
	Discovery   *replacement.Service
	Engine      *replacement.Engine
	Replacement config.ReplacementConfig
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv wires the services for a command. withStore opens and migrates
// the store; the "store" cache backend opens it regardless. Callers should
// defer env.Close().
func initEnv(ctx context.Context, withStore bool) (*appEnv, error) {
	rc, err := replacementConfig()
	if err != nil {
		return nil, err
	}

	cbCfg := resilience.FromCircuitConfig("upstream", cfg.RAG.CircuitFailureThreshold, cfg.RAG.CircuitResetSecs)
	cbCfg.OnStateChange = nil // each breaker logs under its own service name

	env := &appEnv{
		Breakers:    resilience.NewServiceBreakers(cbCfg),
		Parser:      disambiguation.NewParser(cfg.Disambiguation),
		Engine:      replacement.NewEngine(rc),
		Replacement: rc,
	}

	if withStore || cfg.Cache.Backend == "store" {
		st, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	if cfg.RAG.BaseURL != "" {
		var searchStore rag.SearchStore
		if env.Store != nil {
			searchStore = env.Store
		}
		cache, err := rag.NewCache(ctx, cfg.Cache, searchStore)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init search cache")
		}
		env.Cache = cache

		client := rag.NewClient(cfg.RAG, rag.WithBreaker(env.Breakers.Get("rag")))
		ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second
		env.Search = rag.NewService(client, cache, env.Parser, ttl)

		var llm anthropicpkg.Client
		if cfg.Anthropic.Key != "" {
			llm = anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithMaxRetries(cfg.Anthropic.MaxRetries))
			zap.L().Info("anthropic answers enabled", zap.String("model", cfg.Anthropic.Model))
		} else {
			zap.L().Debug("CHEMADVISOR_ANTHROPIC_KEY not set, chat answers come from search content")
		}
		env.Chat = chat.NewService(env.Search, llm, cfg.Chat, cfg.Anthropic)
	} else {
		zap.L().Debug("rag.base_url not set, search and chat disabled")
	}

	if env.Store != nil {
		env.Discovery = replacement.NewService(env.Store, newSourcer(env), rc)
	}

	return env, nil
}

// newSourcer builds the candidate sourcer with the external sources the
// config enables.
func newSourcer(env *appEnv) *sourcing.Sourcer {
	opts := []sourcing.Option{sourcing.WithBreakers(env.Breakers)}

	if cfg.Sourcing.EnableJina && cfg.Jina.Key != "" {
		opts = append(opts, sourcing.WithJina(jina.NewClient(cfg.Jina.Key,
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
			jina.WithRateLimit(cfg.Jina.RateLimit),
		)))
		zap.L().Info("jina sourcing enabled")
	}
	if cfg.Sourcing.EnablePerplexity && cfg.Perplexity.Key != "" {
		opts = append(opts, sourcing.WithPerplexity(perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)))
		zap.L().Info("perplexity sourcing enabled")
	}

	return sourcing.New(env.Store, cfg.Sourcing, opts...)
}

// replacementConfig returns the scoring config, loading the profile file
// when one is set. Reason exclusions from the main config fill in a profile
// that has none.
func replacementConfig() (config.ReplacementConfig, error) {
	rc := cfg.Replacement
	if rc.ProfilePath == "" {
		return rc, nil
	}
	profile, err := replacement.LoadProfile(rc.ProfilePath)
	if err != nil {
		return config.ReplacementConfig{}, err
	}
	if len(profile.ReasonExclusions) == 0 {
		profile.ReasonExclusions = rc.ReasonExclusions
	}
	profile.ProfilePath = rc.ProfilePath
	return profile, nil
}
