package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
	RAG            RAGConfig            `yaml:"rag" mapstructure:"rag"`
	Cache          CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Anthropic      AnthropicConfig      `yaml:"anthropic" mapstructure:"anthropic"`
	Jina           JinaConfig           `yaml:"jina" mapstructure:"jina"`
	Perplexity     PerplexityConfig     `yaml:"perplexity" mapstructure:"perplexity"`
	Notion         NotionConfig         `yaml:"notion" mapstructure:"notion"`
	Catalog        CatalogConfig        `yaml:"catalog" mapstructure:"catalog"`
	Sourcing       SourcingConfig       `yaml:"sourcing" mapstructure:"sourcing"`
	Replacement    ReplacementConfig    `yaml:"replacement" mapstructure:"replacement"`
	Disambiguation DisambiguationConfig `yaml:"disambiguation" mapstructure:"disambiguation"`
	Chat           ChatConfig           `yaml:"chat" mapstructure:"chat"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RAGConfig holds the upstream RAG search service settings.
type RAGConfig struct {
	BaseURL                 string  `yaml:"base_url" mapstructure:"base_url"`
	Key                     string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit               float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries              int     `yaml:"max_retries" mapstructure:"max_retries"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// CacheConfig configures the search response cache.
type CacheConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"` // memory, redis, store, off
	TTLSecs   int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	RedisURL  string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds Notion API credentials for the product database source.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	ProductDB string `yaml:"product_db" mapstructure:"product_db"`
}

// CatalogConfig configures product catalog ingestion.
type CatalogConfig struct {
	TempDir          string `yaml:"temp_dir" mapstructure:"temp_dir"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// SourcingConfig configures candidate pool gathering.
type SourcingConfig struct {
	MaxCandidates    int  `yaml:"max_candidates" mapstructure:"max_candidates"`
	InternalLimit    int  `yaml:"internal_limit" mapstructure:"internal_limit"`
	ExternalLimit    int  `yaml:"external_limit" mapstructure:"external_limit"`
	EnableJina       bool `yaml:"enable_jina" mapstructure:"enable_jina"`
	EnablePerplexity bool `yaml:"enable_perplexity" mapstructure:"enable_perplexity"`
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// JinaSite limits web results to one domain, e.g. a distributor catalog.
	JinaSite string `yaml:"jina_site" mapstructure:"jina_site"`
}

// ReplacementWeights are the overall-score weights of the six sub-scores.
type ReplacementWeights struct {
	Chemical       float64 `yaml:"chemical" mapstructure:"chemical"`
	Functional     float64 `yaml:"functional" mapstructure:"functional"`
	Performance    float64 `yaml:"performance" mapstructure:"performance"`
	Availability   float64 `yaml:"availability" mapstructure:"availability"`
	Cost           float64 `yaml:"cost" mapstructure:"cost"`
	Sustainability float64 `yaml:"sustainability" mapstructure:"sustainability"`
}

// ReplacementConfig configures the replacement scoring engine.
type ReplacementConfig struct {
	Weights          ReplacementWeights  `yaml:"weights" mapstructure:"weights"`
	MaxConcurrency   int                 `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MaxResults       int                 `yaml:"max_results" mapstructure:"max_results"`
	ProfilePath      string              `yaml:"profile_path" mapstructure:"profile_path"`
	ReasonExclusions map[string][]string `yaml:"reason_exclusions" mapstructure:"reason_exclusions"`
}

// DisambiguationConfig configures the ambiguous-match parser.
type DisambiguationConfig struct {
	Seed                int64    `yaml:"seed" mapstructure:"seed"`
	DefaultInstructions string   `yaml:"default_instructions" mapstructure:"default_instructions"`
	Categories          []string `yaml:"categories" mapstructure:"categories"`
}

// ChatConfig configures the chat answer layer.
type ChatConfig struct {
	SystemPrompt  string            `yaml:"system_prompt" mapstructure:"system_prompt"`
	MockResponses map[string]string `yaml:"mock_responses" mapstructure:"mock_responses"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHEMADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "chem-advisor.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("rag.timeout_secs", 30)
	v.SetDefault("rag.rate_limit", 5.0)
	v.SetDefault("rag.max_retries", 3)
	v.SetDefault("rag.circuit_failure_threshold", 5)
	v.SetDefault("rag.circuit_reset_secs", 30)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_secs", 600)
	v.SetDefault("cache.key_prefix", "chem-advisor:search:")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 2.0)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("catalog.temp_dir", "/tmp/chem-advisor")
	v.SetDefault("catalog.fetch_timeout_secs", 60)
	v.SetDefault("catalog.batch_size", 500)
	v.SetDefault("sourcing.max_candidates", 50)
	v.SetDefault("sourcing.internal_limit", 40)
	v.SetDefault("sourcing.external_limit", 5)
	v.SetDefault("sourcing.enable_jina", false)
	v.SetDefault("sourcing.enable_perplexity", false)
	v.SetDefault("sourcing.timeout_secs", 30)
	v.SetDefault("replacement.weights.chemical", 0.25)
	v.SetDefault("replacement.weights.functional", 0.25)
	v.SetDefault("replacement.weights.performance", 0.20)
	v.SetDefault("replacement.weights.availability", 0.15)
	v.SetDefault("replacement.weights.cost", 0.10)
	v.SetDefault("replacement.weights.sustainability", 0.05)
	v.SetDefault("replacement.max_concurrency", 8)
	v.SetDefault("replacement.max_results", 20)
	v.SetDefault("replacement.reason_exclusions", map[string][]string{
		"regulatory": {"formaldehyde", "nonylphenol", "bisphenol a", "phthalate"},
	})
	v.SetDefault("disambiguation.default_instructions", "Please select the product you are interested in.")
	v.SetDefault("disambiguation.categories", []string{})
	v.SetDefault("chat.system_prompt", "You are a technical assistant for chemical products. Answer using the provided search context. Say when the context does not cover the question.")
	v.SetDefault("chat.mock_responses", map[string]string{
		"hello": "Hello! Ask me about a chemical product, its properties, or possible replacements.",
		"help":  "You can search for a product by name, ask about its applications, or request replacement candidates.",
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
