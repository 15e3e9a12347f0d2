package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the digest pipeline.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Topics     []string         `mapstructure:"topics"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Process    ProcessConfig    `mapstructure:"process"`
	Synthesize SynthesizeConfig `mapstructure:"synthesize"`
	Analyze    AnalyzeConfig    `mapstructure:"analyze"`
	Deliver    DeliverConfig    `mapstructure:"deliver"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug               bool   `mapstructure:"debug"`
	LogLevel            string `mapstructure:"log_level"`
	MaxArticleAgeHours  int    `mapstructure:"max_article_age_hours"`
	MaxArticlesPerTopic int    `mapstructure:"max_articles_per_topic"`
}

// SourcesConfig enumerates the ingestion sources.
type SourcesConfig struct {
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
	RSS        RSSConfig        `mapstructure:"rss"`
	GDELT      GDELTConfig      `mapstructure:"gdelt"`
}

// HackerNewsConfig configures the Algolia-backed Hacker News source.
type HackerNewsConfig struct {
	Enabled   bool                `mapstructure:"enabled"`
	BaseURL   string              `mapstructure:"base_url"`
	MinPoints int                 `mapstructure:"min_points"`
	Limit     int                 `mapstructure:"limit"`
	Queries   map[string][]string `mapstructure:"queries"` // topic -> search queries
}

// RSSFeed is a single configured feed.
type RSSFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// RSSConfig configures per-topic RSS feeds.
type RSSConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	Feeds   map[string][]RSSFeed `mapstructure:"feeds"` // topic -> feeds
}

// GDELTConfig configures the GDELT DOC API source.
type GDELTConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	BaseURL string              `mapstructure:"base_url"`
	Limit   int                 `mapstructure:"limit"`
	Queries map[string][]string `mapstructure:"queries"` // topic -> queries
}

// LLMConfig describes the inference provider and model routing.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // openai, anthropic
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	// Anthropic has no embedding endpoint; when it is the provider, an
	// OpenAI key here enables embeddings.
	EmbeddingAPIKey string              `mapstructure:"embedding_api_key"`
	EmbeddingModel  string              `mapstructure:"embedding_model"`
	Timeout         time.Duration       `mapstructure:"timeout"`
	MaxRetries      int                 `mapstructure:"max_retries"`
	Models          map[string]LLMModel `mapstructure:"models"`
	Routing         RoutingConfig       `mapstructure:"routing"`
}

// LLMModel is one configured model, with per-million-token pricing.
type LLMModel struct {
	Name           string  `mapstructure:"name"`
	APIName        string  `mapstructure:"api_name"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	CostPerMInput  float64 `mapstructure:"cost_per_m_input"`
	CostPerMOutput float64 `mapstructure:"cost_per_m_output"`
}

// RoutingConfig routes pipeline tasks to configured model keys.
type RoutingConfig struct {
	Summarize   string `mapstructure:"summarize"`
	CrossRef    string `mapstructure:"crossref"`
	Projections string `mapstructure:"projections"`
	Fallback    string `mapstructure:"fallback"`
}

// ModelFor resolves the model key for a task, falling back when unset.
func (c LLMConfig) ModelFor(task string) string {
	var key string
	switch task {
	case "summarize":
		key = c.Routing.Summarize
	case "crossref":
		key = c.Routing.CrossRef
	case "projections":
		key = c.Routing.Projections
	}
	if key == "" {
		key = c.Routing.Fallback
	}
	return key
}

// ProcessConfig configures dedup, clustering, and embeddings.
type ProcessConfig struct {
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
}

// DedupConfig controls the two-phase deduplication engine.
type DedupConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	CosineThreshold float64 `mapstructure:"cosine_threshold"`
}

// ClusterConfig controls agglomerative clustering.
type ClusterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
}

// EmbeddingsConfig controls the embedding cache.
type EmbeddingsConfig struct {
	Cache EmbeddingCacheConfig `mapstructure:"cache"`
}

// EmbeddingCacheConfig points at an optional Redis cache of embedding
// vectors keyed by content fingerprint.
type EmbeddingCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SynthesizeConfig bounds summarization.
type SynthesizeConfig struct {
	MaxConcurrent        int     `mapstructure:"max_concurrent"`
	MaxArticlesPerPrompt int     `mapstructure:"max_articles_per_prompt"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	Temperature          float64 `mapstructure:"temperature"`
}

// AnalyzeConfig toggles the post-summary analyzers.
type AnalyzeConfig struct {
	CrossRef    ToggleConfig `mapstructure:"crossref"`
	Projections ToggleConfig `mapstructure:"projections"`
	Trends      TrendsConfig `mapstructure:"trends"`
}

// ToggleConfig is a bare enable switch.
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TrendsConfig configures cross-run story matching.
type TrendsConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MatchThreshold float64 `mapstructure:"match_threshold"`
}

// DeliverConfig enumerates delivery channels.
type DeliverConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BotToken         string `mapstructure:"bot_token"`
	ChatID           string `mapstructure:"chat_id"`
	BaseURL          string `mapstructure:"base_url"`
	MaxMessageLength int    `mapstructure:"max_message_length"`
}

// StorageConfig holds the durable store settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig describes the Postgres connection.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a connection string from either the URL or discrete fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// TelemetryConfig controls the metrics/health server used in scheduled mode.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if len(c.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	if c.Process.Dedup.CosineThreshold <= 0 || c.Process.Dedup.CosineThreshold > 1 {
		return fmt.Errorf("process.dedup.cosine_threshold must be in (0, 1]")
	}
	if c.Process.Cluster.DistanceThreshold <= 0 {
		return fmt.Errorf("process.cluster.distance_threshold must be positive")
	}
	if c.Synthesize.MaxConcurrent <= 0 {
		return fmt.Errorf("synthesize.max_concurrent must be positive")
	}
	if c.Analyze.Trends.MatchThreshold <= 0 || c.Analyze.Trends.MatchThreshold > 1 {
		return fmt.Errorf("analyze.trends.match_threshold must be in (0, 1]")
	}
	if c.Telemetry.Enabled && c.Telemetry.Address == "" {
		return fmt.Errorf("telemetry.address is required when telemetry is enabled")
	}
	return nil
}

// Load reads configuration from the given file, or searches the usual
// locations when path is empty. Environment variables prefixed MOAT_
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.max_article_age_hours", 24)
	v.SetDefault("general.max_articles_per_topic", 30)
	v.SetDefault("sources.hackernews.min_points", 10)
	v.SetDefault("sources.hackernews.limit", 15)
	v.SetDefault("sources.gdelt.limit", 20)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("process.dedup.enabled", true)
	v.SetDefault("process.dedup.cosine_threshold", 0.85)
	v.SetDefault("process.cluster.enabled", true)
	v.SetDefault("process.cluster.distance_threshold", 0.6)
	v.SetDefault("synthesize.max_concurrent", 10)
	v.SetDefault("synthesize.max_articles_per_prompt", 10)
	v.SetDefault("synthesize.max_tokens", 2000)
	v.SetDefault("synthesize.temperature", 0.3)
	v.SetDefault("analyze.crossref.enabled", true)
	v.SetDefault("analyze.projections.enabled", true)
	v.SetDefault("analyze.trends.enabled", true)
	v.SetDefault("analyze.trends.match_threshold", 0.55)
	v.SetDefault("deliver.telegram.max_message_length", 4096)
	v.SetDefault("telemetry.address", ":9090")

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("MOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
